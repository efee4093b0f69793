// Package status defines the task-outcome taxonomy and the reporting
// contract. Task bodies report exactly one outcome per task attempt;
// request handlers and report endpoints read the persisted records later.
package status

import (
	"context"
	"time"

	"github.com/channelport/courier/id"
	"github.com/channelport/courier/task"
)

// Outcome is the fixed set of task-attempt results.
type Outcome string

const (
	// OutcomeSuccess means the external call and persistence completed.
	OutcomeSuccess Outcome = "success"
	// OutcomeTemporary means the attempt failed but a later retry of the
	// whole task may succeed (throttled quota, for example).
	OutcomeTemporary Outcome = "temporary-failure"
	// OutcomePermanent means the attempt failed terminally; retrying
	// without intervention will not help.
	OutcomePermanent Outcome = "permanent-failure"
	// OutcomeNeedsMapping means the marketplace rejected the listing's
	// option configuration; a human must fix the mapping.
	OutcomeNeedsMapping Outcome = "needs-manual-mapping"
)

// Terminal reports whether the outcome ends the task's lifecycle.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomePermanent || o == OutcomeNeedsMapping
}

// Report is one persisted task-attempt outcome.
type Report struct {
	TaskID   id.TaskID
	TenantID int64
	Kind     task.Kind
	Outcome  Outcome
	// Error holds the classified failure message, empty on success.
	Error string
	At    time.Time
}

// Reporter is the narrow sink the task runner writes through.
type Reporter interface {
	Report(ctx context.Context, r *Report) error
}

// Store extends Reporter with the reads used by status endpoints.
type Store interface {
	Reporter

	// GetReport returns the latest report for a task.
	GetReport(ctx context.Context, taskID id.TaskID) (*Report, error)

	// ListReports returns a tenant's most recent reports, newest first.
	ListReports(ctx context.Context, tenantID int64, limit int) ([]*Report, error)
}
