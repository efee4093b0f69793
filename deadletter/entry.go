// Package deadletter captures permanently failed tasks, payload snapshot
// included, so operators can fix the underlying problem (usually a
// marketplace option mapping) and replay them.
package deadletter

import (
	"context"
	"time"

	"github.com/channelport/courier/id"
	"github.com/channelport/courier/task"
)

// Entry is one captured permanent failure.
type Entry struct {
	ID       id.DeadLetterID `json:"id"`
	TaskID   id.TaskID       `json:"task_id"`
	TenantID int64           `json:"tenant_id"`
	Kind     task.Kind       `json:"kind"`
	// Payload is the task's payload snapshot at failure time.
	Payload map[string]any `json:"payload,omitempty"`
	Error   string         `json:"error"`
	// NeedsMapping marks failures caused by marketplace option
	// configuration that a human must remap before replay.
	NeedsMapping bool       `json:"needs_mapping"`
	FailedAt     time.Time  `json:"failed_at"`
	ReplayedAt   *time.Time `json:"replayed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// ListOpts controls pagination for dead letter listings.
type ListOpts struct {
	// TenantID filters by tenant. Zero means all tenants.
	TenantID int64
	// Limit is the maximum number of entries. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
}

// Store is the persistence contract for dead letter entries.
type Store interface {
	// PushDeadLetter persists a new entry.
	PushDeadLetter(ctx context.Context, e *Entry) error

	// GetDeadLetter retrieves an entry by ID.
	GetDeadLetter(ctx context.Context, entryID id.DeadLetterID) (*Entry, error)

	// ListDeadLetters returns entries newest first.
	ListDeadLetters(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// MarkReplayed records that an entry was re-enqueued.
	MarkReplayed(ctx context.Context, entryID id.DeadLetterID, at time.Time) error

	// DeleteDeadLetter removes an entry.
	DeleteDeadLetter(ctx context.Context, entryID id.DeadLetterID) error
}
