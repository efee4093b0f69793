// Package hook defines lifecycle hooks for the courier core. Hooks are
// notified of admission decisions, task outcomes, and quota movements,
// and can react to them — metrics, audit trails, alerting.
//
// Each lifecycle event is a separate interface so hooks opt in only to
// the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/channelport/courier/status"
	"github.com/channelport/courier/task"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// TaskAdmitted is called when the gate admits a task for execution.
type TaskAdmitted interface {
	OnTaskAdmitted(ctx context.Context, t *task.Task) error
}

// TaskRejected is called when the gate rejects a task and it is
// re-enqueued at the tail. Rejections are routine flow control, never
// logged as errors.
type TaskRejected interface {
	OnTaskRejected(ctx context.Context, t *task.Task, reason string) error
}

// TaskCompleted is called after a task body finishes successfully.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) error
}

// TaskFailed is called when a task body fails, with the classified
// outcome.
type TaskFailed interface {
	OnTaskFailed(ctx context.Context, t *task.Task, outcome status.Outcome, err error) error
}

// TaskDeadLettered is called when a permanently failed task is captured
// for manual remediation.
type TaskDeadLettered interface {
	OnTaskDeadLettered(ctx context.Context, t *task.Task, err error) error
}

// QuotaDeducted is called after a committed quota deduction.
type QuotaDeducted interface {
	OnQuotaDeducted(ctx context.Context, tenantID int64, domain, tier string, amount int64) error
}

// QuotaRefilled is called when a priority tier auto-refills.
type QuotaRefilled interface {
	OnQuotaRefilled(ctx context.Context, tenantID int64, amount int64, unlockAt time.Time) error
}
