package hook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/channelport/courier/status"
	"github.com/channelport/courier/task"
)

// Registry fans lifecycle events out to registered hooks, synchronously
// and in registration order. Hook errors are logged and swallowed: a
// misbehaving hook must never affect task processing.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a hook. Not safe to call concurrently with emits during
// startup wiring; afterwards reads are lock-protected.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

func (r *Registry) snapshot() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

func (r *Registry) logHookErr(h Hook, event string, err error) {
	r.logger.Warn("hook failed",
		slog.String("hook", h.Name()),
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// EmitTaskAdmitted notifies TaskAdmitted hooks.
func (r *Registry) EmitTaskAdmitted(ctx context.Context, t *task.Task) {
	for _, h := range r.snapshot() {
		if hh, ok := h.(TaskAdmitted); ok {
			if err := hh.OnTaskAdmitted(ctx, t); err != nil {
				r.logHookErr(h, "task_admitted", err)
			}
		}
	}
}

// EmitTaskRejected notifies TaskRejected hooks.
func (r *Registry) EmitTaskRejected(ctx context.Context, t *task.Task, reason string) {
	for _, h := range r.snapshot() {
		if hh, ok := h.(TaskRejected); ok {
			if err := hh.OnTaskRejected(ctx, t, reason); err != nil {
				r.logHookErr(h, "task_rejected", err)
			}
		}
	}
}

// EmitTaskCompleted notifies TaskCompleted hooks.
func (r *Registry) EmitTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) {
	for _, h := range r.snapshot() {
		if hh, ok := h.(TaskCompleted); ok {
			if err := hh.OnTaskCompleted(ctx, t, elapsed); err != nil {
				r.logHookErr(h, "task_completed", err)
			}
		}
	}
}

// EmitTaskFailed notifies TaskFailed hooks.
func (r *Registry) EmitTaskFailed(ctx context.Context, t *task.Task, outcome status.Outcome, err error) {
	for _, h := range r.snapshot() {
		if hh, ok := h.(TaskFailed); ok {
			if hookErr := hh.OnTaskFailed(ctx, t, outcome, err); hookErr != nil {
				r.logHookErr(h, "task_failed", hookErr)
			}
		}
	}
}

// EmitTaskDeadLettered notifies TaskDeadLettered hooks.
func (r *Registry) EmitTaskDeadLettered(ctx context.Context, t *task.Task, err error) {
	for _, h := range r.snapshot() {
		if hh, ok := h.(TaskDeadLettered); ok {
			if hookErr := hh.OnTaskDeadLettered(ctx, t, err); hookErr != nil {
				r.logHookErr(h, "task_dead_lettered", hookErr)
			}
		}
	}
}

// EmitQuotaDeducted notifies QuotaDeducted hooks.
func (r *Registry) EmitQuotaDeducted(ctx context.Context, tenantID int64, domain, tier string, amount int64) {
	for _, h := range r.snapshot() {
		if hh, ok := h.(QuotaDeducted); ok {
			if err := hh.OnQuotaDeducted(ctx, tenantID, domain, tier, amount); err != nil {
				r.logHookErr(h, "quota_deducted", err)
			}
		}
	}
}

// EmitQuotaRefilled notifies QuotaRefilled hooks.
func (r *Registry) EmitQuotaRefilled(ctx context.Context, tenantID int64, amount int64, unlockAt time.Time) {
	for _, h := range r.snapshot() {
		if hh, ok := h.(QuotaRefilled); ok {
			if err := hh.OnQuotaRefilled(ctx, tenantID, amount, unlockAt); err != nil {
				r.logHookErr(h, "quota_refilled", err)
			}
		}
	}
}
