package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/channelport/courier/deadletter"
	"github.com/channelport/courier/hook"
	"github.com/channelport/courier/ledger"
	"github.com/channelport/courier/middleware"
	"github.com/channelport/courier/remote"
	"github.com/channelport/courier/status"
	"github.com/channelport/courier/task"
)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMiddleware sets the middleware chain wrapped around every body.
func WithMiddleware(mws ...middleware.Middleware) RunnerOption {
	return func(r *Runner) { r.mw = middleware.Chain(mws...) }
}

// WithDeadLetters enables dead letter capture for permanent failures.
func WithDeadLetters(s *deadletter.Service) RunnerOption {
	return func(r *Runner) { r.deadletters = s }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(h *hook.Registry) RunnerOption {
	return func(r *Runner) { r.hooks = h }
}

// WithRunnerLogger sets a custom logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithRunnerClock replaces the time source in tests.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// Runner executes one task attempt: body through middleware, failure
// classification, exactly one status report, and dead letter capture
// for permanent failures. Errors never escape Run; the poll loop above
// it is expected to run indefinitely.
type Runner struct {
	registry    *Registry
	reporter    status.Reporter
	mw          middleware.Middleware
	deadletters *deadletter.Service
	hooks       *hook.Registry
	logger      *slog.Logger
	now         func() time.Time
}

// NewRunner creates a Runner. registry and reporter are required.
func NewRunner(registry *Registry, reporter status.Reporter, opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: registry,
		reporter: reporter,
		mw:       middleware.Chain(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes the task and persists its outcome. Exactly one report
// is written per attempt; reporter failures are logged, never fatal.
func (r *Runner) Run(ctx context.Context, t *task.Task) {
	body, err := r.registry.Get(t.Kind)
	if err != nil {
		r.finish(ctx, t, status.OutcomePermanent, err, 0, false, false)
		return
	}

	start := r.now()
	execErr := r.mw(ctx, t, func(ctx context.Context) error {
		return body(ctx, t)
	})
	elapsed := r.now().Sub(start)

	outcome, capture, needsMapping := classify(execErr)
	r.finish(ctx, t, outcome, execErr, elapsed, capture, needsMapping)
}

// classify maps a body error to an outcome, whether the task should be
// dead lettered, and whether remediation requires option remapping.
func classify(err error) (outcome status.Outcome, capture, needsMapping bool) {
	if err == nil {
		return status.OutcomeSuccess, false, false
	}

	var qe *ledger.QuotaError
	if errors.As(err, &qe) {
		if qe.Throttled() {
			return status.OutcomeTemporary, false, false
		}
		return status.OutcomePermanent, false, false
	}

	var pe *remote.PermanentError
	if errors.As(err, &pe) {
		if pe.NeedsMapping {
			return status.OutcomeNeedsMapping, true, true
		}
		return status.OutcomePermanent, true, false
	}

	if errors.Is(err, remote.ErrRetriesExhausted) {
		return status.OutcomePermanent, true, false
	}

	// Persistence failures and anything unclassified: surfaced in the
	// status record, retriable by re-enqueueing upstream.
	return status.OutcomeTemporary, false, false
}

func (r *Runner) finish(ctx context.Context, t *task.Task, outcome status.Outcome, execErr error, elapsed time.Duration, capture, needsMapping bool) {
	report := &status.Report{
		TaskID:   t.ID,
		TenantID: t.TenantID,
		Kind:     t.Kind,
		Outcome:  outcome,
		At:       r.now(),
	}
	if execErr != nil {
		report.Error = execErr.Error()
	}

	if err := r.reporter.Report(ctx, report); err != nil {
		r.logger.Error("status report failed",
			slog.String("task_id", t.ID.String()),
			slog.String("kind", string(t.Kind)),
			slog.String("error", err.Error()),
		)
	}

	if r.hooks != nil {
		if execErr == nil {
			r.hooks.EmitTaskCompleted(ctx, t, elapsed)
		} else {
			r.hooks.EmitTaskFailed(ctx, t, outcome, execErr)
		}
	}

	if capture && r.deadletters != nil {
		if err := r.deadletters.Capture(ctx, t, execErr, needsMapping); err != nil {
			r.logger.Error("dead letter capture failed",
				slog.String("task_id", t.ID.String()),
				slog.String("error", err.Error()),
			)
		} else if r.hooks != nil {
			r.hooks.EmitTaskDeadLettered(ctx, t, execErr)
		}
	}
}
