package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/channelport/courier"
	"github.com/channelport/courier/gate"
	"github.com/channelport/courier/hook"
	"github.com/channelport/courier/queue"
	"github.com/channelport/courier/task"
)

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLoopHooks sets the lifecycle hook registry.
func WithLoopHooks(h *hook.Registry) LoopOption {
	return func(l *Loop) { l.hooks = h }
}

// WithLoopLogger sets a custom logger.
func WithLoopLogger(lg *slog.Logger) LoopOption {
	return func(l *Loop) { l.logger = lg }
}

// Loop is the orchestrator for one worker kind: pop from the queue,
// check the gate, dispatch under the concurrency ceiling, and re-push
// gate-rejected tasks to the queue tail. One poll goroutine runs per
// Loop; the poll never blocks on dispatched work, only on queue
// emptiness and dispatcher saturation.
type Loop struct {
	policy     Policy
	queue      queue.Queue
	gate       *gate.Gate
	runner     *Runner
	dispatcher *Dispatcher
	hooks      *hook.Registry
	logger     *slog.Logger

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	pollCancel context.CancelFunc
	done       chan struct{}

	// execCtx outlives Stop: started bodies run to completion, never
	// cancelled by shutdown.
	execCtx context.Context
}

// NewLoop creates a loop for one worker kind. The dispatcher is built
// from the policy's concurrency ceiling.
func NewLoop(p Policy, q queue.Queue, g *gate.Gate, r *Runner, opts ...LoopOption) *Loop {
	p = p.normalize()
	l := &Loop{
		policy: p,
		queue:  q,
		gate:   g,
		runner: r,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	l.dispatcher = NewDispatcher(p.Concurrency, WithDispatcherLogger(l.logger))
	return l
}

// Policy returns the loop's normalized policy.
func (l *Loop) Policy() Policy { return l.policy }

// Active returns the number of currently executing tasks.
func (l *Loop) Active() int { return l.dispatcher.Active() }

// Start launches the poll goroutine. It returns immediately.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return courier.ErrAlreadyRunning
	}
	l.running = true

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.pollCancel = cancel
	l.execCtx = context.WithoutCancel(ctx)
	l.stopCh = make(chan struct{})
	l.done = make(chan struct{})

	l.logger.Info("worker loop starting",
		slog.String("kind", string(l.policy.Kind)),
		slog.String("queue", l.policy.Queue),
		slog.Int("concurrency", l.policy.Concurrency),
		slog.Bool("sequential", l.policy.Sequential),
	)

	go l.run(pollCtx)
	return nil
}

// Stop halts polling and waits for in-flight tasks to finish. If the
// context expires first, Stop returns its error while tasks keep
// draining in the background; they are never cancelled.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stopCh)
	l.pollCancel()
	done := l.done
	l.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-done
		l.dispatcher.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		l.logger.Info("worker loop stopped", slog.String("kind", string(l.policy.Kind)))
		return nil
	case <-ctx.Done():
		l.logger.Warn("worker loop shutdown timed out with tasks in flight",
			slog.String("kind", string(l.policy.Kind)),
			slog.Int("active", l.dispatcher.Active()),
		)
		return ctx.Err()
	}
}

func (l *Loop) run(pollCtx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		tasks, err := l.poll(pollCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			l.logger.Error("queue poll failed",
				slog.String("kind", string(l.policy.Kind)),
				slog.String("error", err.Error()),
			)
			l.pause(l.policy.IdleDelay)
			continue
		}
		if len(tasks) == 0 {
			if l.policy.Batch > 1 {
				l.pause(l.policy.IdleDelay)
			}
			continue
		}

		for _, t := range tasks {
			if l.stopped() {
				// Shutdown raced a non-empty poll: keep the remainder
				// durable instead of executing past the stop signal.
				l.requeue(t)
				continue
			}
			l.handle(pollCtx, t)
		}
	}
}

func (l *Loop) poll(ctx context.Context) ([]*task.Task, error) {
	if l.policy.Batch > 1 {
		return l.queue.PopMany(ctx, l.policy.Queue, l.policy.Batch)
	}
	t, err := l.queue.Pop(ctx, l.policy.Queue, l.policy.PopTimeout)
	if err != nil || t == nil {
		return nil, err
	}
	return []*task.Task{t}, nil
}

// handle runs one task through admission and dispatch.
func (l *Loop) handle(pollCtx context.Context, t *task.Task) {
	admitted, reason := l.admit(pollCtx, t)
	if !admitted {
		l.requeue(t)
		if l.hooks != nil {
			l.hooks.EmitTaskRejected(l.execCtx, t, reason)
		}
		l.pause(l.policy.RequeueDelay)
		return
	}

	if l.hooks != nil {
		l.hooks.EmitTaskAdmitted(l.execCtx, t)
	}

	if l.policy.Sequential {
		// An unmarked task would let the next same-tenant task pass the
		// in-flight check and run concurrently. Treat a mark failure
		// like any other gate error: requeue and retry next cycle.
		if err := l.gate.MarkInFlight(pollCtx, t.TenantID); err != nil {
			l.logger.Warn("in-flight mark failed",
				slog.String("kind", string(l.policy.Kind)),
				slog.Int64("tenant_id", t.TenantID),
				slog.String("error", err.Error()),
			)
			l.requeue(t)
			if l.hooks != nil {
				l.hooks.EmitTaskRejected(l.execCtx, t, "gate-error")
			}
			l.pause(l.policy.RequeueDelay)
			return
		}
	}

	submitErr := l.dispatcher.Submit(pollCtx, func() {
		if l.policy.Sequential {
			defer func() {
				if err := l.gate.ClearInFlight(l.execCtx, t.TenantID); err != nil {
					l.logger.Warn("in-flight clear failed",
						slog.String("kind", string(l.policy.Kind)),
						slog.Int64("tenant_id", t.TenantID),
						slog.String("error", err.Error()),
					)
				}
			}()
		}
		l.runner.Run(l.execCtx, t)
	})
	if submitErr != nil {
		// Slot wait aborted by shutdown; the task goes back to the tail.
		if l.policy.Sequential {
			if err := l.gate.ClearInFlight(l.execCtx, t.TenantID); err != nil {
				l.logger.Warn("in-flight clear failed",
					slog.String("kind", string(l.policy.Kind)),
					slog.Int64("tenant_id", t.TenantID),
					slog.String("error", err.Error()),
				)
			}
		}
		l.requeue(t)
	}
}

// admit applies the in-flight check for sequential kinds, then the
// rate gate. Gate store errors count as rejections; the task stays
// durable and retries on its next cycle.
func (l *Loop) admit(ctx context.Context, t *task.Task) (bool, string) {
	if l.policy.Sequential {
		inflight, err := l.gate.InFlight(ctx, t.TenantID)
		if err != nil {
			l.logger.Warn("in-flight check failed",
				slog.String("kind", string(l.policy.Kind)),
				slog.Int64("tenant_id", t.TenantID),
				slog.String("error", err.Error()),
			)
			return false, "gate-error"
		}
		if inflight {
			return false, "in-flight"
		}
	}

	if l.policy.MinInterval <= 0 {
		return true, ""
	}

	ok, err := l.gate.TryAdmit(ctx, t.TenantID, l.policy.MinInterval)
	if err != nil {
		l.logger.Warn("gate admission failed",
			slog.String("kind", string(l.policy.Kind)),
			slog.Int64("tenant_id", t.TenantID),
			slog.String("error", err.Error()),
		)
		return false, "gate-error"
	}
	if !ok {
		return false, "rate-limited"
	}
	return true, ""
}

// requeue pushes a task back to the queue tail. The push uses the
// uncancellable execution context so shutdown cannot drop a task.
func (l *Loop) requeue(t *task.Task) {
	if _, err := l.queue.Push(l.execCtx, l.policy.Queue, t); err != nil {
		l.logger.Error("requeue failed, task lost",
			slog.String("kind", string(l.policy.Kind)),
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Loop) pause(d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.stopCh:
	case <-timer.C:
	}
}

func (l *Loop) stopped() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}
