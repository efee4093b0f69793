// Package engine wires the courier subsystems together: one worker
// loop per policy, a shared gate store, the task runner, dead letter
// capture, and lifecycle hooks. It sits above all subsystem packages
// and below the application layer.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/channelport/courier"
	"github.com/channelport/courier/deadletter"
	"github.com/channelport/courier/gate"
	"github.com/channelport/courier/hook"
	"github.com/channelport/courier/middleware"
	"github.com/channelport/courier/queue"
	"github.com/channelport/courier/status"
	"github.com/channelport/courier/task"
	"github.com/channelport/courier/worker"
)

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets engine-level configuration.
func WithConfig(cfg courier.Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the engine logger, inherited by every subsystem the
// engine constructs.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHooks sets the lifecycle hook registry. Without it the engine
// creates an empty one.
func WithHooks(h *hook.Registry) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithDeadLetterStore enables dead letter capture for permanent
// failures. Replayed entries re-enter the kind's own queue.
func WithDeadLetterStore(s deadletter.Store) Option {
	return func(e *Engine) { e.dlStore = s }
}

// WithMiddleware appends middleware to the chain wrapped around every
// task body.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, mws...) }
}

// WithPolicies replaces the default five-worker policy table.
func WithPolicies(ps ...worker.Policy) Option {
	return func(e *Engine) { e.policies = ps }
}

// DefaultPolicies returns the production policy table: one entry per
// task kind, tuned to each external system's tolerance.
func DefaultPolicies() []worker.Policy {
	return []worker.Policy{
		{
			Kind:        task.KindSourcing,
			MinInterval: 5 * time.Second,
			Concurrency: 10,
		},
		{
			Kind:        task.KindRegister,
			MinInterval: 2 * time.Second,
			Sequential:  true,
			Concurrency: 8,
		},
		{
			Kind:        task.KindPriceChange,
			MinInterval: time.Second,
			Concurrency: 5,
		},
		{
			Kind:        task.KindRemoval,
			Concurrency: 2,
		},
		{
			Kind:        task.KindImageFetch,
			Concurrency: 50,
			Batch:       20,
		},
	}
}

// Engine owns one worker loop per policy and the shared plumbing
// between them.
type Engine struct {
	queue     queue.Queue
	gateStore gate.Store
	reporter  status.Reporter
	registry  *worker.Registry
	hooks     *hook.Registry
	dlStore   deadletter.Store
	dlService *deadletter.Service
	policies  []worker.Policy
	mws       []middleware.Middleware
	cfg       courier.Config
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	loops   []*worker.Loop
}

// New creates an engine. The queue, gate store, and reporter are the
// required collaborators; everything else has defaults.
func New(q queue.Queue, gs gate.Store, reporter status.Reporter, opts ...Option) *Engine {
	e := &Engine{
		queue:     q,
		gateStore: gs,
		reporter:  reporter,
		registry:  worker.NewRegistry(),
		cfg:       courier.DefaultConfig(),
		policies:  DefaultPolicies(),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.hooks == nil {
		e.hooks = hook.NewRegistry(e.logger)
	}
	if e.dlStore != nil {
		e.dlService = deadletter.NewService(e.dlStore, e.queue, func(k task.Kind) string {
			return e.queueName(k)
		})
	}
	return e
}

// Register binds a task body to a kind. Bodies must be registered
// before Start; kinds without a body fail permanently at execution.
func (e *Engine) Register(k task.Kind, b worker.Body) {
	e.registry.Register(k, b)
}

// Hooks returns the engine's hook registry for registration.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// DeadLetters returns the dead letter service, or nil when capture is
// disabled.
func (e *Engine) DeadLetters() *deadletter.Service { return e.dlService }

// queueName maps a kind to its queue, honoring policy overrides.
func (e *Engine) queueName(k task.Kind) string {
	for _, p := range e.policies {
		if p.Kind == k && p.Queue != "" {
			return p.Queue
		}
	}
	return string(k)
}

// Enqueue validates and pushes a task onto its kind's queue, returning
// the queue length after the push.
func (e *Engine) Enqueue(ctx context.Context, t *task.Task) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return e.queue.Push(ctx, e.queueName(t.Kind), t)
}

// Start builds and launches one loop per policy.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return courier.ErrAlreadyRunning
	}

	runnerOpts := []worker.RunnerOption{
		worker.WithRunnerLogger(e.logger),
		worker.WithHooks(e.hooks),
		worker.WithMiddleware(e.mws...),
	}
	if e.dlService != nil {
		runnerOpts = append(runnerOpts, worker.WithDeadLetters(e.dlService))
	}
	runner := worker.NewRunner(e.registry, e.reporter, runnerOpts...)

	e.loops = e.loops[:0]
	for _, p := range e.policies {
		g := gate.New(string(p.Kind), e.gateStore,
			gate.WithSweepInterval(e.cfg.SweepInterval),
			gate.WithEntryExpiry(e.cfg.EntryExpiry),
			gate.WithLogger(e.logger),
		)
		l := worker.NewLoop(p, e.queue, g, runner,
			worker.WithLoopHooks(e.hooks),
			worker.WithLoopLogger(e.logger),
		)
		if err := l.Start(ctx); err != nil {
			return err
		}
		e.loops = append(e.loops, l)
	}
	e.running = true

	e.logger.Info("engine started", slog.Int("loops", len(e.loops)))
	return nil
}

// Stop halts all loops and waits for in-flight tasks to drain, bounded
// by the config's shutdown timeout when ctx carries no deadline.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	loops := e.loops
	e.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && e.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ShutdownTimeout)
		defer cancel()
	}

	var (
		wg   sync.WaitGroup
		errM sync.Mutex
		errs []error
	)
	for _, l := range loops {
		wg.Add(1)
		go func(l *worker.Loop) {
			defer wg.Done()
			if err := l.Stop(ctx); err != nil {
				errM.Lock()
				errs = append(errs, err)
				errM.Unlock()
			}
		}(l)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	e.logger.Info("engine stopped")
	return nil
}
