// Package worker provides the task execution engine: a Dispatcher
// bounding per-kind concurrency, a Registry of task bodies, a Runner
// that classifies outcomes, and a Loop orchestrating pop, gate, and
// dispatch per worker kind.
package worker

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets a custom logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher admits at most ceiling concurrently-running executions.
// Submissions past the ceiling block until a slot frees, which is the
// intended backpressure on the poll loop. A panicking execution
// releases its slot like any other completion.
type Dispatcher struct {
	slots  chan struct{}
	wg     sync.WaitGroup
	active atomic.Int64
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher with the given concurrency
// ceiling. A ceiling below 1 is treated as 1.
func NewDispatcher(ceiling int, opts ...DispatcherOption) *Dispatcher {
	if ceiling < 1 {
		ceiling = 1
	}
	d := &Dispatcher{
		slots:  make(chan struct{}, ceiling),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Ceiling returns the concurrency ceiling.
func (d *Dispatcher) Ceiling() int { return cap(d.slots) }

// Active returns the number of executions currently holding a slot.
func (d *Dispatcher) Active() int { return int(d.active.Load()) }

// Submit blocks until a slot is free, then runs fn on its own
// goroutine and returns. The slot is released when fn returns or
// panics. ctx aborts only the wait for a slot, never a running fn.
func (d *Dispatcher) Submit(ctx context.Context, fn func()) error {
	select {
	case d.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.active.Add(1)
	d.wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("dispatched execution panicked",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
			}
			d.active.Add(-1)
			<-d.slots
			d.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until every submitted execution has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
