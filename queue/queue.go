// Package queue defines the durable FIFO work-queue contract consumed by
// the worker loops.
//
// Queues are named; each worker kind owns one queue. FIFO order holds
// within a queue for tasks the admission gate never rejects. Rejected
// tasks are re-pushed to the tail, which delays a throttled tenant's own
// tasks past later arrivals from other tenants — that is the system's
// backpressure mechanism, not a defect.
//
// Two implementations ship with courier:
//
//   - queue/memory: in-process blocking FIFO, for tests and development
//   - queue/redis:  Redis lists (LPUSH / BRPOP / RPOPCOUNT), durable
package queue

import (
	"context"
	"time"

	"github.com/channelport/courier/task"
)

// Queue is the durable work-queue abstraction.
//
// Delivery is at-least-once: a crash between Pop and task completion
// loses that task attempt. The core accepts this; durable status tables
// are reconciled out of band.
type Queue interface {
	// Push appends a task to the tail of the named queue and returns the
	// new queue length.
	Push(ctx context.Context, name string, t *task.Task) (int64, error)

	// Pop removes and returns the head of the named queue, blocking until
	// an item is available. A timeout of zero waits forever. When the
	// timeout elapses with the queue still empty, Pop returns (nil, nil).
	Pop(ctx context.Context, name string, timeout time.Duration) (*task.Task, error)

	// PopMany atomically removes up to max items from the head of the
	// named queue without blocking. An empty queue yields an empty slice.
	PopMany(ctx context.Context, name string, max int) ([]*task.Task, error)

	// Len returns the current length of the named queue.
	Len(ctx context.Context, name string) (int64, error)
}
