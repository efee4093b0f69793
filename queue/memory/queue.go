// Package memory implements queue.Queue with in-process FIFO lists.
// Intended for unit testing and development; nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/channelport/courier/queue"
	"github.com/channelport/courier/task"
)

// Compile-time interface check.
var _ queue.Queue = (*Queue)(nil)

// Queue is an in-memory queue.Queue. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	queues map[string]*list
}

// list holds one named queue's items plus a wakeup channel for blocked
// poppers. notify has capacity 1: a pending signal means "state changed,
// re-check", and waiters always loop back to re-examine the list.
type list struct {
	items  []*task.Task
	notify chan struct{}
}

// New returns an empty in-memory queue set.
func New() *Queue {
	return &Queue{queues: make(map[string]*list)}
}

func (q *Queue) get(name string) *list {
	l, ok := q.queues[name]
	if !ok {
		l = &list{notify: make(chan struct{}, 1)}
		q.queues[name] = l
	}
	return l
}

// Push appends to the tail and returns the new length.
func (q *Queue) Push(_ context.Context, name string, t *task.Task) (int64, error) {
	q.mu.Lock()
	l := q.get(name)
	l.items = append(l.items, t)
	n := int64(len(l.items))
	q.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return n, nil
}

// Pop blocks until an item is available or the timeout elapses.
// timeout == 0 waits forever. Returns (nil, nil) on timeout.
func (q *Queue) Pop(ctx context.Context, name string, timeout time.Duration) (*task.Task, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		l := q.get(name)
		if len(l.items) > 0 {
			t := l.items[0]
			l.items = l.items[1:]
			more := len(l.items) > 0
			q.mu.Unlock()
			if more {
				// Another popper may be parked; pass the wakeup along.
				select {
				case l.notify <- struct{}{}:
				default:
				}
			}
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-l.notify:
		case <-deadline:
			return nil, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// PopMany removes up to max items without blocking.
func (q *Queue) PopMany(_ context.Context, name string, max int) ([]*task.Task, error) {
	if max <= 0 {
		return nil, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	l := q.get(name)
	n := min(max, len(l.items))
	out := make([]*task.Task, n)
	copy(out, l.items[:n])
	l.items = l.items[n:]
	return out, nil
}

// Len returns the current queue length.
func (q *Queue) Len(_ context.Context, name string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.get(name).items)), nil
}
