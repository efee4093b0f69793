package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/channelport/courier/id"
	"github.com/channelport/courier/queue"
	"github.com/channelport/courier/task"
)

// QueueName maps a task kind to the queue it should be replayed onto.
type QueueName func(k task.Kind) string

// Service provides capture and replay over a Store.
type Service struct {
	store     Store
	queue     queue.Queue
	queueName QueueName
}

// NewService creates a dead letter service. queueName decides which
// queue a replayed task lands on.
func NewService(store Store, q queue.Queue, queueName QueueName) *Service {
	return &Service{store: store, queue: q, queueName: queueName}
}

// Capture persists a permanently failed task with its payload snapshot.
func (s *Service) Capture(ctx context.Context, t *task.Task, cause error, needsMapping bool) error {
	now := time.Now().UTC()
	e := &Entry{
		ID:           id.NewDeadLetterID(),
		TaskID:       t.ID,
		TenantID:     t.TenantID,
		Kind:         t.Kind,
		Payload:      t.Payload,
		Error:        cause.Error(),
		NeedsMapping: needsMapping,
		FailedAt:     now,
		CreatedAt:    now,
	}
	if err := s.store.PushDeadLetter(ctx, e); err != nil {
		return fmt.Errorf("deadletter: capture task %s: %w", t.ID, err)
	}
	return nil
}

// Replay re-enqueues the entry's task as a fresh task on its kind's
// queue and marks the entry replayed. The entry stays in the store for
// audit until deleted explicitly.
func (s *Service) Replay(ctx context.Context, entryID id.DeadLetterID) error {
	e, err := s.store.GetDeadLetter(ctx, entryID)
	if err != nil {
		return fmt.Errorf("deadletter: replay %s: %w", entryID, err)
	}

	t := task.New(e.TenantID, e.Kind, e.Payload)
	if _, err := s.queue.Push(ctx, s.queueName(e.Kind), t); err != nil {
		return fmt.Errorf("deadletter: replay %s: push: %w", entryID, err)
	}
	if err := s.store.MarkReplayed(ctx, entryID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deadletter: replay %s: mark: %w", entryID, err)
	}
	return nil
}

// Store returns the underlying store for direct list/get/delete access.
func (s *Service) Store() Store { return s.store }
