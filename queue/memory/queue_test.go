package memory

import (
	"context"
	"testing"
	"time"

	"github.com/channelport/courier/task"
)

func TestPushPop_FIFO(t *testing.T) {
	q := New()
	ctx := context.Background()

	for i := range 3 {
		tk := task.New(int64(i+1), task.KindSourcing, nil)
		n, err := q.Push(ctx, "sourcing", tk)
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		if n != int64(i+1) {
			t.Fatalf("push returned length %d, want %d", n, i+1)
		}
	}

	for i := range 3 {
		tk, err := q.Pop(ctx, "sourcing", time.Second)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if tk == nil {
			t.Fatal("expected a task")
		}
		if tk.TenantID != int64(i+1) {
			t.Fatalf("popped tenant %d, want %d (FIFO violated)", tk.TenantID, i+1)
		}
	}
}

func TestPop_TimesOutEmpty(t *testing.T) {
	q := New()
	start := time.Now()
	tk, err := q.Pop(context.Background(), "empty", 50*time.Millisecond)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if tk != nil {
		t.Fatal("expected nil task on timeout")
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Fatal("pop returned before timeout")
	}
}

func TestPop_WakesOnPush(t *testing.T) {
	q := New()
	ctx := context.Background()

	done := make(chan *task.Task, 1)
	go func() {
		tk, _ := q.Pop(ctx, "wake", 0) // wait forever
		done <- tk
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := q.Push(ctx, "wake", task.New(9, task.KindRemoval, nil)); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case tk := <-done:
		if tk == nil || tk.TenantID != 9 {
			t.Fatalf("unexpected task: %+v", tk)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Pop never woke on Push")
	}
}

func TestPop_ContextCancelled(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := q.Pop(ctx, "x", 0); err == nil {
		t.Fatal("expected context error")
	}
}

func TestPopMany(t *testing.T) {
	q := New()
	ctx := context.Background()

	for i := range 5 {
		_, _ = q.Push(ctx, "imgs", task.New(int64(i+1), task.KindImageFetch, nil))
	}

	batch, err := q.PopMany(ctx, "imgs", 3)
	if err != nil {
		t.Fatalf("popmany: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("got %d items, want 3", len(batch))
	}
	if batch[0].TenantID != 1 || batch[2].TenantID != 3 {
		t.Fatalf("batch order wrong: %v %v", batch[0].TenantID, batch[2].TenantID)
	}

	n, _ := q.Len(ctx, "imgs")
	if n != 2 {
		t.Fatalf("remaining length %d, want 2", n)
	}

	rest, _ := q.PopMany(ctx, "imgs", 10)
	if len(rest) != 2 {
		t.Fatalf("got %d items, want 2", len(rest))
	}
	empty, _ := q.PopMany(ctx, "imgs", 10)
	if len(empty) != 0 {
		t.Fatal("expected empty batch from drained queue")
	}
}

func TestQueues_Independent(t *testing.T) {
	q := New()
	ctx := context.Background()
	_, _ = q.Push(ctx, "a", task.New(1, task.KindSourcing, nil))

	tk, err := q.Pop(ctx, "b", 30*time.Millisecond)
	if err != nil || tk != nil {
		t.Fatalf("queue b should be empty, got %v, %v", tk, err)
	}
	n, _ := q.Len(ctx, "a")
	if n != 1 {
		t.Fatalf("queue a length %d, want 1", n)
	}
}
