package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherCeiling(t *testing.T) {
	d := NewDispatcher(2, WithDispatcherLogger(quietLogger()))

	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	release := make(chan struct{})
	body := func() {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()

		<-release

		mu.Lock()
		current--
		mu.Unlock()
	}

	for i := 0; i < 2; i++ {
		if err := d.Submit(context.Background(), body); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	// Third submission must block on the saturated ceiling.
	submitted := make(chan struct{})
	go func() {
		defer close(submitted)
		_ = d.Submit(context.Background(), body)
	}()

	time.Sleep(50 * time.Millisecond)
	if d.Active() != 2 {
		t.Errorf("Active = %d, want 2 while saturated", d.Active())
	}
	select {
	case <-submitted:
		t.Fatal("third Submit returned before a slot freed")
	default:
	}

	close(release)
	<-submitted
	d.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if current != 0 {
		t.Errorf("current = %d, want 0 after drain", current)
	}
}

func TestDispatcherSubmitAbortsOnContext(t *testing.T) {
	d := NewDispatcher(1, WithDispatcherLogger(quietLogger()))

	release := make(chan struct{})
	if err := d.Submit(context.Background(), func() { <-release }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Submit(ctx, func() {}); err == nil {
		t.Fatal("expected context error while ceiling saturated")
	}

	close(release)
	d.Wait()
}

func TestDispatcherPanicReleasesSlot(t *testing.T) {
	d := NewDispatcher(1, WithDispatcherLogger(quietLogger()))

	if err := d.Submit(context.Background(), func() { panic("boom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.Wait()

	// Slot must be free again.
	var ran atomic.Bool
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Submit(ctx, func() { ran.Store(true) }); err != nil {
		t.Fatalf("Submit after panic: %v", err)
	}
	d.Wait()
	if !ran.Load() {
		t.Error("execution after panic never ran")
	}
	if d.Active() != 0 {
		t.Errorf("Active = %d, want 0", d.Active())
	}
}
