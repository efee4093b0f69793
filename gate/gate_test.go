package gate_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/channelport/courier/gate"
	storemem "github.com/channelport/courier/store/memory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a mutable time source shared by gate and test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestTryAdmitEnforcesInterval(t *testing.T) {
	clk := newFakeClock()
	g := gate.New("sourcing", storemem.New(),
		gate.WithClock(clk.now),
		gate.WithLogger(quietLogger()),
	)
	ctx := context.Background()

	ok, err := g.TryAdmit(ctx, 7, time.Minute)
	if err != nil || !ok {
		t.Fatalf("first admission: ok=%v err=%v", ok, err)
	}

	ok, err = g.TryAdmit(ctx, 7, time.Minute)
	if err != nil {
		t.Fatalf("second admission: %v", err)
	}
	if ok {
		t.Fatal("second admission inside interval, want rejection")
	}

	clk.advance(61 * time.Second)
	ok, err = g.TryAdmit(ctx, 7, time.Minute)
	if err != nil || !ok {
		t.Fatalf("admission after interval: ok=%v err=%v", ok, err)
	}
}

func TestTryAdmitTenantsIndependent(t *testing.T) {
	g := gate.New("sourcing", storemem.New(),
		gate.WithClock(newFakeClock().now),
		gate.WithLogger(quietLogger()),
	)
	ctx := context.Background()

	for tenant := int64(1); tenant <= 3; tenant++ {
		ok, err := g.TryAdmit(ctx, tenant, time.Minute)
		if err != nil || !ok {
			t.Fatalf("tenant %d: ok=%v err=%v", tenant, ok, err)
		}
	}
}

func TestTryAdmitNoDoubleAdmissionConcurrent(t *testing.T) {
	g := gate.New("sourcing", storemem.New(), gate.WithLogger(quietLogger()))
	ctx := context.Background()

	const callers = 32
	var (
		wg    sync.WaitGroup
		count int64
		mu    sync.Mutex
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.TryAdmit(ctx, 7, time.Minute)
			if err != nil {
				t.Errorf("TryAdmit: %v", err)
				return
			}
			if ok {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("admissions = %d, want exactly 1 within one interval", count)
	}
}

func TestInFlightLifecycle(t *testing.T) {
	g := gate.New("marketplace-register", storemem.New(), gate.WithLogger(quietLogger()))
	ctx := context.Background()

	inFlight, err := g.InFlight(ctx, 7)
	if err != nil || inFlight {
		t.Fatalf("initial InFlight: %v %v", inFlight, err)
	}

	if err := g.MarkInFlight(ctx, 7); err != nil {
		t.Fatalf("MarkInFlight: %v", err)
	}
	inFlight, err = g.InFlight(ctx, 7)
	if err != nil || !inFlight {
		t.Fatalf("marked InFlight: %v %v", inFlight, err)
	}

	// Other tenants unaffected.
	if other, _ := g.InFlight(ctx, 8); other {
		t.Error("tenant 8 in flight, want clear")
	}

	if err := g.ClearInFlight(ctx, 7); err != nil {
		t.Fatalf("ClearInFlight: %v", err)
	}
	inFlight, err = g.InFlight(ctx, 7)
	if err != nil || inFlight {
		t.Fatalf("cleared InFlight: %v %v", inFlight, err)
	}
}

func TestSweepDeletesStaleEntries(t *testing.T) {
	clk := newFakeClock()
	st := storemem.New()
	g := gate.New("sourcing", st,
		gate.WithClock(clk.now),
		gate.WithSweepInterval(5*time.Minute),
		gate.WithEntryExpiry(time.Hour),
		gate.WithLogger(quietLogger()),
	)
	ctx := context.Background()

	if ok, _ := g.TryAdmit(ctx, 1, time.Second); !ok {
		t.Fatal("seed admission rejected")
	}

	// Beyond the expiry, the next admission attempt sweeps tenant 1.
	clk.advance(2 * time.Hour)
	if ok, _ := g.TryAdmit(ctx, 2, time.Second); !ok {
		t.Fatal("tenant 2 admission rejected")
	}

	entries, err := st.Entries(ctx, "sourcing")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	for _, e := range entries {
		if e.TenantID == 1 {
			t.Error("stale entry for tenant 1 survived sweep")
		}
	}
}

func TestSweepThrottledByInterval(t *testing.T) {
	clk := newFakeClock()
	st := storemem.New()
	g := gate.New("sourcing", st,
		gate.WithClock(clk.now),
		gate.WithSweepInterval(5*time.Minute),
		gate.WithEntryExpiry(time.Minute),
		gate.WithLogger(quietLogger()),
	)
	ctx := context.Background()

	if ok, _ := g.TryAdmit(ctx, 1, time.Second); !ok {
		t.Fatal("seed admission rejected")
	}

	// Entry is past expiry but the sweep interval has not elapsed since
	// the first (initializing) sweep, so the entry survives.
	clk.advance(2 * time.Minute)
	if ok, _ := g.TryAdmit(ctx, 2, time.Second); !ok {
		t.Fatal("tenant 2 admission rejected")
	}

	entries, _ := st.Entries(ctx, "sourcing")
	found := false
	for _, e := range entries {
		if e.TenantID == 1 {
			found = true
		}
	}
	if !found {
		t.Error("entry swept before the sweep interval elapsed")
	}
}
