package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/channelport/courier/backoff"
)

func noSleep() InvokeOption {
	return withSleep(func(context.Context, time.Duration) error { return nil })
}

func TestInvokeSuccessFirstTry(t *testing.T) {
	calls := 0
	c := ClientFunc(func(context.Context, *Request) (*Result, error) {
		calls++
		return &Result{Data: map[string]any{"ok": true}}, nil
	})

	res, err := Invoke(context.Background(), c, &Request{Op: "search"}, noSleep())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.Data["ok"] != true {
		t.Errorf("unexpected result: %v", res.Data)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestInvokeRetriesTransient(t *testing.T) {
	calls := 0
	c := ClientFunc(func(context.Context, *Request) (*Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return &Result{}, nil
	})

	_, err := Invoke(context.Background(), c, &Request{Op: "register"},
		WithMaxAttempts(3), noSleep())
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestInvokeExhaustsBudget(t *testing.T) {
	calls := 0
	c := ClientFunc(func(context.Context, *Request) (*Result, error) {
		calls++
		return nil, errors.New("timeout")
	})

	_, err := Invoke(context.Background(), c, &Request{Op: "price"},
		WithMaxAttempts(4), noSleep())
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Fatalf("err = %v, want ErrRetriesExhausted", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestInvokePermanentNoRetry(t *testing.T) {
	calls := 0
	c := ClientFunc(func(context.Context, *Request) (*Result, error) {
		calls++
		return nil, &PermanentError{Reason: "invalid option set", NeedsMapping: true}
	})

	_, err := Invoke(context.Background(), c, &Request{Op: "register"},
		WithMaxAttempts(5), noSleep())
	var pe *PermanentError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PermanentError", err)
	}
	if !pe.NeedsMapping {
		t.Error("NeedsMapping lost in propagation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent)", calls)
	}
}

func TestInvokeHonorsRetryAfterHint(t *testing.T) {
	var slept []time.Duration
	sleep := withSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	})

	calls := 0
	c := ClientFunc(func(context.Context, *Request) (*Result, error) {
		calls++
		if calls == 1 {
			return nil, &ThrottledError{RetryAfter: 10 * time.Second}
		}
		return &Result{}, nil
	})

	_, err := Invoke(context.Background(), c, &Request{Op: "search"},
		WithMaxAttempts(2),
		WithBackoff(backoff.NewConstant(time.Second)),
		sleep)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(slept) != 1 || slept[0] != 10*time.Second {
		t.Errorf("slept = %v, want [10s] (hint overrides shorter backoff)", slept)
	}
}

func TestInvokeContextCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := ClientFunc(func(context.Context, *Request) (*Result, error) {
		cancel()
		return nil, errors.New("transient")
	})

	_, err := Invoke(ctx, c, &Request{Op: "search"},
		WithMaxAttempts(3),
		WithBackoff(backoff.NewConstant(time.Hour)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestHTTPClientStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		headers    map[string]string
		body       string
		check      func(t *testing.T, res *Result, err error)
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"listing_id": "abc"}`,
			check: func(t *testing.T, res *Result, err error) {
				if err != nil {
					t.Fatalf("err = %v", err)
				}
				if res.Data["listing_id"] != "abc" {
					t.Errorf("data = %v", res.Data)
				}
			},
		},
		{
			name:    "throttled with hint",
			status:  http.StatusTooManyRequests,
			headers: map[string]string{"Retry-After": "7"},
			check: func(t *testing.T, _ *Result, err error) {
				var te *ThrottledError
				if !errors.As(err, &te) {
					t.Fatalf("err = %v, want ThrottledError", err)
				}
				if te.RetryAfter != 7*time.Second {
					t.Errorf("RetryAfter = %v, want 7s", te.RetryAfter)
				}
			},
		},
		{
			name:   "unprocessable needs mapping",
			status: http.StatusUnprocessableEntity,
			body:   `{"error": "unknown option value"}`,
			check: func(t *testing.T, _ *Result, err error) {
				var pe *PermanentError
				if !errors.As(err, &pe) {
					t.Fatalf("err = %v, want PermanentError", err)
				}
				if !pe.NeedsMapping {
					t.Error("NeedsMapping = false, want true for 422")
				}
			},
		},
		{
			name:   "bad request permanent",
			status: http.StatusBadRequest,
			check: func(t *testing.T, _ *Result, err error) {
				var pe *PermanentError
				if !errors.As(err, &pe) {
					t.Fatalf("err = %v, want PermanentError", err)
				}
				if pe.NeedsMapping {
					t.Error("NeedsMapping = true, want false for 400")
				}
			},
		},
		{
			name:   "server error transient",
			status: http.StatusBadGateway,
			check: func(t *testing.T, _ *Result, err error) {
				if err == nil {
					t.Fatal("expected error")
				}
				if IsPermanent(err) {
					t.Error("5xx classified permanent, want transient")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL)
			res, err := c.Call(context.Background(), &Request{
				Op:       "register",
				TenantID: 7,
				Payload:  map[string]any{"sku": "x"},
			})
			tt.check(t, res, err)
		})
	}
}

func TestLimitedDelegates(t *testing.T) {
	calls := 0
	inner := ClientFunc(func(context.Context, *Request) (*Result, error) {
		calls++
		return &Result{}, nil
	})

	l := Limit(inner, 100, 1)
	for i := 0; i < 3; i++ {
		if _, err := l.Call(context.Background(), &Request{Op: "search"}); err != nil {
			t.Fatalf("Call: %v", err)
		}
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}
