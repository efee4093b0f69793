// Package remote defines the narrow contract between task bodies and
// external marketplace systems: a Client makes one call, errors are
// typed by recoverability, and Invoke adds a bounded retry loop with
// backoff. The core never interprets request or result payloads.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted wraps the last transient error once the retry
// budget is spent.
var ErrRetriesExhausted = errors.New("remote: retries exhausted")

// Request is one outbound operation. Payload is opaque to the core.
type Request struct {
	// Op names the remote operation, e.g. "search", "register",
	// "price", "remove", "image".
	Op       string
	TenantID int64
	Payload  map[string]any
}

// Result carries the remote response payload, opaque to the core.
type Result struct {
	Data map[string]any
}

// Client makes one call against an external system. Implementations
// return a ThrottledError for rate-limit responses, a PermanentError
// for explicit rejections, and any other error for transient failures.
type Client interface {
	Call(ctx context.Context, req *Request) (*Result, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req *Request) (*Result, error)

func (f ClientFunc) Call(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// ThrottledError reports a 429-class response from the remote system.
// RetryAfter is the server's hint; zero means none was given.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("remote: throttled, retry after %s", e.RetryAfter)
	}
	return "remote: throttled"
}

// PermanentError reports an explicit rejection that no retry can fix.
// NeedsMapping marks rejections caused by marketplace option
// configuration that a human must correct.
type PermanentError struct {
	Reason       string
	NeedsMapping bool
}

func (e *PermanentError) Error() string {
	return "remote: " + e.Reason
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
