package ledger

import (
	"fmt"
	"net/http"
	"time"
)

// Code classifies quota rejections.
type Code string

const (
	// CodeExceeded means the tier is exhausted and does not refill;
	// terminal until the external billing-cycle reset.
	CodeExceeded Code = "quota_exceeded"
	// CodeThrottled means the tier is time-gated; retrying after
	// RetryAfter may succeed.
	CodeThrottled Code = "quota_throttled"
)

// QuotaError is the typed rejection returned by ledger operations. It is
// an expected outcome, not a fault: persistence failures come back as
// ordinary wrapped errors, quota rejections come back as *QuotaError.
// Status carries an HTTP-style hint for the request-handler boundary.
type QuotaError struct {
	Code       Code
	Status     int
	TenantID   int64
	Tier       Tier
	RetryAfter time.Duration
	Reason     string
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("ledger: tenant %d %s (%s tier): %s, retry after %s",
			e.TenantID, e.Code, e.Tier, e.Reason, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("ledger: tenant %d %s (%s tier): %s", e.TenantID, e.Code, e.Tier, e.Reason)
}

// Throttled reports whether retrying later may succeed.
func (e *QuotaError) Throttled() bool { return e.Code == CodeThrottled }

func exceeded(tenantID int64, tier Tier, reason string) *QuotaError {
	return &QuotaError{
		Code:     CodeExceeded,
		Status:   http.StatusPaymentRequired,
		TenantID: tenantID,
		Tier:     tier,
		Reason:   reason,
	}
}

func throttled(tenantID int64, tier Tier, retryAfter time.Duration, reason string) *QuotaError {
	return &QuotaError{
		Code:       CodeThrottled,
		Status:     http.StatusTooManyRequests,
		TenantID:   tenantID,
		Tier:       tier,
		RetryAfter: retryAfter,
		Reason:     reason,
	}
}
