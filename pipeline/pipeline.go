// Package pipeline builds the five task bodies from their
// collaborators: the quota ledger, remote marketplace clients, and the
// retry helper. Bodies interpret only the payload fields they need and
// pass the rest through to the remote system untouched.
package pipeline

import (
	"context"
	"fmt"

	"github.com/channelport/courier/ledger"
	"github.com/channelport/courier/remote"
	"github.com/channelport/courier/task"
	"github.com/channelport/courier/worker"
)

// Sourcing returns the body for sourcing tasks: deduct sourcing quota
// for the requested units, then run the sourcing search.
func Sourcing(led *ledger.Ledger, client remote.Client, opts ...remote.InvokeOption) worker.Body {
	return func(ctx context.Context, t *task.Task) error {
		units := payloadInt64(t.Payload, "units", 1)
		if err := led.CheckAndDeductSourcing(ctx, t.TenantID, units); err != nil {
			return err
		}
		_, err := remote.Invoke(ctx, client, &remote.Request{
			Op:       "search",
			TenantID: t.TenantID,
			Payload:  t.Payload,
		}, opts...)
		return err
	}
}

// Register returns the body for marketplace registration: deduct
// processing quota for the item count and enabled features, then call
// the marketplace selected by the payload. clients maps marketplace
// names to their API clients.
func Register(led *ledger.Ledger, clients map[string]remote.Client, opts ...remote.InvokeOption) worker.Body {
	return func(ctx context.Context, t *task.Task) error {
		marketplace := payloadString(t.Payload, "marketplace")
		client, ok := clients[marketplace]
		if !ok {
			return &remote.PermanentError{
				Reason: fmt.Sprintf("no client for marketplace %q", marketplace),
			}
		}

		req := ledger.ProcessingRequest{
			Count:    payloadInt64(t.Payload, "count", 1),
			Features: payloadFeatures(t.Payload),
		}
		if err := led.CheckAndDeductProcessing(ctx, t.TenantID, req); err != nil {
			return err
		}

		_, err := remote.Invoke(ctx, client, &remote.Request{
			Op:       "register",
			TenantID: t.TenantID,
			Payload:  t.Payload,
		}, opts...)
		return err
	}
}

// PriceChange returns the body for price updates on already-registered
// listings, routed to the payload's marketplace. No quota applies; the
// listing was paid for at registration.
func PriceChange(clients map[string]remote.Client, opts ...remote.InvokeOption) worker.Body {
	return routed("price", clients, opts)
}

// Removal returns the body for delisting products, routed to the
// payload's marketplace.
func Removal(clients map[string]remote.Client, opts ...remote.InvokeOption) worker.Body {
	return routed("remove", clients, opts)
}

// ImageFetch returns the body for pulling product images from the
// image host. Runs on the batch-popping worker kind.
func ImageFetch(client remote.Client, opts ...remote.InvokeOption) worker.Body {
	return func(ctx context.Context, t *task.Task) error {
		_, err := remote.Invoke(ctx, client, &remote.Request{
			Op:       "image",
			TenantID: t.TenantID,
			Payload:  t.Payload,
		}, opts...)
		return err
	}
}

// routed dispatches an op to the marketplace named in the payload.
func routed(op string, clients map[string]remote.Client, opts []remote.InvokeOption) worker.Body {
	return func(ctx context.Context, t *task.Task) error {
		marketplace := payloadString(t.Payload, "marketplace")
		client, ok := clients[marketplace]
		if !ok {
			return &remote.PermanentError{
				Reason: fmt.Sprintf("no client for marketplace %q", marketplace),
			}
		}
		_, err := remote.Invoke(ctx, client, &remote.Request{
			Op:       op,
			TenantID: t.TenantID,
			Payload:  t.Payload,
		}, opts...)
		return err
	}
}

// payloadInt64 reads a numeric payload field, tolerating the types a
// JSON or msgpack decode produces.
func payloadInt64(p map[string]any, key string, def int64) int64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint64:
		return int64(n)
	case uint32:
		return int64(n)
	case uint16:
		return int64(n)
	case uint8:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return def
	}
}

func payloadString(p map[string]any, key string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return ""
}

// payloadFeatures reads the "features" payload field as a list of
// feature names.
func payloadFeatures(p map[string]any) []ledger.Feature {
	raw, ok := p["features"]
	if !ok {
		return nil
	}

	var out []ledger.Feature
	switch list := raw.(type) {
	case []string:
		for _, s := range list {
			out = append(out, ledger.Feature(s))
		}
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok {
				out = append(out, ledger.Feature(s))
			}
		}
	}
	return out
}
