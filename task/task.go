// Package task defines the unit of work flowing through the courier core:
// a tenant-scoped task with a kind and an opaque payload, plus the wire
// codecs used by durable queue backends.
package task

import (
	"fmt"
	"slices"
	"time"

	"github.com/channelport/courier"
	"github.com/channelport/courier/id"
)

// Kind identifies which worker processes a task.
type Kind string

const (
	// KindSourcing collects product data from the sourcing API.
	KindSourcing Kind = "sourcing"
	// KindRegister publishes a product listing to a marketplace.
	// Marketplace registration APIs require strict per-tenant sequencing.
	KindRegister Kind = "marketplace-register"
	// KindPriceChange propagates a price update to a marketplace listing.
	KindPriceChange Kind = "price-change"
	// KindRemoval delists a product from a marketplace.
	KindRemoval Kind = "market-removal"
	// KindImageFetch downloads and re-hosts listing images.
	KindImageFetch Kind = "image-fetch"
)

// Kinds lists every task kind, in worker-policy order.
func Kinds() []Kind {
	return []Kind{KindSourcing, KindRegister, KindPriceChange, KindRemoval, KindImageFetch}
}

// Valid reports whether k is a known task kind.
func (k Kind) Valid() bool {
	return slices.Contains(Kinds(), k)
}

// Task is a tenant-scoped unit of work. Tasks are immutable once
// enqueued: workers read them and persist outcomes elsewhere, they never
// write back into the task.
type Task struct {
	ID         id.TaskID      `json:"id"`
	TenantID   int64          `json:"tenant_id"`
	Kind       Kind           `json:"kind"`
	Payload    map[string]any `json:"payload,omitempty"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// New builds a task with a fresh ID and the current enqueue time.
func New(tenantID int64, kind Kind, payload map[string]any) *Task {
	return &Task{
		ID:         id.NewTaskID(),
		TenantID:   tenantID,
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Validate checks the task for structural problems before enqueue.
func (t *Task) Validate() error {
	if t.ID.IsNil() {
		return fmt.Errorf("task: missing id")
	}
	if t.TenantID <= 0 {
		return fmt.Errorf("task: invalid tenant id %d", t.TenantID)
	}
	if !t.Kind.Valid() {
		return fmt.Errorf("%w: %q", courier.ErrUnknownKind, t.Kind)
	}
	return nil
}
