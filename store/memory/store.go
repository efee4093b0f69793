// Package memory is a fully in-memory implementation of every courier
// store contract. Safe for concurrent access. Intended for unit testing
// and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/channelport/courier"
	"github.com/channelport/courier/deadletter"
	"github.com/channelport/courier/gate"
	"github.com/channelport/courier/id"
	"github.com/channelport/courier/ledger"
	"github.com/channelport/courier/status"
)

// Compile-time interface checks.
var (
	_ gate.Store       = (*Store)(nil)
	_ ledger.Store     = (*Store)(nil)
	_ status.Store     = (*Store)(nil)
	_ deadletter.Store = (*Store)(nil)
)

// Store holds all courier state in process memory.
type Store struct {
	mu sync.Mutex

	admissions map[string]map[int64]time.Time // kind -> tenant -> last admission
	inflight   map[string]map[int64]struct{}  // kind -> tenants in flight
	accounts   map[int64]*ledger.Account
	usage      []*ledger.UsageEntry
	processed  map[int64]int64
	reports    map[string]*status.Report // key: task ID
	dead       map[string]*deadletter.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		admissions: make(map[string]map[int64]time.Time),
		inflight:   make(map[string]map[int64]struct{}),
		accounts:   make(map[int64]*ledger.Account),
		processed:  make(map[int64]int64),
		reports:    make(map[string]*status.Report),
		dead:       make(map[string]*deadletter.Entry),
	}
}

// ──────────────────────────────────────────────────
// gate.Store
// ──────────────────────────────────────────────────

// LastAdmitted returns the tenant's last admission time for the kind.
func (m *Store) LastAdmitted(_ context.Context, kind string, tenantID int64) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.admissions[kind][tenantID]
	return t, ok, nil
}

// SetLastAdmitted records an admission time.
func (m *Store) SetLastAdmitted(_ context.Context, kind string, tenantID int64, t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byTenant, ok := m.admissions[kind]
	if !ok {
		byTenant = make(map[int64]time.Time)
		m.admissions[kind] = byTenant
	}
	byTenant[tenantID] = t
	return nil
}

// DeleteEntry removes the tenant's rate-limit entry.
func (m *Store) DeleteEntry(_ context.Context, kind string, tenantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.admissions[kind], tenantID)
	return nil
}

// Entries lists all rate-limit entries for the kind.
func (m *Store) Entries(_ context.Context, kind string) ([]gate.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byTenant := m.admissions[kind]
	out := make([]gate.Entry, 0, len(byTenant))
	for tenantID, t := range byTenant {
		out = append(out, gate.Entry{TenantID: tenantID, LastAdmitted: t})
	}
	return out, nil
}

// AddInFlight marks the tenant as currently processing.
func (m *Store) AddInFlight(_ context.Context, kind string, tenantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenants, ok := m.inflight[kind]
	if !ok {
		tenants = make(map[int64]struct{})
		m.inflight[kind] = tenants
	}
	tenants[tenantID] = struct{}{}
	return nil
}

// RemoveInFlight clears the tenant's in-flight marker.
func (m *Store) RemoveInFlight(_ context.Context, kind string, tenantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight[kind], tenantID)
	return nil
}

// InFlight reports whether the tenant has a task executing.
func (m *Store) InFlight(_ context.Context, kind string, tenantID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[kind][tenantID]
	return ok, nil
}

// ──────────────────────────────────────────────────
// ledger.Store
// ──────────────────────────────────────────────────

// PutAccount seeds or replaces a tenant's quota account.
func (m *Store) PutAccount(a *ledger.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.accounts[a.TenantID] = &cp
}

// Account returns a copy of a tenant's account for assertions.
func (m *Store) Account(tenantID int64) (ledger.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[tenantID]
	if !ok {
		return ledger.Account{}, false
	}
	return *a, true
}

// WithAccount runs fn against a copy of the account under the store
// lock; the copy replaces the stored row only when fn returns nil, so an
// error from fn behaves like a transaction rollback.
func (m *Store) WithAccount(_ context.Context, tenantID int64, fn func(a *ledger.Account) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[tenantID]
	if !ok {
		return courier.ErrAccountNotFound
	}
	cp := *a
	if err := fn(&cp); err != nil {
		return err
	}
	cp.UpdatedAt = time.Now().UTC()
	m.accounts[tenantID] = &cp
	return nil
}

// AppendUsage appends one usage-log entry.
func (m *Store) AppendUsage(_ context.Context, e *ledger.UsageEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.usage = append(m.usage, &cp)
	return nil
}

// Usage returns a snapshot of the usage log for assertions.
func (m *Store) Usage() []*ledger.UsageEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ledger.UsageEntry, len(m.usage))
	copy(out, m.usage)
	return out
}

// AddItemsProcessed bumps the cumulative items-processed counter.
func (m *Store) AddItemsProcessed(_ context.Context, tenantID int64, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[tenantID] += n
	return nil
}

// ItemsProcessed returns the cumulative counter for assertions.
func (m *Store) ItemsProcessed(tenantID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processed[tenantID]
}

// ──────────────────────────────────────────────────
// status.Store
// ──────────────────────────────────────────────────

// Report persists a task-attempt outcome, replacing any earlier attempt.
func (m *Store) Report(_ context.Context, r *status.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.reports[r.TaskID.String()] = &cp
	return nil
}

// GetReport returns the latest report for a task.
func (m *Store) GetReport(_ context.Context, taskID id.TaskID) (*status.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[taskID.String()]
	if !ok {
		return nil, courier.ErrReportNotFound
	}
	cp := *r
	return &cp, nil
}

// ListReports returns a tenant's reports, newest first.
func (m *Store) ListReports(_ context.Context, tenantID int64, limit int) ([]*status.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*status.Report
	for _, r := range m.reports {
		if r.TenantID != tenantID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// deadletter.Store
// ──────────────────────────────────────────────────

// PushDeadLetter persists a new dead letter entry.
func (m *Store) PushDeadLetter(_ context.Context, e *deadletter.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.dead[e.ID.String()] = &cp
	return nil
}

// GetDeadLetter retrieves an entry by ID.
func (m *Store) GetDeadLetter(_ context.Context, entryID id.DeadLetterID) (*deadletter.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.dead[entryID.String()]
	if !ok {
		return nil, courier.ErrDeadLetterNotFound
	}
	cp := *e
	return &cp, nil
}

// ListDeadLetters returns entries newest first.
func (m *Store) ListDeadLetters(_ context.Context, opts deadletter.ListOpts) ([]*deadletter.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*deadletter.Entry
	for _, e := range m.dead {
		if opts.TenantID != 0 && e.TenantID != opts.TenantID {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// MarkReplayed records that an entry was re-enqueued.
func (m *Store) MarkReplayed(_ context.Context, entryID id.DeadLetterID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.dead[entryID.String()]
	if !ok {
		return courier.ErrDeadLetterNotFound
	}
	e.ReplayedAt = &at
	return nil
}

// DeleteDeadLetter removes an entry.
func (m *Store) DeleteDeadLetter(_ context.Context, entryID id.DeadLetterID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dead[entryID.String()]; !ok {
		return courier.ErrDeadLetterNotFound
	}
	delete(m.dead, entryID.String())
	return nil
}
