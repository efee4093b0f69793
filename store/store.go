// Package store documents the persistence backends for courier state.
//
// Each subsystem defines its own narrow store contract (gate.Store,
// ledger.Store, status.Store, deadletter.Store); the backends under this
// directory implement the subsets that make sense for them:
//
//   - store/memory:   everything, in-process; unit tests and development
//   - store/redis:    gate.Store — admission and in-flight state shared
//     across worker processes, with a Lua script keeping the admission
//     check-and-set atomic
//   - store/postgres: ledger.Store, status.Store, deadletter.Store —
//     the transactional side, pgx/v5 with embedded migrations
//
// Backends declare compile-time interface checks so a contract drift
// fails the build, not production.
package store
