// Package courier is the job dispatch and quota-accounting core behind
// ChannelPort's multi-tenant product sourcing and cross-marketplace
// publishing pipeline.
//
// The core pulls tenant-scoped tasks from durable work queues, gates them
// through per-tenant rate limits and (for marketplaces that require strict
// per-tenant sequencing) a mutual-exclusion set, executes them under a
// bounded-concurrency dispatcher, and debits a transactional multi-tier
// quota ledger that must never go negative under concurrent access.
//
// Subsystems:
//
//   - task:       the task model and wire codecs
//   - queue:      durable FIFO work queues (memory, Redis)
//   - gate:       per-tenant admission (minimum interval + in-flight set)
//   - ledger:     transactional multi-tier quota accounting
//   - worker:     bounded dispatcher, task runner, poll loops
//   - status:     task outcome reporting
//   - deadletter: permanently failed tasks kept for remediation
//   - store:      persistence backends (memory, Redis, Postgres)
//   - remote:     external marketplace/API client contracts
//   - engine:     wires everything together
//
// The root package defines shared error variables and the engine-level
// Config. It deliberately imports none of the subsystem packages so that
// all of them may import it.
package courier
