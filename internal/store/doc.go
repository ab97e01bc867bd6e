// Package store provides durable SQLite storage for simulation runs:
// per-turn state snapshots and the audit trail of rule firings.
//
// Snapshots are the ground truth backward simulation walks against.
// They are content-complete (the full flattened state, canonical JSON)
// and idempotent per (run_token, turn): re-writing the same turn is a
// no-op, which makes replay safe.
//
// The store uses WAL mode with a single writer connection. SQLite only
// supports one writer at a time; limiting the pool avoids SQLITE_BUSY
// instead of retrying around it.
package store
