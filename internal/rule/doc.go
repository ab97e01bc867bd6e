// Package rule provides the declarative causal rule model and the
// in-memory registry.
//
// A Rule pairs an ordered condition list with an ordered effect list.
// Operators and actions are closed enums with exhaustive switch dispatch,
// never string comparison, so unhandled cases fail at compile time.
//
// The Registry is an explicitly owned handle, not a global. Load follows
// single-writer discipline: it validates and replaces the whole rule set
// under a write lock and bumps a version counter, while readers take
// immutable snapshots via ActiveRules. Concurrent simulation runs may
// share one registry because rules are read-only during simulation.
package rule
