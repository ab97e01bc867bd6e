// Package engine implements the forward rule engine.
//
// The engine evaluates rule conditions against a state and applies rule
// effects, producing a mutated state plus an audit trail.
//
// ARCHITECTURE:
//
// Single-threaded evaluation:
// Rules run strictly in priority order within a turn. Effects of an
// earlier rule are observable by a later rule's conditions in the same
// turn, so ordering is a correctness requirement, not an optimization
// opportunity. Nothing here is parallelized.
//
// Failure policy ("audit and continue"):
//   - An unresolved condition path makes the condition false and records
//     a warning. It never silently matches and never aborts the turn.
//   - A failed effect (missing adjust target) aborts that rule's
//     remaining effects only. Prior effects of the same rule stay
//     applied - there is no per-rule rollback.
//   - A rule whose apply fails is recorded as failed in the audit and
//     the engine proceeds to the next rule. A single rule failure never
//     aborts the turn.
//
// Audit records are stamped with a monotonic logical clock so replay
// and golden traces order identically; wall-clock timestamps ride along
// for humans but are never used for ordering.
package engine
