// Package query defines a small declarative filter language over stored
// audit records, compiled to parameterized SQL for the snapshot store.
//
// Filters are data, not closures, so callers (the CLI, tooling) can
// build them from flags and the compiler can render them to a single
// WHERE clause. The interface is sealed: only types in this package
// implement it, which keeps the compiler's type switch exhaustive.
package query

import "github.com/retrograde-sim/retrograde/internal/engine"

// Filter is a predicate over audit records.
type Filter interface {
	filterNode() // seals the interface to this package
}

// RuleIs matches records produced by one rule.
type RuleIs struct {
	ID string
}

func (RuleIs) filterNode() {}

// StatusIs matches records with one outcome status.
type StatusIs struct {
	Status engine.Status
}

func (StatusIs) filterNode() {}

// TurnBetween matches records in an inclusive turn range. A negative
// bound leaves that side open.
type TurnBetween struct {
	From int64
	To   int64
}

func (TurnBetween) filterNode() {}

// HasError matches records that carry an error message, regardless of
// status.
type HasError struct{}

func (HasError) filterNode() {}

// And matches records satisfying every inner filter. An empty list is
// vacuously true.
type And struct {
	Filters []Filter
}

func (And) filterNode() {}
