// Package sim is the simulator core: it drives turns over a world state
// using the forward rule engine and hands deltas to the reverse engine
// for retrodiction.
//
// A turn executes a fixed pipeline: decay, rules, gravity correction,
// learning, then the turn counter advances exactly once. The pipeline
// order is part of the contract; hooks that want to observe rule output
// use the learning slot, hooks that shape state before rules use decay.
//
// Determinism: given the same initial state, registry contents, and
// hooks, every run produces byte-identical traces. All collaborators
// with ambient nondeterminism (wall clock, token generation) are
// injectable, so tests and golden traces pin them.
//
// Counterfactual runs fork an independent deep copy of the baseline
// state and simulate both under the same registry, reporting per-turn
// and final divergence. Backward runs walk snapshots in reverse,
// delegating each observed delta to the retro engine.
package sim
