// Package retro implements reverse rule inference: given an observed
// state delta, which rule chains could have produced it?
//
// Inference is abductive, not deductive. Forward simulation is lossy
// (clamping, overwrites, rule interactions), so the engine returns
// ranked candidate chains rather than a single answer. Each chain
// carries a trust score, symbolic tags, and the residual delta it leaves
// unexplained.
//
// The search is a bounded worklist walk over rule fingerprints: each
// step matches every registered fingerprint against the current residual
// delta, keeps the best few matches, subtracts their expected
// contribution from the residual, and recurses up to a depth bound.
// When no chain explains the delta well enough the engine reports an
// inference gap together with a fingerprint of the unexplained residual,
// which doubles as a suggestion for a missing rule.
//
// Matchers, trust scoring, and symbolic tagging are pluggable so
// callers can swap heuristics without touching the search.
package retro
