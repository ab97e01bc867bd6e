// Package harness provides a conformance testing framework for the
// simulation core.
//
// Scenarios are YAML files describing an initial world state, the rules
// to load (inline or from CUE files), hook configuration, a turn count,
// and assertions over the final state and the audit trail. The harness
// runs each scenario against the real simulator with deterministic
// collaborators (fixed run token, pinned timestamps, fresh in-memory
// store), so the same scenario always produces byte-identical traces.
//
// Golden files under testdata/golden capture full trace snapshots in
// canonical JSON. They are the source of truth for expected behavior;
// regenerate with `go test ./internal/harness -update` after an
// intentional change.
package harness
