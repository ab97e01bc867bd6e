// Package world provides the simulation state model.
//
// A State holds two scalar namespaces plus a turn counter:
//
//   - Overlays: bounded signals, clamped to configured Bounds by mutators.
//     Readers never clamp; an out-of-range overlay is a validation error.
//   - Variables: unbounded quantities.
//
// Paths address individual scalars. A path is either fully qualified
// ("overlays.hope", "variables.energy_cost") or bare ("hope"), in which
// case resolution checks the overlay namespace first, then variables.
// Path syntax is validated when rules are loaded; existence is checked
// at evaluation time.
//
// The package also provides canonical JSON serialization and
// domain-separated hashing for states, deltas, and fingerprints.
// Canonical form is the only serialization used for content-addressed
// identity: keys are sorted, strings are NFC normalized, and floats use
// shortest round-trip formatting so that equal values always produce
// equal bytes.
//
// world imports nothing internal; all other internal packages may import
// world. This keeps it the foundational layer with no circular
// dependencies.
package world
