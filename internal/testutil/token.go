package testutil

// FixedTokenGenerator returns the same run token every time.
//
// This enables deterministic test execution and golden snapshot
// comparison: the same scenario with the same FixedTokenGenerator
// produces byte-identical traces.
//
// Unlike sim.FixedGenerator, which returns tokens in sequence, this
// generator always returns the same token. Useful for scenarios where
// every run should share one token.
//
// Thread-safety: FixedTokenGenerator is stateless and safe for
// concurrent use.
type FixedTokenGenerator struct {
	token string
}

// NewFixedTokenGenerator creates a new fixed run token generator.
//
// The token is typically set in the scenario YAML:
//
//	run_token: "test-run-00000000-0000-0000-0000-000000000001"
//
// If token is empty, NewToken() returns "test-run-default".
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = "test-run-default"
	}
	return &FixedTokenGenerator{token: token}
}

// NewToken returns the fixed run token.
//
// Implements sim.TokenGenerator.
func (g *FixedTokenGenerator) NewToken() (string, error) {
	return g.token, nil
}
