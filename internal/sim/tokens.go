package sim

import (
	"fmt"

	"github.com/google/uuid"
)

// TokenGenerator issues run tokens. Tokens identify a simulation run in
// audit storage and trace output; they carry no semantics beyond
// identity.
type TokenGenerator interface {
	NewToken() (string, error)
}

// UUIDv7Generator issues time-ordered UUIDs. The default: v7 tokens
// sort by creation time, which keeps run listings chronological without
// a separate timestamp column.
type UUIDv7Generator struct{}

// NewToken implements TokenGenerator.
func (UUIDv7Generator) NewToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run token: %w", err)
	}
	return id.String(), nil
}

// FixedGenerator issues deterministic sequential tokens for tests and
// golden traces.
type FixedGenerator struct {
	Prefix string
	next   int
}

// NewToken implements TokenGenerator.
func (g *FixedGenerator) NewToken() (string, error) {
	g.next++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "run"
	}
	return fmt.Sprintf("%s-%04d", prefix, g.next), nil
}
