package world

import (
	"fmt"
	"strings"
)

// Space identifies the namespace a path addresses.
type Space int

const (
	// SpaceBare marks an unqualified path; resolution checks overlays
	// first, then variables.
	SpaceBare Space = iota

	// SpaceOverlay addresses the bounded overlay namespace.
	SpaceOverlay

	// SpaceVariable addresses the unbounded variable namespace.
	SpaceVariable
)

// String returns the path prefix for the namespace.
func (sp Space) String() string {
	switch sp {
	case SpaceOverlay:
		return "overlays"
	case SpaceVariable:
		return "variables"
	default:
		return ""
	}
}

// Path addresses a single scalar in a State.
//
// Paths are a closed form resolved through explicit namespace dispatch,
// never runtime reflection. Syntax is checked at rule-load time so that
// malformed paths are rejected before any simulation runs; existence is
// checked at evaluation time.
type Path struct {
	Space Space
	Name  string
}

// String returns the canonical dotted form. Bare paths render as the
// plain name.
func (p Path) String() string {
	if p.Space == SpaceBare {
		return p.Name
	}
	return p.Space.String() + "." + p.Name
}

// Variants returns the qualified string forms the path may resolve to.
// A qualified path yields itself; a bare path may land in either
// namespace depending on the state it meets, so it yields both, overlay
// first to mirror resolution order.
func (p Path) Variants() []string {
	if p.Space == SpaceBare {
		return []string{
			SpaceOverlay.String() + "." + p.Name,
			SpaceVariable.String() + "." + p.Name,
		}
	}
	return []string{p.String()}
}

// OverlayPath builds a fully qualified overlay path.
func OverlayPath(name string) Path {
	return Path{Space: SpaceOverlay, Name: name}
}

// VariablePath builds a fully qualified variable path.
func VariablePath(name string) Path {
	return Path{Space: SpaceVariable, Name: name}
}

// ParsePath parses a dotted path string. Accepted forms:
//
//	overlays.<name>
//	variables.<name>
//	<name>            (bare; overlay-first resolution)
//
// Names must be non-empty identifiers of letters, digits, and
// underscores. Anything else is a syntax error.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, fmt.Errorf("empty path")
	}

	prefix, name, qualified := strings.Cut(raw, ".")
	if !qualified {
		if err := validateName(raw); err != nil {
			return Path{}, err
		}
		return Path{Space: SpaceBare, Name: raw}, nil
	}

	var space Space
	switch prefix {
	case "overlays":
		space = SpaceOverlay
	case "variables":
		space = SpaceVariable
	default:
		return Path{}, fmt.Errorf("unknown namespace %q in path %q (want overlays or variables)", prefix, raw)
	}

	if strings.Contains(name, ".") {
		return Path{}, fmt.Errorf("path %q has too many segments", raw)
	}
	if err := validateName(name); err != nil {
		return Path{}, fmt.Errorf("path %q: %w", raw, err)
	}
	return Path{Space: space, Name: name}, nil
}

// MustParsePath is like ParsePath but panics on error.
// Use only in tests or with known-valid literals.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty path segment")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return fmt.Errorf("invalid character %q in path segment %q", r, name)
		}
	}
	return nil
}
