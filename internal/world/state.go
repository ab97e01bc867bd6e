package world

import "fmt"

// DefaultBounds is the overlay clamp range used when none is configured.
var DefaultBounds = Bounds{Min: -1.0, Max: 1.0}

// Bounds is the inclusive range overlay values are clamped to by mutators.
type Bounds struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Clamp returns v limited to the bounds.
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Contains reports whether v lies within the bounds.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Valid reports whether the bounds describe a non-empty range.
func (b Bounds) Valid() bool {
	return b.Min < b.Max
}

// State is the mutable world-state container for one simulation run.
//
// State is NOT safe for concurrent use. Each simulation run owns its own
// deep-copied State; independent runs may execute in parallel because
// they never share one.
type State struct {
	// Turn is the monotonically increasing simulation step counter.
	Turn int64 `json:"turn"`

	// Overlays holds bounded scalar signals, keyed by stable names.
	Overlays map[string]float64 `json:"overlays"`

	// Variables holds unbounded scalar quantities, keyed by stable names.
	Variables map[string]float64 `json:"variables"`
}

// NewState creates an empty state at turn 0 with non-nil maps.
func NewState() *State {
	return &State{
		Overlays:  make(map[string]float64),
		Variables: make(map[string]float64),
	}
}

// Clone returns a deep copy. The copy shares no maps with the receiver,
// so partial-turn failures on the copy cannot corrupt the original.
func (s *State) Clone() *State {
	c := &State{
		Turn:      s.Turn,
		Overlays:  make(map[string]float64, len(s.Overlays)),
		Variables: make(map[string]float64, len(s.Variables)),
	}
	for k, v := range s.Overlays {
		c.Overlays[k] = v
	}
	for k, v := range s.Variables {
		c.Variables[k] = v
	}
	return c
}

// Validate checks the structural invariants: non-nil maps, non-negative
// turn, and every overlay within bounds. Returns a ValidationError on the
// first violation found.
func (s *State) Validate(bounds Bounds) error {
	if s == nil {
		return &ValidationError{Op: "state", Field: "state", Message: "state is nil"}
	}
	if s.Turn < 0 {
		return &ValidationError{Op: "state", Field: "turn", Message: fmt.Sprintf("turn must be non-negative, got %d", s.Turn)}
	}
	if s.Overlays == nil {
		return &ValidationError{Op: "state", Field: "overlays", Message: "overlays map is nil"}
	}
	if s.Variables == nil {
		return &ValidationError{Op: "state", Field: "variables", Message: "variables map is nil"}
	}
	for name, v := range s.Overlays {
		if !bounds.Contains(v) {
			return &ValidationError{
				Op:      "state",
				Field:   "overlays." + name,
				Message: fmt.Sprintf("value %v outside bounds [%v, %v]", v, bounds.Min, bounds.Max),
			}
		}
	}
	return nil
}

// Value resolves a path to its current value. Bare paths check the
// overlay namespace first, then variables.
func (s *State) Value(p Path) (float64, bool) {
	switch p.Space {
	case SpaceOverlay:
		v, ok := s.Overlays[p.Name]
		return v, ok
	case SpaceVariable:
		v, ok := s.Variables[p.Name]
		return v, ok
	default:
		if v, ok := s.Overlays[p.Name]; ok {
			return v, true
		}
		v, ok := s.Variables[p.Name]
		return v, ok
	}
}

// ResolveSpace reports which namespace a path currently resolves to.
// For bare paths the overlay namespace wins if the name exists there.
func (s *State) ResolveSpace(p Path) (Space, bool) {
	switch p.Space {
	case SpaceOverlay, SpaceVariable:
		_, ok := s.Value(p)
		return p.Space, ok
	default:
		if _, ok := s.Overlays[p.Name]; ok {
			return SpaceOverlay, true
		}
		if _, ok := s.Variables[p.Name]; ok {
			return SpaceVariable, true
		}
		return SpaceVariable, false
	}
}

// Set overwrites the value at a path, creating it if absent. Writes into
// the overlay namespace are clamped to bounds. A bare path that resolves
// to neither namespace creates a variable (the unbounded default).
// Returns the value actually stored.
func (s *State) Set(p Path, v float64, bounds Bounds) float64 {
	space, _ := s.ResolveSpace(p)
	if space == SpaceOverlay {
		v = bounds.Clamp(v)
		s.Overlays[p.Name] = v
		return v
	}
	s.Variables[p.Name] = v
	return v
}

// Adjust adds delta to the value at a path. The target must already
// exist; Adjust never creates paths. Overlay targets are clamped.
// Returns the stored value and whether the target existed.
func (s *State) Adjust(p Path, delta float64, bounds Bounds) (float64, bool) {
	space, ok := s.ResolveSpace(p)
	if !ok {
		return 0, false
	}
	if space == SpaceOverlay {
		v := bounds.Clamp(s.Overlays[p.Name] + delta)
		s.Overlays[p.Name] = v
		return v, true
	}
	v := s.Variables[p.Name] + delta
	s.Variables[p.Name] = v
	return v, true
}

// Delete removes the value at a path. Removal is explicit deletion, never
// set-to-zero. Reports whether the path existed.
func (s *State) Delete(p Path) bool {
	space, ok := s.ResolveSpace(p)
	if !ok {
		return false
	}
	if space == SpaceOverlay {
		delete(s.Overlays, p.Name)
	} else {
		delete(s.Variables, p.Name)
	}
	return true
}

// PathMap flattens the state into a map of fully qualified path strings
// to values. This is the wire form used by snapshot stores.
func (s *State) PathMap() map[string]float64 {
	m := make(map[string]float64, len(s.Overlays)+len(s.Variables))
	for k, v := range s.Overlays {
		m[Path{Space: SpaceOverlay, Name: k}.String()] = v
	}
	for k, v := range s.Variables {
		m[Path{Space: SpaceVariable, Name: k}.String()] = v
	}
	return m
}

// FromPathMap reconstructs a State at the given turn from a flattened
// path map. Unqualified keys land in the variable namespace.
func FromPathMap(m map[string]float64, turn int64) (*State, error) {
	s := NewState()
	s.Turn = turn
	for k, v := range m {
		p, err := ParsePath(k)
		if err != nil {
			return nil, fmt.Errorf("path map key %q: %w", k, err)
		}
		switch p.Space {
		case SpaceOverlay:
			s.Overlays[p.Name] = v
		default:
			s.Variables[p.Name] = v
		}
	}
	return s, nil
}
