package sim

import (
	"math"

	"github.com/retrograde-sim/retrograde/internal/engine"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// DecayPolicy shapes overlays before rules run each turn. Decay models
// the passive drift of bounded signals (moods fade, tensions cool) that
// no explicit rule owns.
type DecayPolicy interface {
	Decay(s *world.State, bounds world.Bounds)
}

// GravityCorrection nudges overlays after rules run, pulling them toward
// configured anchors. It keeps long runs from saturating at the bounds.
type GravityCorrection interface {
	Correct(s *world.State, bounds world.Bounds)
}

// LearningHook observes each completed turn. Implementations may tune
// external models from the audit; they must not mutate the state.
type LearningHook interface {
	Observe(s *world.State, audit engine.TurnAudit)
}

// LinearDecay moves every overlay toward zero by a fixed fraction per
// turn. Rate 0.1 removes 10% of each overlay's magnitude each turn.
// Values below Floor snap to zero so decay terminates instead of
// producing ever-smaller denormals.
type LinearDecay struct {
	Rate  float64
	Floor float64
}

// Decay implements DecayPolicy.
func (d LinearDecay) Decay(s *world.State, bounds world.Bounds) {
	if d.Rate <= 0 {
		return
	}
	floor := d.Floor
	if floor <= 0 {
		floor = 1e-9
	}
	for name, v := range s.Overlays {
		nv := v * (1 - d.Rate)
		if math.Abs(nv) < floor {
			nv = 0
		}
		s.Overlays[name] = bounds.Clamp(nv)
	}
}

// AnchorGravity pulls anchored overlays a fraction of the way toward
// their anchor value each turn. Overlays without an anchor are left
// alone.
type AnchorGravity struct {
	Anchors  map[string]float64
	Strength float64
}

// Correct implements GravityCorrection.
func (g AnchorGravity) Correct(s *world.State, bounds world.Bounds) {
	if g.Strength <= 0 {
		return
	}
	for name, anchor := range g.Anchors {
		v, ok := s.Overlays[name]
		if !ok {
			continue
		}
		s.Overlays[name] = bounds.Clamp(v + (anchor-v)*g.Strength)
	}
}

// LearningFunc adapts a function to the LearningHook interface.
type LearningFunc func(s *world.State, audit engine.TurnAudit)

// Observe implements LearningHook.
func (f LearningFunc) Observe(s *world.State, audit engine.TurnAudit) { f(s, audit) }
