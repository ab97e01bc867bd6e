package engine

import (
	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// Apply executes a rule's effects against the state in declaration order.
// Later effects observe earlier mutations from the same rule.
//
// On effect failure Apply stops and returns the effects applied so far
// together with the error. There is no rollback: the state keeps every
// mutation made before the failure.
func Apply(r rule.Rule, s *world.State, bounds world.Bounds) ([]EffectApplied, error) {
	var applied []EffectApplied
	for _, e := range r.Effects {
		switch e.Action {
		case rule.ActionSetVariable:
			old, existed := s.Value(e.Target)
			stored := s.Set(e.Target, e.Value, bounds)
			applied = append(applied, EffectApplied{
				Path:    e.Target.String(),
				Action:  e.Action.String(),
				Old:     old,
				New:     stored,
				Created: !existed,
			})

		case rule.ActionAdjustVariable:
			old, _ := s.Value(e.Target)
			stored, ok := s.Adjust(e.Target, e.Value, bounds)
			if !ok {
				return applied, NewTargetMissingError(r.ID, e.Target.String())
			}
			applied = append(applied, EffectApplied{
				Path:   e.Target.String(),
				Action: e.Action.String(),
				Old:    old,
				New:    stored,
			})

		default:
			return applied, &Error{
				Code:    ErrCodeTypeMismatch,
				RuleID:  r.ID,
				Path:    e.Target.String(),
				Message: "unknown effect action",
			}
		}
	}
	return applied, nil
}
