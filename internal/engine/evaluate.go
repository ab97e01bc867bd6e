package engine

import (
	"fmt"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// Evaluate reports whether a rule's conditions hold against the state.
//
// Ungrouped conditions AND together. Conditions sharing a non-empty
// OrGroup form a disjunction that ANDs with the rest. An empty condition
// list always holds.
//
// An unresolvable path or an undefined comparison makes the involved
// condition false and records a warning; it never makes it true and
// never turns into an error. Evaluation is read-only.
func Evaluate(r rule.Rule, s *world.State) (bool, []Warning) {
	if len(r.Conditions) == 0 {
		return true, nil
	}

	var warnings []Warning
	groupSatisfied := make(map[string]bool)
	groupSeen := make(map[string]bool)

	for _, c := range r.Conditions {
		if c.OrGroup != "" {
			groupSeen[c.OrGroup] = true
			if groupSatisfied[c.OrGroup] {
				continue
			}
		}

		ok, warn := evalCondition(r.ID, c, s)
		if warn != nil {
			warnings = append(warnings, *warn)
		}

		if c.OrGroup != "" {
			if ok {
				groupSatisfied[c.OrGroup] = true
			}
			continue
		}
		if !ok {
			return false, warnings
		}
	}

	for g := range groupSeen {
		if !groupSatisfied[g] {
			return false, warnings
		}
	}
	return true, warnings
}

func evalCondition(ruleID string, c rule.Condition, s *world.State) (bool, *Warning) {
	v, ok := s.Value(c.Path)
	if !ok {
		return false, warningFrom(NewPathNotFoundError(ruleID, c.Path.String()))
	}
	holds, err := c.Value.Compare(v, c.Op)
	if err != nil {
		return false, warningFrom(&Error{
			Code:    ErrCodeTypeMismatch,
			RuleID:  ruleID,
			Path:    c.Path.String(),
			Message: fmt.Sprintf("comparison failed: %v", err),
		})
	}
	return holds, nil
}

// warningFrom downgrades a structured evaluation error to an audit
// warning. Condition failures never abort a turn, so the error's code
// survives only in the rendered message.
func warningFrom(err *Error) *Warning {
	return &Warning{
		RuleID:  err.RuleID,
		Path:    err.Path,
		Message: string(err.Code) + ": " + err.Message,
	}
}
