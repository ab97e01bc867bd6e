package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

func testState() *world.State {
	s := world.NewState()
	s.Overlays["hope"] = 0.5
	s.Overlays["fear"] = -0.25
	s.Variables["energy_cost"] = 2.0
	return s
}

func cond(path string, op rule.Operator, v float64) rule.Condition {
	return rule.Condition{Path: world.MustParsePath(path), Op: op, Value: rule.FloatScalar(v)}
}

func TestEvaluate_EmptyConditionsAlwaysTrue(t *testing.T) {
	ok, warnings := Evaluate(rule.Rule{ID: "always"}, testState())
	assert.True(t, ok)
	assert.Empty(t, warnings)
}

func TestEvaluate_ConjunctionTable(t *testing.T) {
	tests := []struct {
		name  string
		conds []rule.Condition
		want  bool
	}{
		{"single true", []rule.Condition{cond("overlays.hope", rule.OpGt, 0.4)}, true},
		{"single false", []rule.Condition{cond("overlays.hope", rule.OpGt, 0.6)}, false},
		{"all true", []rule.Condition{
			cond("overlays.hope", rule.OpGt, 0.4),
			cond("variables.energy_cost", rule.OpGe, 2.0),
		}, true},
		{"one false sinks all", []rule.Condition{
			cond("overlays.hope", rule.OpGt, 0.4),
			cond("variables.energy_cost", rule.OpLt, 2.0),
		}, false},
		{"bare path resolves overlay first", []rule.Condition{
			cond("hope", rule.OpEq, 0.5),
		}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, _ := Evaluate(rule.Rule{ID: "r", Conditions: tc.conds}, testState())
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestEvaluate_OrGroups(t *testing.T) {
	or := func(group, path string, op rule.Operator, v float64) rule.Condition {
		c := cond(path, op, v)
		c.OrGroup = group
		return c
	}

	t.Run("any member satisfies the group", func(t *testing.T) {
		r := rule.Rule{ID: "r", Conditions: []rule.Condition{
			or("g", "overlays.hope", rule.OpGt, 0.9),
			or("g", "overlays.fear", rule.OpLt, 0.0),
		}}
		ok, _ := Evaluate(r, testState())
		assert.True(t, ok)
	})

	t.Run("empty group fails the rule", func(t *testing.T) {
		r := rule.Rule{ID: "r", Conditions: []rule.Condition{
			or("g", "overlays.hope", rule.OpGt, 0.9),
			or("g", "overlays.fear", rule.OpGt, 0.0),
		}}
		ok, _ := Evaluate(r, testState())
		assert.False(t, ok)
	})

	t.Run("group ANDs with ungrouped conditions", func(t *testing.T) {
		r := rule.Rule{ID: "r", Conditions: []rule.Condition{
			or("g", "overlays.hope", rule.OpGt, 0.4),
			cond("variables.energy_cost", rule.OpLt, 1.0),
		}}
		ok, _ := Evaluate(r, testState())
		assert.False(t, ok, "satisfied group must not rescue a failed AND condition")
	})
}

func TestEvaluate_MissingPathIsFalseWithWarning(t *testing.T) {
	r := rule.Rule{ID: "r", Conditions: []rule.Condition{
		cond("variables.ghost", rule.OpGt, 0.0),
	}}
	ok, warnings := Evaluate(r, testState())
	assert.False(t, ok, "unresolved path must never satisfy a condition")
	require.Len(t, warnings, 1)
	assert.Equal(t, "r", warnings[0].RuleID)
	assert.Equal(t, "variables.ghost", warnings[0].Path)
	assert.Contains(t, warnings[0].Message, string(ErrCodePathNotFound))
}

func TestEvaluate_BoolOrderingWarnsAndFails(t *testing.T) {
	r := rule.Rule{ID: "r", Conditions: []rule.Condition{
		{Path: world.OverlayPath("hope"), Op: rule.OpGt, Value: rule.BoolScalar(true)},
	}}
	ok, warnings := Evaluate(r, testState())
	assert.False(t, ok)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "comparison failed")
}

func TestEvaluate_ReadOnly(t *testing.T) {
	s := testState()
	before := s.PathMap()
	Evaluate(rule.Rule{ID: "r", Conditions: []rule.Condition{
		cond("variables.ghost", rule.OpGt, 0.0),
		cond("overlays.hope", rule.OpGt, 0.0),
	}}, s)
	assert.Equal(t, before, s.PathMap(), "evaluation must not mutate state")
}
