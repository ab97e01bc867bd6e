package retro

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

func loadedRegistry(t *testing.T, rules ...rule.Rule) *rule.Registry {
	t.Helper()
	reg := rule.NewRegistry()
	require.NoError(t, reg.Load(rules))
	return reg
}

func adjustRule(id string, priority int, path string, delta float64) rule.Rule {
	return rule.Rule{
		ID:       id,
		Priority: priority,
		Source:   "test",
		Enabled:  true,
		Effects: []rule.Effect{
			{Action: rule.ActionAdjustVariable, Target: world.MustParsePath(path), Value: delta},
		},
	}
}

func TestInfer_EmptyDeltaIsGapless(t *testing.T) {
	e := NewEngine(loadedRegistry(t))
	res, err := e.Infer(context.Background(), world.Delta{}, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Chains)
	assert.False(t, res.Gap)
}

func TestInfer_SingleRuleRoundTrip(t *testing.T) {
	// A delta produced by exactly one registered rule must come back as
	// the top chain with no residual.
	reg := loadedRegistry(t,
		adjustRule("hope_decay", 0, "overlays.hope", -0.125),
		adjustRule("unrelated", 0, "variables.energy", 3.0),
	)
	e := NewEngine(reg)

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.375}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Chains)

	top := res.Chains[0]
	assert.Equal(t, []string{"hope_decay"}, top.RuleIDs)
	assert.InDelta(t, 0.0, top.Residual, 1e-9)
	assert.InDelta(t, 1.0, top.Score, 1e-9)
	assert.False(t, res.Gap)
}

func TestInfer_TwoRuleChain(t *testing.T) {
	reg := loadedRegistry(t,
		adjustRule("hope_drop", 0, "overlays.hope", -0.25),
		adjustRule("energy_rise", 0, "variables.energy", 2.0),
	)
	e := NewEngine(reg)

	delta := world.Delta{
		"overlays.hope":    {Old: 0.5, New: 0.25},
		"variables.energy": {Old: 1.0, New: 3.0},
	}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Chains)

	top := res.Chains[0]
	assert.ElementsMatch(t, []string{"hope_drop", "energy_rise"}, top.RuleIDs)
	assert.InDelta(t, 0.0, top.Residual, 1e-9)
	assert.False(t, res.Gap)
}

func TestInfer_GapProducesSuggestion(t *testing.T) {
	reg := loadedRegistry(t, adjustRule("energy_rise", 0, "variables.energy", 2.0))
	e := NewEngine(reg)

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.1}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)

	assert.True(t, res.Gap)
	require.Contains(t, res.Suggestions, "overlays.hope")
	sug := res.Suggestions["overlays.hope"]
	assert.Equal(t, rule.ClassDecrease, sug.Class)
	assert.InDelta(t, 0.4, sug.Magnitude, 1e-9)
}

func TestInfer_DisabledRulesExcluded(t *testing.T) {
	r := adjustRule("off", 0, "overlays.hope", -0.4)
	r.Enabled = false
	reg := loadedRegistry(t, r)
	e := NewEngine(reg)

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.1}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	assert.True(t, res.Gap, "disabled rules must not explain deltas")
}

func TestInfer_InertRulesWarned(t *testing.T) {
	reg := loadedRegistry(t,
		rule.Rule{ID: "noop", Enabled: true, Source: "test"},
		adjustRule("real", 0, "overlays.hope", -0.1),
	)
	e := NewEngine(reg)

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.4}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "noop")
}

func TestInfer_Deterministic(t *testing.T) {
	reg := loadedRegistry(t,
		adjustRule("a_rule", 0, "overlays.hope", -0.1),
		adjustRule("b_rule", 0, "overlays.hope", -0.1),
	)
	e := NewEngine(reg)
	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.4}}

	first, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Infer(context.Background(), delta, 0)
		require.NoError(t, err)
		assert.Equal(t, first.Chains, again.Chains)
	}
	// Equal-score ambiguity resolves lexicographically.
	require.NotEmpty(t, first.Chains)
	assert.Equal(t, []string{"a_rule"}, first.Chains[0].RuleIDs)
}

func TestInfer_DepthBound(t *testing.T) {
	// Explaining -0.3 takes three applications of a -0.1 rule; depth 2
	// must stop short and report the best partial chain.
	reg := loadedRegistry(t, adjustRule("small_drop", 0, "overlays.hope", -0.1))
	e := NewEngine(reg, WithMaxDepth(2), WithMinScore(0.9))

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.2}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	assert.True(t, res.Gap)
	for _, c := range res.Chains {
		assert.LessOrEqual(t, len(c.RuleIDs), 2)
	}
}

func TestInfer_CancelledContext(t *testing.T) {
	reg := loadedRegistry(t, adjustRule("r", 0, "overlays.hope", -0.1))
	e := NewEngine(reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Infer(ctx, world.Delta{"overlays.hope": {Old: 0.5, New: 0.4}}, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInfer_TrustRanking(t *testing.T) {
	authored := adjustRule("authored_drop", 0, "overlays.hope", -0.1)
	authored.Source = "authored"
	generated := adjustRule("generated_drop", 0, "overlays.hope", -0.1)
	generated.Source = "generated"
	reg := loadedRegistry(t, authored, generated)

	e := NewEngine(reg, WithTrustScorer(SourceTrust{
		Weights: map[string]float64{"authored": 1.0, "generated": 0.3},
		Default: 0.5,
	}))

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.4}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Chains), 2)
	assert.Equal(t, []string{"authored_drop"}, res.Chains[0].RuleIDs,
		"equal-score chains rank by trust")
	assert.Greater(t, res.Chains[0].Trust, res.Chains[1].Trust)
}

func TestInfer_BarePathTarget(t *testing.T) {
	// Rules may target a bare path while observed deltas always carry
	// qualified keys; matching bridges the two spellings.
	reg := loadedRegistry(t, adjustRule("hope_drop", 0, "hope", -0.1))
	e := NewEngine(reg)

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.4}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Chains)
	assert.Equal(t, []string{"hope_drop"}, res.Chains[0].RuleIDs)
	assert.InDelta(t, 0.0, res.Chains[0].Residual, 1e-9)
	assert.False(t, res.Gap)
}

func TestInfer_TrustOutranksScore(t *testing.T) {
	full := adjustRule("full_low_trust", 0, "overlays.hope", -0.4)
	full.Source = "generated"
	partial := adjustRule("partial_high_trust", 0, "overlays.hope", -0.1)
	partial.Source = "authored"
	reg := loadedRegistry(t, full, partial)

	e := NewEngine(reg,
		WithMaxDepth(1),
		WithTrustScorer(SourceTrust{
			Weights: map[string]float64{"authored": 1.0, "generated": 0.2},
			Default: 0.5,
		}))

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.1}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Chains), 2)

	assert.Equal(t, []string{"partial_high_trust"}, res.Chains[0].RuleIDs,
		"trust orders chains even when a lower-trust chain scores higher")
	assert.Equal(t, []string{"full_low_trust"}, res.Chains[1].RuleIDs)
	assert.Greater(t, res.Chains[1].Score, res.Chains[0].Score)
	assert.False(t, res.Gap, "a qualifying score anywhere in the list prevents a gap")
}

func TestInfer_TaggedChains(t *testing.T) {
	reg := loadedRegistry(t, adjustRule("hope_decay", 0, "overlays.hope", -0.1))
	e := NewEngine(reg, WithTagger(StaticTagger{ByRule: map[string][]string{
		"hope_decay": {"morale"},
	}}))

	delta := world.Delta{"overlays.hope": {Old: 0.5, New: 0.4}}
	res, err := e.Infer(context.Background(), delta, 0)
	require.NoError(t, err)
	require.NotEmpty(t, res.Chains)
	assert.Equal(t, []string{"morale"}, res.Chains[0].Tags)
}
