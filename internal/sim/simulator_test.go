package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrograde-sim/retrograde/internal/engine"
	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newSimulator(t *testing.T, rules []rule.Rule, opts ...Option) *Simulator {
	t.Helper()
	reg := rule.NewRegistry()
	require.NoError(t, reg.Load(rules))
	opts = append([]Option{
		WithTimeSource(fixedNow),
		WithTokenGenerator(&FixedGenerator{Prefix: "test"}),
	}, opts...)
	return New(reg, opts...)
}

func hopeRule(id string, threshold, delta float64) rule.Rule {
	return rule.Rule{
		ID:      id,
		Enabled: true,
		Conditions: []rule.Condition{
			{Path: world.OverlayPath("hope"), Op: rule.OpGt, Value: rule.FloatScalar(threshold)},
		},
		Effects: []rule.Effect{
			{Action: rule.ActionAdjustVariable, Target: world.OverlayPath("hope"), Value: delta},
		},
	}
}

func TestSimulateTurn_AdvancesTurnOnce(t *testing.T) {
	s := newSimulator(t, nil)
	state := world.NewState()
	state.Turn = 7

	result, err := s.SimulateTurn(state)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Turn, "result reports the turn that executed")
	assert.Equal(t, int64(8), state.Turn)
}

func TestSimulateTurn_PipelineOrder(t *testing.T) {
	// Decay halves hope before rules; the rule only fires if it sees
	// the decayed value, proving decay runs first. Gravity then pulls
	// hope toward 1.0 after the rule's adjustment.
	state := world.NewState()
	state.Overlays["hope"] = 0.8

	var observedByLearning float64
	s := newSimulator(t, []rule.Rule{hopeRule("boost", 0.3, 0.1)},
		WithDecay(LinearDecay{Rate: 0.5}),
		WithGravity(AnchorGravity{Anchors: map[string]float64{"hope": 1.0}, Strength: 0.5}),
		WithLearning(LearningFunc(func(st *world.State, _ engine.TurnAudit) {
			observedByLearning = st.Overlays["hope"]
		})),
	)

	result, err := s.SimulateTurn(state)
	require.NoError(t, err)

	// 0.8 decays to 0.4, rule adds 0.1 -> 0.5, gravity moves halfway
	// to 1.0 -> 0.75.
	assert.InDelta(t, 0.75, state.Overlays["hope"], 1e-9)
	assert.Equal(t, []string{"boost"}, result.Audit.Fired())
	assert.InDelta(t, 0.75, observedByLearning, 1e-9, "learning sees the post-gravity state")
}

func TestSimulateTurn_DeltaSpansWholePipeline(t *testing.T) {
	state := world.NewState()
	state.Overlays["hope"] = 0.8

	s := newSimulator(t, nil, WithDecay(LinearDecay{Rate: 0.25}))
	result, err := s.SimulateTurn(state)
	require.NoError(t, err)

	// No rule fired, but decay still shows up in the turn delta.
	require.Contains(t, result.Delta, "overlays.hope")
	assert.InDelta(t, 0.8, result.Delta["overlays.hope"].Old, 1e-9)
	assert.InDelta(t, 0.6, result.Delta["overlays.hope"].New, 1e-9)
}

func TestSimulateTurn_Deterministic(t *testing.T) {
	run := func() string {
		state := world.NewState()
		state.Overlays["hope"] = 0.5
		state.Variables["energy_cost"] = 2.0
		s := newSimulator(t, []rule.Rule{hopeRule("r", 0.0, -0.0625)},
			WithDecay(LinearDecay{Rate: 0.25}))
		result, err := s.SimulateTurn(state)
		require.NoError(t, err)
		return result.StateHash
	}

	first := run()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestLinearDecay_SnapsToZeroAtFloor(t *testing.T) {
	state := world.NewState()
	state.Overlays["tiny"] = 1e-10
	LinearDecay{Rate: 0.5}.Decay(state, world.DefaultBounds)
	assert.Zero(t, state.Overlays["tiny"])
}

func TestFixedGenerator_Sequential(t *testing.T) {
	g := &FixedGenerator{Prefix: "run"}
	tok1, err := g.NewToken()
	require.NoError(t, err)
	tok2, err := g.NewToken()
	require.NoError(t, err)
	assert.Equal(t, "run-0001", tok1)
	assert.Equal(t, "run-0002", tok2)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	g := UUIDv7Generator{}
	tok1, err := g.NewToken()
	require.NoError(t, err)
	tok2, err := g.NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, tok1, tok2)
}
