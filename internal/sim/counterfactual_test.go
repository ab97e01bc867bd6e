package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

func TestSimulateCounterfactual_EmptyForkZeroDivergence(t *testing.T) {
	s := newSimulator(t, []rule.Rule{hopeRule("drip", -1.0, 0.0625)})
	initial := world.NewState()
	initial.Overlays["hope"] = 0.0

	res, err := s.SimulateCounterfactual(context.Background(), initial, nil, 3)
	require.NoError(t, err)

	assert.Zero(t, res.Final, "identical runs must not diverge")
	for i, d := range res.PerTurn {
		assert.Zero(t, d, "turn %d", i)
	}
}

func TestSimulateCounterfactual_ForkDiverges(t *testing.T) {
	// The rule fires only above the threshold, so the forked world
	// compounds a change the baseline never sees.
	s := newSimulator(t, []rule.Rule{hopeRule("boost", 0.5, 0.0625)})
	initial := world.NewState()
	initial.Overlays["hope"] = 0.25

	fork := Fork{"overlays.hope": 0.75}
	res, err := s.SimulateCounterfactual(context.Background(), initial, fork, 2)
	require.NoError(t, err)

	assert.InDelta(t, 0.25, res.Baseline.Final.Overlays["hope"], 1e-9)
	assert.InDelta(t, 0.875, res.Forked.Final.Overlays["hope"], 1e-9)
	assert.InDelta(t, 0.625, res.Final, 1e-9)

	require.Len(t, res.PerTurn, 2)
	assert.InDelta(t, 0.5625, res.PerTurn[0], 1e-9)
	assert.InDelta(t, 0.625, res.PerTurn[1], 1e-9)
}

func TestSimulateCounterfactual_InputNotMutated(t *testing.T) {
	s := newSimulator(t, nil)
	initial := world.NewState()
	initial.Overlays["hope"] = 0.25

	_, err := s.SimulateCounterfactual(context.Background(), initial,
		Fork{"overlays.hope": 0.9}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, initial.Overlays["hope"], 1e-9)
	assert.Equal(t, int64(0), initial.Turn)
}

func TestSimulateCounterfactual_RejectsBadForkPath(t *testing.T) {
	s := newSimulator(t, nil)
	_, err := s.SimulateCounterfactual(context.Background(), world.NewState(),
		Fork{"overlays.bad name": 1.0}, 1)
	require.Error(t, err)
	assert.True(t, world.IsValidationError(err))
}

func TestDivergence(t *testing.T) {
	a := world.NewState()
	a.Overlays["hope"] = 0.5
	a.Variables["energy"] = 2.0

	b := world.NewState()
	b.Overlays["hope"] = 0.25
	b.Variables["supply"] = 1.0

	// |0.5-0.25| + |2.0-0| + |0-1.0|
	assert.InDelta(t, 3.25, Divergence(a, b), 1e-9)
	assert.Zero(t, Divergence(a, a.Clone()))
}
