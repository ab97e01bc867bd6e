package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrograde-sim/retrograde/internal/retro"
	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// mapSnapshots serves snapshots from memory; turns absent from the map
// report no ground truth, turns in failTurns report a source error.
type mapSnapshots struct {
	byTurn    map[int64]map[string]float64
	failTurns map[int64]bool
}

func (m mapSnapshots) GetSnapshot(_ context.Context, turn int64) (map[string]float64, error) {
	if m.failTurns[turn] {
		return nil, errors.New("snapshot store offline")
	}
	return m.byTurn[turn], nil
}

func retroSimulator(t *testing.T, snaps SnapshotSource, rules ...rule.Rule) *Simulator {
	t.Helper()
	reg := rule.NewRegistry()
	require.NoError(t, reg.Load(rules))
	return New(reg,
		WithTimeSource(fixedNow),
		WithTokenGenerator(&FixedGenerator{Prefix: "test"}),
		WithRetroEngine(retro.NewEngine(reg)),
		WithSnapshotSource(snaps),
	)
}

func decayRule() rule.Rule {
	return rule.Rule{
		ID:      "hope_decay",
		Source:  "test",
		Enabled: true,
		Effects: []rule.Effect{
			{Action: rule.ActionAdjustVariable, Target: world.OverlayPath("hope"), Value: -0.125},
		},
	}
}

func TestSimulateBackward_ResolvesAgainstSnapshots(t *testing.T) {
	snaps := mapSnapshots{byTurn: map[int64]map[string]float64{
		2: {"overlays.hope": 0.5},
		1: {"overlays.hope": 0.625},
	}}
	s := retroSimulator(t, snaps, decayRule())

	final := world.NewState()
	final.Turn = 3
	final.Overlays["hope"] = 0.375

	trace, err := s.SimulateBackward(context.Background(), final, 2, 0)
	require.NoError(t, err)
	require.Len(t, trace.Steps, 2)

	// Step 1: turn 2 snapshot (0.5) -> final (0.375), a -0.125 drop.
	step := trace.Steps[0]
	assert.Equal(t, int64(2), step.Turn)
	assert.Equal(t, StepResolved, step.Status)
	require.NotEmpty(t, step.Inference.Chains)
	assert.Equal(t, []string{"hope_decay"}, step.Inference.Chains[0].RuleIDs)

	// Step 2 diffs snapshot 1 against snapshot 2, not against final.
	step = trace.Steps[1]
	assert.Equal(t, int64(1), step.Turn)
	require.Contains(t, step.Delta, "overlays.hope")
	assert.InDelta(t, 0.625, step.Delta["overlays.hope"].Old, 1e-9)
	assert.InDelta(t, 0.5, step.Delta["overlays.hope"].New, 1e-9)
}

func TestSimulateBackward_MissingSnapshotSkips(t *testing.T) {
	snaps := mapSnapshots{byTurn: map[int64]map[string]float64{
		1: {"overlays.hope": 0.625},
	}}
	s := retroSimulator(t, snaps, decayRule())

	final := world.NewState()
	final.Turn = 3
	final.Overlays["hope"] = 0.375

	trace, err := s.SimulateBackward(context.Background(), final, 2, 0)
	require.NoError(t, err)
	require.Len(t, trace.Steps, 2)
	assert.Equal(t, StepNoGroundTruth, trace.Steps[0].Status)
	assert.Equal(t, StepResolved, trace.Steps[1].Status)
}

func TestSimulateBackward_SourceErrorMarksUnresolved(t *testing.T) {
	snaps := mapSnapshots{
		byTurn:    map[int64]map[string]float64{1: {"overlays.hope": 0.625}},
		failTurns: map[int64]bool{2: true},
	}
	s := retroSimulator(t, snaps, decayRule())

	final := world.NewState()
	final.Turn = 3
	final.Overlays["hope"] = 0.375

	trace, err := s.SimulateBackward(context.Background(), final, 2, 0)
	require.NoError(t, err, "a flaky source must not fail the walk")
	require.Len(t, trace.Steps, 2)
	assert.Equal(t, StepUnresolved, trace.Steps[0].Status)
	assert.Contains(t, trace.Steps[0].Err, "offline")
	assert.Equal(t, StepResolved, trace.Steps[1].Status)
}

func TestSimulateBackward_StopsAtTurnZero(t *testing.T) {
	snaps := mapSnapshots{byTurn: map[int64]map[string]float64{
		0: {"overlays.hope": 0.5},
	}}
	s := retroSimulator(t, snaps, decayRule())

	final := world.NewState()
	final.Turn = 1
	final.Overlays["hope"] = 0.375

	trace, err := s.SimulateBackward(context.Background(), final, 5, 0)
	require.NoError(t, err)
	assert.Len(t, trace.Steps, 1, "the walk never steps before turn zero")
}

func TestSimulateBackward_RejectsNonPositiveSteps(t *testing.T) {
	snaps := mapSnapshots{byTurn: map[int64]map[string]float64{}}
	s := retroSimulator(t, snaps, decayRule())

	for _, steps := range []int{0, -1} {
		_, err := s.SimulateBackward(context.Background(), world.NewState(), steps, 0)
		require.Error(t, err)
		assert.True(t, world.IsValidationError(err))
	}
}

func TestSimulateBackward_RequiresCollaborators(t *testing.T) {
	reg := rule.NewRegistry()
	s := New(reg)
	_, err := s.SimulateBackward(context.Background(), world.NewState(), 1, 0)
	assert.ErrorIs(t, err, ErrNoRetroEngine)
}
