package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/retrograde-sim/retrograde/internal/retro"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// SnapshotSource provides ground-truth state snapshots by turn.
// A nil map with a nil error means no snapshot exists for that turn;
// errors mean the source itself is unavailable.
type SnapshotSource interface {
	GetSnapshot(ctx context.Context, turn int64) (map[string]float64, error)
}

// StepStatus classifies the outcome of one backward step.
type StepStatus string

const (
	// StepResolved means ground truth existed and inference ran.
	StepResolved StepStatus = "resolved"

	// StepNoGroundTruth means no snapshot exists for the target turn.
	// The walk continues to the next step.
	StepNoGroundTruth StepStatus = "no_ground_truth"

	// StepUnresolved means the snapshot source failed. The step is
	// recorded and the walk continues; a flaky store must not void the
	// steps that did resolve.
	StepUnresolved StepStatus = "unresolved"
)

// RetroStep is one step of a backward walk.
type RetroStep struct {
	// Turn is the target turn this step tried to reconstruct.
	Turn int64 `json:"turn"`

	Status StepStatus `json:"status"`

	// Delta is the observed change from the target turn's snapshot to
	// the later state, set when resolved.
	Delta world.Delta `json:"delta,omitempty"`

	// Inference is the reverse engine's explanation of the delta.
	Inference retro.Result `json:"inference,omitempty"`

	// Err describes the source failure for unresolved steps.
	Err string `json:"err,omitempty"`
}

// RetroTrace is the complete record of a backward walk.
type RetroTrace struct {
	// FromTurn is the turn the walk started at.
	FromTurn int64 `json:"from_turn"`

	// Steps in walk order, most recent transition first.
	Steps []RetroStep `json:"steps"`
}

// ErrNoRetroEngine is returned when SimulateBackward runs without a
// configured reverse engine or snapshot source.
var ErrNoRetroEngine = errors.New("backward simulation needs a retro engine and a snapshot source")

// SimulateBackward walks up to steps transitions backward from final,
// asking the reverse engine to explain each observed delta against the
// stored snapshot for the earlier turn.
//
// The final state is not mutated. Steps past turn zero are not taken.
func (s *Simulator) SimulateBackward(ctx context.Context, final *world.State, steps, depth int) (*RetroTrace, error) {
	if s.retro == nil || s.snapshots == nil {
		return nil, ErrNoRetroEngine
	}
	if err := final.Validate(s.bounds); err != nil {
		return nil, err
	}
	if steps < 1 {
		return nil, &world.ValidationError{Op: "retrodict", Field: "steps", Message: fmt.Sprintf("step count must be at least 1, got %d", steps)}
	}

	trace := &RetroTrace{FromTurn: final.Turn}
	current := final.Clone()

	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return trace, fmt.Errorf("backward walk cancelled after %d of %d steps: %w", i-1, steps, err)
		}
		targetTurn := final.Turn - int64(i)
		if targetTurn < 0 {
			break
		}

		snap, err := s.snapshots.GetSnapshot(ctx, targetTurn)
		if err != nil {
			s.log.Warn("snapshot source unavailable",
				"turn", targetTurn,
				"error", err)
			trace.Steps = append(trace.Steps, RetroStep{
				Turn:   targetTurn,
				Status: StepUnresolved,
				Err:    err.Error(),
			})
			continue
		}
		if snap == nil {
			trace.Steps = append(trace.Steps, RetroStep{
				Turn:   targetTurn,
				Status: StepNoGroundTruth,
			})
			continue
		}

		snapState, err := world.FromPathMap(snap, targetTurn)
		if err != nil {
			trace.Steps = append(trace.Steps, RetroStep{
				Turn:   targetTurn,
				Status: StepUnresolved,
				Err:    err.Error(),
			})
			continue
		}

		delta := world.Diff(snapState, current)
		inference, err := s.retro.Infer(ctx, delta, depth)
		if err != nil {
			trace.Steps = append(trace.Steps, RetroStep{
				Turn:      targetTurn,
				Status:    StepUnresolved,
				Delta:     delta,
				Inference: inference,
				Err:       err.Error(),
			})
			return trace, err
		}

		trace.Steps = append(trace.Steps, RetroStep{
			Turn:      targetTurn,
			Status:    StepResolved,
			Delta:     delta,
			Inference: inference,
		})
		current = snapState
	}

	s.log.Info("backward walk complete",
		"from_turn", trace.FromTurn,
		"steps", len(trace.Steps))
	return trace, nil
}
