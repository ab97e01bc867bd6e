package sim

import (
	"context"
	"fmt"

	"github.com/retrograde-sim/retrograde/internal/world"
)

// Trace is the complete record of a forward run.
type Trace struct {
	// RunToken identifies the run in audit storage.
	RunToken string `json:"run_token"`

	// Initial is a copy of the input state, untouched.
	Initial *world.State `json:"initial"`

	// Final is the state after the last completed turn.
	Final *world.State `json:"final"`

	// Turns holds one result per completed turn.
	Turns []TurnResult `json:"turns"`
}

// SimulateForward runs the turn pipeline n times from a copy of initial.
// The input state is never mutated; callers can reuse it for
// counterfactual forks or repeat runs.
//
// Validation failures surface before any turn executes. Cancellation
// between turns returns the partial trace alongside the context error;
// a turn never stops mid-pipeline.
func (s *Simulator) SimulateForward(ctx context.Context, initial *world.State, turns int) (*Trace, error) {
	if turns < 1 {
		return nil, &world.ValidationError{Op: "simulate", Field: "turns", Message: fmt.Sprintf("turn count must be at least 1, got %d", turns)}
	}
	if err := initial.Validate(s.bounds); err != nil {
		return nil, err
	}

	token, err := s.tokens.NewToken()
	if err != nil {
		return nil, err
	}

	trace := &Trace{
		RunToken: token,
		Initial:  initial.Clone(),
		Turns:    make([]TurnResult, 0, turns),
	}
	working := initial.Clone()
	trace.Final = working

	s.log.Info("forward run starting",
		"run_token", token,
		"turns", turns,
		"start_turn", working.Turn)

	for i := 0; i < turns; i++ {
		if err := ctx.Err(); err != nil {
			s.log.Warn("forward run cancelled",
				"run_token", token,
				"completed", i,
				"requested", turns)
			return trace, fmt.Errorf("run %s cancelled after %d of %d turns: %w", token, i, turns, err)
		}
		result, err := s.SimulateTurn(working)
		if err != nil {
			return trace, fmt.Errorf("run %s turn %d: %w", token, working.Turn, err)
		}
		trace.Turns = append(trace.Turns, result)
	}

	s.log.Info("forward run complete",
		"run_token", token,
		"final_turn", working.Turn)
	return trace, nil
}
