package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/retrograde-sim/retrograde/internal/sim"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// TraceSnapshot captures the trace of a scenario execution. All fields
// serialize through canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	RunToken     string
	Trace        *sim.Trace
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for
// canonical JSON serialization. Required because world.MarshalCanonical
// only handles world types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	turns := make([]any, len(s.Trace.Turns))
	for i, tr := range s.Trace.Turns {
		deltaMap := make(map[string]any, len(tr.Delta))
		for path, ch := range tr.Delta {
			deltaMap[path] = ch
		}
		fired := tr.Audit.Fired()
		if fired == nil {
			fired = []string{}
		}
		turns[i] = map[string]any{
			"turn":  tr.Turn,
			"fired": fired,
			"delta": deltaMap,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"run_token":     s.RunToken,
		"turns":         turns,
		"final": map[string]any{
			"turn":      s.Trace.Final.Turn,
			"overlays":  floatMap(s.Trace.Final.Overlays),
			"variables": floatMap(s.Trace.Final.Variables),
		},
	}
}

func floatMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RunWithGolden executes a scenario and compares the trace against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Golden files serve as the source of truth for expected trace
// behavior. Returns error if scenario execution fails; trace mismatch
// fails the test via goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     result.Trace.RunToken,
		Trace:        result.Trace,
	}
	traceJSON, err := world.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
