package harness

import (
	"fmt"
	"math"

	"github.com/retrograde-sim/retrograde/internal/engine"
	"github.com/retrograde-sim/retrograde/internal/sim"
)

// evaluateAssertions checks every scenario assertion against the trace,
// appending failures to the result. All assertions run; the report shows
// every miss, not just the first.
func evaluateAssertions(scenario *Scenario, trace *sim.Trace, result *Result) {
	for i, a := range scenario.Assertions {
		if msg := evaluateAssertion(a, trace); msg != "" {
			result.Failures = append(result.Failures, fmt.Sprintf("assertions[%d] (%s): %s", i, a.Type, msg))
		}
	}
}

func evaluateAssertion(a Assertion, trace *sim.Trace) string {
	switch a.Type {
	case AssertFinalOverlay:
		got, ok := trace.Final.Overlays[a.Path]
		if !ok {
			return fmt.Sprintf("overlay %q not present in final state", a.Path)
		}
		return compareValue(a, got)

	case AssertFinalVariable:
		got, ok := trace.Final.Variables[a.Path]
		if !ok {
			return fmt.Sprintf("variable %q not present in final state", a.Path)
		}
		return compareValue(a, got)

	case AssertAuditContains:
		want := engine.Status(a.Status)
		if want == "" {
			want = engine.StatusFired
		}
		for _, tr := range trace.Turns {
			for _, rec := range tr.Audit.Records {
				if rec.RuleID == a.Rule && rec.Status == want {
					return ""
				}
			}
		}
		return fmt.Sprintf("rule %q never audited with status %q", a.Rule, want)

	case AssertAuditCount:
		count := 0
		for _, tr := range trace.Turns {
			for _, rec := range tr.Audit.Records {
				if rec.RuleID == a.Rule {
					count++
				}
			}
		}
		if count != a.Count {
			return fmt.Sprintf("rule %q audited %d times, want %d", a.Rule, count, a.Count)
		}
		return ""

	case AssertTraceLength:
		if len(trace.Turns) != a.Count {
			return fmt.Sprintf("trace holds %d turns, want %d", len(trace.Turns), a.Count)
		}
		return ""

	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
}

func compareValue(a Assertion, got float64) string {
	tol := a.Tolerance
	if math.Abs(got-a.Value) > tol {
		return fmt.Sprintf("%s = %v, want %v (tolerance %v)", a.Path, got, a.Value, tol)
	}
	return ""
}
