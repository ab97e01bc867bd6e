package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/retrograde-sim/retrograde/internal/compiler"
	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/sim"
	"github.com/retrograde-sim/retrograde/internal/store"
	"github.com/retrograde-sim/retrograde/internal/testutil"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// Result holds the outcome of one scenario run.
type Result struct {
	// Passed is true when every assertion held.
	Passed bool

	// Failures lists assertion failures in evaluation order.
	Failures []string

	// Trace is the full forward trace of the run.
	Trace *sim.Trace

	// CycleWarnings from static analysis of the loaded rule set.
	CycleWarnings []compiler.CycleWarning
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with
// deterministic helpers (fixed run token, pinned timestamps) so results
// reproduce exactly.
//
// Execution flow:
//  1. Load rules (inline and CUE files) into a fresh registry
//  2. Build the initial state and validate it
//  3. Simulate the requested turns, persisting snapshots and audit
//  4. Evaluate assertions against the final state and audit trail
func Run(scenario *Scenario) (*Result, error) {
	rules, err := loadRules(scenario)
	if err != nil {
		return nil, err
	}

	registry := rule.NewRegistry()
	if err := registry.Load(rules); err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	// Suppress logs in tests.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := testutil.NewFixedTokenGenerator(scenario.RunToken)
	token, _ := tokens.NewToken()

	opts := []sim.Option{
		sim.WithTokenGenerator(tokens),
		sim.WithTimeSource(testutil.FixedTime()),
		sim.WithAuditSink(st.AuditSink(token, logger)),
		sim.WithLogger(logger),
	}
	if scenario.Decay != nil {
		opts = append(opts, sim.WithDecay(sim.LinearDecay{
			Rate:  scenario.Decay.Rate,
			Floor: scenario.Decay.Floor,
		}))
	}
	if scenario.Gravity != nil {
		opts = append(opts, sim.WithGravity(sim.AnchorGravity{
			Anchors:  scenario.Gravity.Anchors,
			Strength: scenario.Gravity.Strength,
		}))
	}
	simulator := sim.New(registry, opts...)

	initial := buildInitialState(scenario.Initial)
	ctx := context.Background()

	trace, err := simulator.SimulateForward(ctx, initial, scenario.Turns)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	// Persist snapshots so backward walks over the run have ground
	// truth. The initial state is turn 0's snapshot.
	if err := st.WriteSnapshot(ctx, token, trace.Initial); err != nil {
		return nil, err
	}
	replay := trace.Initial.Clone()
	for _, tr := range trace.Turns {
		for path, ch := range tr.Delta {
			replay.Set(world.MustParsePath(path), ch.New, world.Bounds{Min: -1e308, Max: 1e308})
		}
		replay.Turn = tr.Turn + 1
		if err := st.WriteSnapshot(ctx, token, replay); err != nil {
			return nil, err
		}
	}

	result := &Result{
		Trace:         trace,
		CycleWarnings: compiler.AnalyzeCycles(rules),
	}
	evaluateAssertions(scenario, trace, result)
	result.Passed = len(result.Failures) == 0
	return result, nil
}

// loadRules collects the scenario's inline rules and CUE rule files.
func loadRules(scenario *Scenario) ([]rule.Rule, error) {
	var rules []rule.Rule
	for i, spec := range scenario.Rules {
		r, err := buildRule(spec)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}
	for _, rf := range scenario.RuleFiles {
		fileRules, err := compiler.LoadRuleFile(rf)
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}
	return rules, nil
}

// buildRule converts an inline YAML rule spec to a rule.
func buildRule(spec RuleSpec) (rule.Rule, error) {
	r := rule.Rule{
		ID:          spec.ID,
		Description: spec.Description,
		Priority:    spec.Priority,
		Source:      spec.Source,
		Enabled:     true,
	}
	if spec.Enabled != nil {
		r.Enabled = *spec.Enabled
	}
	if r.Source == "" {
		r.Source = "inline"
	}

	for i, c := range spec.Conditions {
		path, err := world.ParsePath(c.Path)
		if err != nil {
			return r, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		op, err := rule.ParseOperator(c.Op)
		if err != nil {
			return r, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		vt, err := rule.ParseValueType(c.ValueType)
		if err != nil {
			return r, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		var scalar rule.Scalar
		switch vt {
		case rule.TypeInt:
			scalar = rule.IntScalar(int64(c.Value))
		case rule.TypeBool:
			scalar = rule.BoolScalar(c.Value != 0)
		default:
			scalar = rule.FloatScalar(c.Value)
		}
		r.Conditions = append(r.Conditions, rule.Condition{
			Path:    path,
			Op:      op,
			Value:   scalar,
			OrGroup: c.OrGroup,
		})
	}

	for i, e := range spec.Effects {
		target, err := world.ParsePath(e.Target)
		if err != nil {
			return r, fmt.Errorf("effects[%d]: %w", i, err)
		}
		action, err := rule.ParseAction(e.Action)
		if err != nil {
			return r, fmt.Errorf("effects[%d]: %w", i, err)
		}
		r.Effects = append(r.Effects, rule.Effect{
			Action: action,
			Target: target,
			Value:  e.Value,
		})
	}

	return r, r.Validate()
}

func buildInitialState(init InitialState) *world.State {
	s := world.NewState()
	s.Turn = init.Turn
	for k, v := range init.Overlays {
		s.Overlays[k] = v
	}
	for k, v := range init.Variables {
		s.Variables[k] = v
	}
	return s
}
