package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario. Scenarios validate
// simulation behavior by running a number of turns over an initial
// state and asserting on the final state and audit trail.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Initial is the starting world state.
	Initial InitialState `yaml:"initial"`

	// Rules defines rules inline, in the same shape the CUE files use.
	Rules []RuleSpec `yaml:"rules,omitempty"`

	// RuleFiles lists CUE rule files to compile and load. Paths are
	// relative to the scenario file location.
	RuleFiles []string `yaml:"rule_files,omitempty"`

	// Decay configures the linear decay hook. Nil disables decay.
	Decay *DecaySpec `yaml:"decay,omitempty"`

	// Gravity configures the anchor gravity hook. Nil disables it.
	Gravity *GravitySpec `yaml:"gravity,omitempty"`

	// Turns is the number of turns to simulate.
	Turns int `yaml:"turns"`

	// Assertions validate the final state and audit trail.
	// Supported types: final_overlay, final_variable, audit_contains,
	// audit_count, trace_length.
	Assertions []Assertion `yaml:"assertions"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, defaults to "test-run-default" for golden comparison.
	RunToken string `yaml:"run_token,omitempty"`
}

// InitialState is the scenario's starting world state.
type InitialState struct {
	Turn      int64              `yaml:"turn,omitempty"`
	Overlays  map[string]float64 `yaml:"overlays,omitempty"`
	Variables map[string]float64 `yaml:"variables,omitempty"`
}

// RuleSpec is the YAML shape of an inline rule.
type RuleSpec struct {
	ID          string          `yaml:"id"`
	Description string          `yaml:"description,omitempty"`
	Priority    int             `yaml:"priority,omitempty"`
	Source      string          `yaml:"source,omitempty"`
	Enabled     *bool           `yaml:"enabled,omitempty"`
	Conditions  []ConditionSpec `yaml:"conditions,omitempty"`
	Effects     []EffectSpec    `yaml:"effects,omitempty"`
}

// ConditionSpec is the YAML shape of one condition.
type ConditionSpec struct {
	Path      string  `yaml:"path"`
	Op        string  `yaml:"op"`
	Value     float64 `yaml:"value"`
	ValueType string  `yaml:"value_type,omitempty"`
	OrGroup   string  `yaml:"or_group,omitempty"`
}

// EffectSpec is the YAML shape of one effect.
type EffectSpec struct {
	Action string  `yaml:"action"`
	Target string  `yaml:"target"`
	Value  float64 `yaml:"value"`
}

// DecaySpec configures the linear decay hook.
type DecaySpec struct {
	Rate  float64 `yaml:"rate"`
	Floor float64 `yaml:"floor,omitempty"`
}

// GravitySpec configures the anchor gravity hook.
type GravitySpec struct {
	Anchors  map[string]float64 `yaml:"anchors"`
	Strength float64            `yaml:"strength"`
}

// Assertion validates the final state or audit trail.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_overlay": final overlay value at Path equals Value
	// - "final_variable": final variable value at Path equals Value
	// - "audit_contains": Rule appears in the audit with Status
	// - "audit_count": Rule appears exactly Count times
	// - "trace_length": the trace holds exactly Count turns
	Type string `yaml:"type"`

	// Path is the overlay or variable name (final_* assertions).
	Path string `yaml:"path,omitempty"`

	// Value is the expected value (final_* assertions).
	Value float64 `yaml:"value,omitempty"`

	// Tolerance widens the value comparison. Zero means exact.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Rule is the rule ID (audit assertions).
	Rule string `yaml:"rule,omitempty"`

	// Status is the expected audit status (audit_contains).
	// Defaults to "fired".
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of occurrences (audit_count,
	// trace_length).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalOverlay  = "final_overlay"
	AssertFinalVariable = "final_variable"
	AssertAuditContains = "audit_contains"
	AssertAuditCount    = "audit_count"
	AssertTraceLength   = "trace_length"
)

// LoadScenario reads and parses a scenario YAML file. Returns an error
// if the file doesn't exist, is malformed, contains unknown fields
// (typos), or is missing required fields. Rule file paths are resolved
// relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, rf := range scenario.RuleFiles {
		if !filepath.IsAbs(rf) {
			scenario.RuleFiles[i] = filepath.Join(base, rf)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Rules) == 0 && len(s.RuleFiles) == 0 {
		return fmt.Errorf("rules or rule_files is required")
	}
	if s.Turns <= 0 {
		return fmt.Errorf("turns must be positive")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, rf := range s.RuleFiles {
		if _, err := os.Stat(rf); os.IsNotExist(err) {
			return fmt.Errorf("rule file not found: %s", rf)
		}
	}

	for i, r := range s.Rules {
		if r.ID == "" {
			return fmt.Errorf("rules[%d]: id is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalOverlay, AssertFinalVariable:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertAuditContains:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for audit_contains", index)
		}
	case AssertAuditCount:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for audit_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for audit_count", index)
		}
	case AssertTraceLength:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_length", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
