package rule

import (
	"fmt"
	"math"

	"github.com/retrograde-sim/retrograde/internal/world"
)

// Operator is the closed set of condition comparison operators.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
)

// String returns the wire name of the operator.
func (op Operator) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpGt:
		return "gt"
	case OpGe:
		return "ge"
	case OpLt:
		return "lt"
	case OpLe:
		return "le"
	default:
		return fmt.Sprintf("operator(%d)", int(op))
	}
}

// ParseOperator maps a wire name to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch s {
	case "eq":
		return OpEq, nil
	case "ne":
		return OpNe, nil
	case "gt":
		return OpGt, nil
	case "ge":
		return OpGe, nil
	case "lt":
		return OpLt, nil
	case "le":
		return OpLe, nil
	default:
		return 0, fmt.Errorf("unknown operator %q (want eq, ne, gt, ge, lt, le)", s)
	}
}

// Action is the closed set of effect actions.
type Action int

const (
	ActionSetVariable Action = iota
	ActionAdjustVariable
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionSetVariable:
		return "set_variable"
	case ActionAdjustVariable:
		return "adjust_variable"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// ParseAction maps a wire name to an Action.
func ParseAction(s string) (Action, error) {
	switch s {
	case "set_variable":
		return ActionSetVariable, nil
	case "adjust_variable":
		return ActionAdjustVariable, nil
	default:
		return 0, fmt.Errorf("unknown action %q (want set_variable or adjust_variable)", s)
	}
}

// ValueType declares how a condition value compares against state.
type ValueType int

const (
	TypeFloat ValueType = iota
	TypeInt
	TypeBool
)

// String returns the wire name of the value type.
func (vt ValueType) String() string {
	switch vt {
	case TypeFloat:
		return "float"
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("value_type(%d)", int(vt))
	}
}

// ParseValueType maps a wire name to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch s {
	case "float", "":
		return TypeFloat, nil
	case "int":
		return TypeInt, nil
	case "bool":
		return TypeBool, nil
	default:
		return 0, fmt.Errorf("unknown value_type %q (want float, int, bool)", s)
	}
}

// Scalar is a typed comparison value. The declared type disambiguates
// comparison semantics: ints compare exactly, bools treat any non-zero
// state value as true, floats compare directly.
type Scalar struct {
	Type  ValueType
	Float float64
	Int   int64
	Bool  bool
}

// FloatScalar builds a float-typed scalar.
func FloatScalar(v float64) Scalar { return Scalar{Type: TypeFloat, Float: v} }

// IntScalar builds an int-typed scalar.
func IntScalar(v int64) Scalar { return Scalar{Type: TypeInt, Int: v} }

// BoolScalar builds a bool-typed scalar.
func BoolScalar(v bool) Scalar { return Scalar{Type: TypeBool, Bool: v} }

// Compare evaluates `state <op> scalar` for a resolved state value.
// Bool scalars support only eq and ne; ordering a bool is a type error.
func (sc Scalar) Compare(state float64, op Operator) (bool, error) {
	switch sc.Type {
	case TypeBool:
		truthy := state != 0
		switch op {
		case OpEq:
			return truthy == sc.Bool, nil
		case OpNe:
			return truthy != sc.Bool, nil
		default:
			return false, fmt.Errorf("operator %s is not defined for bool values", op)
		}
	case TypeInt:
		return compareFloats(state, float64(sc.Int), op), nil
	case TypeFloat:
		return compareFloats(state, sc.Float, op), nil
	default:
		return false, fmt.Errorf("unknown value type %d", int(sc.Type))
	}
}

func compareFloats(a, b float64, op Operator) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	default:
		return false
	}
}

// Condition is one comparison against a state path.
//
// Conditions combine with implicit AND. Conditions sharing a non-empty
// OrGroup form a disjunction: the group holds if any member holds, and
// the group as a whole ANDs with everything else. An unresolved path
// makes the condition false (with a recorded warning), never true.
type Condition struct {
	Path    world.Path
	Op      Operator
	Value   Scalar
	OrGroup string
}

// Effect is one mutation of a state path.
//
// ActionSetVariable overwrites the target (creating it if absent;
// overlay targets clamp). ActionAdjustVariable adds Value to an existing
// target and is an error when the target is missing.
type Effect struct {
	Action Action
	Target world.Path
	Value  float64
}

// Rule is a declarative causal rule.
type Rule struct {
	// ID is unique within a registry.
	ID string

	// Description explains the causal relationship in prose.
	Description string

	// Priority orders evaluation: higher first, ties broken by ID.
	Priority int

	// Source is a provenance tag (file, author, generator).
	Source string

	// Enabled rules participate in simulation; disabled rules stay
	// registered for fingerprint lookups but never fire.
	Enabled bool

	// Conditions must all hold for the rule to fire (OR groups aside).
	// An empty list matches unconditionally.
	Conditions []Condition

	// Effects apply in order; later effects observe earlier mutations.
	// An empty list is legal but audited as inert.
	Effects []Effect
}

// Unconditional reports whether the rule matches every state.
func (r Rule) Unconditional() bool {
	return len(r.Conditions) == 0
}

// Inert reports whether firing the rule mutates nothing.
func (r Rule) Inert() bool {
	return len(r.Effects) == 0
}

// Validate checks the rule's internal consistency: non-empty ID and
// syntactically valid paths. Path existence is an evaluation-time
// concern, not a load-time one.
func (r Rule) Validate() error {
	if r.ID == "" {
		return &world.ValidationError{Op: "rule", Field: "id", Message: "rule id is required"}
	}
	for i, c := range r.Conditions {
		if c.Path.Name == "" {
			return &world.ValidationError{
				Op:      "rule",
				Field:   fmt.Sprintf("%s.conditions[%d].variable_path", r.ID, i),
				Message: "empty path",
			}
		}
		if math.IsNaN(c.Value.Float) {
			return &world.ValidationError{
				Op:      "rule",
				Field:   fmt.Sprintf("%s.conditions[%d].value", r.ID, i),
				Message: "NaN comparison value",
			}
		}
	}
	for i, e := range r.Effects {
		if e.Target.Name == "" {
			return &world.ValidationError{
				Op:      "rule",
				Field:   fmt.Sprintf("%s.effects[%d].target_path", r.ID, i),
				Message: "empty path",
			}
		}
		if math.IsNaN(e.Value) {
			return &world.ValidationError{
				Op:      "rule",
				Field:   fmt.Sprintf("%s.effects[%d].value", r.ID, i),
				Message: "NaN effect value",
			}
		}
	}
	return nil
}
