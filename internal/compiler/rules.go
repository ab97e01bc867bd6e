// Package compiler turns CUE rule files into registry-ready rules.
//
// Rule files declare a top-level `rules` list. Each entry carries the
// rule's id, priority, provenance, conditions, and effects. The compiler
// resolves wire names (operators, actions, value types) to their closed
// enums and reports the first structural problem with source position;
// cross-rule checks (duplicate IDs) stay in the registry, which owns
// that invariant regardless of where rules come from.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/retrograde-sim/retrograde/internal/rule"
	"github.com/retrograde-sim/retrograde/internal/world"
)

// CompileRules parses a CUE value holding a `rules` list into rules.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rules: [ { id: "r1", ... } ]`)
//	rules, err := compiler.CompileRules(v)
func CompileRules(v cue.Value) ([]rule.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	listVal := v.LookupPath(cue.ParsePath("rules"))
	if !listVal.Exists() {
		return nil, &CompileError{
			Field:   "rules",
			Message: "rules list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "rules",
			Message: "rules must be a list",
			Pos:     listVal.Pos(),
		}
	}

	var rules []rule.Rule
	for iter.Next() {
		r, err := CompileRule(iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// CompileRule parses one CUE rule struct.
func CompileRule(v cue.Value) (rule.Rule, error) {
	if err := v.Err(); err != nil {
		return rule.Rule{}, formatCUEError(err)
	}

	var r rule.Rule

	id, err := requiredString(v, "id")
	if err != nil {
		return r, err
	}
	r.ID = id

	r.Description, _ = optionalString(v, "description")
	r.Source, _ = optionalString(v, "source")

	// Enabled defaults to true; a rule file should not have to say so.
	r.Enabled = true
	if enabledVal := v.LookupPath(cue.ParsePath("enabled")); enabledVal.Exists() {
		enabled, err := enabledVal.Bool()
		if err != nil {
			return r, &CompileError{
				Field:   fieldPath(r.ID, "enabled"),
				Message: "enabled must be a bool",
				Pos:     enabledVal.Pos(),
			}
		}
		r.Enabled = enabled
	}

	if prioVal := v.LookupPath(cue.ParsePath("priority")); prioVal.Exists() {
		prio, err := prioVal.Int64()
		if err != nil {
			return r, &CompileError{
				Field:   fieldPath(r.ID, "priority"),
				Message: "priority must be an integer",
				Pos:     prioVal.Pos(),
			}
		}
		r.Priority = int(prio)
	}

	r.Conditions, err = parseConditions(r.ID, v)
	if err != nil {
		return r, err
	}
	r.Effects, err = parseEffects(r.ID, v)
	if err != nil {
		return r, err
	}

	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// parseConditions extracts the optional conditions list.
func parseConditions(ruleID string, v cue.Value) ([]rule.Condition, error) {
	condsVal := v.LookupPath(cue.ParsePath("conditions"))
	if !condsVal.Exists() {
		return nil, nil
	}
	iter, err := condsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   fieldPath(ruleID, "conditions"),
			Message: "conditions must be a list",
			Pos:     condsVal.Pos(),
		}
	}

	var conds []rule.Condition
	for i := 0; iter.Next(); i++ {
		cv := iter.Value()
		field := fieldPath(ruleID, fmt.Sprintf("conditions[%d]", i))

		pathStr, err := requiredString(cv, "path")
		if err != nil {
			return nil, err
		}
		path, perr := world.ParsePath(pathStr)
		if perr != nil {
			return nil, &CompileError{
				Field:   field + ".path",
				Message: perr.Error(),
				Pos:     cv.Pos(),
			}
		}

		opStr, err := requiredString(cv, "op")
		if err != nil {
			return nil, err
		}
		op, oerr := rule.ParseOperator(opStr)
		if oerr != nil {
			return nil, &CompileError{
				Field:   field + ".op",
				Message: oerr.Error(),
				Pos:     cv.Pos(),
			}
		}

		scalar, err := parseScalar(field, cv)
		if err != nil {
			return nil, err
		}

		orGroup, _ := optionalString(cv, "or_group")
		conds = append(conds, rule.Condition{
			Path:    path,
			Op:      op,
			Value:   scalar,
			OrGroup: orGroup,
		})
	}
	return conds, nil
}

// parseScalar reads the condition's value with its declared type.
// value_type defaults to float.
func parseScalar(field string, cv cue.Value) (rule.Scalar, error) {
	typeStr, _ := optionalString(cv, "value_type")
	vt, err := rule.ParseValueType(typeStr)
	if err != nil {
		return rule.Scalar{}, &CompileError{
			Field:   field + ".value_type",
			Message: err.Error(),
			Pos:     cv.Pos(),
		}
	}

	valueVal := cv.LookupPath(cue.ParsePath("value"))
	if !valueVal.Exists() {
		return rule.Scalar{}, &CompileError{
			Field:   field + ".value",
			Message: "value is required",
			Pos:     cv.Pos(),
		}
	}

	switch vt {
	case rule.TypeBool:
		b, err := valueVal.Bool()
		if err != nil {
			return rule.Scalar{}, &CompileError{
				Field:   field + ".value",
				Message: "value must be a bool",
				Pos:     valueVal.Pos(),
			}
		}
		return rule.BoolScalar(b), nil
	case rule.TypeInt:
		n, err := valueVal.Int64()
		if err != nil {
			return rule.Scalar{}, &CompileError{
				Field:   field + ".value",
				Message: "value must be an integer",
				Pos:     valueVal.Pos(),
			}
		}
		return rule.IntScalar(n), nil
	default:
		f, err := valueVal.Float64()
		if err != nil {
			return rule.Scalar{}, &CompileError{
				Field:   field + ".value",
				Message: "value must be a number",
				Pos:     valueVal.Pos(),
			}
		}
		return rule.FloatScalar(f), nil
	}
}

// parseEffects extracts the optional effects list.
func parseEffects(ruleID string, v cue.Value) ([]rule.Effect, error) {
	effsVal := v.LookupPath(cue.ParsePath("effects"))
	if !effsVal.Exists() {
		return nil, nil
	}
	iter, err := effsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   fieldPath(ruleID, "effects"),
			Message: "effects must be a list",
			Pos:     effsVal.Pos(),
		}
	}

	var effs []rule.Effect
	for i := 0; iter.Next(); i++ {
		ev := iter.Value()
		field := fieldPath(ruleID, fmt.Sprintf("effects[%d]", i))

		actionStr, err := requiredString(ev, "action")
		if err != nil {
			return nil, err
		}
		action, aerr := rule.ParseAction(actionStr)
		if aerr != nil {
			return nil, &CompileError{
				Field:   field + ".action",
				Message: aerr.Error(),
				Pos:     ev.Pos(),
			}
		}

		targetStr, err := requiredString(ev, "target")
		if err != nil {
			return nil, err
		}
		target, terr := world.ParsePath(targetStr)
		if terr != nil {
			return nil, &CompileError{
				Field:   field + ".target",
				Message: terr.Error(),
				Pos:     ev.Pos(),
			}
		}

		valueVal := ev.LookupPath(cue.ParsePath("value"))
		if !valueVal.Exists() {
			return nil, &CompileError{
				Field:   field + ".value",
				Message: "value is required",
				Pos:     ev.Pos(),
			}
		}
		value, verr := valueVal.Float64()
		if verr != nil {
			return nil, &CompileError{
				Field:   field + ".value",
				Message: "value must be a number",
				Pos:     valueVal.Pos(),
			}
		}

		effs = append(effs, rule.Effect{Action: action, Target: target, Value: value})
	}
	return effs, nil
}

// LoadRuleFile compiles one .cue rule file. The basename becomes the
// default rule source unless the rule declares one.
func LoadRuleFile(path string) ([]rule.Rule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rule file %s: %w", path, err)
	}
	ctx := cuecontext.New()
	rules, err := CompileRules(ctx.CompileBytes(src, cue.Filename(path)))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", path, err)
	}
	name := filepath.Base(path)
	for i := range rules {
		if rules[i].Source == "" {
			rules[i].Source = name
		}
	}
	return rules, nil
}

// LoadRuleDir compiles every .cue file in a directory, in sorted
// filename order, and returns the concatenated rules. Files get their
// basename as the default rule source unless the rule declares one.
func LoadRuleDir(dir string) ([]rule.Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load rule dir %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".cue") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var rules []rule.Rule
	for _, name := range names {
		fileRules, err := LoadRuleFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		rules = append(rules, fileRules...)
	}
	return rules, nil
}

func requiredString(v cue.Value, name string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(name))
	if !fieldVal.Exists() {
		return "", &CompileError{
			Field:   name,
			Message: name + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", &CompileError{
			Field:   name,
			Message: name + " must be a string",
			Pos:     fieldVal.Pos(),
		}
	}
	return s, nil
}

func optionalString(v cue.Value, name string) (string, bool) {
	fieldVal := v.LookupPath(cue.ParsePath(name))
	if !fieldVal.Exists() {
		return "", false
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", false
	}
	return s, true
}

func fieldPath(ruleID, field string) string {
	if ruleID == "" {
		return field
	}
	return ruleID + "." + field
}
