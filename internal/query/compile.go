package query

import (
	"fmt"
	"strings"
)

// auditColumns is the column list every compiled query selects, in the
// order the store's row scanner expects.
const auditColumns = "rule_id, turn, seq, status, effects_json, error, created_at"

// Compile renders a filter to a complete parameterized SELECT over the
// audit_records table, scoped to one run. A nil filter selects the whole
// run.
//
// Every query orders by seq so results are deterministic; values are
// always bound as parameters, never interpolated.
func Compile(runToken string, f Filter) (string, []any, error) {
	where, params, err := compileFilter(f)
	if err != nil {
		return "", nil, err
	}

	sql := fmt.Sprintf(
		"SELECT %s FROM audit_records WHERE run_token = ? AND %s ORDER BY seq ASC",
		auditColumns, where)
	return sql, append([]any{runToken}, params...), nil
}

func compileFilter(f Filter) (string, []any, error) {
	if f == nil {
		return "1 = 1", nil, nil
	}

	switch flt := f.(type) {
	case RuleIs:
		return "rule_id = ?", []any{flt.ID}, nil
	case *RuleIs:
		return compileFilter(*flt)
	case StatusIs:
		return "status = ?", []any{string(flt.Status)}, nil
	case *StatusIs:
		return compileFilter(*flt)
	case TurnBetween:
		return compileTurnBetween(flt)
	case *TurnBetween:
		return compileTurnBetween(*flt)
	case HasError:
		return "error != ''", nil, nil
	case *HasError:
		return compileFilter(*flt)
	case And:
		return compileAnd(flt)
	case *And:
		return compileAnd(*flt)
	default:
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

func compileTurnBetween(flt TurnBetween) (string, []any, error) {
	var parts []string
	var params []any
	if flt.From >= 0 {
		parts = append(parts, "turn >= ?")
		params = append(params, flt.From)
	}
	if flt.To >= 0 {
		parts = append(parts, "turn <= ?")
		params = append(params, flt.To)
	}
	if len(parts) == 0 {
		return "1 = 1", nil, nil
	}
	return strings.Join(parts, " AND "), params, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Filters) == 0 {
		return "1 = 1", nil, nil
	}

	var parts []string
	var allParams []any
	for _, inner := range and.Filters {
		sql, params, err := compileFilter(inner)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		allParams = append(allParams, params...)
	}
	return "(" + strings.Join(parts, " AND ") + ")", allParams, nil
}
