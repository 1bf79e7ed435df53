package models

import (
	"fmt"
	"reflect"
)

// CheckKind identifies one of the closed set of row/parameter
// predicates a condition may declare. The integer codes are the
// stable on-disk representation.
type CheckKind int

const (
	CheckAllParamsInAllRows CheckKind = iota
	CheckAllParamsInAnyRow
	CheckAnyParamInAllRows
	CheckAnyParamInAnyRow
	CheckAnyResult
)

var checkKindNames = map[CheckKind]string{
	CheckAllParamsInAllRows: "ALL_PARAMS_IN_ALL_ROWS",
	CheckAllParamsInAnyRow:  "ALL_PARAMS_IN_ANY_ROW",
	CheckAnyParamInAllRows:  "ANY_PARAM_IN_ALL_ROWS",
	CheckAnyParamInAnyRow:   "ANY_PARAM_IN_ANY_ROW",
	CheckAnyResult:          "ANY_RESULT",
}

func (k CheckKind) String() string {
	if name, ok := checkKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("CheckKind(%d)", int(k))
}

// ParseCheckKind resolves a symbolic check kind name.
func ParseCheckKind(name string) (CheckKind, error) {
	for k, n := range checkKindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown check kind %q", name)
}

// Evaluate applies the predicate to a query result set.
func (k CheckKind) Evaluate(params map[string]any, rows []map[string]any) bool {
	switch k {
	case CheckAllParamsInAllRows:
		for _, row := range rows {
			for p, v := range params {
				if !looseEqual(v, row[p]) {
					return false
				}
			}
		}
		return true
	case CheckAllParamsInAnyRow:
		for _, row := range rows {
			match := true
			for p, v := range params {
				if !looseEqual(v, row[p]) {
					match = false
					break
				}
			}
			if match {
				return true
			}
		}
		return false
	case CheckAnyParamInAllRows:
		for _, row := range rows {
			match := false
			for p, v := range params {
				if looseEqual(v, row[p]) {
					match = true
					break
				}
			}
			if !match {
				return false
			}
		}
		return true
	case CheckAnyParamInAnyRow:
		for _, row := range rows {
			for p, v := range params {
				if looseEqual(v, row[p]) {
					return true
				}
			}
		}
		return false
	case CheckAnyResult:
		return len(rows) > 0
	default:
		return false
	}
}

// Condition is a predicate evaluable against an alert and the ISIM.
type Condition struct {
	Identifier  int64
	Name        string
	Description string
	// Params are constants bound by name into the query.
	Params map[string]any
	// Args map parameter names to alert attribute names; a []string
	// value means "first attribute present wins".
	Args map[string]any
	// Query is an opaque parameterised query passed to the ISIM.
	Query string
	// Checks are conjoined over the query result set.
	Checks []CheckKind
	// Expression is an optional CEL predicate over `params` and
	// `rows`, conjoined with Checks when non-empty.
	Expression string
}

// Parameters binds the condition's arguments against the alert and
// merges them with the constant params. The second return value is
// false when a required argument can't be resolved, in which case the
// condition must be treated as not met.
func (c *Condition) Parameters(alert *Alert) (map[string]any, bool) {
	return bindParameters(c.Params, c.Args, alert)
}

// bindParameters resolves args against the alert's attributes and
// merges the result over the constant params; alert-derived values
// win on key collision.
func bindParameters(params map[string]any, args map[string]any, alert *Alert) (map[string]any, bool) {
	bound := make(map[string]any, len(args))
	for key, value := range args {
		switch v := value.(type) {
		case string:
			attr, ok := alert.Get(v)
			if !ok {
				// Required alert field is missing, abort
				return nil, false
			}
			bound[key] = attr
		case []string:
			found := false
			for _, name := range v {
				if attr, ok := alert.Get(name); ok {
					bound[key] = attr
					found = true
					break
				}
			}
			if !found {
				// None of the optional alert fields is present, abort
				return nil, false
			}
		case []any:
			found := false
			for _, name := range v {
				s, ok := name.(string)
				if !ok {
					continue
				}
				if attr, ok := alert.Get(s); ok {
					bound[key] = attr
					found = true
					break
				}
			}
			if !found {
				return nil, false
			}
		default:
			return nil, false
		}
	}

	merged := make(map[string]any, len(params)+len(bound))
	for k, v := range params {
		merged[k] = v
	}
	for k, v := range bound {
		merged[k] = v
	}
	return merged, true
}

// looseEqual compares two values with JSON number normalisation, so
// an int parameter matches a float64 field coming off the wire.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
