package match

import (
	"encoding/json"
	"reflect"
	"regexp"

	"github.com/ohler55/ojg/jp"

	"github.com/mocknest/mocknest/pkg/endpoint"
)

// matchBody evaluates a body condition: a regex over the raw bytes and/or
// JSONPath equality checks on the parsed JSON body. Invalid patterns and
// non-JSON bodies simply fail to match; they are not errors at serve time
// (rule validation rejects bad patterns at push time).
func matchBody(c *endpoint.BodyCondition, body []byte) bool {
	if c.Pattern != "" {
		re, err := regexp.Compile(c.Pattern)
		if err != nil || !re.Match(body) {
			return false
		}
	}

	if len(c.JSONPath) > 0 {
		var data any
		if err := json.Unmarshal(body, &data); err != nil {
			return false
		}
		for path, expected := range c.JSONPath {
			if !matchJSONPath(path, expected, data) {
				return false
			}
		}
	}

	return true
}

// matchJSONPath evaluates one JSONPath condition. The expected value is
// either a literal to compare against, or {"exists": bool} to assert
// presence or absence.
func matchJSONPath(path string, expected any, data any) bool {
	expr, err := jp.ParseString(path)
	if err != nil {
		return false
	}

	results := expr.Get(data)

	if wantExists, ok := existenceCheck(expected); ok {
		return wantExists == (len(results) > 0)
	}

	for _, got := range results {
		if valuesEqual(got, expected) {
			return true
		}
	}
	return false
}

// existenceCheck reports whether expected is an {"exists": bool} object
// and, if so, the asserted value.
func existenceCheck(expected any) (bool, bool) {
	m, ok := expected.(map[string]any)
	if !ok || len(m) != 1 {
		return false, false
	}
	b, ok := m["exists"].(bool)
	return b, ok
}

// valuesEqual compares a JSONPath result against an expected literal,
// coercing numeric types so 1 matches 1.0.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == expected
	}
	if reflect.DeepEqual(actual, expected) {
		return true
	}
	an, aok := toFloat64(actual)
	en, eok := toFloat64(expected)
	return aok && eok && an == en
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
