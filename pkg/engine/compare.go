package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formstate/pkg/item"
)

// evalCondition applies one enablement condition to the referenced question's
// current value. A repeating answer matches when any of its values does.
func evalCondition(cond item.Condition, actual any) bool {
	values, ok := actual.([]any)
	if !ok {
		values = []any{actual}
	}
	for _, v := range values {
		if conditionHolds(cond.Operator, v, cond.Value) {
			return true
		}
	}
	return false
}

func conditionHolds(op string, actual, expected any) bool {
	switch op {
	case "exists":
		want := true
		if b, ok := expected.(bool); ok {
			want = b
		}
		return (actual != nil) == want
	case "=", "==":
		return looseEqual(actual, expected)
	case "!=":
		return actual != nil && !looseEqual(actual, expected)
	case ">", ">=", "<", "<=":
		af, aok := numeric(actual)
		bf, bok := numeric(expected)
		if !aok || !bok {
			return false
		}
		switch op {
		case ">":
			return af > bf
		case ">=":
			return af >= bf
		case "<":
			return af < bf
		default:
			return af <= bf
		}
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return af == bf
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

func valueInSet(value any, set []any) bool {
	for _, candidate := range set {
		if looseEqual(value, candidate) {
			return true
		}
	}
	return false
}
