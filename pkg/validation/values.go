package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/goliatone/go-formstate/pkg/item"
)

// conforms checks that a value matches the item's declared type. It is
// deliberately tolerant of the representations values take after a round trip
// through JSON or YAML documents (numbers as float64, dates as strings).
func conforms(t item.Type, value any) (string, bool) {
	switch t {
	case item.TypeBoolean:
		if _, ok := value.(bool); ok {
			return "", true
		}
		return fmt.Sprintf("expected a boolean, got %T", value), false
	case item.TypeInteger:
		f, ok := asNumber(value)
		if !ok || f != math.Trunc(f) {
			return fmt.Sprintf("expected an integer, got %v", value), false
		}
		return "", true
	case item.TypeDecimal:
		if _, ok := asNumber(value); !ok {
			return fmt.Sprintf("expected a number, got %v", value), false
		}
		return "", true
	case item.TypeQuantity:
		switch v := value.(type) {
		case item.Quantity, *item.Quantity:
			return "", true
		default:
			if _, ok := asNumber(v); ok {
				return "", true
			}
			return fmt.Sprintf("expected a quantity, got %T", value), false
		}
	case item.TypeDate, item.TypeDateTime:
		switch v := value.(type) {
		case time.Time:
			return "", true
		case string:
			if _, err := dateparse.ParseAny(v); err != nil {
				return fmt.Sprintf("unparseable date %q", v), false
			}
			return "", true
		default:
			return fmt.Sprintf("expected a date, got %T", value), false
		}
	case item.TypeString, item.TypeText:
		if _, ok := value.(string); ok {
			return "", true
		}
		return fmt.Sprintf("expected text, got %T", value), false
	default:
		// choice, attachment, and open-ended types accept any value; the
		// option-set check constrains choices separately.
		return "", true
	}
}

func asNumber(value any) (float64, bool) {
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
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
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

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := numeric(a); ok {
		if bf, ok := numeric(b); ok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

func numeric(value any) (float64, bool) {
	if f, ok := asNumber(value); ok {
		return f, true
	}
	if s, ok := value.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
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
