package model

import (
	"fmt"
	"math"
	"strconv"
)

// Coerce converts a decoded document value to the representation of kind:
// bool for bool fluents, int64 for int fluents and float64 for real fluents.
func Coerce(kind FluentKind, v interface{}) (interface{}, error) {
	switch kind {
	case FluentBool, "":
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("expected a boolean, got %q", val)
			}
			return b, nil
		default:
			return nil, fmt.Errorf("expected a boolean, got %T", v)
		}
	case FluentInt:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected an integer, got %v", f)
		}
		return int64(f), nil
	case FluentReal:
		return toFloat(v)
	default:
		return nil, fmt.Errorf("invalid fluent kind: %s", kind)
	}
}

// CheckBounds reports an error when a numeric value leaves the fluent's bounds.
func (f *Fluent) CheckBounds(v interface{}) error {
	if !f.ValueKind().Numeric() {
		return nil
	}
	x, err := toFloat(v)
	if err != nil {
		return err
	}
	if f.Lower != nil && x < *f.Lower {
		return fmt.Errorf("value %v of %s is below its lower bound %v", x, f.Name, *f.Lower)
	}
	if f.Upper != nil && x > *f.Upper {
		return fmt.Errorf("value %v of %s is above its upper bound %v", x, f.Name, *f.Upper)
	}
	return nil
}

func toFloat(v interface{}) (float64, error) {
	switch val := v.(type) {
	case int:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case float32:
		return float64(val), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, fmt.Errorf("expected a finite number, got %v", val)
		}
		return val, nil
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", val)
		}
		return toFloat(f)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
