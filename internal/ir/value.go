package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface representing one typed parameter value.
// Only Float, Int and Str implement it.
type Value interface {
	value() // Sealed - only these types implement it
	String() string
}

// Float is a floating point parameter value.
type Float float64

func (Float) value() {}

// String renders the shortest representation that round-trips.
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// Int is an integer parameter value.
type Int int64

func (Int) value() {}

func (i Int) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// Str is a categorical (string) parameter value.
type Str string

func (Str) value() {}

func (s Str) String() string {
	return string(s)
}

// Numeric reports the float64 form of v and whether v is numeric.
func Numeric(v Value) (float64, bool) {
	switch val := v.(type) {
	case Float:
		return float64(val), true
	case Int:
		return float64(val), true
	default:
		return 0, false
	}
}

// IsNumeric reports whether v takes part in tolerance-window matching.
func IsNumeric(v Value) bool {
	_, ok := Numeric(v)
	return ok
}

// Equal compares two values. Numeric values compare by magnitude so that
// Int(2) and Float(2) are equal; strings compare exactly.
func Equal(a, b Value) bool {
	na, aok := Numeric(a)
	nb, bok := Numeric(b)
	if aok && bok {
		return na == nb
	}
	if aok != bok {
		return false
	}
	return a.String() == b.String()
}

// ParseValue interprets text the way a scan assignment does: integers stay
// integers, then floats, anything else is a string.
func ParseValue(text string) Value {
	s := strings.TrimSpace(text)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Float(f)
	}
	return Str(strings.Trim(s, `"'`))
}

// FromAny converts a decoded Go value (JSON, YAML, CUE) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case string:
		return Str(val), nil
	case bool:
		if val {
			return Int(1), nil
		}
		return Int(0), nil
	default:
		return nil, fmt.Errorf("unsupported parameter value type %T", v)
	}
}
