package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface for filter and having operands.
// Only Null, String, Number, Bool and List implement it.
type Value interface {
	irValue()
}

// Null is an absent operand (EXISTS / NOT EXISTS filters carry no value).
type Null struct{}

func (Null) irValue() {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string operand.
type String string

func (String) irValue() {}

// Number is a numeric operand. Telemetry attributes carry float64 values
// (durations, status codes, ratios), so Number is not restricted to integers.
type Number float64

func (Number) irValue() {}

// MarshalJSON renders integral numbers without a fraction or exponent.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(formatNumber(float64(n))), nil
}

// Bool is a boolean operand.
type Bool bool

func (Bool) irValue() {}

// List is a multi-value operand used by IN, NOT IN and BETWEEN.
type List []Value

func (List) irValue() {}

// Strings builds a List of String values.
func Strings(vals ...string) List {
	l := make(List, len(vals))
	for i, v := range vals {
		l[i] = String(v)
	}
	return l
}

// FromAny converts a decoded JSON value into a Value.
// Accepts the output of encoding/json with or without UseNumber.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Number(f), nil
	case []string:
		return Strings(val...), nil
	case []any:
		l := make(List, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			l[i] = ev
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// UnmarshalValue decodes JSON bytes into a Value.
// Objects are rejected; filter operands are scalars or flat lists.
func UnmarshalValue(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Null{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if _, ok := raw.(map[string]any); ok {
		return nil, fmt.Errorf("decode value: objects are not valid operands")
	}
	return FromAny(raw)
}

// Text renders v the way it appears in a filter expression without quoting.
func Text(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case String:
		return string(val)
	case Number:
		return formatNumber(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Text(elem)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal reports whether a and b hold the same operand.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// IsEmpty reports whether v carries no operand: null, an empty string or an empty list.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case String:
		return val == ""
	case List:
		return len(val) == 0
	default:
		return false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
