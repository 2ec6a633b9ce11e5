package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Value is a sealed interface over the column values a row can carry.
// Only Null, String, Int, and Bool implement it.
// NO Float - floats are forbidden (breaks determinism of keys and records).
type Value interface {
	value() // Sealed - only these types implement it
}

// Null is an absent column value.
type Null struct{}

func (Null) value() {}

// MarshalJSON renders Null as JSON null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string column value.
type String string

func (String) value() {}

// Int is an integer column value. Always int64, never float64.
type Int int64

func (Int) value() {}

// Bool is a boolean column value.
type Bool bool

func (Bool) value() {}

// IsNull reports whether v is absent. A nil interface counts as null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// EqualValues compares two values by type and content.
// Null equals Null (and nil), matching equality-delete semantics on the
// write side: the value recorded is exactly the value observed.
func EqualValues(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	return a == b
}

// ValueOf converts a decoded Go value into a Value.
//
// Accepted inputs: nil, Value, string, bool, int, int64, json.Number.
// json.Number must be integral; anything with a fraction or exponent is
// rejected.
func ValueOf(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// UnmarshalValue decodes a single JSON scalar into a Value.
// null decodes to Null; arrays, objects, and floats are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ValueOf(raw)
}

// UnmarshalValues decodes a JSON array of scalars, such as a stored record,
// into positional values.
func UnmarshalValues(data []byte) ([]Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	values := make([]Value, len(raw))
	for i, elem := range raw {
		v, err := ValueOf(elem)
		if err != nil {
			return nil, fmt.Errorf("values[%d]: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// FormatValue renders a value for partition paths and diagnostics.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(val)
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}
