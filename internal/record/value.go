package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Value is a sealed interface over the value types a record field may hold.
// Only Null, String, Number, Bool, List and Object implement it.
type Value interface {
	recordValue()
}

// Null is an explicit JSON null. Absent fields are reported as Null too.
type Null struct{}

func (Null) recordValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String is a string field value.
type String string

func (String) recordValue() {}

// Number is a numeric field value. Snapshots mix integers and timings in
// milliseconds, so every number is held as float64.
type Number float64

func (Number) recordValue() {}

// MarshalJSON implements json.Marshaler for Number.
// Integral values are written without a fractional part.
func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported number: %v", f)
	}
	return json.Marshal(f)
}

// Bool is a boolean field value.
type Bool bool

func (Bool) recordValue() {}

// List is an ordered list of values, used by set-like fields.
type List []Value

func (List) recordValue() {}

// MarshalJSON implements json.Marshaler for List.
func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Object is a nested mapping. Snapshots are flat, but some producers emit
// grouped values that are compared as a whole.
type Object map[string]Value

func (Object) recordValue() {}

// SortedKeys returns the object keys in lexical order.
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalValue(o[k])
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalValue marshals a Value to JSON. A nil Value marshals as null.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Null:
		return []byte("null"), nil
	case String:
		return json.Marshal(string(val))
	case Number:
		return val.MarshalJSON()
	case Bool:
		return json.Marshal(bool(val))
	case List:
		return val.MarshalJSON()
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unknown record value type: %T", v)
	}
}

// Decode parses a single JSON value into a Value.
// Numbers are decoded through json.Number so large integers keep their digits
// until the final float conversion.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return FromAny(raw)
}

// FromAny converts a decoded Go value (from encoding/json, yaml.v3 or a
// literal in a test) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		f, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return Number(f), nil
	case float64:
		return Number(val), nil
	case float32:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case int32:
		return Number(val), nil
	case uint64:
		return Number(val), nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case []string:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = String(elem)
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for k, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = ev
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// IsNull reports whether v is absent or an explicit null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Equal reports whether two values are equal. Absent and null are equal,
// numbers compare numerically, lists compare element by element in order.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
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
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, found := bv[k]
			if !found || !Equal(v, other) {
				return false
			}
		}
		return true
	}
	return false
}

// Format renders a value for human-readable diff details.
// Strings are written without quotes; lists and objects as compact JSON.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(val)
	case Number:
		return FormatNumber(float64(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	default:
		b, err := MarshalValue(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// FormatNumber writes f in its shortest exact decimal form: 1, 1.5, 0.001.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Float returns the numeric content of v. Strings holding a number are
// accepted since some producers quote their timings.
func Float(v Value) (float64, bool) {
	switch val := v.(type) {
	case Number:
		return float64(val), true
	case String:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// TypeName returns the JSON type name of v, used in validation messages.
func TypeName(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case List:
		return "list"
	case Object:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
