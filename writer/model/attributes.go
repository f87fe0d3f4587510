package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

type ValueType uint8

const (
	ValueEmpty ValueType = iota
	ValueString
	ValueInt
	ValueDouble
	ValueBool
	ValueJSON
)

var numberJson = jsoniter.Config{UseNumber: true}.Froze()

// Value is a single OTel attribute value. Nested objects and arrays are kept
// decoded as ValueJSON.
type Value struct {
	typ ValueType
	s   string
	i   int64
	f   float64
	b   bool
	j   any
}

func StringValue(s string) Value  { return Value{typ: ValueString, s: s} }
func IntValue(i int64) Value      { return Value{typ: ValueInt, i: i} }
func DoubleValue(f float64) Value { return Value{typ: ValueDouble, f: f} }
func BoolValue(b bool) Value      { return Value{typ: ValueBool, b: b} }

// JSONValue wraps an already decoded object or array.
func JSONValue(v any) Value {
	if v == nil {
		return Value{}
	}
	return Value{typ: ValueJSON, j: v}
}

// ValueOf converts a plain Go value into a Value.
func ValueOf(v any) Value {
	switch v := v.(type) {
	case nil:
		return Value{}
	case Value:
		return v
	case string:
		return StringValue(v)
	case bool:
		return BoolValue(v)
	case int:
		return IntValue(int64(v))
	case int32:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case uint64:
		if v > math.MaxInt64 {
			return DoubleValue(float64(v))
		}
		return IntValue(int64(v))
	case float32:
		return DoubleValue(float64(v))
	case float64:
		return DoubleValue(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return IntValue(i)
		}
		f, _ := v.Float64()
		return DoubleValue(f)
	default:
		return JSONValue(normalizeNumbers(v))
	}
}

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsEmpty() bool   { return v.typ == ValueEmpty }

func (v Value) Str() (string, bool) {
	if v.typ == ValueString {
		return v.s, true
	}
	return "", false
}

// Int accepts integral doubles and numeric strings as well.
func (v Value) Int() (int64, bool) {
	switch v.typ {
	case ValueInt:
		return v.i, true
	case ValueDouble:
		if v.f == math.Trunc(v.f) && v.f >= math.MinInt64 && v.f < math.MaxInt64 {
			return int64(v.f), true
		}
	case ValueString:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (v Value) Float() (float64, bool) {
	switch v.typ {
	case ValueInt:
		return float64(v.i), true
	case ValueDouble:
		return v.f, true
	case ValueString:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) {
	switch v.typ {
	case ValueBool:
		return v.b, true
	case ValueString:
		if b, err := strconv.ParseBool(v.s); err == nil {
			return b, true
		}
	}
	return false, false
}

// Map returns the decoded object for ValueJSON values holding one.
func (v Value) Map() (map[string]any, bool) {
	if v.typ != ValueJSON {
		return nil, false
	}
	m, ok := v.j.(map[string]any)
	return m, ok
}

// Any returns the plain Go representation used in event properties.
func (v Value) Any() any {
	switch v.typ {
	case ValueString:
		return v.s
	case ValueInt:
		return v.i
	case ValueDouble:
		return v.f
	case ValueBool:
		return v.b
	case ValueJSON:
		return v.j
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Value{}
		return nil
	}
	var raw any
	if err := numberJson.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// normalizeNumbers turns json.Number leaves into int64 or float64.
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, val := range v {
			v[k] = normalizeNumbers(val)
		}
		return v
	case []any:
		for i, val := range v {
			v[i] = normalizeNumbers(val)
		}
		return v
	}
	return v
}

type Attributes map[string]Value

func (a Attributes) Str(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	return v.Str()
}

// HasPrefix reports whether any key starts with prefix.
func (a Attributes) HasPrefix(prefix string) bool {
	for k := range a {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
