package arg

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the declared type of an argument.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "any"
	}
}

// Value is a tagged union over the argument kinds. The zero Value is an absent Any.
type Value struct {
	kind Kind
	raw  any
}

// CoercionError reports a caller value that cannot be converted to the declared kind.
type CoercionError struct {
	Name string
	Want Kind
	Got  any
}

func (e *CoercionError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("arg: cannot coerce %T to %s", e.Got, e.Want)
	}
	return fmt.Sprintf("arg: %s: cannot coerce %T to %s", e.Name, e.Got, e.Want)
}

// Coerce converts raw into a Value of kind.
func Coerce(kind Kind, raw any) (Value, error) {
	if raw == nil {
		return Value{kind: kind}, nil
	}
	fail := func() (Value, error) {
		return Value{}, &CoercionError{Want: kind, Got: raw}
	}
	switch kind {
	case KindString:
		switch v := raw.(type) {
		case string:
			return Value{kind: kind, raw: v}, nil
		case bool, int, int32, int64, float32, float64:
			return Value{kind: kind, raw: fmt.Sprint(v)}, nil
		}
		return fail()
	case KindInt:
		switch v := raw.(type) {
		case int:
			return Value{kind: kind, raw: int64(v)}, nil
		case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			n, err := strconv.ParseInt(fmt.Sprint(v), 10, 64)
			if err != nil {
				return fail()
			}
			return Value{kind: kind, raw: n}, nil
		case float32:
			return floatToInt(kind, float64(v), raw)
		case float64:
			return floatToInt(kind, v, raw)
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return fail()
			}
			return Value{kind: kind, raw: n}, nil
		}
		return fail()
	case KindFloat:
		switch v := raw.(type) {
		case float64:
			return Value{kind: kind, raw: v}, nil
		case float32:
			return Value{kind: kind, raw: float64(v)}, nil
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			f, err := strconv.ParseFloat(fmt.Sprint(v), 64)
			if err != nil {
				return fail()
			}
			return Value{kind: kind, raw: f}, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fail()
			}
			return Value{kind: kind, raw: f}, nil
		}
		return fail()
	case KindBool:
		switch v := raw.(type) {
		case bool:
			return Value{kind: kind, raw: v}, nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fail()
			}
			return Value{kind: kind, raw: b}, nil
		}
		return fail()
	case KindList:
		switch v := raw.(type) {
		case []any:
			return Value{kind: kind, raw: v}, nil
		case []string:
			out := make([]any, len(v))
			for i, s := range v {
				out[i] = s
			}
			return Value{kind: kind, raw: out}, nil
		}
		return fail()
	case KindMap:
		switch v := raw.(type) {
		case map[string]any:
			return Value{kind: kind, raw: v}, nil
		case map[any]any:
			out := make(map[string]any, len(v))
			for k, val := range v {
				out[fmt.Sprint(k)] = val
			}
			return Value{kind: kind, raw: out}, nil
		}
		return fail()
	default:
		return Value{kind: KindAny, raw: raw}, nil
	}
}

func floatToInt(kind Kind, f float64, raw any) (Value, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return Value{}, &CoercionError{Want: kind, Got: raw}
	}
	return Value{kind: kind, raw: int64(f)}, nil
}

func (v Value) Kind() Kind { return v.kind }

// IsNil reports whether the value carries nothing.
func (v Value) IsNil() bool { return v.raw == nil }

func (v Value) Raw() any { return v.raw }

func (v Value) String() string {
	s, _ := v.raw.(string)
	return s
}

func (v Value) Int() int64 {
	n, _ := v.raw.(int64)
	return n
}

func (v Value) Float() float64 {
	f, _ := v.raw.(float64)
	return f
}

func (v Value) Bool() bool {
	b, _ := v.raw.(bool)
	return b
}

func (v Value) List() []any {
	l, _ := v.raw.([]any)
	return l
}

func (v Value) Map() map[string]any {
	m, _ := v.raw.(map[string]any)
	return m
}

// Strings returns a list value as strings, skipping non-string items.
func (v Value) Strings() []string {
	items := v.List()
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
