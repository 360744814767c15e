package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// ParamType is the declared type of a tool parameter.
type ParamType int

const (
	TypeString ParamType = iota
	TypeNumber
	TypeInteger
	TypeBoolean
	TypeArray
	TypeObject
)

// String returns the JSON Schema name of the type.
func (t ParamType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeInteger:
		return "integer"
	case TypeBoolean:
		return "boolean"
	case TypeArray:
		return "array"
	case TypeObject:
		return "object"
	default:
		return fmt.Sprintf("ParamType(%d)", int(t))
	}
}

func (t ParamType) valid() bool {
	return t >= TypeString && t <= TypeObject
}

// Field declares one named parameter.
type Field struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
}

// Schema is the ordered parameter list of a tool.
type Schema struct {
	Fields []Field
}

// Field returns the field called name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ParamError reports the first parameter that failed validation.
type ParamError struct {
	// Field is the offending parameter name.
	Field string
	// Expected is the declared type; empty for unknown parameters.
	Expected string
	// Got describes the supplied value's JSON type, or "missing".
	Got string
}

func (e *ParamError) Error() string {
	switch {
	case e.Got == "missing":
		return fmt.Sprintf("parameter %q is required", e.Field)
	case e.Expected == "":
		return fmt.Sprintf("unknown parameter %q", e.Field)
	default:
		return fmt.Sprintf("parameter %q: expected %s, got %s", e.Field, e.Expected, e.Got)
	}
}

// Validate checks raw arguments against the schema and converts them to
// typed Params. Fields are checked in declaration order, then unknown
// arguments in name order, so the reported field is deterministic.
// A null value counts as absent.
func (s Schema) Validate(raw map[string]any) (Params, error) {
	params := make(Params, len(s.Fields))

	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if !present || v == nil {
			if f.Required {
				return nil, &ParamError{Field: f.Name, Expected: f.Type.String(), Got: "missing"}
			}
			continue
		}

		value, ok := convert(f.Type, v)
		if !ok {
			return nil, &ParamError{Field: f.Name, Expected: f.Type.String(), Got: jsonType(v)}
		}
		params[f.Name] = value
	}

	if len(raw) > len(params) {
		names := make([]string, 0, len(raw))
		for name := range raw {
			if _, declared := s.Field(name); !declared {
				names = append(names, name)
			}
		}
		if len(names) > 0 {
			sort.Strings(names)
			return nil, &ParamError{Field: names[0], Got: jsonType(raw[names[0]])}
		}
	}

	return params, nil
}

// convert turns a decoded JSON value into a Value of type t.
func convert(t ParamType, v any) (Value, bool) {
	switch t {
	case TypeString:
		s, ok := v.(string)
		return StringValue(s), ok
	case TypeNumber:
		n, ok := toFloat(v)
		return NumberValue(n), ok
	case TypeInteger:
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return Value{}, false
		}
		return IntegerValue(int64(n)), true
	case TypeBoolean:
		b, ok := v.(bool)
		return BoolValue(b), ok
	case TypeArray:
		a, ok := v.([]any)
		return ArrayValue(a), ok
	case TypeObject:
		m, ok := v.(map[string]any)
		return ObjectValue(m), ok
	default:
		return Value{}, false
	}
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// jsonType names the JSON type of a decoded value for error messages.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, float32, int, int64, json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
