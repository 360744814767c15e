package registry

// Value is a validated parameter. It holds exactly one of string, float64,
// int64, bool, []any or map[string]any, selected by Kind.
type Value struct {
	kind    ParamType
	str     string
	num     float64
	integer int64
	boolean bool
	arr     []any
	obj     map[string]any
}

// StringValue wraps s as a TypeString value.
func StringValue(s string) Value { return Value{kind: TypeString, str: s} }

// NumberValue wraps n as a TypeNumber value.
func NumberValue(n float64) Value { return Value{kind: TypeNumber, num: n} }

// IntegerValue wraps n as a TypeInteger value.
func IntegerValue(n int64) Value { return Value{kind: TypeInteger, integer: n} }

// BoolValue wraps b as a TypeBoolean value.
func BoolValue(b bool) Value { return Value{kind: TypeBoolean, boolean: b} }

// ArrayValue wraps a as a TypeArray value. The slice is not copied.
func ArrayValue(a []any) Value { return Value{kind: TypeArray, arr: a} }

// ObjectValue wraps m as a TypeObject value. The map is not copied.
func ObjectValue(m map[string]any) Value { return Value{kind: TypeObject, obj: m} }

// Kind reports which variant v holds.
func (v Value) Kind() ParamType { return v.kind }

// Any returns the held value as a plain Go value.
func (v Value) Any() any {
	switch v.kind {
	case TypeString:
		return v.str
	case TypeNumber:
		return v.num
	case TypeInteger:
		return v.integer
	case TypeBoolean:
		return v.boolean
	case TypeArray:
		return v.arr
	case TypeObject:
		return v.obj
	default:
		return nil
	}
}

// Params are the validated arguments of one invocation.
type Params map[string]Value

// Has reports whether name was supplied.
func (p Params) Has(name string) bool {
	_, ok := p[name]
	return ok
}

// String returns a string parameter.
func (p Params) String(name string) (string, bool) {
	v, ok := p[name]
	if !ok || v.kind != TypeString {
		return "", false
	}
	return v.str, true
}

// Number returns a numeric parameter. Integer parameters are widened.
func (p Params) Number(name string) (float64, bool) {
	v, ok := p[name]
	if !ok {
		return 0, false
	}
	switch v.kind {
	case TypeNumber:
		return v.num, true
	case TypeInteger:
		return float64(v.integer), true
	default:
		return 0, false
	}
}

// Integer returns an integer parameter.
func (p Params) Integer(name string) (int64, bool) {
	v, ok := p[name]
	if !ok || v.kind != TypeInteger {
		return 0, false
	}
	return v.integer, true
}

// Bool returns a boolean parameter.
func (p Params) Bool(name string) (bool, bool) {
	v, ok := p[name]
	if !ok || v.kind != TypeBoolean {
		return false, false
	}
	return v.boolean, true
}

// Array returns an array parameter.
func (p Params) Array(name string) ([]any, bool) {
	v, ok := p[name]
	if !ok || v.kind != TypeArray {
		return nil, false
	}
	return v.arr, true
}

// Object returns an object parameter.
func (p Params) Object(name string) (map[string]any, bool) {
	v, ok := p[name]
	if !ok || v.kind != TypeObject {
		return nil, false
	}
	return v.obj, true
}
