// Package mel implements the value model shared by both sides of the MEL
// boundary: Go values are formatted into MEL literals on the way in, and
// tagged command results are decoded into native Go values on the way out.
package mel

import (
	"fmt"
	"reflect"
)

// Type is the name of a MEL type, as spelled in MEL source.
type Type string

// The MEL types a global variable can be declared with.
const (
	TypeString      Type = "string"
	TypeStringArray Type = "string[]"
	TypeInt         Type = "int"
	TypeIntArray    Type = "int[]"
	TypeFloat       Type = "float"
	TypeFloatArray  Type = "float[]"
	TypeVector      Type = "vector"
	TypeVectorArray Type = "vector[]"
)

// Pseudo-types reachable only through TypeOf options. MEL has no true boolean
// or matrix variable types, but it reserves special treatment for both in
// other places, so callers can opt in to seeing them.
const (
	TypeBool   Type = "bool"
	TypeMatrix Type = "matrix"
)

// Types lists the valid MEL variable types, in declaration order.
var Types = []Type{
	TypeString, TypeStringArray,
	TypeInt, TypeIntArray,
	TypeFloat, TypeFloatArray,
	TypeVector, TypeVectorArray,
}

// IsValidType reports whether t is a declarable MEL variable type.
// The bool and matrix pseudo-types are not declarable.
func IsValidType(t Type) bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// IsArray reports whether t is one of the array types.
func (t Type) IsArray() bool {
	return len(t) > 2 && t[len(t)-2:] == "[]"
}

// Elem returns the element type of an array type, or t itself for scalars.
func (t Type) Elem() Type {
	if t.IsArray() {
		return t[:len(t)-2]
	}
	return t
}

// Array returns the array form of a scalar type, or t itself for arrays.
func (t Type) Array() Type {
	if t.IsArray() {
		return t
	}
	return t + "[]"
}

type typeOptions struct {
	allowBool   bool
	allowMatrix bool
	loose       bool
}

// TypeOption adjusts how TypeOf maps Go values onto MEL type names.
type TypeOption func(*typeOptions)

// WithBool makes TypeOf report bool values as the bool pseudo-type instead
// of int.
func WithBool() TypeOption {
	return func(o *typeOptions) { o.allowBool = true }
}

// WithMatrix makes TypeOf report Matrix values as the matrix pseudo-type
// instead of int[].
func WithMatrix() TypeOption {
	return func(o *typeOptions) { o.allowMatrix = true }
}

// WithLoose makes TypeOf fall back to the Go type name for values that have
// no MEL analog, instead of returning an error.
func WithLoose() TypeOption {
	return func(o *typeOptions) { o.loose = true }
}

// TypeOf returns the name of the closest MEL type equivalent for a Go value.
//
// Bool maps to int and Matrix to int[] unless the corresponding option is
// given, matching how MEL treats both in data positions. For slices the
// element type determines the array type; an empty slice reports string[].
func TypeOf(v any, opts ...TypeOption) (Type, error) {
	var o typeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return typeOf(v, o)
}

func typeOf(v any, o typeOptions) (Type, error) {
	switch val := v.(type) {
	case string:
		return TypeString, nil
	case bool:
		if o.allowBool {
			return TypeBool, nil
		}
		return TypeInt, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInt, nil
	case float32, float64:
		return TypeFloat, nil
	case Vector:
		return TypeVector, nil
	case Matrix:
		if o.allowMatrix {
			return TypeMatrix, nil
		}
		return TypeIntArray, nil
	case []string:
		return TypeStringArray, nil
	case []int:
		return TypeIntArray, nil
	case []float64:
		return TypeFloatArray, nil
	case []Vector:
		return TypeVectorArray, nil
	case []any:
		if len(val) == 0 {
			return TypeStringArray, nil
		}
		elem, err := typeOf(val[0], typeOptions{})
		if err != nil {
			return "", fmt.Errorf("array element: %w", err)
		}
		return elem.Array(), nil
	}

	// Generic slices and arrays take their element's type.
	rv := reflect.ValueOf(v)
	if rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		if rv.Len() == 0 {
			return TypeStringArray, nil
		}
		elem, err := typeOf(rv.Index(0).Interface(), typeOptions{})
		if err != nil {
			return "", fmt.Errorf("array element: %w", err)
		}
		return elem.Array(), nil
	}

	if o.loose {
		return Type(fmt.Sprintf("%T", v)), nil
	}
	return "", fmt.Errorf("%w: %T", ErrNoMelType, v)
}

// KindOf maps a MEL type name to the result category used when decoding
// tagged results of that type.
func KindOf(t Type) (Kind, error) {
	switch t {
	case TypeString:
		return KindString, nil
	case TypeStringArray:
		return KindStringArray, nil
	case TypeInt, TypeBool:
		return KindInt, nil
	case TypeIntArray:
		return KindIntArray, nil
	case TypeFloat:
		return KindFloat, nil
	case TypeFloatArray:
		return KindFloatArray, nil
	case TypeVector:
		return KindVector, nil
	case TypeVectorArray:
		return KindVectorArray, nil
	case TypeMatrix:
		return KindMatrix, nil
	default:
		return KindNone, fmt.Errorf("no result kind for MEL type %q", t)
	}
}
