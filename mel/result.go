package mel

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is a command-result category, mirroring the host's result-type
// enumeration.
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindIntArray
	KindFloat
	KindFloatArray
	KindString
	KindStringArray
	KindVector
	KindVectorArray
	KindMatrix
	KindMatrixArray
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindInt:         "int",
	KindIntArray:    "int[]",
	KindFloat:       "float",
	KindFloatArray:  "float[]",
	KindString:      "string",
	KindStringArray: "string[]",
	KindVector:      "vector",
	KindVectorArray: "vector[]",
	KindMatrix:      "matrix",
	KindMatrixArray: "matrix[]",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsArray reports whether k is one of the array categories.
func (k Kind) IsArray() bool {
	switch k {
	case KindIntArray, KindFloatArray, KindStringArray, KindVectorArray, KindMatrixArray:
		return true
	}
	return false
}

// Result is a tagged command result: the category the host reported plus
// the decoded payload.
type Result struct {
	kind  Kind
	value any
}

// NewResult wraps an already-decoded value with its category. The value
// must match the category's native Go type (int for KindInt, []string for
// KindStringArray, and so on).
func NewResult(kind Kind, value any) (*Result, error) {
	if err := checkKindValue(kind, value); err != nil {
		return nil, err
	}
	return &Result{kind: kind, value: value}, nil
}

func checkKindValue(kind Kind, value any) error {
	ok := false
	switch kind {
	case KindNone:
		ok = value == nil
	case KindInt:
		_, ok = value.(int)
	case KindIntArray:
		_, ok = value.([]int)
	case KindFloat:
		_, ok = value.(float64)
	case KindFloatArray:
		_, ok = value.([]float64)
	case KindString:
		_, ok = value.(string)
	case KindStringArray:
		_, ok = value.([]string)
	case KindVector:
		_, ok = value.(Vector)
	case KindVectorArray:
		_, ok = value.([]Vector)
	case KindMatrix:
		_, ok = value.(Matrix)
	case KindMatrixArray:
		_, ok = value.([]Matrix)
	}
	if !ok {
		return fmt.Errorf("%w: %T is not a %s payload", ErrKindMismatch, value, kind)
	}
	return nil
}

// Untyped result constructors, for hosts and test doubles.

func NilResult() *Result               { return &Result{kind: KindNone} }
func IntResult(v int) *Result          { return &Result{kind: KindInt, value: v} }
func IntsResult(v []int) *Result       { return &Result{kind: KindIntArray, value: nonNil(v)} }
func FloatResult(v float64) *Result    { return &Result{kind: KindFloat, value: v} }
func FloatsResult(v []float64) *Result { return &Result{kind: KindFloatArray, value: nonNil(v)} }
func StringResult(v string) *Result    { return &Result{kind: KindString, value: v} }
func StringsResult(v []string) *Result { return &Result{kind: KindStringArray, value: nonNil(v)} }
func VectorResult(v Vector) *Result    { return &Result{kind: KindVector, value: v} }
func VectorsResult(v []Vector) *Result { return &Result{kind: KindVectorArray, value: nonNil(v)} }
func MatrixResult(v Matrix) *Result    { return &Result{kind: KindMatrix, value: v} }
func MatricesResult(v []Matrix) *Result {
	return &Result{kind: KindMatrixArray, value: nonNil(v)}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

// Kind returns the result category.
func (r *Result) Kind() Kind {
	if r == nil {
		return KindNone
	}
	return r.kind
}

// IsNil reports whether the command produced no result.
func (r *Result) IsNil() bool {
	return r == nil || r.kind == KindNone
}

// Interface returns the decoded native value: int, []int, float64,
// []float64, string, []string, Vector, []Vector, Matrix or []Matrix,
// or nil for a none result.
func (r *Result) Interface() any {
	if r == nil {
		return nil
	}
	return r.value
}

func (r *Result) String() string {
	if r.IsNil() {
		return ""
	}
	switch v := r.value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "\t")
	case float64:
		return formatFloat(v)
	default:
		return fmt.Sprintf("%v", r.value)
	}
}

func (r *Result) Int() (int, error) {
	v, ok := r.Interface().(int)
	if !ok {
		return 0, r.mismatch(KindInt)
	}
	return v, nil
}

func (r *Result) Ints() ([]int, error) {
	v, ok := r.Interface().([]int)
	if !ok {
		return nil, r.mismatch(KindIntArray)
	}
	return v, nil
}

func (r *Result) Float() (float64, error) {
	switch v := r.Interface().(type) {
	case float64:
		return v, nil
	case int:
		// Hosts report whole-number time and playback values as ints.
		return float64(v), nil
	}
	return 0, r.mismatch(KindFloat)
}

func (r *Result) Floats() ([]float64, error) {
	v, ok := r.Interface().([]float64)
	if !ok {
		return nil, r.mismatch(KindFloatArray)
	}
	return v, nil
}

func (r *Result) Str() (string, error) {
	v, ok := r.Interface().(string)
	if !ok {
		return "", r.mismatch(KindString)
	}
	return v, nil
}

func (r *Result) Strings() ([]string, error) {
	v, ok := r.Interface().([]string)
	if !ok {
		return nil, r.mismatch(KindStringArray)
	}
	return v, nil
}

func (r *Result) Vector() (Vector, error) {
	v, ok := r.Interface().(Vector)
	if !ok {
		return Vector{}, r.mismatch(KindVector)
	}
	return v, nil
}

func (r *Result) Vectors() ([]Vector, error) {
	v, ok := r.Interface().([]Vector)
	if !ok {
		return nil, r.mismatch(KindVectorArray)
	}
	return v, nil
}

func (r *Result) Matrix() (Matrix, error) {
	v, ok := r.Interface().(Matrix)
	if !ok {
		return Matrix{}, r.mismatch(KindMatrix)
	}
	return v, nil
}

func (r *Result) Matrices() ([]Matrix, error) {
	v, ok := r.Interface().([]Matrix)
	if !ok {
		return nil, r.mismatch(KindMatrixArray)
	}
	return v, nil
}

// Bool converts an int result to a bool, for toggle-style queries.
func (r *Result) Bool() (bool, error) {
	v, err := r.Int()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (r *Result) mismatch(want Kind) error {
	return fmt.Errorf("%w: have %s, want %s", ErrKindMismatch, r.Kind(), want)
}

// DecodeResult builds a tagged Result from the wire text of a command
// reply. Array payloads are tab-separated; vector components are
// whitespace-separated floats, three per vector; a matrix is 16 floats.
// Empty array payloads decode to empty, non-nil slices.
func DecodeResult(kind Kind, text string) (*Result, error) {
	switch kind {
	case KindNone:
		return NilResult(), nil
	case KindInt:
		v, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("decoding int result: %w", err)
		}
		return IntResult(v), nil
	case KindIntArray:
		fields := arrayFields(text)
		out := make([]int, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("decoding int[] element %d: %w", i, err)
			}
			out[i] = v
		}
		return IntsResult(out), nil
	case KindFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("decoding float result: %w", err)
		}
		return FloatResult(v), nil
	case KindFloatArray:
		fields := arrayFields(text)
		out := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("decoding float[] element %d: %w", i, err)
			}
			out[i] = v
		}
		return FloatsResult(out), nil
	case KindString:
		return StringResult(text), nil
	case KindStringArray:
		return StringsResult(arrayFields(text)), nil
	case KindVector:
		floats, err := floatFields(text)
		if err != nil {
			return nil, fmt.Errorf("decoding vector result: %w", err)
		}
		v, err := vectorFromFloats(floats)
		if err != nil {
			return nil, err
		}
		return VectorResult(v), nil
	case KindVectorArray:
		floats, err := floatFields(text)
		if err != nil {
			return nil, fmt.Errorf("decoding vector[] result: %w", err)
		}
		if len(floats)%3 != 0 {
			return nil, fmt.Errorf("vector[] needs 3 components per vector, got %d fields", len(floats))
		}
		out := make([]Vector, len(floats)/3)
		for i := range out {
			out[i] = Vector{floats[i*3], floats[i*3+1], floats[i*3+2]}
		}
		return VectorsResult(out), nil
	case KindMatrix:
		floats, err := floatFields(text)
		if err != nil {
			return nil, fmt.Errorf("decoding matrix result: %w", err)
		}
		m, err := MatrixFromValues(floats)
		if err != nil {
			return nil, err
		}
		return MatrixResult(m), nil
	case KindMatrixArray:
		floats, err := floatFields(text)
		if err != nil {
			return nil, fmt.Errorf("decoding matrix[] result: %w", err)
		}
		if len(floats)%16 != 0 {
			return nil, fmt.Errorf("matrix[] needs 16 components per matrix, got %d fields", len(floats))
		}
		out := make([]Matrix, len(floats)/16)
		for i := range out {
			m, err := MatrixFromValues(floats[i*16 : i*16+16])
			if err != nil {
				return nil, err
			}
			out[i] = m
		}
		return MatricesResult(out), nil
	default:
		return nil, fmt.Errorf("unknown result kind %d", int(kind))
	}
}

func vectorFromFloats(floats []float64) (Vector, error) {
	if len(floats) != 3 {
		return Vector{}, fmt.Errorf("vector needs 3 components, got %d", len(floats))
	}
	return Vector{floats[0], floats[1], floats[2]}, nil
}

func arrayFields(text string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\t")
}

func floatFields(text string) ([]float64, error) {
	fields := strings.Fields(text)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
