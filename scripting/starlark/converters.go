package starlark

import (
	"fmt"
	"math"

	starlarkLib "go.starlark.net/starlark"

	"github.com/melport/melport/mel"
	"github.com/melport/melport/scripting/internal/goconv"
)

// toStarlarkValue converts a plain Go value into a Starlark value.
func toStarlarkValue(v any) (starlarkLib.Value, error) {
	if v == nil {
		return starlarkLib.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlarkLib.Bool(val), nil
	case int:
		return starlarkLib.MakeInt(val), nil
	case int64:
		return starlarkLib.MakeInt64(val), nil
	case float64:
		return starlarkLib.Float(val), nil
	case string:
		return starlarkLib.String(val), nil
	case mel.Vector:
		return toStarlarkList([]float64{val.X, val.Y, val.Z})
	case []int:
		return toStarlarkList(val)
	case []float64:
		return toStarlarkList(val)
	case []string:
		return toStarlarkList(val)
	case [][]float64:
		return toStarlarkList(val)
	case [][][]float64:
		return toStarlarkList(val)
	case []any:
		return toStarlarkList(val)
	default:
		return nil, fmt.Errorf("unsupported Go type %T", v)
	}
}

func toStarlarkList[T any](vals []T) (starlarkLib.Value, error) {
	elems := make([]starlarkLib.Value, len(vals))
	for i, v := range vals {
		sv, err := toStarlarkValue(v)
		if err != nil {
			return nil, fmt.Errorf("list element %d: %w", i, err)
		}
		elems[i] = sv
	}
	return starlarkLib.NewList(elems), nil
}

// fromStarlarkValue converts a Starlark value into a plain Go value the
// literal formatter accepts.
func fromStarlarkValue(v starlarkLib.Value) (any, error) {
	switch v := v.(type) {
	case nil, starlarkLib.NoneType:
		return nil, nil
	case starlarkLib.Bool:
		return bool(v), nil
	case starlarkLib.Int:
		i, ok := v.Int64()
		if !ok || i > math.MaxInt || i < math.MinInt {
			return nil, fmt.Errorf("integer %s does not fit a MEL int", v.String())
		}
		return int(i), nil
	case starlarkLib.Float:
		return float64(v), nil
	case starlarkLib.String:
		return string(v), nil
	case *starlarkLib.List:
		list := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := fromStarlarkValue(v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list element %d: %w", i, err)
			}
			list = append(list, elem)
		}
		return list, nil
	case starlarkLib.Tuple:
		list := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := fromStarlarkValue(v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple element %d: %w", i, err)
			}
			list = append(list, elem)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported Starlark type %s", v.Type())
	}
}

// resultValue converts a tagged MEL result into a Starlark value.
func resultValue(res *mel.Result) (starlarkLib.Value, error) {
	return toStarlarkValue(goconv.FromResult(res))
}
