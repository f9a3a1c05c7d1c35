package goconv

import (
	"context"
	"fmt"

	"github.com/melport/melport/session"
)

// SetOptionVar dispatches a plain Go value onto the matching option-variable
// write form. Integer widths are normalized first since each embedded runtime
// hands back its own native width.
func SetOptionVar(ctx context.Context, sess *session.Session, key string, v any) error {
	ov := sess.OptionVars()
	switch val := normalizeInt(v).(type) {
	case bool:
		i := 0
		if val {
			i = 1
		}
		return ov.SetInt(ctx, key, i)
	case int:
		return ov.SetInt(ctx, key, val)
	case float64:
		return ov.SetFloat(ctx, key, val)
	case string:
		return ov.SetString(ctx, key, val)
	case []any:
		return setOptionVarSlice(ctx, sess, key, val)
	default:
		return fmt.Errorf("cannot store %T in an option variable", v)
	}
}

func setOptionVarSlice(ctx context.Context, sess *session.Session, key string, vals []any) error {
	ov := sess.OptionVars()
	if len(vals) == 0 {
		// An empty array clears the variable rather than leaving a
		// zero-length remnant behind.
		return ov.Remove(ctx, key)
	}
	switch normalizeInt(vals[0]).(type) {
	case int:
		ints := make([]int, len(vals))
		for i, v := range vals {
			iv, ok := normalizeInt(v).(int)
			if !ok {
				return fmt.Errorf("mixed option variable array at element %d", i)
			}
			ints[i] = iv
		}
		return ov.SetInts(ctx, key, ints)
	case float64:
		floats := make([]float64, len(vals))
		for i, v := range vals {
			fv, ok := v.(float64)
			if !ok {
				return fmt.Errorf("mixed option variable array at element %d", i)
			}
			floats[i] = fv
		}
		return ov.SetFloats(ctx, key, floats)
	case string:
		strs := make([]string, len(vals))
		for i, v := range vals {
			sv, ok := v.(string)
			if !ok {
				return fmt.Errorf("mixed option variable array at element %d", i)
			}
			strs[i] = sv
		}
		return ov.SetStrings(ctx, key, strs)
	default:
		return fmt.Errorf("cannot store %T elements in an option variable", vals[0])
	}
}

func normalizeInt(v any) any {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int32:
		return int(n)
	}
	return v
}
