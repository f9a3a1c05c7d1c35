package mel

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Format converts a Go value into the text of an equivalent MEL literal.
//
// Numbers become decimal text, booleans become 1/0 (MEL has no boolean
// literal in data position), strings are quoted with EncodeString escaping,
// slices and arrays become {a,b,c} with each element formatted recursively,
// a Vector becomes <<x, y, z>> and a Matrix a 16-element array literal.
// Values with no MEL equivalent return ErrNoMelType.
func Format(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", fmt.Errorf("%w: untyped nil", ErrNoMelType)
	case string:
		return `"` + EncodeString(val) + `"`, nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(val), nil
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(val).Int(), 10), nil
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(val).Uint(), 10), nil
	case float32:
		return formatFloat(float64(val)), nil
	case float64:
		return formatFloat(val), nil
	case Vector:
		return val.String(), nil
	case Matrix:
		return val.String(), nil
	case *Result:
		if val == nil || val.IsNil() {
			return "", fmt.Errorf("%w: nil result", ErrNoMelType)
		}
		return Format(val.Interface())
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range rv.Len() {
			s, err := Format(rv.Index(i).Interface())
			if err != nil {
				return "", fmt.Errorf("array element %d: %w", i, err)
			}
			parts[i] = s
		}
		return "{" + strings.Join(parts, ",") + "}", nil
	}

	return "", fmt.Errorf("%w: %T", ErrNoMelType, v)
}

// encodeReplacer covers the escapes the host's encodeString command emits.
var encodeReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

// EncodeString escapes a string for embedding in a double-quoted MEL string
// literal, the way the host's encodeString command does. Control characters
// with no MEL escape sequence are dropped so quoted literals never carry a
// raw NUL or newline onto the wire.
func EncodeString(s string) string {
	s = encodeReplacer.Replace(s)
	if !strings.ContainsFunc(s, isBareControl) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if !isBareControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isBareControl(r rune) bool {
	// \n, \t and \r were already replaced with their escapes.
	return r < 0x20 || r == 0x7f
}
