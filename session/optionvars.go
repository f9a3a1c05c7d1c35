package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/melport/melport/mel"
)

// OptionVars exposes the host's per-user preference store.
type OptionVars struct {
	s *Session
}

func quoteKey(key string) string {
	return `"` + mel.EncodeString(key) + `"`
}

// Get reads an option variable. The host reports the stored category, so
// the result tag reflects whatever was written.
func (o *OptionVars) Get(ctx context.Context, key string) (*mel.Result, error) {
	if key == "" {
		return nil, ErrEmptyName
	}
	return o.s.Eval(ctx, "optionVar -q "+quoteKey(key))
}

// Exists reports whether an option variable is set.
func (o *OptionVars) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyName
	}
	res, err := o.s.runTyped(ctx, "optionVar -exists "+quoteKey(key), mel.KindInt)
	if err != nil {
		return false, err
	}
	return res.Bool()
}

// SetInt stores an int option variable.
func (o *OptionVars) SetInt(ctx context.Context, key string, v int) error {
	return o.set(ctx, key, "-iv", fmt.Sprintf("%d", v))
}

// SetFloat stores a float option variable.
func (o *OptionVars) SetFloat(ctx context.Context, key string, v float64) error {
	lit, err := mel.Format(v)
	if err != nil {
		return err
	}
	return o.set(ctx, key, "-fv", lit)
}

// SetString stores a string option variable.
func (o *OptionVars) SetString(ctx context.Context, key string, v string) error {
	return o.set(ctx, key, "-sv", `"`+mel.EncodeString(v)+`"`)
}

func (o *OptionVars) set(ctx context.Context, key, flag, lit string) error {
	if key == "" {
		return ErrEmptyName
	}
	_, err := o.s.Eval(ctx, fmt.Sprintf("optionVar %s %s %s;", flag, quoteKey(key), lit))
	return err
}

// SetInts stores an int-array option variable in one command: the first
// element with the value flag, the rest appended. An empty slice removes
// the variable, since the host cannot store an empty array.
func (o *OptionVars) SetInts(ctx context.Context, key string, vals []int) error {
	lits := make([]string, len(vals))
	for i, v := range vals {
		lits[i] = fmt.Sprintf("%d", v)
	}
	return o.setSlice(ctx, key, "-iv", "-iva", lits)
}

// SetFloats stores a float-array option variable.
func (o *OptionVars) SetFloats(ctx context.Context, key string, vals []float64) error {
	lits := make([]string, len(vals))
	for i, v := range vals {
		lit, err := mel.Format(v)
		if err != nil {
			return err
		}
		lits[i] = lit
	}
	return o.setSlice(ctx, key, "-fv", "-fva", lits)
}

// SetStrings stores a string-array option variable.
func (o *OptionVars) SetStrings(ctx context.Context, key string, vals []string) error {
	lits := make([]string, len(vals))
	for i, v := range vals {
		lits[i] = `"` + mel.EncodeString(v) + `"`
	}
	return o.setSlice(ctx, key, "-sv", "-sva", lits)
}

func (o *OptionVars) setSlice(ctx context.Context, key, valueFlag, appendFlag string, lits []string) error {
	if key == "" {
		return ErrEmptyName
	}
	if len(lits) == 0 {
		return o.Remove(ctx, key)
	}
	qk := quoteKey(key)
	parts := make([]string, len(lits))
	parts[0] = fmt.Sprintf("optionVar %s %s %s", valueFlag, qk, lits[0])
	for i, lit := range lits[1:] {
		parts[i+1] = fmt.Sprintf("optionVar %s %s %s", appendFlag, qk, lit)
	}
	_, err := o.s.Eval(ctx, strings.Join(parts, "; ")+";")
	return err
}

// AppendInt appends to an int-array option variable, creating it if absent.
func (o *OptionVars) AppendInt(ctx context.Context, key string, v int) error {
	return o.set(ctx, key, "-iva", fmt.Sprintf("%d", v))
}

// AppendFloat appends to a float-array option variable.
func (o *OptionVars) AppendFloat(ctx context.Context, key string, v float64) error {
	lit, err := mel.Format(v)
	if err != nil {
		return err
	}
	return o.set(ctx, key, "-fva", lit)
}

// AppendString appends to a string-array option variable.
func (o *OptionVars) AppendString(ctx context.Context, key string, v string) error {
	return o.set(ctx, key, "-sva", `"`+mel.EncodeString(v)+`"`)
}

// Remove deletes an option variable. Removing an absent variable is not an
// error on the host.
func (o *OptionVars) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyName
	}
	_, err := o.s.Eval(ctx, "optionVar -remove "+quoteKey(key)+";")
	return err
}

// Keys lists all option variable names.
func (o *OptionVars) Keys(ctx context.Context) ([]string, error) {
	res, err := o.s.runTyped(ctx, "optionVar -list", mel.KindStringArray)
	if err != nil {
		return nil, err
	}
	return res.Strings()
}
