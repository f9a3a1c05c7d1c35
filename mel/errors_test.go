package mel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		diags []string
		want  error
	}{
		{
			"unknown procedure",
			[]string{`Cannot find procedure "myProc".`},
			ErrUnknownProcedure,
		},
		{
			"wrong argument count",
			[]string{"Wrong number of arguments on call to myProc."},
			ErrArgument,
		},
		{
			"conversion",
			[]string{"Cannot convert data of type string[] to type float."},
			ErrConversion,
		},
		{
			"cast",
			[]string{"Cannot cast data of type string to type int."},
			ErrConversion,
		},
		{
			"generic",
			[]string{"Syntax error."},
			ErrEval,
		},
		{
			"no diagnostics",
			nil,
			ErrEval,
		},
		{
			"first match wins across lines",
			[]string{"line 2:", `Cannot find procedure "x".`, "Wrong number of arguments."},
			ErrUnknownProcedure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, Classify(tt.diags), tt.want)
		})
	}
}

func TestEvalError(t *testing.T) {
	t.Parallel()

	t.Run("message preserves host text", func(t *testing.T) {
		t.Parallel()

		err := NewEvalError("myProc(1)", []string{
			"line 2: Cannot convert data of type string[] to type float.",
		})
		assert.Equal(t,
			"error during MEL execution: line 2: Cannot convert data of type string[] to type float.",
			err.Error())
		assert.ErrorIs(t, err, ErrConversion)
	})

	t.Run("multiple diagnostics join with newlines", func(t *testing.T) {
		t.Parallel()

		err := NewEvalError("badProc()", []string{"first line", "second line"})
		assert.Equal(t, "error during MEL execution: first line\nsecond line", err.Error())
	})

	t.Run("no diagnostics mentions the command", func(t *testing.T) {
		t.Parallel()

		err := NewEvalError("mysteryProc()", nil)
		assert.Contains(t, err.Error(), "mysteryProc()")
		assert.ErrorIs(t, err, ErrEval)
	})

	t.Run("unwraps through fmt wrapping", func(t *testing.T) {
		t.Parallel()

		inner := NewEvalError("f()", []string{`Cannot find procedure "f".`})
		wrapped := errors.Join(errors.New("outer"), inner)
		assert.ErrorIs(t, wrapped, ErrUnknownProcedure)

		var evalErr *EvalError
		require.ErrorAs(t, wrapped, &evalErr)
		assert.Equal(t, "f()", evalErr.Cmd)
	})
}
