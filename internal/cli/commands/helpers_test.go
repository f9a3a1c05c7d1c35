package commands

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melport/melport/mel"
	"github.com/melport/melport/meltest"
	"github.com/melport/melport/session"
)

func TestParseTypedValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		typ     mel.Type
		raw     string
		want    any
		wantErr bool
	}{
		{name: "int", typ: mel.TypeInt, raw: "42", want: 42},
		{name: "float", typ: mel.TypeFloat, raw: "2.5", want: 2.5},
		{name: "string", typ: mel.TypeString, raw: "hello world", want: "hello world"},
		{name: "vector", typ: mel.TypeVector, raw: "1, 2, 3", want: mel.Vector{X: 1, Y: 2, Z: 3}},
		{name: "int array", typ: mel.TypeIntArray, raw: "1,2,3", want: []int{1, 2, 3}},
		{name: "float array", typ: mel.TypeFloatArray, raw: "1.5, 2.5", want: []float64{1.5, 2.5}},
		{name: "string array", typ: mel.TypeStringArray, raw: "a, b", want: []string{"a", "b"}},
		{name: "bad int", typ: mel.TypeInt, raw: "x", wantErr: true},
		{name: "short vector", typ: mel.TypeVector, raw: "1, 2", wantErr: true},
		{name: "bad int array element", typ: mel.TypeIntArray, raw: "1,x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTypedValue(tt.typ, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *mel.Result
		want string
	}{
		{name: "nil result", res: mel.NilResult(), want: ""},
		{name: "scalar", res: mel.IntResult(42), want: "42\n"},
		{name: "string array", res: mel.StringsResult([]string{"persp", "top"}), want: "persp\ntop\n"},
		{name: "float array", res: mel.FloatsResult([]float64{1.5, 2}), want: "1.5\n2\n"},
		{name: "vector", res: mel.VectorResult(mel.Vector{X: 1, Y: 2, Z: 3}), want: "<<1, 2, 3>>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			renderResult(&buf, tt.res)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func newCommandSession(t *testing.T) (*cobra.Command, *session.Session, *meltest.Host) {
	t.Helper()
	h := meltest.NewHost()
	sess, err := session.New(h)
	require.NoError(t, err)
	cmd := &cobra.Command{}
	cmd.SetContext(t.Context())
	return cmd, sess, h
}

func TestSetOptionVarValues(t *testing.T) {
	t.Parallel()

	t.Run("single int", func(t *testing.T) {
		t.Parallel()
		cmd, sess, h := newCommandSession(t)
		require.NoError(t, setOptionVarValues(cmd, sess, "undoLevels", []string{"100"}, false))
		assert.Equal(t, `optionVar -iv "undoLevels" 100;`, h.LastCommand())
	})

	t.Run("numeric forced to string", func(t *testing.T) {
		t.Parallel()
		cmd, sess, h := newCommandSession(t)
		require.NoError(t, setOptionVarValues(cmd, sess, "buildLabel", []string{"100"}, true))
		assert.Equal(t, `optionVar -sv "buildLabel" "100";`, h.LastCommand())
	})

	t.Run("multiple floats", func(t *testing.T) {
		t.Parallel()
		cmd, sess, h := newCommandSession(t)
		require.NoError(t, setOptionVarValues(cmd, sess, "weights", []string{"1.5", "2.5"}, false))
		assert.Equal(t, `optionVar -fv "weights" 1.5; optionVar -fva "weights" 2.5;`, h.LastCommand())
	})

	t.Run("mixed values fall back to strings", func(t *testing.T) {
		t.Parallel()
		cmd, sess, h := newCommandSession(t)
		require.NoError(t, setOptionVarValues(cmd, sess, "recent", []string{"1", "a.ma"}, false))
		assert.Equal(t, `optionVar -sv "recent" "1"; optionVar -sva "recent" "a.ma";`, h.LastCommand())
	})
}

func TestPrintMessages(t *testing.T) {
	t.Parallel()

	_, sess, h := newCommandSession(t)
	var buf bytes.Buffer
	unsubscribe, err := printMessages(sess, &buf)
	require.NoError(t, err)

	h.Handle("boom", meltest.Response{
		Warnings:    []string{"something looks off"},
		Diagnostics: []string{`Cannot find procedure "boom".`},
		Fail:        true,
	})
	_, err = sess.Eval(t.Context(), "boom()")
	require.Error(t, err)

	out := buf.String()
	assert.Contains(t, out, "// Warning: something looks off //")
	assert.Contains(t, out, `// Error: Cannot find procedure "boom". //`)

	unsubscribe()
}
