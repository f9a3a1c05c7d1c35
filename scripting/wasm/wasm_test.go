package wasm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melport/melport/mel"
	"github.com/melport/melport/meltest"
	"github.com/melport/melport/session"
)

func newScriptedSession(t *testing.T) (*session.Session, *meltest.Host) {
	t.Helper()
	h := meltest.NewHost()
	s, err := session.New(h)
	require.NoError(t, err)
	return s, h
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	sess, _ := newScriptedSession(t)

	t.Run("nil session", func(t *testing.T) {
		t.Parallel()
		_, err := New(t.Context(), nil, []byte{0x00})
		assert.ErrorIs(t, err, ErrSessionNil)
	})

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		_, err := New(t.Context(), sess, nil)
		assert.ErrorIs(t, err, ErrContentEmpty)
	})

	t.Run("invalid wasm bytes", func(t *testing.T) {
		t.Parallel()
		_, err := New(t.Context(), sess, []byte("not a wasm module"))
		assert.ErrorIs(t, err, ErrCompileFailed)
	})

	t.Run("bad options", func(t *testing.T) {
		t.Parallel()
		_, err := New(t.Context(), sess, []byte{0x00}, WithEntryPoint(""))
		require.Error(t, err)
		_, err = New(t.Context(), sess, []byte{0x00}, WithLogHandler(nil))
		require.Error(t, err)
	})
}

func TestSuccessEnvelope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		res  *mel.Result
		want string
	}{
		{
			name: "string",
			res:  mel.StringResult("persp"),
			want: `{"kind":"string","value":"persp"}`,
		},
		{
			name: "int array",
			res:  mel.IntsResult([]int{1, 2, 3}),
			want: `{"kind":"int[]","value":[1,2,3]}`,
		},
		{
			name: "vector flattens to floats",
			res:  mel.VectorResult(mel.Vector{X: 1, Y: 2, Z: 3}),
			want: `{"kind":"vector","value":[1,2,3]}`,
		},
		{
			name: "nil result",
			res:  mel.NilResult(),
			want: `{"kind":"none"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			payload, err := json.Marshal(successEnvelope(tt.res))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(payload))
		})
	}
}

func TestErrorEnvelope(t *testing.T) {
	t.Parallel()

	err := mel.NewEvalError("boom()", []string{`Cannot find procedure "boom".`})
	env := errorEnvelope(err)
	assert.Equal(t, "unknown_procedure", env.Category)
	assert.Contains(t, env.Error, "Cannot find procedure")

	env = errorEnvelope(mel.NewEvalError("x()", []string{"Wrong number of arguments on call to x."}))
	assert.Equal(t, "argument", env.Category)

	env = errorEnvelope(assert.AnError)
	assert.Equal(t, "internal", env.Category)
}

func TestDispatchCall(t *testing.T) {
	t.Parallel()

	t.Run("positional arguments", func(t *testing.T) {
		t.Parallel()
		sess, h := newScriptedSession(t)

		_, err := dispatchCall(t.Context(), sess, callEnvelope{
			Proc: "myScript",
			Args: []any{"firstArg", []any{1.0, 2.0, 3.0}},
		})
		require.NoError(t, err)
		assert.Equal(t, `myScript("firstArg",{1,2,3})`, h.LastCommand())
	})

	t.Run("flags dispatch in sorted order", func(t *testing.T) {
		t.Parallel()
		sess, h := newScriptedSession(t)

		_, err := dispatchCall(t.Context(), sess, callEnvelope{
			Proc:  "polySphere",
			Flags: map[string]any{"radius": 2.5, "name": "ball"},
		})
		require.NoError(t, err)
		assert.Equal(t, `polySphere -name "ball" -radius 2.5`, h.LastCommand())
	})

	t.Run("failure carries classification", func(t *testing.T) {
		t.Parallel()
		sess, h := newScriptedSession(t)
		h.Handle("boom", meltest.Response{
			Diagnostics: []string{`Cannot find procedure "boom".`},
			Fail:        true,
		})

		_, err := dispatchCall(t.Context(), sess, callEnvelope{Proc: "boom"})
		require.Error(t, err)
		assert.ErrorIs(t, err, mel.ErrUnknownProcedure)
	})
}

func TestCallEnvelopeDecoding(t *testing.T) {
	t.Parallel()

	var req callEnvelope
	raw := `{"proc":"polySphere","args":["base"],"flags":{"radius":2.5}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.Equal(t, "polySphere", req.Proc)
	assert.Equal(t, []any{"base"}, req.Args)
	assert.Equal(t, map[string]any{"radius": 2.5}, req.Flags)
}

func TestRunnerClosed(t *testing.T) {
	t.Parallel()

	// A minimal valid empty module: magic + version.
	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	sess, _ := newScriptedSession(t)
	r, err := New(t.Context(), sess, empty, WithWASI(false))
	require.NoError(t, err)

	require.NoError(t, r.Close(t.Context()))
	require.NoError(t, r.Close(t.Context()))

	_, err = r.Run(t.Context(), nil)
	assert.ErrorIs(t, err, ErrRunnerClosed)
}
