package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melport/melport/mel"
	"github.com/melport/melport/meltest"
)

func TestOptionVarsGet(t *testing.T) {
	t.Parallel()

	s, h := newTestSession(t)
	h.Handle("-q", meltest.Response{Result: mel.IntResult(12)})

	res, err := s.OptionVars().Get(t.Context(), "undoLevels")
	require.NoError(t, err)
	v, err := res.Int()
	require.NoError(t, err)
	assert.Equal(t, 12, v)
	assert.Equal(t, `optionVar -q "undoLevels"`, h.LastCommand())
}

func TestOptionVarsExists(t *testing.T) {
	t.Parallel()

	s, h := newTestSession(t)
	h.Handle("-exists", meltest.Response{Result: mel.IntResult(1)})

	ok, err := s.OptionVars().Exists(t.Context(), "undoLevels")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `optionVar -exists "undoLevels"`, h.LastCommand())
}

func TestOptionVarsSetScalars(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		call func(s *Session) error
		want string
	}{
		{
			"int",
			func(s *Session) error { return s.OptionVars().SetInt(t.Context(), "undoLevels", 50) },
			`optionVar -iv "undoLevels" 50;`,
		},
		{
			"float",
			func(s *Session) error { return s.OptionVars().SetFloat(t.Context(), "gridSpacing", 2.5) },
			`optionVar -fv "gridSpacing" 2.5;`,
		},
		{
			"string",
			func(s *Session) error {
				return s.OptionVars().SetString(t.Context(), "workingUnit", "cm")
			},
			`optionVar -sv "workingUnit" "cm";`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, h := newTestSession(t)
			require.NoError(t, tt.call(s))
			assert.Equal(t, tt.want, h.LastCommand())
		})
	}
}

func TestOptionVarsSetSlices(t *testing.T) {
	t.Parallel()

	t.Run("int slice writes atomically", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)

		require.NoError(t, s.OptionVars().SetInts(t.Context(), "recentCounts", []int{1, 2, 3}))
		assert.Equal(t,
			`optionVar -iv "recentCounts" 1; optionVar -iva "recentCounts" 2; optionVar -iva "recentCounts" 3;`,
			h.LastCommand())
		assert.Len(t, h.Commands(), 1, "slice set must be a single command")
	})

	t.Run("string slice", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)

		require.NoError(t, s.OptionVars().SetStrings(t.Context(), "recentFiles", []string{"a.ma", "b.ma"}))
		assert.Equal(t,
			`optionVar -sv "recentFiles" "a.ma"; optionVar -sva "recentFiles" "b.ma";`,
			h.LastCommand())
	})

	t.Run("single element has no append part", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)

		require.NoError(t, s.OptionVars().SetFloats(t.Context(), "weights", []float64{0.5}))
		assert.Equal(t, `optionVar -fv "weights" 0.5;`, h.LastCommand())
	})

	t.Run("empty slice removes the variable", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)

		require.NoError(t, s.OptionVars().SetInts(t.Context(), "recentCounts", nil))
		assert.Equal(t, `optionVar -remove "recentCounts";`, h.LastCommand())
	})
}

func TestOptionVarsAppend(t *testing.T) {
	t.Parallel()

	s, h := newTestSession(t)
	ov := s.OptionVars()

	require.NoError(t, ov.AppendInt(t.Context(), "counts", 4))
	assert.Equal(t, `optionVar -iva "counts" 4;`, h.LastCommand())

	require.NoError(t, ov.AppendFloat(t.Context(), "weights", 0.25))
	assert.Equal(t, `optionVar -fva "weights" 0.25;`, h.LastCommand())

	require.NoError(t, ov.AppendString(t.Context(), "recentFiles", "c.ma"))
	assert.Equal(t, `optionVar -sva "recentFiles" "c.ma";`, h.LastCommand())
}

func TestOptionVarsRemove(t *testing.T) {
	t.Parallel()

	s, h := newTestSession(t)
	require.NoError(t, s.OptionVars().Remove(t.Context(), "undoLevels"))
	assert.Equal(t, `optionVar -remove "undoLevels";`, h.LastCommand())
}

func TestOptionVarsKeys(t *testing.T) {
	t.Parallel()

	s, h := newTestSession(t)
	h.Handle("-list", meltest.Response{
		Result: mel.StringsResult([]string{"undoLevels", "gridSpacing"}),
	})

	keys, err := s.OptionVars().Keys(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"undoLevels", "gridSpacing"}, keys)
}

func TestOptionVarsEmptyKey(t *testing.T) {
	t.Parallel()

	s, _ := newTestSession(t)
	ov := s.OptionVars()

	_, err := ov.Get(t.Context(), "")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.ErrorIs(t, ov.SetInt(t.Context(), "", 1), ErrEmptyName)
	assert.ErrorIs(t, ov.Remove(t.Context(), ""), ErrEmptyName)
}
