package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melport/melport/mel"
	"github.com/melport/melport/meltest"
)

func TestGlobalsDeclare(t *testing.T) {
	t.Parallel()

	t.Run("normalizes and caches", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestSession(t)
		g := s.Globals()

		name, err := g.Declare(mel.TypeString, "gMyStrVar")
		require.NoError(t, err)
		assert.Equal(t, "$gMyStrVar", name)

		typ, ok := g.CachedType("gMyStrVar")
		require.True(t, ok)
		assert.Equal(t, mel.TypeString, typ)

		// cache lookup works with or without the $ prefix
		typ, ok = g.CachedType("$gMyStrVar")
		require.True(t, ok)
		assert.Equal(t, mel.TypeString, typ)
	})

	t.Run("already-prefixed name", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestSession(t)

		name, err := s.Globals().Declare(mel.TypeIntArray, "$gInts")
		require.NoError(t, err)
		assert.Equal(t, "$gInts", name)
	})

	t.Run("pseudo-types rejected", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestSession(t)

		_, err := s.Globals().Declare(mel.TypeBool, "gFlag")
		require.Error(t, err)
		_, err = s.Globals().Declare(mel.TypeMatrix, "gXform")
		require.Error(t, err)
		_, err = s.Globals().Declare(mel.Type("double"), "gD")
		require.Error(t, err)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestSession(t)
		_, err := s.Globals().Declare(mel.TypeString, "")
		assert.ErrorIs(t, err, ErrEmptyName)
		_, err = s.Globals().Declare(mel.TypeString, "$")
		assert.ErrorIs(t, err, ErrEmptyName)
	})
}

func TestGlobalsGet(t *testing.T) {
	t.Parallel()

	t.Run("scalar with declared type", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)
		g := s.Globals()
		h.Handle("melport_get_global_string", meltest.Response{
			Result: mel.StringResult("mainFileMenu"),
		})

		_, err := g.Declare(mel.TypeString, "gMainFileMenu")
		require.NoError(t, err)

		res, err := g.Get(t.Context(), "gMainFileMenu")
		require.NoError(t, err)
		v, err := res.Str()
		require.NoError(t, err)
		assert.Equal(t, "mainFileMenu", v)

		assert.Equal(t,
			"global proc string melport_get_global_string() { global string $gMainFileMenu; return $gMainFileMenu; } melport_get_global_string();",
			h.LastCommand())
	})

	t.Run("array wrapper declares array proc", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)
		g := s.Globals()
		h.Handle("melport_get_global_intArray", meltest.Response{
			Result: mel.IntsResult([]int{1, 2, 3}),
		})

		res, err := g.GetTyped(t.Context(), "gCounts", mel.TypeIntArray)
		require.NoError(t, err)
		vs, err := res.Ints()
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, vs)

		assert.Equal(t,
			"global proc int[] melport_get_global_intArray() { global int $gCounts[]; return $gCounts; } melport_get_global_intArray();",
			h.LastCommand())
	})

	t.Run("unknown type probes whatIs", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)
		g := s.Globals()
		h.Handle("whatIs", meltest.Response{Result: mel.StringResult("int variable")})
		h.Handle("melport_get_global_int", meltest.Response{Result: mel.IntResult(1)})

		res, err := g.Get(t.Context(), "gGridDisplayGridLinesDefault")
		require.NoError(t, err)
		v, err := res.Int()
		require.NoError(t, err)
		assert.Equal(t, 1, v)

		cmds := h.Commands()
		require.Len(t, cmds, 2)
		assert.Equal(t, `whatIs "$gGridDisplayGridLinesDefault"`, cmds[0])

		// probe result primes the cache; the next get skips whatIs
		_, err = g.Get(t.Context(), "gGridDisplayGridLinesDefault")
		require.NoError(t, err)
		assert.Len(t, h.Commands(), 3)
	})

	t.Run("unresolvable type errors with guidance", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)
		h.Handle("whatIs", meltest.Response{Result: mel.StringResult("Unknown")})

		_, err := s.Globals().Get(t.Context(), "gNoSuchVar")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownGlobalType)
	})
}

func TestGlobalsSet(t *testing.T) {
	t.Parallel()

	t.Run("scalar", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)
		g := s.Globals()

		_, err := g.Declare(mel.TypeString, "gMyStrVar")
		require.NoError(t, err)
		require.NoError(t, g.Set(t.Context(), "gMyStrVar", "fooey"))

		assert.Equal(t, `global string $gMyStrVar; $gMyStrVar="fooey";`, h.LastCommand())
	})

	t.Run("array", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)

		err := s.Globals().SetTyped(t.Context(), "gWeights", mel.TypeFloatArray, []float64{0.5, 1.5})
		require.NoError(t, err)
		assert.Equal(t, `global float $gWeights[]; $gWeights={0.5,1.5};`, h.LastCommand())
	})

	t.Run("explicit type primes cache", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)
		g := s.Globals()

		require.NoError(t, g.SetTyped(t.Context(), "gCount", mel.TypeInt, 3))
		typ, ok := g.CachedType("gCount")
		require.True(t, ok)
		assert.Equal(t, mel.TypeInt, typ)

		// second set resolves from the cache, no whatIs round trip
		require.NoError(t, g.Set(t.Context(), "gCount", 4))
		for _, cmd := range h.Commands() {
			assert.NotContains(t, cmd, "whatIs")
		}
	})

	t.Run("unformattable value", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestSession(t)
		g := s.Globals()
		_, err := g.Declare(mel.TypeString, "gX")
		require.NoError(t, err)

		err = g.Set(t.Context(), "gX", struct{}{})
		assert.ErrorIs(t, err, mel.ErrNoMelType)
	})
}

func TestGlobalsSetIndex(t *testing.T) {
	t.Parallel()

	t.Run("element assignment", func(t *testing.T) {
		t.Parallel()
		s, h := newTestSession(t)
		g := s.Globals()
		_, err := g.Declare(mel.TypeStringArray, "gNames")
		require.NoError(t, err)

		require.NoError(t, g.SetIndex(t.Context(), "gNames", 2, "persp"))
		assert.Equal(t, `global string $gNames[]; $gNames[2]="persp";`, h.LastCommand())
	})

	t.Run("scalar global rejected", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestSession(t)
		g := s.Globals()
		_, err := g.Declare(mel.TypeInt, "gCount")
		require.NoError(t, err)

		err = g.SetIndex(t.Context(), "gCount", 0, 1)
		require.Error(t, err)
	})

	t.Run("negative index rejected", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestSession(t)
		g := s.Globals()
		_, err := g.Declare(mel.TypeIntArray, "gInts")
		require.NoError(t, err)

		err = g.SetIndex(t.Context(), "gInts", -1, 1)
		require.Error(t, err)
	})
}

func TestGlobalsTypeOf(t *testing.T) {
	t.Parallel()

	s, h := newTestSession(t)
	h.Handle("whatIs", meltest.Response{Result: mel.StringResult("string[] variable")})

	typ, err := s.Globals().TypeOf(t.Context(), "gNames")
	require.NoError(t, err)
	assert.Equal(t, mel.TypeStringArray, typ)
	assert.Equal(t, `whatIs "$gNames"`, h.LastCommand())
}

func TestGlobalsNames(t *testing.T) {
	t.Parallel()

	s, h := newTestSession(t)
	h.HandleFunc(func(cmd string) bool { return cmd == "env" }, meltest.Response{
		Result: mel.StringsResult([]string{"$gMainFileMenu", "$gGrid"}),
	})

	names, err := s.Globals().Names(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"$gMainFileMenu", "$gGrid"}, names)
}
