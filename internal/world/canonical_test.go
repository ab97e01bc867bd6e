package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{
		"zeta":  int64(1),
		"alpha": int64(2),
		"mid":   int64(3),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(b))
}

func TestMarshalCanonical_Floats(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, "0.5"},
		{-0.125, "-0.125"},
		{1.0, "1"},
		{0.0, "0"},
	}
	for _, tc := range tests {
		b, err := MarshalCanonical(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(b))
	}
}

func TestMarshalCanonical_RejectsNil(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(b))
}

func TestMarshalCanonical_StateDeterministic(t *testing.T) {
	s := NewState()
	s.Turn = 7
	s.Overlays["hope"] = 0.5
	s.Overlays["fear"] = -0.25
	s.Variables["energy_cost"] = 1.5

	first, err := MarshalCanonical(s)
	require.NoError(t, err)

	// Same content rebuilt in a different insertion order.
	s2 := NewState()
	s2.Turn = 7
	s2.Variables["energy_cost"] = 1.5
	s2.Overlays["fear"] = -0.25
	s2.Overlays["hope"] = 0.5

	second, err := MarshalCanonical(s2)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestHashes_StableAndDistinct(t *testing.T) {
	s := NewState()
	s.Overlays["hope"] = 0.5

	h1, err := StateHash(s)
	require.NoError(t, err)
	h2, err := StateHash(s.Clone())
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "equal states must hash identically")

	s.Overlays["hope"] = 0.25
	h3, err := StateHash(s)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	// Domain separation: a delta never collides with a state.
	dh, err := DeltaHash(Delta{"overlays.hope": {Old: 0, New: 0.5}})
	require.NoError(t, err)
	assert.NotEqual(t, h1, dh)
}
