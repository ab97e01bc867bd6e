package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTestState() *State {
	s := NewState()
	s.Turn = 3
	s.Overlays["hope"] = 0.5
	s.Overlays["fear"] = -0.25
	s.Variables["energy_cost"] = 1.0
	return s
}

func TestClone_Independence(t *testing.T) {
	s := makeTestState()
	c := s.Clone()

	c.Turn = 99
	c.Overlays["hope"] = -1.0
	c.Variables["energy_cost"] = 42.0
	c.Variables["new_var"] = 7.0

	assert.Equal(t, int64(3), s.Turn, "clone must not share the turn counter")
	assert.Equal(t, 0.5, s.Overlays["hope"], "clone must not share the overlays map")
	assert.Equal(t, 1.0, s.Variables["energy_cost"], "clone must not share the variables map")
	_, exists := s.Variables["new_var"]
	assert.False(t, exists, "writes to the clone must not appear in the original")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*State)
		wantErr bool
	}{
		{"valid state", func(s *State) {}, false},
		{"negative turn", func(s *State) { s.Turn = -1 }, true},
		{"nil overlays", func(s *State) { s.Overlays = nil }, true},
		{"nil variables", func(s *State) { s.Variables = nil }, true},
		{"overlay above bounds", func(s *State) { s.Overlays["hope"] = 1.5 }, true},
		{"overlay below bounds", func(s *State) { s.Overlays["fear"] = -2.0 }, true},
		{"variable out of overlay bounds is fine", func(s *State) { s.Variables["energy_cost"] = 1e9 }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := makeTestState()
			tc.mutate(s)
			err := s.Validate(DefaultBounds)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValue_BarePathResolvesOverlayFirst(t *testing.T) {
	s := NewState()
	s.Overlays["mood"] = 0.1
	s.Variables["mood"] = 5.0

	v, ok := s.Value(Path{Space: SpaceBare, Name: "mood"})
	require.True(t, ok)
	assert.Equal(t, 0.1, v, "bare path must resolve the overlay namespace first")

	v, ok = s.Value(VariablePath("mood"))
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestSet_ClampsOverlays(t *testing.T) {
	s := makeTestState()

	stored := s.Set(OverlayPath("hope"), 2.5, DefaultBounds)
	assert.Equal(t, 1.0, stored)
	assert.Equal(t, 1.0, s.Overlays["hope"])

	stored = s.Set(VariablePath("energy_cost"), 2.5, DefaultBounds)
	assert.Equal(t, 2.5, stored, "variables are never clamped")
}

func TestSet_BarePathCreatesVariable(t *testing.T) {
	s := makeTestState()

	s.Set(Path{Space: SpaceBare, Name: "brand_new"}, 3.0, DefaultBounds)

	assert.Equal(t, 3.0, s.Variables["brand_new"])
	_, inOverlays := s.Overlays["brand_new"]
	assert.False(t, inOverlays)
}

func TestAdjust(t *testing.T) {
	s := makeTestState()

	v, ok := s.Adjust(VariablePath("energy_cost"), 1.5, DefaultBounds)
	require.True(t, ok)
	assert.Equal(t, 2.5, v)

	// Overlay adjustments clamp.
	v, ok = s.Adjust(OverlayPath("hope"), 10.0, DefaultBounds)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	// Missing targets are never created.
	_, ok = s.Adjust(VariablePath("missing"), 1.0, DefaultBounds)
	assert.False(t, ok)
	_, exists := s.Variables["missing"]
	assert.False(t, exists)
}

func TestDelete(t *testing.T) {
	s := makeTestState()

	assert.True(t, s.Delete(OverlayPath("fear")))
	_, exists := s.Overlays["fear"]
	assert.False(t, exists)

	assert.False(t, s.Delete(OverlayPath("fear")), "second delete finds nothing")
}

func TestPathMap_RoundTrip(t *testing.T) {
	s := makeTestState()

	m := s.PathMap()
	assert.Equal(t, 0.5, m["overlays.hope"])
	assert.Equal(t, 1.0, m["variables.energy_cost"])

	restored, err := FromPathMap(m, s.Turn)
	require.NoError(t, err)
	assert.Equal(t, s.Overlays, restored.Overlays)
	assert.Equal(t, s.Variables, restored.Variables)
	assert.Equal(t, s.Turn, restored.Turn)
}
