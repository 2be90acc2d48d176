package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/idle-isle/internal/world"
)

func TestNormalizeName(t *testing.T) {
	for in, want := range map[string]string{
		"Alice":       "alice",
		"  BOB  ":     "bob",
		"@Carol":      "carol",
		"@@ dave ":    "dave",
		"":            "",
		"Erin Farrow": "erin farrow",
	} {
		assert.Equal(t, want, NormalizeName(in), "in=%q", in)
	}
}

func TestNameHashIgnoresNormalization(t *testing.T) {
	assert.Equal(t, NameHash("alice"), NameHash("  @ALICE "))
	assert.NotEqual(t, NameHash("alice"), NameHash("alicf"))
	// ((h<<5)-h)+c == 31*h+c
	assert.Equal(t, uint32(31*'a'+'b'), NameHash("ab"))
}

func TestDeriveAttributesDeterministic(t *testing.T) {
	a := DeriveAttributes("Wren Voss", 2)
	b := DeriveAttributes("@wren voss", 2)
	assert.Equal(t, a, b)

	c := DeriveAttributes("Wren Voss", 3)
	assert.Equal(t, a.Color, c.Color, "color follows the name only")

	assert.GreaterOrEqual(t, a.Speed, 1.6)
	assert.Less(t, a.Speed, 2.4)
	assert.GreaterOrEqual(t, a.AnimPhase, 0.0)
	assert.Less(t, a.AnimPhase, 1.0)
	assert.Equal(t, a.Temperament.Template().SpeedMultiplier, a.SpeedMultiplier)
}

func TestHydrateRederivesAttributes(t *testing.T) {
	rec := Record{ID: "id-1", Name: "Mira Deepwell", X: 4, Y: 9, Variant: 1, Gender: GenderFemale}
	a := Hydrate(rec)
	assert.Equal(t, "id-1", a.ID)
	assert.Equal(t, world.Pt(4, 9), a.Tile())
	assert.Equal(t, StateIdle, a.State)
	assert.False(t, a.SpawningIn)
	assert.Equal(t, DeriveAttributes("Mira Deepwell", 1), a.Attributes)
	assert.Greater(t, a.IdleTimer, 0.0)
}

func TestNewLocalAgentSpawnsIn(t *testing.T) {
	a := New("Kael", 3, 3, 0, GenderMale)
	b := New("Kael", 3, 3, 0, GenderMale)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.SpawningIn)
	assert.Equal(t, float64(SpawnAnimationMs), a.SpawnTimer)
	assert.Equal(t, a.Attributes, b.Attributes)
}

func TestInterpolated(t *testing.T) {
	a := Agent{X: 2, Y: 5}
	x, y := a.Interpolated()
	assert.Equal(t, 2.0, x)
	assert.Equal(t, 5.0, y)

	a.Target = &world.Point{X: 3, Y: 5}
	a.MoveProgress = 0.25
	x, y = a.Interpolated()
	assert.InDelta(t, 2.25, x, 1e-9)
	assert.Equal(t, 5.0, y)
}

func TestSpawnerNamesAreUnique(t *testing.T) {
	s := NewSpawner(42)
	taken := map[string]bool{}
	for i := 0; i < 900; i++ {
		name := s.Name(taken)
		key := NormalizeName(name)
		require.False(t, taken[key], "duplicate %q", name)
		taken[key] = true
	}
}

func TestParseGender(t *testing.T) {
	assert.Equal(t, GenderMale, ParseGender("Male"))
	assert.Equal(t, GenderFemale, ParseGender(" f "))
	assert.Equal(t, GenderNeutral, ParseGender("other"))
}

func TestStateText(t *testing.T) {
	b, err := StateSitting.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "sitting", string(b))
}
