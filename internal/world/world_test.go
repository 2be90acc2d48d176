package world

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsBlockedComposition(t *testing.T) {
	w := Generate(Config{Width: 40, Height: 40, Seed: "default"})

	assert.True(t, w.IsBlocked(-1, 5))
	assert.True(t, w.IsBlocked(5, 40))
	assert.True(t, w.IsBlocked(3, 39), "coast water")

	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			want := w.TileAt(x, y) == TileWater || w.Structures.IsBlocked(x, y)
			assert.Equal(t, want, w.IsBlocked(x, y), "x=%d y=%d", x, y)
		}
	}
}

func TestIsBlockedAtFloors(t *testing.T) {
	w := Generate(Config{Width: 40, Height: 40, Seed: "default"})
	assert.Equal(t, w.IsBlocked(20, 20), w.IsBlockedAt(20.9, 20.2))
	assert.True(t, w.IsBlockedAt(-0.5, 3))
}

func TestGenerateNormalizesConfig(t *testing.T) {
	w := Generate(Config{})
	width, height := w.Size()
	assert.Equal(t, 40, width)
	assert.Equal(t, 40, height)
	assert.Equal(t, "default", w.Config.Seed)
}

type gridFunc struct {
	w, h    int
	blocked func(x, y int) bool
}

func (g gridFunc) IsBlocked(x, y int) bool {
	if x < 0 || y < 0 || x >= g.w || y >= g.h {
		return true
	}
	return g.blocked(x, y)
}

func (g gridFunc) Size() (int, int) { return g.w, g.h }

func TestFindSpawnPointFullyBlocked(t *testing.T) {
	g := gridFunc{w: 30, h: 20, blocked: func(int, int) bool { return true }}
	p := FindSpawnPoint(g, rand.New(rand.NewSource(1)), nil, DefaultSpawnOptions(30, 20))
	assert.Equal(t, Pt(15, 10), p)
}

func TestFindSpawnPointNearCenter(t *testing.T) {
	g := gridFunc{w: 20, h: 20, blocked: func(x, y int) bool { return false }}
	opts := DefaultSpawnOptions(20, 20)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		p := FindSpawnPoint(g, rng, nil, opts)
		assert.False(t, g.IsBlocked(p.X, p.Y))
		// 1 + 8 candidates are collected by radius 1.
		assert.LessOrEqual(t, Chebyshev(p, Pt(10, 10)), 1)
	}
}

func TestFindSpawnPointSkipsOccupiedAndBlocked(t *testing.T) {
	// Only a ring at radius 3 is open.
	g := gridFunc{w: 20, h: 20, blocked: func(x, y int) bool {
		return Chebyshev(Pt(x, y), Pt(10, 10)) != 3
	}}
	taken := Pt(7, 7)
	occupied := func(p Point) bool { return p == taken }
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		p := FindSpawnPoint(g, rng, occupied, DefaultSpawnOptions(20, 20))
		assert.Equal(t, 3, Chebyshev(p, Pt(10, 10)))
		assert.NotEqual(t, taken, p)
	}
}

func TestFindSpawnPointSpreadsOut(t *testing.T) {
	g := gridFunc{w: 20, h: 20, blocked: func(int, int) bool { return false }}
	rng := rand.New(rand.NewSource(11))
	seen := map[Point]bool{}
	for i := 0; i < 40; i++ {
		seen[FindSpawnPoint(g, rng, nil, DefaultSpawnOptions(20, 20))] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestRing(t *testing.T) {
	assert.Equal(t, []Point{Pt(5, 5)}, ring(Pt(5, 5), 0))
	for r := 1; r < 5; r++ {
		pts := ring(Pt(0, 0), r)
		assert.Len(t, pts, 8*r)
		seen := map[Point]bool{}
		for _, p := range pts {
			assert.Equal(t, r, Chebyshev(p, Pt(0, 0)))
			seen[p] = true
		}
		assert.Len(t, seen, 8*r)
	}
}

func TestPointHelpers(t *testing.T) {
	assert.Equal(t, "3,-4", Pt(3, -4).Key())
	assert.Equal(t, 7, Manhattan(Pt(0, 0), Pt(3, -4)))
	assert.Equal(t, 4, Chebyshev(Pt(0, 0), Pt(3, -4)))
	n := Pt(1, 1).Neighbors()
	assert.Equal(t, [4]Point{Pt(1, 0), Pt(2, 1), Pt(1, 2), Pt(0, 1)}, n)
}

func TestParseKey(t *testing.T) {
	p, err := ParseKey(Pt(12, -7).Key())
	require.NoError(t, err)
	assert.Equal(t, Pt(12, -7), p)

	for _, bad := range []string{"", "3", "a,1", "1,b"} {
		_, err := ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestSnapshot(t *testing.T) {
	w := Generate(Config{Width: 30, Height: 24, Seed: "snap"})
	snap := w.Snapshot()

	assert.Equal(t, 30, snap.Width)
	require.Len(t, snap.Tiles, 24)
	assert.Len(t, snap.Tiles[0], 30)
	assert.Equal(t, "water", snap.Legend[0])
	assert.Equal(t, int(TileWater), snap.Tiles[23][5])
	assert.Len(t, snap.Props, len(w.Terrain.Props()))
	assert.Equal(t, w.Structures.All(), snap.Structures)
	for i := 1; i < len(snap.Props); i++ {
		a, b := snap.Props[i-1], snap.Props[i]
		assert.True(t, a.Y < b.Y || (a.Y == b.Y && a.X < b.X))
	}
}

func TestASCII(t *testing.T) {
	w := Generate(Config{Width: 30, Height: 24, Seed: "snap"})
	lines := strings.Split(strings.TrimSuffix(w.ASCII(), "\n"), "\n")
	require.Len(t, lines, 24)
	assert.Len(t, lines[0], 30)
	assert.Equal(t, strings.Repeat("~", 30), lines[23])

	c := w.Center()
	assert.Equal(t, byte('F'), lines[c.Y][c.X])
}
