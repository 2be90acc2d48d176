package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerlinDeterministic(t *testing.T) {
	a := NewPerlin(1234)
	b := NewPerlin(1234)
	for y := -20; y < 20; y++ {
		for x := -20; x < 20; x++ {
			fx, fy := float64(x)*0.37, float64(y)*0.21
			require.Equal(t, a.Noise2D(fx, fy), b.Noise2D(fx, fy), "x=%d y=%d", x, y)
		}
	}
}

func TestPerlinRange(t *testing.T) {
	p := NewPerlin(99)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := p.Noise2D(float64(x)*0.1, float64(y)*0.1)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestPerlinLatticeIsMidpoint(t *testing.T) {
	// Gradient noise is zero on integer lattice points.
	p := NewPerlin(7)
	assert.Equal(t, 0.5, p.Noise2D(3, 4))
}

func TestPerlinPermutationIsPermutation(t *testing.T) {
	for _, seed := range []int64{0, 1, -5, 2147483647, 98765} {
		p := NewPerlin(seed)
		seen := make(map[int]bool, 256)
		for i := 0; i < 256; i++ {
			seen[p.perm[i]] = true
			assert.Equal(t, p.perm[i], p.perm[i+256])
		}
		assert.Len(t, seen, 256, "seed=%d", seed)
	}
}

func TestSeedsDiffer(t *testing.T) {
	a := NewPerlin(1)
	b := NewPerlin(2)
	diff := 0
	for x := 0; x < 50; x++ {
		if a.Noise2D(float64(x)*0.13+0.5, 0.77) != b.Noise2D(float64(x)*0.13+0.5, 0.77) {
			diff++
		}
	}
	assert.Greater(t, diff, 0)
}

func TestSimplexRangeAndDeterminism(t *testing.T) {
	a := New(KindSimplex, 42)
	b := New(KindSimplex, 42)
	for x := 0; x < 30; x++ {
		v := a.Noise2D(float64(x)*0.1, 1.3)
		assert.Equal(t, v, b.Noise2D(float64(x)*0.1, 1.3))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNewDefaultsToPerlin(t *testing.T) {
	_, ok := New("", 3).(*Perlin)
	assert.True(t, ok)
	_, ok = New("unknown", 3).(*Perlin)
	assert.True(t, ok)
}

func TestHash01(t *testing.T) {
	for x := -10; x < 10; x++ {
		for y := -10; y < 10; y++ {
			h := Hash01(x, y, 517)
			assert.GreaterOrEqual(t, h, 0.0)
			assert.Less(t, h, 1.0)
			assert.Equal(t, h, Hash01(x, y, 517))
		}
	}
}
