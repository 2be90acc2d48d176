// Package noise provides seeded 2D coherent noise fields used by world
// generation. Every field is a pure function of its seed and coordinates.
package noise

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// Field samples coherent noise in [0, 1].
type Field interface {
	Noise2D(x, y float64) float64
}

// Noise kinds accepted by New.
const (
	KindPerlin  = "perlin"
	KindSimplex = "simplex"
)

// New returns the field for the given kind. Unknown kinds get Perlin, which
// is the reference generator for reproducible worlds.
func New(kind string, seed int64) Field {
	if kind == KindSimplex {
		return NewSimplex(seed)
	}
	return NewPerlin(seed)
}

// Simplex is an OpenSimplex field normalized to [0, 1].
type Simplex struct {
	n opensimplex.Noise
}

// NewSimplex creates an OpenSimplex-backed field.
func NewSimplex(seed int64) *Simplex {
	return &Simplex{n: opensimplex.NewNormalized(seed)}
}

// Noise2D implements Field.
func (s *Simplex) Noise2D(x, y float64) float64 {
	return clamp01(s.n.Eval2(x, y))
}

// Hash01 is the per-tile decoration hash: the fractional part of
// sin(x*12.9898 + y*78.233 + seed) * 43758.5453.
func Hash01(x, y int, seed int64) float64 {
	v := math.Sin(float64(x)*12.9898+float64(y)*78.233+float64(seed)) * 43758.5453
	return v - math.Floor(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
