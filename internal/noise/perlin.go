package noise

import "math"

const (
	lcgMultiplier = 16807
	lcgModulus    = 2147483647
)

// Perlin is classic gradient noise over a seeded permutation table.
type Perlin struct {
	perm [512]int
}

// NewPerlin builds the permutation table with a Fisher–Yates shuffle driven
// by the Park–Miller LCG, then duplicates it so lookups never wrap.
func NewPerlin(seed int64) *Perlin {
	p := &Perlin{}
	var base [256]int
	for i := range base {
		base[i] = i
	}

	n := seed % lcgModulus
	if n <= 0 {
		n += lcgModulus - 1
	}
	for i := 255; i > 0; i-- {
		n = (n * lcgMultiplier) % lcgModulus
		j := int(n % int64(i+1))
		base[i], base[j] = base[j], base[i]
	}

	for i := 0; i < 512; i++ {
		p.perm[i] = base[i&255]
	}
	return p
}

// Noise2D implements Field. The natural [-1, 1] range is mapped to [0, 1].
func (p *Perlin) Noise2D(x, y float64) float64 {
	xf := math.Floor(x)
	yf := math.Floor(y)
	xi := int(xf) & 255
	yi := int(yf) & 255
	x -= xf
	y -= yf

	u := fade(x)
	v := fade(y)

	a := p.perm[xi] + yi
	b := p.perm[xi+1] + yi

	n := lerp(v,
		lerp(u, grad(p.perm[a], x, y), grad(p.perm[b], x-1, y)),
		lerp(u, grad(p.perm[a+1], x, y-1), grad(p.perm[b+1], x-1, y-1)),
	)
	return clamp01((n + 1) / 2)
}

func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float64) float64 {
	return a + t*(b-a)
}

func grad(hash int, x, y float64) float64 {
	switch hash & 3 {
	case 0:
		return x + y
	case 1:
		return -x + y
	case 2:
		return x - y
	default:
		return -x - y
	}
}
