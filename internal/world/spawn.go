package world

import "math/rand"

// SpawnOptions bounds the ring search used to place new agents.
type SpawnOptions struct {
	MinCandidates int // Stop once this many valid tiles are collected
	MinRadius     int // Past this radius, any candidate is enough to stop
	MaxRadius     int // Search limit; beyond it the center is returned
}

// DefaultSpawnOptions scales the search to the map.
func DefaultSpawnOptions(width, height int) SpawnOptions {
	return SpawnOptions{
		MinCandidates: 8,
		MinRadius:     4,
		MaxRadius:     max(width, height) / 2,
	}
}

// FindSpawnPoint searches square rings outward from the center for walkable,
// unoccupied tiles and returns one of them at random, so simultaneous spawns
// do not stack on one tile. occupied may be nil. Falls back to the exact
// center when nothing within MaxRadius qualifies.
func FindSpawnPoint(g Grid, rng *rand.Rand, occupied func(Point) bool, opts SpawnOptions) Point {
	w, h := g.Size()
	center := Pt(w/2, h/2)

	var candidates []Point
	for r := 0; r <= opts.MaxRadius; r++ {
		for _, p := range ring(center, r) {
			if g.IsBlocked(p.X, p.Y) {
				continue
			}
			if occupied != nil && occupied(p) {
				continue
			}
			candidates = append(candidates, p)
		}
		if len(candidates) >= opts.MinCandidates {
			break
		}
		if r >= opts.MinRadius && len(candidates) > 0 {
			break
		}
	}

	if len(candidates) == 0 {
		return center
	}
	return candidates[rng.Intn(len(candidates))]
}

// ring returns the perimeter of the square of Chebyshev radius r around c,
// row by row from the top.
func ring(c Point, r int) []Point {
	if r == 0 {
		return []Point{c}
	}
	pts := make([]Point, 0, 8*r)
	for x := c.X - r; x <= c.X+r; x++ {
		pts = append(pts, Pt(x, c.Y-r))
	}
	for y := c.Y - r + 1; y <= c.Y+r-1; y++ {
		pts = append(pts, Pt(c.X-r, y), Pt(c.X+r, y))
	}
	for x := c.X - r; x <= c.X+r; x++ {
		pts = append(pts, Pt(x, c.Y+r))
	}
	return pts
}
