// Terrain generation from a seeded noise field.
// Bands the base noise into biomes, then layers a central plaza, a southern
// coastline, an interrupted road lattice and decorative props.
package world

import (
	"unicode/utf16"

	"github.com/talgya/idle-isle/internal/noise"
)

// Generation constants.
const (
	terrainScale  = 0.1 // Base noise sampling scale
	roadScale     = 0.5 // Secondary noise scale for road interruptions
	roadThreshold = 0.35
	roadEveryX    = 10
	roadEveryY    = 8
	plazaRadius   = 3.0

	bandWater = 0.30
	bandSand  = 0.38
	bandGrass = 0.62
	bandDirt  = 0.72
	bandStone = 0.80

	propThreshold      = 0.90
	beachPropThreshold = 0.92
)

// SeedValue folds a seed string into a numeric seed by summing its UTF-16
// code units. Weak on purpose: the same string must always give the same
// world, and swapping the fold would reshuffle every existing world.
func SeedValue(seed string) int64 {
	var sum int64
	for _, u := range utf16.Encode([]rune(seed)) {
		sum += int64(u)
	}
	return sum
}

// Terrain is the immutable tile grid plus sparse props.
type Terrain struct {
	Width  int
	Height int
	Seed   string

	tiles []Tile
	props map[string]Prop
}

// GenerateTerrain builds the grid for cfg using field as the base noise.
// Output is a pure function of (width, height, seed, field).
func GenerateTerrain(cfg Config, field noise.Field) *Terrain {
	cfg = cfg.Normalized()
	t := &Terrain{
		Width:  cfg.Width,
		Height: cfg.Height,
		Seed:   cfg.Seed,
		tiles:  make([]Tile, cfg.Width*cfg.Height),
		props:  make(map[string]Prop),
	}
	seed := SeedValue(cfg.Seed)

	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			n := field.Noise2D(float64(x)*terrainScale, float64(y)*terrainScale)
			tile := classify(n)

			if t.inPlaza(x, y) {
				tile = TilePlaza
			}
			if y >= t.Height-coastWaterRows(t.Height) {
				tile = TileWater
			} else if t.onBeach(y) {
				tile = TileSand
			}

			// Roads only replace grass/dirt, which is exactly the mid noise band.
			if (x%roadEveryX == 0 || y%roadEveryY == 0) && (tile == TileGrass || tile == TileDirt) {
				if field.Noise2D(float64(x)*roadScale, float64(y)*roadScale) > roadThreshold {
					tile = TileRoad
				}
			}

			t.tiles[y*t.Width+x] = tile

			if prop, ok := t.propFor(x, y, tile, seed); ok {
				t.props[Pt(x, y).Key()] = prop
			}
		}
	}

	return t
}

// classify maps base noise to a biome tile by fixed cut points.
func classify(n float64) Tile {
	switch {
	case n < bandWater:
		return TileWater
	case n < bandSand:
		return TileSand
	case n < bandGrass:
		return TileGrass
	case n < bandDirt:
		return TileDirt
	case n < bandStone:
		return TileStone
	default:
		return TileSnow
	}
}

// isHighBand reports whether base noise falls in the stone/snow bands.
func isHighBand(n float64) bool {
	return n >= bandDirt
}

// coastWaterRows is the number of bottom rows forced to water.
func coastWaterRows(height int) int {
	return max(1, height/20)
}

// coastRows is the number of bottom rows (water included) forming the coast.
func coastRows(height int) int {
	return max(2, height/10)
}

func (t *Terrain) onBeach(y int) bool {
	return y >= t.Height-coastRows(t.Height)
}

func (t *Terrain) inPlaza(x, y int) bool {
	c := t.center()
	dx := float64(x - c.X)
	dy := float64(y - c.Y)
	return dx*dx+dy*dy <= plazaRadius*plazaRadius
}

func (t *Terrain) center() Point {
	return Pt(t.Width/2, t.Height/2)
}

// propFor decides the decorative prop of a tile, if any.
func (t *Terrain) propFor(x, y int, tile Tile, seed int64) (Prop, bool) {
	h := noise.Hash01(x, y, seed)
	variant := int(h*1000) % 3

	switch tile {
	case TileGrass, TileDirt:
		if h <= propThreshold {
			return Prop{}, false
		}
		r := (h - propThreshold) / (1 - propThreshold)
		kind := PropRock
		switch {
		case r < 0.45:
			kind = PropTree
		case r < 0.70:
			kind = PropBush
		case r < 0.88:
			kind = PropFlower
		}
		return Prop{Kind: kind, Variant: variant}, true
	case TileSand:
		if !t.onBeach(y) || h <= beachPropThreshold {
			return Prop{}, false
		}
		r := (h - beachPropThreshold) / (1 - beachPropThreshold)
		if r < 0.5 {
			return Prop{Kind: PropUmbrella, Variant: variant}, true
		}
		return Prop{Kind: PropTowel, Variant: variant}, true
	}
	return Prop{}, false
}

// InBounds returns true if (x, y) lies on the grid.
func (t *Terrain) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < t.Width && y < t.Height
}

// Tile returns the tile at (x, y). Out-of-bounds reads return TileWater, so
// world edges are impassable without extra checks.
func (t *Terrain) Tile(x, y int) Tile {
	if !t.InBounds(x, y) {
		return TileWater
	}
	return t.tiles[y*t.Width+x]
}

// setTile overwrites a tile. Only structure generation carves terrain.
func (t *Terrain) setTile(x, y int, tile Tile) {
	if t.InBounds(x, y) {
		t.tiles[y*t.Width+x] = tile
	}
}

// PropAt returns the prop on (x, y), if any.
func (t *Terrain) PropAt(x, y int) (Prop, bool) {
	p, ok := t.props[Pt(x, y).Key()]
	return p, ok
}

// RemoveProp deletes the prop on (x, y) and reports whether one existed.
func (t *Terrain) RemoveProp(x, y int) (Prop, bool) {
	key := Pt(x, y).Key()
	p, ok := t.props[key]
	if ok {
		delete(t.props, key)
	}
	return p, ok
}

// Tiles returns a copy of the row-major tile array.
func (t *Terrain) Tiles() []Tile {
	out := make([]Tile, len(t.tiles))
	copy(out, t.tiles)
	return out
}

// Props returns a copy of the prop map keyed by "x,y".
func (t *Terrain) Props() map[string]Prop {
	out := make(map[string]Prop, len(t.props))
	for k, v := range t.props {
		out[k] = v
	}
	return out
}

// Counts returns a summary of tile type distribution.
func (t *Terrain) Counts() map[Tile]int {
	counts := make(map[Tile]int)
	for _, tile := range t.tiles {
		counts[tile]++
	}
	return counts
}
