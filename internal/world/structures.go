// Structure placement: a central landmark with its amenities, then houses
// along roads and lamp posts scored by proximity to houses.
package world

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/talgya/idle-isle/internal/noise"
)

// StructureType enumerates placed world objects.
type StructureType uint8

const (
	StructureFountain    StructureType = iota // Central plaza landmark
	StructureBench                            // Amenity around the fountain
	StructureLampPost                         // Along roads near houses
	StructureHouse                            // Residential building
	StructureShop                             // Commercial building
	StructureSportsField                      // Large carved footprint
)

var structureNames = [...]string{
	StructureFountain:    "fountain",
	StructureBench:       "bench",
	StructureLampPost:    "lamp_post",
	StructureHouse:       "house",
	StructureShop:        "shop",
	StructureSportsField: "sports_field",
}

// String returns the snake_case type name.
func (s StructureType) String() string {
	if int(s) < len(structureNames) {
		return structureNames[s]
	}
	return "unknown"
}

// MarshalText encodes the type by name.
func (s StructureType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a type written by MarshalText.
func (s *StructureType) UnmarshalText(text []byte) error {
	i, err := lookupName(structureNames[:], text)
	if err != nil {
		return fmt.Errorf("structure type: %w", err)
	}
	*s = StructureType(i)
	return nil
}

// Blocks reports whether agents collide with this type. Decorative and
// walkable types (benches, lamps, fields) do not block.
func (s StructureType) Blocks() bool {
	switch s {
	case StructureFountain, StructureHouse, StructureShop:
		return true
	default:
		return false
	}
}

// Structure is a fixed-footprint object anchored at its top-left tile.
type Structure struct {
	ID     string        `json:"id"`
	Type   StructureType `json:"type"`
	X      int           `json:"x"`
	Y      int           `json:"y"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
}

// Contains reports whether (x, y) lies inside the footprint.
func (s Structure) Contains(x, y int) bool {
	return x >= s.X && x < s.X+s.Width && y >= s.Y && y < s.Y+s.Height
}

// Overlaps reports whether two footprints intersect.
func (s Structure) Overlaps(o Structure) bool {
	return s.X < o.X+o.Width && o.X < s.X+s.Width &&
		s.Y < o.Y+o.Height && o.Y < s.Y+s.Height
}

// distanceTo returns the Manhattan distance from p to the nearest footprint tile.
func (s Structure) distanceTo(p Point) int {
	dx := 0
	if p.X < s.X {
		dx = s.X - p.X
	} else if p.X >= s.X+s.Width {
		dx = p.X - (s.X + s.Width - 1)
	}
	dy := 0
	if p.Y < s.Y {
		dy = s.Y - p.Y
	} else if p.Y >= s.Y+s.Height {
		dy = p.Y - (s.Y + s.Height - 1)
	}
	return dx + dy
}

// Placement constants.
const (
	fountainSize      = 2
	fieldWidth        = 8
	fieldHeight       = 5
	fieldMinWorld     = 24 // Both dimensions must reach this for a field
	fieldOrigin       = 2
	exclusionRadius   = int(plazaRadius) + 3
	tilesPerHouse     = 100
	houseRetryFactor  = 20
	houseMinSize      = 2
	houseMaxSize      = 3
	shopChance        = 0.2
	lampRadius        = 6
	lampMinSpacing    = 5
	structureSeedSalt = 500
)

// benchOffsets are hand-placed around the fountain's top-left tile.
var benchOffsets = [...]Point{
	{X: -2, Y: 0},
	{X: 3, Y: 1},
	{X: 1, Y: -2},
	{X: 0, Y: 3},
}

// Structures is the generated structure set with a per-tile lookup index.
type Structures struct {
	width  int
	height int
	list   []Structure
	index  []int32 // Tile → position in list, -1 when empty
}

// GenerateStructures places every structure for the terrain. It may carve
// terrain tiles (the sports field), so the terrain and structures of a seed
// are produced together. Same inputs give the same list in the same order.
func GenerateStructures(t *Terrain, field noise.Field, seed string) *Structures {
	s := &Structures{
		width:  t.Width,
		height: t.Height,
		index:  make([]int32, t.Width*t.Height),
	}
	for i := range s.index {
		s.index[i] = -1
	}

	rng := rand.New(rand.NewSource(SeedValue(seed) + structureSeedSalt))

	// Fixed landmark at the center, unconditionally.
	c := t.center()
	fountain := Structure{
		ID:     "fountain-0",
		Type:   StructureFountain,
		X:      c.X - fountainSize/2,
		Y:      c.Y - fountainSize/2,
		Width:  fountainSize,
		Height: fountainSize,
	}
	s.add(fountain)

	for i, off := range benchOffsets {
		b := Structure{
			ID:     fmt.Sprintf("bench-%d", i),
			Type:   StructureBench,
			X:      fountain.X + off.X,
			Y:      fountain.Y + off.Y,
			Width:  1,
			Height: 1,
		}
		if !t.InBounds(b.X, b.Y) || t.Tile(b.X, b.Y) == TileWater || s.overlapsAny(b) {
			continue
		}
		s.add(b)
	}

	if t.Width >= fieldMinWorld && t.Height >= fieldMinWorld {
		f := Structure{
			ID:     "sports-field-0",
			Type:   StructureSportsField,
			X:      fieldOrigin,
			Y:      fieldOrigin,
			Width:  fieldWidth,
			Height: fieldHeight,
		}
		if !s.overlapsAny(f) {
			for y := f.Y; y < f.Y+f.Height; y++ {
				for x := f.X; x < f.X+f.Width; x++ {
					t.setTile(x, y, TileField)
					t.RemoveProp(x, y)
				}
			}
			s.add(f)
		}
	}

	houses := s.placeHouses(t, field, rng)
	s.placeLamps(t, houses)

	return s
}

// placeHouses draws candidate buildings until the target count is reached
// or the retry budget runs out. Returns the accepted buildings.
func (s *Structures) placeHouses(t *Terrain, field noise.Field, rng *rand.Rand) []Structure {
	target := (t.Width * t.Height) / tilesPerHouse
	attempts := target * houseRetryFactor
	var placed []Structure

	for i := 0; i < attempts && len(placed) < target; i++ {
		w := houseMinSize + rng.Intn(houseMaxSize-houseMinSize+1)
		h := houseMinSize + rng.Intn(houseMaxSize-houseMinSize+1)
		// Keep a one-tile margin inside the map.
		spanX := t.Width - w - 1
		spanY := t.Height - h - 1
		if spanX <= 1 || spanY <= 1 {
			break
		}
		x := 1 + rng.Intn(spanX-1)
		y := 1 + rng.Intn(spanY-1)
		typ := StructureHouse
		if rng.Float64() < shopChance {
			typ = StructureShop
		}

		cand := Structure{Type: typ, X: x, Y: y, Width: w, Height: h}
		if !s.houseSiteOK(t, field, cand) {
			continue
		}
		cand.ID = fmt.Sprintf("%s-%d", typ, len(placed))
		s.add(cand)
		placed = append(placed, cand)
	}

	return placed
}

// houseSiteOK applies the rejection rules: no overlap, outside the central
// exclusion zone, above the beach, no water or high ground in the footprint
// plus margin, not on a road, and adjacent to at least one road tile.
func (s *Structures) houseSiteOK(t *Terrain, field noise.Field, cand Structure) bool {
	if s.overlapsAny(cand) {
		return false
	}

	c := t.center()
	exclusion := Structure{
		X:      c.X - exclusionRadius,
		Y:      c.Y - exclusionRadius,
		Width:  exclusionRadius*2 + 1,
		Height: exclusionRadius*2 + 1,
	}
	if cand.Overlaps(exclusion) {
		return false
	}

	if cand.Y+cand.Height > t.Height-coastRows(t.Height)-1 {
		return false
	}

	nearRoad := false
	for y := cand.Y - 1; y <= cand.Y+cand.Height; y++ {
		for x := cand.X - 1; x <= cand.X+cand.Width; x++ {
			tile := t.Tile(x, y)
			if tile == TileWater {
				return false
			}
			if isHighBand(field.Noise2D(float64(x)*terrainScale, float64(y)*terrainScale)) {
				return false
			}
			if tile == TileRoad {
				if cand.Contains(x, y) {
					return false
				}
				nearRoad = true
			}
		}
	}
	return nearRoad
}

// placeLamps scores every road tile by proximity to houses and greedily
// accepts the best spots with a minimum spacing between lamps.
func (s *Structures) placeLamps(t *Terrain, houses []Structure) {
	if len(houses) == 0 {
		return
	}

	type scored struct {
		p     Point
		score float64
	}
	var candidates []scored

	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			if t.Tile(x, y) != TileRoad {
				continue
			}
			p := Pt(x, y)
			score := 0.0
			for _, h := range houses {
				d := h.distanceTo(p)
				if d < lampRadius {
					score += 1 - float64(d)/lampRadius
				}
			}
			if score > 0 {
				candidates = append(candidates, scored{p, score})
			}
		}
	}

	// Stable keeps row-major order among equal scores.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var lamps []Point
	for _, c := range candidates {
		if len(lamps) >= len(houses) {
			break
		}
		tooClose := false
		for _, l := range lamps {
			if Manhattan(c.p, l) < lampMinSpacing {
				tooClose = true
				break
			}
		}
		if tooClose || t.Tile(c.p.X, c.p.Y) == TileWater {
			continue
		}
		lamp := Structure{
			ID:     fmt.Sprintf("lamp-%d", len(lamps)),
			Type:   StructureLampPost,
			X:      c.p.X,
			Y:      c.p.Y,
			Width:  1,
			Height: 1,
		}
		if s.overlapsAny(lamp) {
			continue
		}
		s.add(lamp)
		lamps = append(lamps, c.p)
	}
}

func (s *Structures) overlapsAny(cand Structure) bool {
	for _, existing := range s.list {
		if cand.Overlaps(existing) {
			return true
		}
	}
	return false
}

// add appends a structure and indexes its in-bounds tiles.
func (s *Structures) add(st Structure) {
	idx := int32(len(s.list))
	s.list = append(s.list, st)
	for y := st.Y; y < st.Y+st.Height; y++ {
		for x := st.X; x < st.X+st.Width; x++ {
			if x < 0 || y < 0 || x >= s.width || y >= s.height {
				continue
			}
			if s.index[y*s.width+x] < 0 {
				s.index[y*s.width+x] = idx
			}
		}
	}
}

// At returns the first structure whose footprint contains (x, y), or nil.
func (s *Structures) At(x, y int) *Structure {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return nil
	}
	i := s.index[y*s.width+x]
	if i < 0 {
		return nil
	}
	st := s.list[i]
	return &st
}

// IsBlocked reports whether a solid structure occupies (x, y).
func (s *Structures) IsBlocked(x, y int) bool {
	st := s.At(x, y)
	return st != nil && st.Type.Blocks()
}

// All returns a copy of the structures in placement order.
func (s *Structures) All() []Structure {
	out := make([]Structure, len(s.list))
	copy(out, s.list)
	return out
}

// Len returns the number of placed structures.
func (s *Structures) Len() int {
	return len(s.list)
}
