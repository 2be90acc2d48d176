// Package world provides the tile grid, procedural terrain and structures,
// and the blocking oracle every other system consults for walkability.
package world

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// Point is a tile coordinate on the grid.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y int) Point {
	return Point{X: x, Y: y}
}

// Key returns the "x,y" form used to key sparse per-tile maps.
func (p Point) Key() string {
	return strconv.Itoa(p.X) + "," + strconv.Itoa(p.Y)
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (Point, error) {
	xs, ys, ok := strings.Cut(key, ",")
	if !ok {
		return Point{}, fmt.Errorf("bad tile key %q", key)
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return Point{}, fmt.Errorf("bad tile key %q: %w", key, err)
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return Point{}, fmt.Errorf("bad tile key %q: %w", key, err)
	}
	return Point{X: x, Y: y}, nil
}

// Add returns p offset by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// NeighborDirections are the four orthogonal offsets in a fixed order
// (up, right, down, left) so searches expand deterministically.
var NeighborDirections = [4]Point{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// Neighbors returns the four orthogonally adjacent points.
func (p Point) Neighbors() [4]Point {
	var result [4]Point
	for i, dir := range NeighborDirections {
		result[i] = p.Add(dir)
	}
	return result
}

// Manhattan returns |dx| + |dy|.
func Manhattan(a, b Point) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Chebyshev returns max(|dx|, |dy|).
func Chebyshev(a, b Point) int {
	return max(abs(a.X-b.X), abs(a.Y-b.Y))
}

// Grid is the walkability view consumed by pathfinding, spawning and
// movement. World is the production implementation.
type Grid interface {
	IsBlocked(x, y int) bool
	Size() (width, height int)
}

// Tile is the biome/surface code of a single cell.
type Tile uint8

const (
	TileWater Tile = iota // Impassable; also the out-of-bounds sentinel
	TileSand
	TileGrass
	TileDirt
	TileStone
	TileSnow
	TileRoad
	TilePlaza
	TileField // Sports field footprint carved by structure generation
)

var tileNames = [...]string{
	TileWater: "water",
	TileSand:  "sand",
	TileGrass: "grass",
	TileDirt:  "dirt",
	TileStone: "stone",
	TileSnow:  "snow",
	TileRoad:  "road",
	TilePlaza: "plaza",
	TileField: "field",
}

// String returns the lower-case tile name.
func (t Tile) String() string {
	if int(t) < len(tileNames) {
		return tileNames[t]
	}
	return "unknown"
}

// PropKind enumerates decorative, non-colliding tile features.
type PropKind uint8

const (
	PropTree PropKind = iota
	PropBush
	PropFlower
	PropRock
	PropUmbrella
	PropTowel // Consumed when an agent sits on it
)

var propNames = [...]string{
	PropTree:     "tree",
	PropBush:     "bush",
	PropFlower:   "flower",
	PropRock:     "rock",
	PropUmbrella: "umbrella",
	PropTowel:    "towel",
}

// String returns the lower-case prop name.
func (k PropKind) String() string {
	if int(k) < len(propNames) {
		return propNames[k]
	}
	return "unknown"
}

// MarshalText encodes the kind by name.
func (k PropKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind written by MarshalText.
func (k *PropKind) UnmarshalText(text []byte) error {
	i, err := lookupName(propNames[:], text)
	if err != nil {
		return fmt.Errorf("prop kind: %w", err)
	}
	*k = PropKind(i)
	return nil
}

// lookupName returns the index of text in names.
func lookupName(names []string, text []byte) (int, error) {
	for i, n := range names {
		if n == string(text) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown name %q", text)
}

// Prop is a decorative feature on one tile.
type Prop struct {
	Kind    PropKind `json:"kind"`
	Variant int      `json:"variant"` // Visual selection only
}

func abs[T constraints.Signed](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
