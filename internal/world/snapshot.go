package world

import (
	"sort"
	"strings"
)

// PlacedProp is a prop with its tile coordinate.
type PlacedProp struct {
	X       int      `json:"x"`
	Y       int      `json:"y"`
	Kind    PropKind `json:"kind"`
	Variant int      `json:"variant"`
}

// Snapshot is the renderer-facing dump of a world.
type Snapshot struct {
	Config     Config       `json:"config"`
	Width      int          `json:"width"`
	Height     int          `json:"height"`
	Legend     []string     `json:"legend"` // Tile code → name
	Tiles      [][]int      `json:"tiles"`  // Row-major, tiles[y][x]
	Props      []PlacedProp `json:"props"`  // Sorted by y, then x
	Structures []Structure  `json:"structures"`
}

// Snapshot captures tiles, current props and structures. Props can be
// removed at runtime, so callers sharing the world must serialize this with
// RemoveProp.
func (w *World) Snapshot() Snapshot {
	width, height := w.Size()
	rows := make([][]int, height)
	for y := 0; y < height; y++ {
		row := make([]int, width)
		for x := 0; x < width; x++ {
			row[x] = int(w.Terrain.Tile(x, y))
		}
		rows[y] = row
	}

	props := make([]PlacedProp, 0, len(w.Terrain.props))
	for key, p := range w.Terrain.props {
		pt, err := ParseKey(key)
		if err != nil {
			continue
		}
		props = append(props, PlacedProp{X: pt.X, Y: pt.Y, Kind: p.Kind, Variant: p.Variant})
	}
	sort.Slice(props, func(i, j int) bool {
		if props[i].Y != props[j].Y {
			return props[i].Y < props[j].Y
		}
		return props[i].X < props[j].X
	})

	return Snapshot{
		Config:     w.Config,
		Width:      width,
		Height:     height,
		Legend:     append([]string(nil), tileNames[:]...),
		Tiles:      rows,
		Props:      props,
		Structures: w.Structures.All(),
	}
}

var tileGlyphs = [...]byte{
	TileWater: '~',
	TileSand:  '.',
	TileGrass: ',',
	TileDirt:  ':',
	TileStone: '^',
	TileSnow:  '*',
	TileRoad:  '=',
	TilePlaza: '#',
	TileField: '_',
}

var structureGlyphs = map[StructureType]byte{
	StructureFountain: 'F',
	StructureBench:    'b',
	StructureLampPost: 'i',
	StructureHouse:    'H',
	StructureShop:     'S',
}

// ASCII renders the map one character per tile. Structures draw over
// tiles; sports fields show their carved surface.
func (w *World) ASCII() string {
	width, height := w.Size()
	var b strings.Builder
	b.Grow((width + 1) * height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if st := w.Structures.At(x, y); st != nil {
				if g, ok := structureGlyphs[st.Type]; ok {
					b.WriteByte(g)
					continue
				}
			}
			t := w.Terrain.Tile(x, y)
			g := byte('?')
			if int(t) < len(tileGlyphs) {
				g = tileGlyphs[t]
			}
			b.WriteByte(g)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
