package world

import (
	"fmt"
	"math"

	"github.com/talgya/idle-isle/internal/noise"
)

// World composes terrain, structures and bounds into the blocking oracle.
// It is the single authority on walkability.
type World struct {
	Config     Config
	Terrain    *Terrain
	Structures *Structures
}

// Generate builds the complete world for cfg. Deterministic in cfg.
func Generate(cfg Config) *World {
	cfg = cfg.Normalized()
	field := noise.New(cfg.Noise, SeedValue(cfg.Seed))
	t := GenerateTerrain(cfg, field)
	s := GenerateStructures(t, field, cfg.Seed)
	return &World{
		Config:     cfg,
		Terrain:    t,
		Structures: s,
	}
}

// Size implements Grid.
func (w *World) Size() (int, int) {
	return w.Terrain.Width, w.Terrain.Height
}

// InBounds returns true if (x, y) lies on the grid.
func (w *World) InBounds(x, y int) bool {
	return w.Terrain.InBounds(x, y)
}

// IsBlocked implements Grid: out of bounds, water, or a solid structure.
func (w *World) IsBlocked(x, y int) bool {
	if !w.InBounds(x, y) {
		return true
	}
	if w.Terrain.Tile(x, y) == TileWater {
		return true
	}
	return w.Structures.IsBlocked(x, y)
}

// IsBlockedAt floors fractional coordinates before testing.
func (w *World) IsBlockedAt(x, y float64) bool {
	return w.IsBlocked(int(math.Floor(x)), int(math.Floor(y)))
}

// Center returns the center tile.
func (w *World) Center() Point {
	return w.Terrain.center()
}

// TileAt returns the tile at (x, y); TileWater out of bounds.
func (w *World) TileAt(x, y int) Tile {
	return w.Terrain.Tile(x, y)
}

// PropAt returns the prop on (x, y), if any.
func (w *World) PropAt(x, y int) (Prop, bool) {
	return w.Terrain.PropAt(x, y)
}

// StructureAt returns the structure covering (x, y), or nil.
func (w *World) StructureAt(x, y int) *Structure {
	return w.Structures.At(x, y)
}

// String returns a summary of the world.
func (w *World) String() string {
	return fmt.Sprintf("World(%dx%d, seed=%q, structures=%d)",
		w.Terrain.Width, w.Terrain.Height, w.Config.Seed, w.Structures.Len())
}
