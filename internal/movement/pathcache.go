package movement

import (
	"github.com/talgya/idle-isle/internal/pathfind"
	"github.com/talgya/idle-isle/internal/world"
)

// pathCache holds one Finder per map size. A same-size grid swap rebinds the
// Finder; a resize rebuilds it.
type pathCache struct {
	width  int
	height int
	finder *pathfind.Finder
}

func (c *pathCache) get(g world.Grid) *pathfind.Finder {
	w, h := g.Size()
	if c.finder == nil || c.width != w || c.height != h {
		c.finder = pathfind.New(g)
		c.width, c.height = w, h
		return c.finder
	}
	c.finder.Bind(g)
	return c.finder
}
