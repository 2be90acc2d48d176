package movement

import (
	"github.com/talgya/idle-isle/internal/agents"
	"github.com/talgya/idle-isle/internal/world"
)

// occupancy maps each tile to the agents resting on or heading into it
// during the current frame.
type occupancy map[world.Point][]string

func buildOccupancy(list []agents.Agent) occupancy {
	occ := make(occupancy, len(list)*2)
	for _, a := range list {
		occ.claim(a.Tile(), a.ID)
		if a.Target != nil {
			occ.claim(*a.Target, a.ID)
		}
	}
	return occ
}

func (o occupancy) claim(p world.Point, id string) {
	for _, owner := range o[p] {
		if owner == id {
			return
		}
	}
	o[p] = append(o[p], id)
}

// busyFor reports whether anyone other than id holds p. An agent never
// blocks itself.
func (o occupancy) busyFor(p world.Point, id string) bool {
	for _, owner := range o[p] {
		if owner != id {
			return true
		}
	}
	return false
}
