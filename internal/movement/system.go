// Package movement advances every agent once per frame: interpolating
// tile-to-tile steps, choosing random-walk destinations for idle agents,
// resolving tile contention and flushing settled positions.
package movement

import (
	"log/slog"
	"math/rand"

	"github.com/talgya/idle-isle/internal/agents"
	"github.com/talgya/idle-isle/internal/pathfind"
	"github.com/talgya/idle-isle/internal/world"
)

// Params tunes the movement state machine. Durations are milliseconds.
type Params struct {
	IdleMinMs         float64 // Lower bound of the post-walk rest
	IdleMaxMs         float64 // Upper bound of the post-walk rest
	RetryMs           float64 // Wait after every wander attempt failed
	ConflictPenaltyMs float64 // Wait after a contested waypoint aborted a walk
	MinWanderDistance int     // Manhattan distance floor for random destinations
	WanderAttempts    int     // Destinations tried per decision
	MaxExplored       int     // A* expansion cap per search
	DefaultSpeed      float64 // Tiles/second when an agent has none
}

// DefaultParams returns the standard tuning.
func DefaultParams() Params {
	return Params{
		IdleMinMs:         2000,
		IdleMaxMs:         6000,
		RetryMs:           1000,
		ConflictPenaltyMs: 500,
		MinWanderDistance: 5,
		WanderAttempts:    8,
		MaxExplored:       1500,
		DefaultSpeed:      2,
	}
}

// Flusher receives settled positions. Implementations must not block; the
// tick never waits on persistence.
type Flusher interface {
	Enqueue(u agents.PositionUpdate) bool
}

// Stats counts movement outcomes since the System was created.
type Stats struct {
	Walks        uint64 `json:"walks"`         // Wander paths adopted
	WanderMisses uint64 `json:"wander_misses"` // Decisions where every attempt failed
	Conflicts    uint64 `json:"conflicts"`     // Walks aborted on a contested tile
	Arrivals     uint64 `json:"arrivals"`      // Walks completed
	Flushed      uint64 `json:"flushed"`       // Positions handed to the flusher
	FlushDropped uint64 `json:"flush_dropped"` // Positions the flusher refused
}

// System is the per-frame movement transform. It is not safe for concurrent
// use; the frame loop is its only caller.
type System struct {
	params  Params
	rng     *rand.Rand
	flusher Flusher
	logger  *slog.Logger
	paths   pathCache
	stats   Stats
}

// NewSystem creates a movement system. flusher may be nil.
func NewSystem(params Params, rng *rand.Rand, flusher Flusher) *System {
	return &System{
		params:  params,
		rng:     rng,
		flusher: flusher,
		logger:  slog.Default().With("component", "movement"),
	}
}

// Params returns the system's tuning.
func (s *System) Params() Params {
	return s.params
}

// Stats returns a copy of the outcome counters.
func (s *System) Stats() Stats {
	return s.stats
}

// Finder returns the cached pathfinder for g, rebuilding it if the map size
// changed. Commands outside the tick (click-to-move) share it.
func (s *System) Finder(g world.Grid) *pathfind.Finder {
	return s.paths.get(g)
}

// Tick advances all agents by dtMs and returns the next agent list. The input
// slice is not modified. Failures become state transitions; nothing escapes
// the tick.
func (s *System) Tick(list []agents.Agent, dtMs float64, g world.Grid) []agents.Agent {
	out := make([]agents.Agent, len(list))
	copy(out, list)

	occ := buildOccupancy(out)
	finder := s.paths.get(g)

	for i := range out {
		a := &out[i]
		tickSpawn(a, dtMs)

		if a.Target != nil {
			s.advance(a, dtMs, g, occ)
			continue
		}
		if a.State == agents.StateIdle && !a.IsPlayer {
			s.wander(a, dtMs, g, occ, finder)
		}
	}

	return out
}

func tickSpawn(a *agents.Agent, dtMs float64) {
	if !a.SpawningIn {
		return
	}
	a.SpawnTimer -= dtMs
	if a.SpawnTimer <= 0 {
		a.SpawningIn = false
		a.SpawnTimer = 0
	}
}

// advance interpolates toward the target and, on arrival, snaps and either
// adopts the next waypoint or settles.
func (s *System) advance(a *agents.Agent, dtMs float64, g world.Grid, occ occupancy) {
	a.State = agents.StateMoving
	a.MoveProgress += dtMs / 1000 * s.speed(a)
	if a.MoveProgress < 1 {
		return
	}

	a.X, a.Y = a.Target.X, a.Target.Y
	a.MoveProgress = 1
	a.Target = nil

	if len(a.Path) > 0 {
		next := a.Path[0]
		a.Path = a.Path[1:]
		if canEnter(next, a, g, occ) {
			s.setTarget(a, next, occ)
			return
		}
		s.stats.Conflicts++
		s.logger.Debug("waypoint contested, abandoning path",
			"agent", a.Name, "at", a.Tile(), "waypoint", next)
		a.Path = nil
		a.Destination = nil
		a.SitOnArrival = false
		a.MoveProgress = 0
		a.State = agents.StateIdle
		a.IdleTimer = s.params.ConflictPenaltyMs
		return
	}

	s.stats.Arrivals++
	a.Path = nil
	a.Destination = nil
	a.MoveProgress = 0
	if a.SitOnArrival {
		a.SitOnArrival = false
		a.State = agents.StateSitting
	} else {
		a.State = agents.StateIdle
		a.IdleTimer = s.idleDuration(a)
	}
	s.flush(a)
}

// wander counts down the idle timer and, on expiry, tries to start a walk to
// a random distant destination.
func (s *System) wander(a *agents.Agent, dtMs float64, g world.Grid, occ occupancy, finder *pathfind.Finder) {
	a.IdleTimer -= dtMs
	if a.IdleTimer > 0 {
		return
	}

	w, h := g.Size()
	cur := a.Tile()
	for attempt := 0; attempt < s.params.WanderAttempts; attempt++ {
		dest := world.Pt(s.rng.Intn(w), s.rng.Intn(h))
		if world.Manhattan(cur, dest) < s.params.MinWanderDistance {
			continue
		}
		if g.IsBlocked(dest.X, dest.Y) || occ.busyFor(dest, a.ID) {
			continue
		}
		path := finder.FindPath(cur, dest, s.params.MaxExplored)
		if len(path) == 0 {
			continue
		}
		first := path[0]
		if !canEnter(first, a, g, occ) {
			continue
		}
		s.setTarget(a, first, occ)
		a.Path = path[1:]
		a.Destination = &dest
		s.stats.Walks++
		return
	}

	s.stats.WanderMisses++
	s.logger.Debug("no usable wander path", "agent", a.Name, "at", cur)
	a.IdleTimer = s.params.RetryMs
}

// setTarget commits the next tile and claims it for this frame.
func (s *System) setTarget(a *agents.Agent, p world.Point, occ occupancy) {
	t := p
	a.Target = &t
	a.MoveProgress = 0
	a.State = agents.StateMoving
	occ.claim(p, a.ID)
}

func (s *System) speed(a *agents.Agent) float64 {
	speed := a.Attributes.Speed
	if speed <= 0 {
		speed = s.params.DefaultSpeed
	}
	mult := a.Attributes.SpeedMultiplier
	if mult <= 0 {
		mult = 1
	}
	return speed * mult
}

func (s *System) idleDuration(a *agents.Agent) float64 {
	d := s.params.IdleMinMs + s.rng.Float64()*(s.params.IdleMaxMs-s.params.IdleMinMs)
	if a.Attributes.IdleScale > 0 {
		d *= a.Attributes.IdleScale
	}
	return d
}

// flush hands the settled position to persistence without waiting.
func (s *System) flush(a *agents.Agent) {
	if s.flusher == nil {
		return
	}
	if s.flusher.Enqueue(agents.PositionUpdate{ID: a.ID, X: a.X, Y: a.Y}) {
		s.stats.Flushed++
	} else {
		s.stats.FlushDropped++
	}
}

// canEnter checks the blocking oracle and this frame's claims.
func canEnter(p world.Point, a *agents.Agent, g world.Grid, occ occupancy) bool {
	return !g.IsBlocked(p.X, p.Y) && !occ.busyFor(p, a.ID)
}
