package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/idle-isle/internal/agents"
	"github.com/talgya/idle-isle/internal/movement"
	"github.com/talgya/idle-isle/internal/persistence"
	"github.com/talgya/idle-isle/internal/world"
)

var (
	ErrUnknownAgent = errors.New("engine: unknown agent")
	ErrNameTaken    = errors.New("engine: name taken")
	ErrInvalidName  = errors.New("engine: invalid name")
	ErrNoPath       = errors.New("engine: no path")
	ErrTileBusy     = errors.New("engine: tile busy")
)

// maxEvents bounds the recent-event ring.
const maxEvents = 100

// AgentStore is the persistence collaborator. *persistence.Store satisfies it.
type AgentStore interface {
	GetAll(ctx context.Context) ([]agents.Record, error)
	GetByName(ctx context.Context, name string) (agents.Record, error)
	Create(ctx context.Context, name string, x, y, variant int, gender agents.Gender) (agents.Record, error)
	Delete(ctx context.Context, id string) error
}

// Event is a notable occurrence in the world.
type Event struct {
	Frame       uint64 `json:"frame"`
	Description string `json:"description"`
	Category    string `json:"category"` // "spawn", "remove", "sit", "sync"
}

// Simulation holds the world and the live agents. Every method is safe for
// concurrent use; Frame takes the write lock so readers always see a whole
// frame.
type Simulation struct {
	mu sync.RWMutex

	world    *world.World
	agents   []agents.Agent
	local    map[string]bool // Agents that exist only in memory
	addedAt  map[string]uint64 // Spawn sequence per live spawned agent
	addSeq   uint64 // Bumped on every spawn; resync snapshots it before fetching
	movement *movement.System
	store    AgentStore
	spawner  *agents.Spawner
	rng      *rand.Rand
	frame    uint64
	events   []Event
	logger   *slog.Logger
}

// NewSimulation creates a Simulation over w. store may be nil, in which case
// agents live only in memory.
func NewSimulation(w *world.World, mv *movement.System, store AgentStore, seed int64) *Simulation {
	return &Simulation{
		world:    w,
		local:    make(map[string]bool),
		addedAt:  make(map[string]uint64),
		movement: mv,
		store:    store,
		spawner:  agents.NewSpawner(seed),
		rng:      rand.New(rand.NewSource(seed + 400)),
		logger:   slog.Default().With("component", "simulation"),
	}
}

// World returns the static world.
func (s *Simulation) World() *world.World {
	return s.world
}

// CurrentFrame returns the number of frames stepped.
func (s *Simulation) CurrentFrame() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// MovementStats returns the movement system's counters.
func (s *Simulation) MovementStats() movement.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movement.Stats()
}

// Agents returns a snapshot of the live agents.
func (s *Simulation) Agents() []agents.Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agents.Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Agent returns one agent by ID.
func (s *Simulation) Agent(id string) (agents.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return agents.Agent{}, ErrUnknownAgent
	}
	return s.agents[i], nil
}

// Props returns the current prop map. Props can disappear at runtime, so
// readers go through the simulation lock rather than the terrain.
func (s *Simulation) Props() map[string]world.Prop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.Terrain.Props()
}

// WorldSnapshot dumps the world with its current props.
func (s *Simulation) WorldSnapshot() world.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.Snapshot()
}

// PropAt returns the prop on a tile, if any.
func (s *Simulation) PropAt(x, y int) (world.Prop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world.PropAt(x, y)
}

// Events returns the most recent events, oldest first.
func (s *Simulation) Events() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event(nil), s.events...)
}

// Frame advances every agent by dtMs.
func (s *Simulation) Frame(dtMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame++
	prev := s.agents
	s.agents = s.movement.Tick(prev, dtMs, s.world)

	for i := range s.agents {
		if s.agents[i].State == agents.StateSitting && prev[i].State != agents.StateSitting {
			s.sitDown(&s.agents[i])
		}
	}
}

// Load hydrates agents from the store. A failed fetch is logged and the
// world starts without them; the next resync retries.
func (s *Simulation) Load(ctx context.Context) {
	if err := s.Resync(ctx); err != nil {
		s.logger.Warn("initial agent load failed, continuing without stored agents", "error", err)
	}
}

// Resync reconciles the live list with the store: records that appeared are
// hydrated, agents whose records vanished are dropped. Positions already in
// memory win over stored ones. Agents spawned after the fetch started are
// never dropped, since the fetched list cannot know about them.
func (s *Simulation) Resync(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.RLock()
	fetchSeq := s.addSeq
	s.mu.RUnlock()

	recs, err := s.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("resync: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make(map[string]agents.Record, len(recs))
	for _, r := range recs {
		stored[r.ID] = r
	}

	kept := s.agents[:0:0]
	var removed int
	for _, a := range s.agents {
		if _, ok := stored[a.ID]; ok || s.local[a.ID] || s.addedAt[a.ID] > fetchSeq {
			kept = append(kept, a)
			continue
		}
		delete(s.addedAt, a.ID)
		removed++
		s.recordEvent("remove", fmt.Sprintf("%s left the island", a.Name))
	}
	s.agents = kept

	var added int
	for _, r := range recs {
		if s.indexOf(r.ID) >= 0 {
			continue
		}
		a := agents.Hydrate(r)
		if !s.world.InBounds(a.X, a.Y) || s.world.IsBlocked(a.X, a.Y) || s.occupied(a.Tile(), "") {
			p := s.spawnPoint()
			a.X, a.Y = p.X, p.Y
		}
		s.agents = append(s.agents, a)
		added++
	}

	if added > 0 || removed > 0 {
		s.logger.Info("resynced agents", "added", added, "removed", removed, "total", len(s.agents))
		s.recordEvent("sync", fmt.Sprintf("%d arrived, %d left", added, removed))
	}
	return nil
}

// Spawn creates a new agent near the world center. The name must be unique
// after normalization.
func (s *Simulation) Spawn(ctx context.Context, name string, variant int, gender agents.Gender) (agents.Agent, error) {
	key := agents.NormalizeName(name)
	if key == "" {
		return agents.Agent{}, ErrInvalidName
	}

	s.mu.Lock()
	if s.nameTaken(key) {
		s.mu.Unlock()
		return agents.Agent{}, ErrNameTaken
	}
	p := s.spawnPoint()
	s.mu.Unlock()

	var a agents.Agent
	local := false
	if s.store == nil {
		a = agents.New(name, p.X, p.Y, variant, gender)
		local = true
	} else {
		rec, err := s.store.Create(ctx, name, p.X, p.Y, variant, gender)
		switch {
		case errors.Is(err, persistence.ErrNameTaken):
			return agents.Agent{}, ErrNameTaken
		case err != nil:
			s.logger.Warn("agent store unavailable, spawning locally", "name", name, "error", err)
			a = agents.New(name, p.X, p.Y, variant, gender)
			local = true
		default:
			a = agents.Spawned(rec)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(a.ID); i >= 0 {
		// A resync during Create already hydrated the new record.
		live := &s.agents[i]
		live.SpawningIn, live.SpawnTimer = a.SpawningIn, a.SpawnTimer
		s.recordEvent("spawn", fmt.Sprintf("%s arrived at %d,%d", live.Name, live.X, live.Y))
		return *live, nil
	}
	if s.nameTakenBy(key, a.ID) {
		return agents.Agent{}, ErrNameTaken
	}
	if s.occupied(a.Tile(), "") || s.world.IsBlocked(a.X, a.Y) {
		p := s.spawnPoint()
		a.X, a.Y = p.X, p.Y
	}
	if local {
		s.local[a.ID] = true
	}
	s.addSeq++
	s.addedAt[a.ID] = s.addSeq
	s.agents = append(s.agents, a)
	s.recordEvent("spawn", fmt.Sprintf("%s arrived at %d,%d", a.Name, a.X, a.Y))
	s.logger.Debug("agent spawned", "id", a.ID, "name", a.Name, "x", a.X, "y", a.Y, "local", local)
	return a, nil
}

// Populate spawns generated wanderers until at least n agents exist.
func (s *Simulation) Populate(ctx context.Context, n int) error {
	for {
		s.mu.Lock()
		if len(s.agents) >= n {
			s.mu.Unlock()
			return nil
		}
		taken := make(map[string]bool, len(s.agents))
		for _, a := range s.agents {
			taken[agents.NormalizeName(a.Name)] = true
		}
		name, variant, gender := s.spawner.Name(taken), s.spawner.Variant(), s.spawner.Gender()
		s.mu.Unlock()

		_, err := s.Spawn(ctx, name, variant, gender)
		if err != nil && !errors.Is(err, ErrNameTaken) {
			return fmt.Errorf("populate: %w", err)
		}
	}
}

// Remove deletes an agent from the world and the store.
func (s *Simulation) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrUnknownAgent
	}
	a := s.agents[i]
	s.agents = append(s.agents[:i:i], s.agents[i+1:]...)
	wasLocal := s.local[id]
	delete(s.local, id)
	delete(s.addedAt, id)
	s.recordEvent("remove", fmt.Sprintf("%s left the island", a.Name))
	s.mu.Unlock()

	if s.store == nil || wasLocal {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// MoveTo sends an agent along the shortest path to goal. With sit set the
// agent sits down on arrival. An agent mid-step finishes its current step
// first.
func (s *Simulation) MoveTo(id string, goal world.Point, sit bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrUnknownAgent
	}
	a := s.agents[i]

	start := a.Tile()
	if a.Target != nil {
		start = *a.Target
	}
	finder := s.movement.Finder(s.world)
	path := finder.FindPath(start, goal, s.movement.Params().MaxExplored)
	if path == nil {
		return ErrNoPath
	}

	if a.Target != nil {
		a.Path = path
	} else if len(path) > 0 {
		first := path[0]
		if s.occupied(first, a.ID) {
			return ErrTileBusy
		}
		a.Target = &first
		a.MoveProgress = 0
		a.Path = path[1:]
	}

	dest := goal
	a.Destination = &dest
	a.SitOnArrival = sit
	a.State = agents.StateMoving

	if a.Target == nil {
		// Already standing on the goal.
		a.Destination = nil
		a.SitOnArrival = false
		a.State = agents.StateIdle
		if sit {
			a.State = agents.StateSitting
		}
	}
	s.agents[i] = a
	if a.State == agents.StateSitting {
		s.sitDown(&s.agents[i])
	}
	return nil
}

// Sit seats an agent where it stands, or on arrival if it is walking.
func (s *Simulation) Sit(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrUnknownAgent
	}
	a := &s.agents[i]
	if a.Target != nil {
		a.SitOnArrival = true
		return nil
	}
	if a.State != agents.StateSitting {
		a.State = agents.StateSitting
		s.sitDown(a)
	}
	return nil
}

// Stand gets a sitting agent back on its feet.
func (s *Simulation) Stand(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrUnknownAgent
	}
	a := &s.agents[i]
	a.SitOnArrival = false
	if a.State == agents.StateSitting {
		a.State = agents.StateIdle
		a.IdleTimer = s.movement.Params().IdleMinMs
	}
	return nil
}

// SetPlayer marks an agent as user-controlled. Player agents never pick
// their own destinations.
func (s *Simulation) SetPlayer(id string, player bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrUnknownAgent
	}
	s.agents[i].IsPlayer = player
	return nil
}

// sitDown consumes a towel under a freshly seated agent.
func (s *Simulation) sitDown(a *agents.Agent) {
	s.recordEvent("sit", fmt.Sprintf("%s sat down at %d,%d", a.Name, a.X, a.Y))
	prop, ok := s.world.PropAt(a.X, a.Y)
	if !ok || prop.Kind != world.PropTowel {
		return
	}
	s.world.Terrain.RemoveProp(a.X, a.Y)
	s.logger.Debug("towel taken", "agent", a.Name, "x", a.X, "y", a.Y)
}

// spawnPoint resolves a free tile. Callers hold the write lock.
func (s *Simulation) spawnPoint() world.Point {
	w, h := s.world.Size()
	return world.FindSpawnPoint(s.world, s.rng, func(p world.Point) bool {
		return s.occupied(p, "")
	}, world.DefaultSpawnOptions(w, h))
}

// occupied reports whether any agent other than except rests on or is
// stepping into p.
func (s *Simulation) occupied(p world.Point, except string) bool {
	for _, a := range s.agents {
		if a.ID == except {
			continue
		}
		if a.Tile() == p || (a.Target != nil && *a.Target == p) {
			return true
		}
	}
	return false
}

func (s *Simulation) nameTaken(key string) bool {
	return s.nameTakenBy(key, "")
}

// nameTakenBy reports whether an agent other than except holds key.
func (s *Simulation) nameTakenBy(key, except string) bool {
	for _, a := range s.agents {
		if a.ID != except && agents.NormalizeName(a.Name) == key {
			return true
		}
	}
	return false
}

func (s *Simulation) indexOf(id string) int {
	for i := range s.agents {
		if s.agents[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Simulation) recordEvent(category, desc string) {
	s.events = append(s.events, Event{Frame: s.frame, Description: desc, Category: category})
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}
