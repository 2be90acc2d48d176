package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/idle-isle/internal/agents"
	"github.com/talgya/idle-isle/internal/movement"
	"github.com/talgya/idle-isle/internal/persistence"
	"github.com/talgya/idle-isle/internal/world"
)

type memStore struct {
	mu        sync.Mutex
	recs      map[string]agents.Record
	next      int
	createErr error
	getAllErr error
	deleted   []string

	// afterCreate and afterGetAll run once, outside the store lock, to
	// interleave simulation calls with a store round trip.
	afterCreate func()
	afterGetAll func()
}

func runOnce(hook *func()) {
	if f := *hook; f != nil {
		*hook = nil
		f()
	}
}

func newMemStore() *memStore {
	return &memStore{recs: map[string]agents.Record{}}
}

func (m *memStore) GetAll(context.Context) ([]agents.Record, error) {
	out, err := m.getAll()
	if err == nil {
		runOnce(&m.afterGetAll)
	}
	return out, err
}

func (m *memStore) getAll() ([]agents.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getAllErr != nil {
		return nil, m.getAllErr
	}
	out := make([]agents.Record, 0, len(m.recs))
	for _, r := range m.recs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *memStore) GetByName(_ context.Context, name string) (agents.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if agents.NormalizeName(r.Name) == agents.NormalizeName(name) {
			return r, nil
		}
	}
	return agents.Record{}, persistence.ErrNotFound
}

func (m *memStore) Create(_ context.Context, name string, x, y, variant int, gender agents.Gender) (agents.Record, error) {
	rec, err := m.create(name, x, y, variant, gender)
	if err == nil {
		runOnce(&m.afterCreate)
	}
	return rec, err
}

func (m *memStore) create(name string, x, y, variant int, gender agents.Gender) (agents.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return agents.Record{}, m.createErr
	}
	for _, r := range m.recs {
		if agents.NormalizeName(r.Name) == agents.NormalizeName(name) {
			return agents.Record{}, persistence.ErrNameTaken
		}
	}
	m.next++
	rec := agents.Record{
		ID: fmt.Sprintf("rec-%d", m.next), Name: name, X: x, Y: y,
		Variant: variant, Gender: gender, CreatedAt: int64(m.next),
	}
	m.recs[rec.ID] = rec
	return rec, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.recs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memStore) put(rec agents.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
}

func newTestSim(t *testing.T, store AgentStore) *Simulation {
	t.Helper()
	w := world.Generate(world.Config{Width: 40, Height: 40, Seed: "engine-test"})
	mv := movement.NewSystem(movement.DefaultParams(), rand.New(rand.NewSource(1)), nil)
	return NewSimulation(w, mv, store, 42)
}

func TestSpawnEnforcesUniqueNames(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sim := newTestSim(t, store)

	a, err := sim.Spawn(ctx, "Coral", 1, agents.GenderFemale)
	require.NoError(t, err)
	assert.True(t, a.SpawningIn)
	assert.False(t, sim.World().IsBlocked(a.X, a.Y))
	assert.Equal(t, "rec-1", a.ID)

	_, err = sim.Spawn(ctx, "@CORAL ", 0, agents.GenderNeutral)
	assert.ErrorIs(t, err, ErrNameTaken)

	_, err = sim.Spawn(ctx, " @ ", 0, agents.GenderNeutral)
	assert.ErrorIs(t, err, ErrInvalidName)

	// A name known only to the store is still taken.
	store.put(agents.Record{ID: "other", Name: "Kelp"})
	_, err = sim.Spawn(ctx, "kelp", 0, agents.GenderNeutral)
	assert.ErrorIs(t, err, ErrNameTaken)

	assert.Len(t, sim.Agents(), 1)
}

func TestSpawnFallsBackToLocalAgent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.createErr = errors.New("database is locked")
	sim := newTestSim(t, store)

	a, err := sim.Spawn(ctx, "Drift", 0, agents.GenderNeutral)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)

	// Local agents survive a resync even though the store never saw them.
	require.NoError(t, sim.Resync(ctx))
	_, err = sim.Agent(a.ID)
	assert.NoError(t, err)

	require.NoError(t, sim.Remove(ctx, a.ID))
	assert.Empty(t, store.deleted)
}

func TestSpawnWithoutStore(t *testing.T) {
	sim := newTestSim(t, nil)
	a, err := sim.Spawn(context.Background(), "Solo", 2, agents.GenderMale)
	require.NoError(t, err)
	assert.Equal(t, agents.GenderMale, a.Gender)
	sim.Load(context.Background())
	assert.Len(t, sim.Agents(), 1)
}

func TestPopulateSpreadsAgents(t *testing.T) {
	sim := newTestSim(t, newMemStore())
	require.NoError(t, sim.Populate(context.Background(), 12))

	list := sim.Agents()
	require.Len(t, list, 12)
	tiles := map[world.Point]bool{}
	names := map[string]bool{}
	for _, a := range list {
		assert.False(t, tiles[a.Tile()], "two agents on %v", a.Tile())
		tiles[a.Tile()] = true
		key := agents.NormalizeName(a.Name)
		assert.False(t, names[key], "duplicate name %s", a.Name)
		names[key] = true
	}

	// Already populated: nothing new.
	require.NoError(t, sim.Populate(context.Background(), 5))
	assert.Len(t, sim.Agents(), 12)
}

func TestResyncAddsAndRemoves(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sim := newTestSim(t, store)

	kept, err := sim.Spawn(ctx, "Kept", 0, agents.GenderNeutral)
	require.NoError(t, err)
	gone, err := sim.Spawn(ctx, "Gone", 0, agents.GenderNeutral)
	require.NoError(t, err)

	// Stored position drifts; memory wins.
	rec := store.recs[kept.ID]
	rec.X, rec.Y = 0, 0
	store.put(rec)
	require.NoError(t, store.Delete(ctx, gone.ID))
	store.put(agents.Record{ID: "newcomer", Name: "Newcomer", X: 20, Y: 20, CreatedAt: 99})

	require.NoError(t, sim.Resync(ctx))

	got, err := sim.Agent(kept.ID)
	require.NoError(t, err)
	assert.Equal(t, kept.Tile(), got.Tile())

	_, err = sim.Agent(gone.ID)
	assert.ErrorIs(t, err, ErrUnknownAgent)

	n, err := sim.Agent("newcomer")
	require.NoError(t, err)
	assert.False(t, n.SpawningIn)
	assert.False(t, sim.World().IsBlocked(n.X, n.Y))
	assert.Equal(t, agents.DeriveAttributes("Newcomer", 0), n.Attributes)

	// A second resync is a no-op.
	require.NoError(t, sim.Resync(ctx))
	assert.Len(t, sim.Agents(), 2)
}

func TestResyncRelocatesBlockedRecords(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sim := newTestSim(t, store)

	// The bottom row is always water.
	store.put(agents.Record{ID: "sunk", Name: "Sunk", X: 3, Y: 39})
	sim.Load(ctx)

	a, err := sim.Agent("sunk")
	require.NoError(t, err)
	assert.False(t, sim.World().IsBlocked(a.X, a.Y))
}

func TestLoadSurvivesStoreOutage(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.put(agents.Record{ID: "waiting", Name: "Waiting", X: 20, Y: 22})
	store.getAllErr = errors.New("disk I/O error")
	sim := newTestSim(t, store)

	sim.Load(ctx)
	assert.Empty(t, sim.Agents())

	// The world keeps running and the next resync picks the record up.
	sim.Frame(33)
	store.mu.Lock()
	store.getAllErr = nil
	store.mu.Unlock()
	require.NoError(t, sim.Resync(ctx))
	_, err := sim.Agent("waiting")
	assert.NoError(t, err)
}

func TestSpawnRacingResyncKeepsAgent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sim := newTestSim(t, store)
	store.afterCreate = func() {
		require.NoError(t, sim.Resync(ctx))
	}

	a, err := sim.Spawn(ctx, "Pebble", 0, agents.GenderNeutral)
	require.NoError(t, err)
	assert.Equal(t, "rec-1", a.ID)
	assert.True(t, a.SpawningIn)

	list := sim.Agents()
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.True(t, list[0].SpawningIn)

	// Another ID still cannot claim the name.
	_, err = sim.Spawn(ctx, "pebble", 0, agents.GenderNeutral)
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestResyncKeepsAgentSpawnedDuringFetch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sim := newTestSim(t, store)

	var bob agents.Agent
	store.afterGetAll = func() {
		var err error
		bob, err = sim.Spawn(ctx, "Bob", 0, agents.GenderNeutral)
		require.NoError(t, err)
	}
	require.NoError(t, sim.Resync(ctx))

	_, err := sim.Agent(bob.ID)
	require.NoError(t, err, "agent spawned during the fetch was dropped")
	for _, e := range sim.Events() {
		assert.NotEqual(t, "remove", e.Category, e.Description)
	}

	// Once the store has it, later resyncs treat it like any record.
	require.NoError(t, sim.Resync(ctx))
	assert.Len(t, sim.Agents(), 1)
	require.NoError(t, store.Delete(ctx, bob.ID))
	require.NoError(t, sim.Resync(ctx))
	assert.Empty(t, sim.Agents())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sim := newTestSim(t, store)

	a, err := sim.Spawn(ctx, "Reed", 0, agents.GenderNeutral)
	require.NoError(t, err)

	require.NoError(t, sim.Remove(ctx, a.ID))
	assert.ErrorIs(t, sim.Remove(ctx, a.ID), ErrUnknownAgent)
	assert.Equal(t, []string{a.ID}, store.deleted)
	assert.Empty(t, sim.Agents())

	events := sim.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, "remove", events[len(events)-1].Category)
}

// reachableGoal finds a free tile a few steps from start.
func reachableGoal(t *testing.T, sim *Simulation, start world.Point) world.Point {
	t.Helper()
	finder := sim.movement.Finder(sim.World())
	w, h := sim.World().Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := world.Pt(x, y)
			d := world.Manhattan(start, p)
			if d < 3 || d > 6 {
				continue
			}
			if path := finder.FindPath(start, p, 1500); len(path) == d {
				return p
			}
		}
	}
	t.Fatal("no reachable goal near spawn")
	return world.Point{}
}

func TestMoveToWalksAndSits(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim(t, newMemStore())

	a, err := sim.Spawn(ctx, "Walker", 0, agents.GenderNeutral)
	require.NoError(t, err)
	require.NoError(t, sim.SetPlayer(a.ID, true))

	goal := reachableGoal(t, sim, a.Tile())
	require.NoError(t, sim.MoveTo(a.ID, goal, true))

	got, err := sim.Agent(a.ID)
	require.NoError(t, err)
	assert.Equal(t, agents.StateMoving, got.State)
	require.NotNil(t, got.Destination)
	assert.Equal(t, goal, *got.Destination)

	for i := 0; i < 400 && got.State != agents.StateSitting; i++ {
		sim.Frame(50)
		got, _ = sim.Agent(a.ID)
	}
	assert.Equal(t, agents.StateSitting, got.State)
	assert.Equal(t, goal, got.Tile())
	assert.True(t, got.IsPlayer)
	assert.NotZero(t, sim.CurrentFrame())
	assert.NotZero(t, sim.MovementStats().Arrivals)

	require.NoError(t, sim.Stand(a.ID))
	got, _ = sim.Agent(a.ID)
	assert.Equal(t, agents.StateIdle, got.State)
}

func TestMoveToRejectsUnreachable(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim(t, nil)
	a, err := sim.Spawn(ctx, "Stuck", 0, agents.GenderNeutral)
	require.NoError(t, err)

	assert.ErrorIs(t, sim.MoveTo(a.ID, world.Pt(3, 39), false), ErrNoPath)
	assert.ErrorIs(t, sim.MoveTo(a.ID, world.Pt(-1, 0), false), ErrNoPath)
	assert.ErrorIs(t, sim.MoveTo("nobody", world.Pt(1, 1), false), ErrUnknownAgent)

	// Moving onto the current tile with sit seats the agent immediately.
	require.NoError(t, sim.MoveTo(a.ID, a.Tile(), true))
	got, _ := sim.Agent(a.ID)
	assert.Equal(t, agents.StateSitting, got.State)
	assert.Nil(t, got.Target)
}

func TestMoveToRejectsBusyFirstStep(t *testing.T) {
	sim := newTestSim(t, nil)
	start := reachableStart(t, sim)
	next := start.Add(world.Pt(1, 0))

	sim.agents = []agents.Agent{
		{ID: "a", Name: "A", X: start.X, Y: start.Y, State: agents.StateIdle},
		{ID: "b", Name: "B", X: next.X, Y: next.Y, State: agents.StateIdle},
	}
	assert.ErrorIs(t, sim.MoveTo("a", next.Add(world.Pt(1, 0)), false), ErrTileBusy)
}

// reachableStart finds a tile with two free tiles in a row to its right.
// The only two-step path to x+2 passes x+1.
func reachableStart(t *testing.T, sim *Simulation) world.Point {
	t.Helper()
	w, h := sim.World().Size()
	for y := 0; y < h; y++ {
		for x := 0; x+2 < w; x++ {
			if !sim.World().IsBlocked(x, y) && !sim.World().IsBlocked(x+1, y) && !sim.World().IsBlocked(x+2, y) {
				return world.Pt(x, y)
			}
		}
	}
	t.Fatal("no free row")
	return world.Point{}
}

func TestSittingConsumesTowel(t *testing.T) {
	var (
		sim   *Simulation
		towel world.Point
		found bool
	)
	for seed := 0; seed < 50 && !found; seed++ {
		w := world.Generate(world.Config{Width: 40, Height: 40, Seed: fmt.Sprintf("towel-%d", seed)})
		for key, p := range w.Terrain.Props() {
			if p.Kind != world.PropTowel {
				continue
			}
			var err error
			towel, err = world.ParseKey(key)
			require.NoError(t, err)
			mv := movement.NewSystem(movement.DefaultParams(), rand.New(rand.NewSource(1)), nil)
			sim = NewSimulation(w, mv, nil, 1)
			found = true
			break
		}
	}
	require.True(t, found, "no towel in any test world")

	sim.agents = []agents.Agent{{ID: "s", Name: "Sunny", X: towel.X, Y: towel.Y, State: agents.StateIdle}}
	require.NoError(t, sim.Sit("s"))

	_, ok := sim.PropAt(towel.X, towel.Y)
	assert.False(t, ok)
	_, ok = sim.Props()[towel.Key()]
	assert.False(t, ok)
	for _, p := range sim.WorldSnapshot().Props {
		assert.NotEqual(t, towel, world.Pt(p.X, p.Y))
	}

	assert.ErrorIs(t, sim.Sit("nobody"), ErrUnknownAgent)
	assert.ErrorIs(t, sim.Stand("nobody"), ErrUnknownAgent)
	assert.ErrorIs(t, sim.SetPlayer("nobody", true), ErrUnknownAgent)
}

func TestSitWhileWalkingWaitsForArrival(t *testing.T) {
	sim := newTestSim(t, nil)
	start := reachableStart(t, sim)
	target := start.Add(world.Pt(1, 0))
	sim.agents = []agents.Agent{{
		ID: "w", Name: "W", X: start.X, Y: start.Y,
		State: agents.StateMoving, Target: &target,
	}}

	require.NoError(t, sim.Sit("w"))
	got, _ := sim.Agent("w")
	assert.True(t, got.SitOnArrival)
	assert.Equal(t, agents.StateMoving, got.State)

	for i := 0; i < 40 && got.State != agents.StateSitting; i++ {
		sim.Frame(50)
		got, _ = sim.Agent("w")
	}
	assert.Equal(t, agents.StateSitting, got.State)
	assert.Equal(t, target, got.Tile())
}
