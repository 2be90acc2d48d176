// Package agents provides the avatar data model, name normalization and the
// deterministic attribute factory used for both fresh and hydrated agents.
package agents

import (
	"github.com/talgya/idle-isle/internal/world"
)

// State is an agent's movement state.
type State uint8

const (
	StateIdle    State = iota // Waiting for IdleTimer to expire
	StateMoving               // Interpolating toward Target
	StateSitting              // Entered only by explicit command; never wanders
)

var stateNames = [...]string{
	StateIdle:    "idle",
	StateMoving:  "moving",
	StateSitting: "sitting",
}

// String returns the lower-case state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Gender selects the avatar body variant.
type Gender uint8

const (
	GenderNeutral Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// ParseGender maps "male"/"female" (any case) to a Gender; anything else is neutral.
func ParseGender(s string) Gender {
	switch NormalizeName(s) {
	case "male", "m":
		return GenderMale
	case "female", "f":
		return GenderFemale
	default:
		return GenderNeutral
	}
}

// Agent is the per-tick mobile entity. It is a value type: the movement
// system produces a new Agent each tick instead of mutating in place.
type Agent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Variant int    `json:"variant"`
	Gender  Gender `json:"gender"`

	// Canonical resting tile. Always integral; rendering interpolates
	// toward Target using MoveProgress.
	X int `json:"x"`
	Y int `json:"y"`

	// Movement
	Target       *world.Point  `json:"target,omitempty"`      // Tile being entered
	Destination  *world.Point  `json:"destination,omitempty"` // Final waypoint of the current walk
	MoveProgress float64       `json:"move_progress"`         // 0.0–1.0 toward Target
	Path         []world.Point `json:"-"`                     // Waypoints after Target
	IdleTimer    float64       `json:"-"`                     // ms until the next wander decision
	State        State         `json:"state"`
	SitOnArrival bool          `json:"-"`

	// Flags
	IsPlayer   bool    `json:"is_player"` // Never auto-paths
	SpawningIn bool    `json:"spawning_in"`
	SpawnTimer float64 `json:"-"` // ms left on the spawn-in animation

	// Derived once from name+variant; never recomputed while moving.
	Attributes Attributes `json:"attributes"`
}

// Tile returns the agent's canonical tile.
func (a Agent) Tile() world.Point {
	return world.Pt(a.X, a.Y)
}

// Interpolated returns the render position between the resting tile and
// the target.
func (a Agent) Interpolated() (float64, float64) {
	if a.Target == nil {
		return float64(a.X), float64(a.Y)
	}
	p := a.MoveProgress
	return float64(a.X) + float64(a.Target.X-a.X)*p,
		float64(a.Y) + float64(a.Target.Y-a.Y)*p
}

// Record is the persisted shape of an agent. Everything else is derived
// from Name and Variant on hydration.
type Record struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	X         int    `db:"x" json:"x"`
	Y         int    `db:"y" json:"y"`
	Variant   int    `db:"variant" json:"variant"`
	Gender    Gender `db:"gender" json:"gender"`
	CreatedAt int64  `db:"created_at" json:"created_at"` // Unix milliseconds
	UpdatedAt int64  `db:"updated_at" json:"updated_at"`
}

// PositionUpdate is a settled position bound for persistence.
type PositionUpdate struct {
	ID string
	X  int
	Y  int
}
