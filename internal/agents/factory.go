// Agent creation. Visual and behavioral attributes derive from a name hash,
// so hydrating a persisted record always yields the same look.
package agents

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// SpawnAnimationMs is how long a freshly created agent shows the spawn-in effect.
const SpawnAnimationMs = 800

// Cosmetic catalog sizes. Loadout indices are taken modulo these.
const (
	numHats        = 12
	numShirts      = 16
	numAccessories = 8
)

// Loadout holds indices into the cosmetic catalog.
type Loadout struct {
	Hat       int `json:"hat"`       // 0 = none
	Shirt     int `json:"shirt"`
	Accessory int `json:"accessory"` // 0 = none
}

// Attributes are derived once per agent from name+variant.
type Attributes struct {
	Color           string      `json:"color"` // "#rrggbb"
	Temperament     Temperament `json:"temperament"`
	Loadout         Loadout     `json:"loadout"`
	AnimPhase       float64     `json:"anim_phase"`       // 0.0–1.0 offset into the idle bob cycle
	Speed           float64     `json:"speed"`            // Tiles per second
	SpeedMultiplier float64     `json:"speed_multiplier"` // From temperament
	IdleScale       float64     `json:"idle_scale"`       // From temperament
}

var palette = []string{
	"#e57373", "#f06292", "#ba68c8", "#9575cd", "#7986cb", "#64b5f6",
	"#4fc3f7", "#4dd0e1", "#4db6ac", "#81c784", "#aed581", "#dce775",
	"#fff176", "#ffd54f", "#ffb74d", "#ff8a65", "#a1887f", "#90a4ae",
}

// DeriveAttributes is a pure function of (normalized name, variant).
func DeriveAttributes(name string, variant int) Attributes {
	h := NameHash(name)
	rng := rand.New(rand.NewSource(int64(h)*31 + int64(variant)))

	temperament := Temperament(rng.Intn(len(temperamentNames)))
	tpl := temperament.Template()

	return Attributes{
		Color:       palette[int(h%uint32(len(palette)))],
		Temperament: temperament,
		Loadout: Loadout{
			Hat:       rng.Intn(numHats),
			Shirt:     rng.Intn(numShirts),
			Accessory: rng.Intn(numAccessories),
		},
		AnimPhase:       rng.Float64(),
		Speed:           1.6 + rng.Float64()*0.8, // 1.6–2.4 tiles/s
		SpeedMultiplier: tpl.SpeedMultiplier,
		IdleScale:       tpl.IdleScale,
	}
}

// Hydrate rebuilds a live agent from a persisted record.
func Hydrate(rec Record) Agent {
	attrs := DeriveAttributes(rec.Name, rec.Variant)
	return Agent{
		ID:         rec.ID,
		Name:       rec.Name,
		Variant:    rec.Variant,
		Gender:     rec.Gender,
		X:          rec.X,
		Y:          rec.Y,
		State:      StateIdle,
		IdleTimer:  initialIdle(attrs),
		Attributes: attrs,
	}
}

// Spawned hydrates a just-created record and starts the spawn-in animation.
func Spawned(rec Record) Agent {
	a := Hydrate(rec)
	a.SpawningIn = true
	a.SpawnTimer = SpawnAnimationMs
	return a
}

// New creates an agent locally without a stored record.
func New(name string, x, y, variant int, gender Gender) Agent {
	now := time.Now().UnixMilli()
	return Spawned(Record{
		ID:        uuid.NewString(),
		Name:      name,
		X:         x,
		Y:         y,
		Variant:   variant,
		Gender:    gender,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// initialIdle staggers first decisions by animation phase so a freshly
// loaded crowd does not start walking in the same frame.
func initialIdle(attrs Attributes) float64 {
	return 500 + attrs.AnimPhase*1500
}

// Spawner draws names and variants for procedural wanderers.
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{rng: rand.New(rand.NewSource(seed + 300))}
}

// Name returns a procedural "First Last" name not present in taken, which is
// keyed by NormalizeName. Falls back to a numbered suffix when the pools
// are exhausted.
func (s *Spawner) Name(taken map[string]bool) string {
	for i := 0; i < 32; i++ {
		name := firstNames[s.rng.Intn(len(firstNames))] + " " + lastNames[s.rng.Intn(len(lastNames))]
		if !taken[NormalizeName(name)] {
			return name
		}
	}
	base := firstNames[s.rng.Intn(len(firstNames))]
	for n := 2; ; n++ {
		name := fmt.Sprintf("%s %d", base, n)
		if !taken[NormalizeName(name)] {
			return name
		}
	}
}

// Variant returns a random cosmetic variant in [0, 4).
func (s *Spawner) Variant() int {
	return s.rng.Intn(4)
}

// Gender returns a random non-neutral gender.
func (s *Spawner) Gender() Gender {
	if s.rng.Float32() < 0.5 {
		return GenderFemale
	}
	return GenderMale
}
