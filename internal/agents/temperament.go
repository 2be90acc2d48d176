package agents

// Temperament is a behavioral template picked once per agent.
type Temperament uint8

const (
	TemperamentCalm Temperament = iota
	TemperamentCurious
	TemperamentRestless
	TemperamentShy
	TemperamentSocial
)

var temperamentNames = [...]string{
	TemperamentCalm:     "calm",
	TemperamentCurious:  "curious",
	TemperamentRestless: "restless",
	TemperamentShy:      "shy",
	TemperamentSocial:   "social",
}

// String returns the lower-case temperament name.
func (t Temperament) String() string {
	if int(t) < len(temperamentNames) {
		return temperamentNames[t]
	}
	return "unknown"
}

// MarshalText encodes the temperament by name.
func (t Temperament) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// BehaviorTemplate tunes movement for a temperament.
type BehaviorTemplate struct {
	SpeedMultiplier float64 // Scales tiles/second
	IdleScale       float64 // Scales idle duration between walks
}

var temperamentTemplates = [...]BehaviorTemplate{
	TemperamentCalm:     {SpeedMultiplier: 0.85, IdleScale: 1.4},
	TemperamentCurious:  {SpeedMultiplier: 1.0, IdleScale: 0.8},
	TemperamentRestless: {SpeedMultiplier: 1.25, IdleScale: 0.5},
	TemperamentShy:      {SpeedMultiplier: 0.9, IdleScale: 1.2},
	TemperamentSocial:   {SpeedMultiplier: 1.05, IdleScale: 1.0},
}

// Template returns the behavior template for t.
func (t Temperament) Template() BehaviorTemplate {
	if int(t) < len(temperamentTemplates) {
		return temperamentTemplates[t]
	}
	return BehaviorTemplate{SpeedMultiplier: 1, IdleScale: 1}
}
