package world

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/idle-isle/internal/noise"
)

// Config holds world generation parameters plus renderer tuning that is
// passed through untouched.
type Config struct {
	Width  int         `yaml:"width" json:"width"`
	Height int         `yaml:"height" json:"height"`
	Seed   string      `yaml:"seed" json:"seed"`
	Noise  string      `yaml:"noise,omitempty" json:"noise,omitempty"` // "perlin" (default) or "simplex"
	Night  NightConfig `yaml:"night" json:"night"`
}

// NightConfig is visual tuning for the day/night overlay.
type NightConfig struct {
	Enabled   bool    `yaml:"enabled" json:"enabled"`
	StartHour int     `yaml:"start_hour" json:"start_hour"`
	EndHour   int     `yaml:"end_hour" json:"end_hour"`
	Darkness  float64 `yaml:"darkness" json:"darkness"` // 0.0 (none) to 1.0 (black)
}

// DefaultConfig is used whenever no valid configuration can be loaded.
func DefaultConfig() Config {
	return Config{
		Width:  40,
		Height: 40,
		Seed:   "default",
		Noise:  noise.KindPerlin,
		Night: NightConfig{
			StartHour: 20,
			EndHour:   6,
			Darkness:  0.55,
		},
	}
}

// Normalized fills zero or missing fields from DefaultConfig.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.Width < 1 {
		c.Width = def.Width
	}
	if c.Height < 1 {
		c.Height = def.Height
	}
	if c.Seed == "" {
		c.Seed = def.Seed
	}
	if c.Noise == "" {
		c.Noise = def.Noise
	}
	return c
}

const configSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["width", "height", "seed"],
	"properties": {
		"width":  {"type": "integer", "minimum": 1, "maximum": 1024},
		"height": {"type": "integer", "minimum": 1, "maximum": 1024},
		"seed":   {"type": "string"},
		"noise":  {"enum": ["perlin", "simplex"]},
		"night": {
			"type": "object",
			"properties": {
				"enabled":    {"type": "boolean"},
				"start_hour": {"type": "integer", "minimum": 0, "maximum": 23},
				"end_hour":   {"type": "integer", "minimum": 0, "maximum": 23},
				"darkness":   {"type": "number", "minimum": 0, "maximum": 1}
			}
		}
	}
}`

var compiledConfigSchema = jsonschema.MustCompileString("world_config.json", configSchema)

// ParseConfig decodes a YAML or JSON config document, validates it against
// the config schema and normalizes it.
func ParseConfig(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	// Round-trip through JSON so the validator sees JSON-native types.
	b, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := compiledConfigSchema.Validate(generic); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.Normalized(), nil
}

// LoadConfig reads and parses a config file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := ParseConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// IsNight reports whether hour (0–23) falls inside the night window. The
// window may wrap past midnight.
func (n NightConfig) IsNight(hour int) bool {
	if !n.Enabled || n.StartHour == n.EndHour {
		return false
	}
	if n.StartHour < n.EndHour {
		return hour >= n.StartHour && hour < n.EndHour
	}
	return hour >= n.StartHour || hour < n.EndHour
}
