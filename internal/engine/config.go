package engine

import (
	"context"
	"log/slog"

	"github.com/talgya/idle-isle/internal/world"
)

// ConfigStore persists the world parameters. *persistence.Store satisfies it.
type ConfigStore interface {
	LoadWorldConfig(ctx context.Context) (world.Config, error)
	SaveWorldConfig(ctx context.Context, cfg world.Config) error
}

// Config sources reported by ResolveWorldConfig.
const (
	ConfigFromStore   = "store"
	ConfigFromFile    = "file"
	ConfigFromDefault = "default"
)

// ResolveWorldConfig picks the world parameters: the pinned copy in the
// store, then the YAML file at path, then world.DefaultConfig. Each failing
// source is logged and skipped. A config that did not come from the store
// is pinned there so restarts regenerate the same map. store may be nil and
// path may be empty.
func ResolveWorldConfig(ctx context.Context, store ConfigStore, path string) (world.Config, string) {
	if store != nil {
		cfg, err := store.LoadWorldConfig(ctx)
		if err == nil {
			return cfg, ConfigFromStore
		}
		slog.Debug("no stored world config", "error", err)
	}

	cfg, source := world.DefaultConfig(), ConfigFromDefault
	if path != "" {
		loaded, err := world.LoadConfig(path)
		if err != nil {
			slog.Warn("world config file unusable, using defaults", "path", path, "error", err)
		} else {
			cfg, source = loaded, ConfigFromFile
		}
	}

	if store != nil {
		if err := store.SaveWorldConfig(ctx, cfg); err != nil {
			slog.Warn("could not pin world config", "error", err)
		}
	}
	return cfg, source
}
