// Command idleworld runs the idle island: it generates the world, hydrates
// avatars from SQLite, steps movement at a fixed frame rate and serves the
// state to renderers over HTTP and websocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/idle-isle/internal/api"
	"github.com/talgya/idle-isle/internal/engine"
	"github.com/talgya/idle-isle/internal/movement"
	"github.com/talgya/idle-isle/internal/persistence"
	"github.com/talgya/idle-isle/internal/world"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		dbPath     = flag.String("db", "data/idleworld.db", "SQLite database path")
		configPath = flag.String("config", "configs/world.yaml", "world config YAML (used when the database has none pinned)")
		fps        = flag.Int("fps", 30, "movement frames per second")
		resync     = flag.Duration("resync", engine.DefaultResyncInterval, "agent store resync interval (0 disables)")
		wanderers  = flag.Int("wanderers", 12, "minimum number of agents kept on the island")
		adminKey   = flag.String("admin-key", envOrDefault("IDLEWORLD_ADMIN_KEY", ""), "bearer token for admin endpoints")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "seed for wander decisions and generated names")
	)
	flag.Parse()

	setupLogging(os.Getenv("IDLEWORLD_LOG_LEVEL"))
	slog.Info("Idle Isle starting", "addr", *addr, "db", *dbPath, "fps", *fps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(*dbPath); dir != "." {
		os.MkdirAll(dir, 0755)
	}
	store, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("database opened", "path", *dbPath)

	// ── World (always regenerated, deterministic from config) ─────────
	cfg, source := engine.ResolveWorldConfig(ctx, store, *configPath)
	started := time.Now()
	w := world.Generate(cfg)
	slog.Info("world generated",
		"source", source,
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"seed", cfg.Seed,
		"noise", cfg.Noise,
		"tiles", humanize.Comma(int64(cfg.Width*cfg.Height)),
		"props", humanize.Comma(int64(len(w.Terrain.Props()))),
		"structures", w.Structures.Len(),
		"took", time.Since(started).Round(time.Millisecond),
	)

	// ── Simulation ────────────────────────────────────────────────────
	writer := persistence.NewPositionWriter(store, persistence.DefaultQueueSize)
	mv := movement.NewSystem(movement.DefaultParams(), rand.New(rand.NewSource(*seed)), writer)
	sim := engine.NewSimulation(w, mv, store, *seed)

	sim.Load(ctx)
	if err := sim.Populate(ctx, *wanderers); err != nil {
		slog.Warn("could not populate wanderers", "error", err)
	}
	slog.Info("agents ready", "count", humanize.Comma(int64(len(sim.Agents()))))

	eng := engine.NewEngine()
	if *fps > 0 {
		eng.Interval = time.Second / time.Duration(*fps)
	}
	eng.ResyncInterval = *resync
	eng.OnFrame = func(_ uint64, dtMs float64) {
		sim.Frame(dtMs)
	}
	eng.OnResync = func(uint64) {
		rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := sim.Resync(rctx); err != nil {
			slog.Warn("resync failed", "error", err)
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if *adminKey == "" {
		slog.Warn("IDLEWORLD_ADMIN_KEY not set, admin endpoints will be disabled")
	}
	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		Writer:   writer,
		Addr:     *addr,
		AdminKey: *adminKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	fmt.Printf("\nIdle Isle is alive: %d wanderers on a %dx%d island.\n", len(sim.Agents()), cfg.Width, cfg.Height)
	fmt.Printf("API: http://localhost%s/api/v1/status\n", *addr)
	fmt.Println("Running... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}

	// Drain pending positions before the store closes.
	writer.Close()
	st := writer.Stats()
	slog.Info("positions flushed",
		"written", humanize.Comma(int64(st.Written)),
		"dropped", humanize.Comma(int64(st.Dropped)),
		"failed", humanize.Comma(int64(st.Failed)),
	)
	fmt.Println("Idle Isle stopped.")
}

// setupLogging installs a text handler on terminals and JSON otherwise.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
