// Command worldgen generates a world offline and prints what it contains:
// tile distribution, structures and an ASCII map. It can also export a
// zstd-compressed JSON snapshot and verify that generation is deterministic.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/idle-isle/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "world config YAML (defaults when empty)")
		width      = flag.Int("width", 0, "override width")
		height     = flag.Int("height", 0, "override height")
		seed       = flag.String("seed", "", "override seed")
		noiseKind  = flag.String("noise", "", "override noise (perlin|simplex)")
		export     = flag.String("export", "", "write a zstd-compressed JSON snapshot to this path")
		check      = flag.Bool("check", false, "generate twice and compare")
		showMap    = flag.Bool("map", true, "print the ASCII map")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := world.DefaultConfig()
	if *configPath != "" {
		loaded, err := world.LoadConfig(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *width > 0 {
		cfg.Width = *width
	}
	if *height > 0 {
		cfg.Height = *height
	}
	if *seed != "" {
		cfg.Seed = *seed
	}
	if *noiseKind != "" {
		cfg.Noise = *noiseKind
	}

	w := world.Generate(cfg)
	fmt.Println(w)

	printCounts(w)
	printStructures(w)
	if *showMap {
		fmt.Println()
		fmt.Print(w.ASCII())
	}

	if *check {
		again := world.Generate(cfg)
		if !reflect.DeepEqual(w.Snapshot(), again.Snapshot()) {
			slog.Error("generation is not deterministic", "seed", cfg.Seed)
			os.Exit(1)
		}
		slog.Info("generation is deterministic", "seed", cfg.Seed)
	}

	if *export != "" {
		n, err := writeSnapshot(*export, w.Snapshot())
		if err != nil {
			slog.Error("export failed", "path", *export, "error", err)
			os.Exit(1)
		}
		slog.Info("snapshot exported", "path", *export, "size", humanize.Bytes(uint64(n)))
	}
}

func printCounts(w *world.World) {
	counts := w.Terrain.Counts()
	tiles := make([]world.Tile, 0, len(counts))
	for t := range counts {
		tiles = append(tiles, t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i] < tiles[j] })

	total := w.Terrain.Width * w.Terrain.Height
	fmt.Printf("\n%-8s %8s %6s\n", "tile", "count", "share")
	for _, t := range tiles {
		c := counts[t]
		fmt.Printf("%-8s %8s %5.1f%%\n", t, humanize.Comma(int64(c)), 100*float64(c)/float64(total))
	}
	fmt.Printf("%-8s %8s\n", "props", humanize.Comma(int64(len(w.Terrain.Props()))))
}

func printStructures(w *world.World) {
	byType := map[world.StructureType]int{}
	for _, s := range w.Structures.All() {
		byType[s.Type]++
	}
	types := make([]world.StructureType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	fmt.Println()
	for _, t := range types {
		fmt.Printf("%-13s %d\n", t, byType[t])
	}
}

// writeSnapshot encodes snap as JSON through a zstd writer and returns the
// compressed size.
func writeSnapshot(path string, snap world.Snapshot) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, fmt.Errorf("zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(snap); err != nil {
		enc.Close()
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("flush snapshot: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
