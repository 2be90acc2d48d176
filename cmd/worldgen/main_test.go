package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/idle-isle/internal/world"
)

func TestWriteSnapshotRoundTrip(t *testing.T) {
	w := world.Generate(world.Config{Width: 32, Height: 28, Seed: "export"})
	path := filepath.Join(t.TempDir(), "world.json.zst")

	n, err := writeSnapshot(path, w.Snapshot())
	require.NoError(t, err)
	assert.Positive(t, n)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()

	var got world.Snapshot
	require.NoError(t, json.NewDecoder(dec).Decode(&got))
	assert.Equal(t, w.Snapshot(), got)
}
