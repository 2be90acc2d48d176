// Package engine runs the frame loop and owns the live agent list: it
// advances movement every frame, reconciles with the agent store, and
// applies commands from the API.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Frame and resync defaults.
const (
	DefaultFrameInterval  = time.Second / 30
	DefaultResyncInterval = 30 * time.Second
	// Frames longer than this are clamped so a stalled process does not
	// teleport agents across several tiles.
	MaxFrameDelta = 250 * time.Millisecond
)

// Engine drives the simulation forward.
type Engine struct {
	Frame          uint64        // Frames stepped so far
	Speed          float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval       time.Duration // Wall time between frames
	ResyncInterval time.Duration // Zero disables resync

	// Callbacks populated during setup. Both run on the loop goroutine.
	OnFrame  func(frame uint64, dtMs float64)
	OnResync func(frame uint64)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:          1.0,
		Interval:       DefaultFrameInterval,
		ResyncInterval: DefaultResyncInterval,
	}
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run steps frames until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	slog.Info("frame loop started", "interval", e.Interval, "resync", e.ResyncInterval, "speed", e.Speed)

	frames := time.NewTicker(e.Interval)
	defer frames.Stop()

	var resync <-chan time.Time
	if e.ResyncInterval > 0 && e.OnResync != nil {
		t := time.NewTicker(e.ResyncInterval)
		defer t.Stop()
		resync = t.C
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			slog.Info("frame loop stopped", "frame", e.Frame, "reason", ctx.Err())
			return
		case <-stop:
			slog.Info("frame loop stopped", "frame", e.Frame)
			return
		case <-resync:
			e.OnResync(e.Frame)
		case now := <-frames.C:
			elapsed := now.Sub(last)
			last = now
			e.step(elapsed)
		}
	}
}

// Stop halts the loop. It is safe to call when the loop is not running.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running && e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// step advances one frame by elapsed wall time, scaled by Speed.
func (e *Engine) step(elapsed time.Duration) {
	if e.Speed <= 0 {
		return
	}
	if elapsed > MaxFrameDelta {
		elapsed = MaxFrameDelta
	}
	if elapsed < 0 {
		elapsed = 0
	}
	e.Frame++
	if e.OnFrame != nil {
		e.OnFrame(e.Frame, float64(elapsed)/float64(time.Millisecond)*e.Speed)
	}
}
