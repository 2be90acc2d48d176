package persistence

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/idle-isle/internal/agents"
)

// PositionStore is the write side PositionWriter needs. *Store satisfies it.
type PositionStore interface {
	UpdatePosition(ctx context.Context, id string, x, y int) error
}

// DefaultQueueSize bounds pending position updates.
const DefaultQueueSize = 4096

// DefaultWriteTimeout bounds a single UpdatePosition call.
const DefaultWriteTimeout = 2 * time.Second

// WriterStats reports queue health.
type WriterStats struct {
	Written       uint64 `json:"written"`
	Coalesced     uint64 `json:"coalesced"`
	Dropped       uint64 `json:"dropped"`
	Failed        uint64 `json:"failed"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

// PositionWriter drains settled positions to a PositionStore on a single
// goroutine. Enqueue never blocks; when the queue is full the update is
// dropped and the next settle for that agent supersedes it.
type PositionWriter struct {
	store   PositionStore
	timeout time.Duration
	logger  *slog.Logger

	ch   chan agents.PositionUpdate
	wg   sync.WaitGroup
	once sync.Once

	// mu orders sends against close(ch): Enqueue holds it shared.
	mu     sync.RWMutex
	closed bool

	written   atomic.Uint64
	coalesced atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewPositionWriter starts the writer goroutine. queueSize <= 0 uses
// DefaultQueueSize.
func NewPositionWriter(store PositionStore, queueSize int) *PositionWriter {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	w := &PositionWriter{
		store:   store,
		timeout: DefaultWriteTimeout,
		logger:  slog.Default().With("component", "position-writer"),
		ch:      make(chan agents.PositionUpdate, queueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Enqueue hands off an update. It reports false when the update was dropped.
func (w *PositionWriter) Enqueue(u agents.PositionUpdate) bool {
	if w == nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.ch <- u:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Close stops accepting updates and waits for the queue to drain.
func (w *PositionWriter) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.ch)
		w.mu.Unlock()
		w.wg.Wait()
	})
	return nil
}

// Stats returns counters and queue occupancy.
func (w *PositionWriter) Stats() WriterStats {
	return WriterStats{
		Written:       w.written.Load(),
		Coalesced:     w.coalesced.Load(),
		Dropped:       w.dropped.Load(),
		Failed:        w.failed.Load(),
		QueueDepth:    len(w.ch),
		QueueCapacity: cap(w.ch),
	}
}

func (w *PositionWriter) loop() {
	defer w.wg.Done()

	for u := range w.ch {
		batch := w.collect(u)
		for _, next := range batch {
			w.write(next)
		}
	}
}

// collect gathers whatever is already queued behind first, keeping only the
// latest update per agent in arrival order.
func (w *PositionWriter) collect(first agents.PositionUpdate) []agents.PositionUpdate {
	batch := []agents.PositionUpdate{first}
	index := map[string]int{first.ID: 0}

	for len(batch) < cap(w.ch) {
		select {
		case u, ok := <-w.ch:
			if !ok {
				return batch
			}
			if i, seen := index[u.ID]; seen {
				batch[i] = u
				w.coalesced.Add(1)
				continue
			}
			index[u.ID] = len(batch)
			batch = append(batch, u)
		default:
			return batch
		}
	}
	return batch
}

func (w *PositionWriter) write(u agents.PositionUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.store.UpdatePosition(ctx, u.ID, u.X, u.Y); err != nil {
		w.failed.Add(1)
		w.logger.Warn("position write failed", "agent", u.ID, "x", u.X, "y", u.Y, "error", err)
		return
	}
	w.written.Add(1)
}
