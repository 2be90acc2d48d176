// Package api serves the live world to renderers over HTTP.
// GET endpoints and the websocket stream are public (read-only observation).
// Spawning is public but rate limited; every other mutation requires the
// admin bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/idle-isle/internal/agents"
	"github.com/talgya/idle-isle/internal/engine"
	"github.com/talgya/idle-isle/internal/persistence"
	"github.com/talgya/idle-isle/internal/world"
)

const (
	maxStreamConns        = 32
	defaultStreamInterval = 100 * time.Millisecond
	streamWriteTimeout    = 5 * time.Second
	streamReadTimeout     = 60 * time.Second
	maxBodyBytes          = 4 << 10
)

// WriterStats reports persistence queue health. *persistence.PositionWriter
// satisfies it.
type WriterStats interface {
	Stats() persistence.WriterStats
}

// Server serves the world state over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	Writer   WriterStats // Optional
	Addr     string
	AdminKey string // Bearer token for mutations. Empty = admin endpoints disabled.

	// StreamInterval is the period between websocket frames.
	StreamInterval time.Duration

	// SpawnLimiter throttles public spawns per client IP. Nil uses a default.
	SpawnLimiter *RateLimiter

	upgrader    websocket.Upgrader
	streamConns atomic.Int32
	startedAt   time.Time
	httpServer  *http.Server
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	if s.startedAt.IsZero() {
		s.startedAt = time.Now()
	}
	if s.StreamInterval <= 0 {
		s.StreamInterval = defaultStreamInterval
	}
	if s.SpawnLimiter == nil {
		s.SpawnLimiter = NewRateLimiter(10, time.Minute)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/world", s.handleWorld)
	mux.HandleFunc("GET /api/v1/tile", s.handleTile)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/agent/{id}", s.handleAgent)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Public join, rate limited.
	mux.HandleFunc("POST /api/v1/agents", RateLimitMiddleware(s.SpawnLimiter, s.handleSpawn))

	// Admin endpoints (require bearer token).
	mux.HandleFunc("POST /api/v1/agent/{id}/move", s.adminOnly(s.handleMove))
	mux.HandleFunc("POST /api/v1/agent/{id}/sit", s.adminOnly(s.handleSit))
	mux.HandleFunc("POST /api/v1/agent/{id}/stand", s.adminOnly(s.handleStand))
	mux.HandleFunc("POST /api/v1/agent/{id}/player", s.adminOnly(s.handlePlayer))
	mux.HandleFunc("DELETE /api/v1/agent/{id}", s.adminOnly(s.handleRemove))
	mux.HandleFunc("POST /api/v1/resync", s.adminOnly(s.handleResync))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the HTTP server started by Start and the spawn limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.SpawnLimiter != nil {
		s.SpawnLimiter.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed renderer origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Encoding")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no IDLEWORLD_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	wd := s.Sim.World()
	list := s.Sim.Agents()
	byState := map[string]int{}
	for _, a := range list {
		byState[a.State.String()]++
	}

	now := time.Now()
	status := map[string]any{
		"name":     "Idle Isle",
		"frame":    s.Sim.CurrentFrame(),
		"uptime":   now.Sub(s.startedAt).Round(time.Second).String(),
		"agents":   len(list),
		"states":   byState,
		"movement": s.Sim.MovementStats(),
		"world": map[string]any{
			"width":      wd.Config.Width,
			"height":     wd.Config.Height,
			"seed":       wd.Config.Seed,
			"noise":      wd.Config.Noise,
			"structures": wd.Structures.Len(),
		},
		"night": map[string]any{
			"active":   wd.Config.Night.IsNight(now.Hour()),
			"darkness": wd.Config.Night.Darkness,
		},
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed
		status["running"] = s.Eng.Running()
	}
	if s.Writer != nil {
		status["persistence"] = s.Writer.Stats()
	}
	writeJSON(w, status)
}

// handleWorld returns the static map plus current props. Clients that send
// Accept-Encoding: zstd get a compressed body.
func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	view := s.Sim.WorldSnapshot()

	if !acceptsZstd(r) {
		writeJSON(w, view)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "zstd")
	w.Header().Add("Vary", "Accept-Encoding")
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		http.Error(w, "compression unavailable", http.StatusInternalServerError)
		return
	}
	if err := json.NewEncoder(enc).Encode(view); err != nil {
		slog.Warn("world encode failed", "error", err)
	}
	if err := enc.Close(); err != nil {
		slog.Warn("world compress failed", "error", err)
	}
}

func acceptsZstd(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		enc, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(enc, "zstd") {
			return true
		}
	}
	return false
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil {
		http.Error(w, "x and y must be integers", http.StatusBadRequest)
		return
	}

	wd := s.Sim.World()
	resp := map[string]any{
		"x":         x,
		"y":         y,
		"in_bounds": wd.InBounds(x, y),
		"tile":      wd.TileAt(x, y).String(),
		"blocked":   wd.IsBlocked(x, y),
	}
	if p, ok := s.Sim.PropAt(x, y); ok {
		resp["prop"] = p
	}
	if st := wd.StructureAt(x, y); st != nil {
		resp["structure"] = st
	}
	var here []string
	for _, a := range s.Sim.Agents() {
		if a.X == x && a.Y == y {
			here = append(here, a.ID)
		}
	}
	resp["agents"] = here
	writeJSON(w, resp)
}

// agentView adds the interpolated render position to an agent.
type agentView struct {
	agents.Agent
	RenderX float64 `json:"render_x"`
	RenderY float64 `json:"render_y"`
}

func viewOf(a agents.Agent) agentView {
	rx, ry := a.Interpolated()
	return agentView{Agent: a, RenderX: rx, RenderY: ry}
}

func viewsOf(list []agents.Agent) []agentView {
	out := make([]agentView, len(list))
	for i, a := range list {
		out[i] = viewOf(a)
	}
	return out
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	list := s.Sim.Agents()
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := list[:0]
		for _, a := range list {
			if a.State.String() == state {
				filtered = append(filtered, a)
			}
		}
		list = filtered
	}
	writeJSON(w, viewsOf(list))
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.Sim.Agent(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewOf(a))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Events())
}

type spawnRequest struct {
	Name    string `json:"name"`
	Variant int    `json:"variant"`
	Gender  string `json:"gender"`
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Variant < 0 || req.Variant > 3 {
		http.Error(w, "variant must be 0-3", http.StatusBadRequest)
		return
	}

	a, err := s.Sim.Spawn(r.Context(), req.Name, req.Variant, agents.ParseGender(req.Gender))
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("agent joined", "id", a.ID, "name", a.Name, "x", a.X, "y", a.Y)
	w.Header().Set("Location", "/api/v1/agent/"+a.ID)
	writeJSONStatus(w, http.StatusCreated, viewOf(a))
}

type moveRequest struct {
	X   int  `json:"x"`
	Y   int  `json:"y"`
	Sit bool `json:"sit"`
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := s.Sim.MoveTo(id, world.Pt(req.X, req.Y), req.Sit); err != nil {
		writeError(w, err)
		return
	}
	s.writeAgent(w, id)
}

func (s *Server) handleSit(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Sim.Sit(id); err != nil {
		writeError(w, err)
		return
	}
	s.writeAgent(w, id)
}

func (s *Server) handleStand(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Sim.Stand(id); err != nil {
		writeError(w, err)
		return
	}
	s.writeAgent(w, id)
}

func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Player bool `json:"player"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := s.Sim.SetPlayer(id, req.Player); err != nil {
		writeError(w, err)
		return
	}
	s.writeAgent(w, id)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.Remove(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request) {
	if err := s.Sim.Resync(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, map[string]any{"agents": len(s.Sim.Agents())})
}

func (s *Server) writeAgent(w http.ResponseWriter, id string) {
	a, err := s.Sim.Agent(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, viewOf(a))
}

// streamFrame is one websocket message.
type streamFrame struct {
	Type   string      `json:"type"`
	Frame  uint64      `json:"frame"`
	Agents []agentView `json:"agents"`
}

// handleStream pushes agent frames over a websocket at StreamInterval.
// The reader loop only watches for the client going away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if current := s.streamConns.Add(1); current > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	slog.Debug("stream client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine.
	writeErr := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(s.StreamInterval)
		defer ticker.Stop()
		for {
			msg := streamFrame{Type: "frame", Frame: s.Sim.CurrentFrame(), Agents: viewsOf(s.Sim.Agents())}
			b, err := json.Marshal(msg)
			if err != nil {
				writeErr <- err
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				writeErr <- err
				return
			}
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case <-ticker.C:
			}
		}
	}()

	// Reader loop: drain client messages until the peer closes.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
	slog.Debug("stream client disconnected", "remote", r.RemoteAddr)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps simulation errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrUnknownAgent):
		http.Error(w, "agent not found", http.StatusNotFound)
	case errors.Is(err, engine.ErrNameTaken):
		http.Error(w, "name taken", http.StatusConflict)
	case errors.Is(err, engine.ErrInvalidName):
		http.Error(w, "name required", http.StatusBadRequest)
	case errors.Is(err, engine.ErrNoPath):
		http.Error(w, "no path to destination", http.StatusUnprocessableEntity)
	case errors.Is(err, engine.ErrTileBusy):
		http.Error(w, "next tile busy", http.StatusConflict)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
