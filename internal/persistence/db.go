// Package persistence stores avatar records and world metadata in SQLite.
// Positions are written asynchronously through PositionWriter so the frame
// loop never waits on disk.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/idle-isle/internal/agents"
	"github.com/talgya/idle-isle/internal/world"
)

var (
	// ErrNotFound is returned when a record or meta key does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrNameTaken is returned by Create when the normalized name exists.
	ErrNameTaken = errors.New("persistence: name taken")
)

const worldConfigKey = "world_config"

// Store wraps a SQLite connection for avatar persistence.
type Store struct {
	conn *sqlx.DB
	now  func() time.Time
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; readers share the same connection pool.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, now: time.Now}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS avatars (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		name_key TEXT NOT NULL UNIQUE,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		variant INTEGER NOT NULL,
		gender INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

const recordColumns = "id, name, x, y, variant, gender, created_at, updated_at"

// GetAll returns every avatar record ordered by creation time.
func (s *Store) GetAll(ctx context.Context) ([]agents.Record, error) {
	var recs []agents.Record
	err := s.conn.SelectContext(ctx, &recs,
		"SELECT "+recordColumns+" FROM avatars ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("select avatars: %w", err)
	}
	return recs, nil
}

// GetByName looks a record up by name, ignoring case, surrounding spaces and
// a leading '@'.
func (s *Store) GetByName(ctx context.Context, name string) (agents.Record, error) {
	var rec agents.Record
	err := s.conn.GetContext(ctx, &rec,
		"SELECT "+recordColumns+" FROM avatars WHERE name_key = ?",
		agents.NormalizeName(name))
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("get avatar %q: %w", name, err)
	}
	return rec, nil
}

// Create inserts a new avatar with a fresh ID.
func (s *Store) Create(ctx context.Context, name string, x, y, variant int, gender agents.Gender) (agents.Record, error) {
	key := agents.NormalizeName(name)
	if key == "" {
		return agents.Record{}, fmt.Errorf("create avatar: empty name")
	}

	now := s.now().UnixMilli()
	rec := agents.Record{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		X:         x,
		Y:         y,
		Variant:   variant,
		Gender:    gender,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.conn.ExecContext(ctx, `INSERT INTO avatars
		(id, name, name_key, x, y, variant, gender, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, key, rec.X, rec.Y, rec.Variant, rec.Gender, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return agents.Record{}, ErrNameTaken
		}
		return agents.Record{}, fmt.Errorf("insert avatar: %w", err)
	}
	return rec, nil
}

// UpdatePosition stores a settled position.
func (s *Store) UpdatePosition(ctx context.Context, id string, x, y int) error {
	res, err := s.conn.ExecContext(ctx,
		"UPDATE avatars SET x = ?, y = ?, updated_at = ? WHERE id = ?",
		x, y, s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("update position %s: %w", id, err)
	}
	return expectOne(res)
}

// Delete removes an avatar.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM avatars WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete avatar %s: %w", id, err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveMeta stores a key-value pair in world metadata.
func (s *Store) SaveMeta(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.GetContext(ctx, &value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

// SaveWorldConfig pins the world parameters so restarts regenerate the same
// map.
func (s *Store) SaveWorldConfig(ctx context.Context, cfg world.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal world config: %w", err)
	}
	return s.SaveMeta(ctx, worldConfigKey, string(raw))
}

// LoadWorldConfig returns the pinned world parameters, or ErrNotFound.
func (s *Store) LoadWorldConfig(ctx context.Context) (world.Config, error) {
	raw, err := s.GetMeta(ctx, worldConfigKey)
	if err != nil {
		return world.Config{}, err
	}
	cfg, err := world.ParseConfig([]byte(raw))
	if err != nil {
		return world.Config{}, fmt.Errorf("stored world config: %w", err)
	}
	return cfg, nil
}
