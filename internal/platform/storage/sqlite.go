package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const stateKey = "clinic"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS app_state (
	key  TEXT PRIMARY KEY,
	rev  INTEGER NOT NULL,
	data TEXT NOT NULL
);`

// SQLiteStore persists the envelope as a single row in an embedded SQLite
// database. A revision counter bumps on every save; Watch polls it so a
// second process pointed at the same database file is noticed. lastRev is
// atomic because the poll goroutine reads it concurrently with Save/Load.
type SQLiteStore struct {
	db      *sqlx.DB
	log     zerolog.Logger
	lastRev atomic.Int64
}

// NewSQLiteStore opens (creating if needed) the database at path and ensures
// the schema exists.
func NewSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sqlx.Connect("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db, log: log.With().Str("component", "sqlitestore").Logger()}, nil
}

// Load reads the envelope row. An empty table is not an error.
func (s *SQLiteStore) Load() (*Envelope, bool, error) {
	var row struct {
		Rev  int64  `db:"rev"`
		Data string `db:"data"`
	}
	err := s.db.Get(&row, `SELECT rev, data FROM app_state WHERE key = ?`, stateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read state row: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal([]byte(row.Data), &env); err != nil {
		return nil, false, fmt.Errorf("decode state row: %w", err)
	}
	s.lastRev.Store(row.Rev)
	return &env, true, nil
}

// Save upserts the envelope row and bumps the revision.
func (s *SQLiteStore) Save(env *Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	var next int64
	err = s.db.Get(&next, `
		INSERT INTO app_state (key, rev, data) VALUES (?, 1, ?)
		ON CONFLICT(key) DO UPDATE SET rev = rev + 1, data = excluded.data
		RETURNING rev`, stateKey, string(raw))
	if err != nil {
		return fmt.Errorf("write state row: %w", err)
	}
	s.lastRev.Store(next)
	return nil
}

// Watch polls the revision counter and emits when another writer has bumped
// it past the revision this store last read or wrote.
func (s *SQLiteStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				var rev int64
				err := s.db.Get(&rev, `SELECT rev FROM app_state WHERE key = ?`, stateKey)
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				if err != nil {
					s.log.Warn().Err(err).Msg("revision poll failed")
					continue
				}
				if rev > s.lastRev.Load() {
					s.lastRev.Store(rev)
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
	return ch, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
