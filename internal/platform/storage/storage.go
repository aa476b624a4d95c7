// Package storage provides the persistence gateway for the clinic's state
// envelope. Two drivers are available: a JSON file with filesystem change
// notification, and an embedded SQLite database. Both store the envelope as
// a single document and signal external modification so a running server can
// reload state written by another process.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/ratecard"
)

// Settings holds the frontend's presentation preferences. The server never
// interprets them; they ride along in the envelope so backups, restores and
// multi-process reloads round-trip them untouched.
type Settings struct {
	Theme    string `json:"theme"`
	DarkMode bool   `json:"darkMode"`
}

// DefaultSettings returns the settings used on first run.
func DefaultSettings() Settings {
	return Settings{Theme: "purple-blue"}
}

// Envelope is the complete persisted application state. Field names match
// the backup file format, so a saved envelope and a backup are the same
// document.
type Envelope struct {
	Patients []patient.Patient `json:"patients"`
	RateCard []ratecard.Item   `json:"rateCard"`
	Expenses []expense.Expense `json:"expenses"`
	Settings Settings          `json:"settings"`
}

// NewEnvelope returns the first-run state: empty records, the default rate
// card and default settings.
func NewEnvelope() *Envelope {
	return &Envelope{
		Patients: []patient.Patient{},
		RateCard: ratecard.Default(),
		Expenses: []expense.Expense{},
		Settings: DefaultSettings(),
	}
}

// Gateway is the persistence contract. Load reports found=false on a clean
// data directory so the caller can seed defaults. Watch delivers a signal
// whenever the underlying document is changed by someone other than this
// gateway instance; writes made through Save are suppressed.
type Gateway interface {
	Load() (env *Envelope, found bool, err error)
	Save(env *Envelope) error
	Watch(ctx context.Context) (<-chan struct{}, error)
	Close() error
}

// FileStore persists the envelope as a single JSON document on disk.
// Writes go through a temp file and rename so readers never observe a
// partial document.
type FileStore struct {
	path string
	log  zerolog.Logger

	mu          sync.Mutex
	ignoreUntil time.Time
}

// NewFileStore creates the data directory if needed and returns a store
// backed by path.
func NewFileStore(path string, log zerolog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{path: path, log: log.With().Str("component", "filestore").Logger()}, nil
}

// Load reads and decodes the envelope. A missing file is not an error.
func (s *FileStore) Load() (*Envelope, bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read state file: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("decode state file: %w", err)
	}
	return &env, true, nil
}

// Save atomically replaces the state file with the encoded envelope.
func (s *FileStore) Save(env *Envelope) error {
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	s.mu.Lock()
	s.ignoreUntil = time.Now().Add(500 * time.Millisecond)
	s.mu.Unlock()
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Watch emits on the returned channel when the state file changes on disk.
// Events raised by this store's own Save calls are filtered out by a short
// suppression window; editors that write via rename are still caught because
// the watch is on the parent directory.
func (s *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("start file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch data dir: %w", err)
	}

	ch := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				s.mu.Lock()
				selfWrite := time.Now().Before(s.ignoreUntil)
				s.mu.Unlock()
				if selfWrite {
					continue
				}
				s.log.Debug().Str("event", ev.Op.String()).Msg("state file changed externally")
				select {
				case ch <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("file watcher error")
			}
		}
	}()
	return ch, nil
}

// Close is a no-op for the file driver; watchers are owned by their contexts.
func (s *FileStore) Close() error { return nil }
