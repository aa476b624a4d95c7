// Package backup serializes and validates state envelope backups. A backup
// is the pretty-printed envelope JSON, so any saved state file is itself a
// valid backup and vice versa.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/platform/storage"
)

// ErrBadBackup is returned when an uploaded file is not a usable backup.
var ErrBadBackup = errors.New("invalid backup file")

// Filename returns the download name for a backup taken today, e.g.
// clinicdesk-backup-2025-03-10.json.
func Filename(c clock.Clock) string {
	return fmt.Sprintf("clinicdesk-backup-%s.json", clock.Today(c))
}

// Marshal renders the envelope as indented JSON for download.
func Marshal(env *storage.Envelope) ([]byte, error) {
	raw, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	return raw, nil
}

// Parse decodes and validates an uploaded backup. The patients and rateCard
// keys must both be present; anything else fails with ErrBadBackup and the
// caller leaves its state untouched. A missing expenses key is tolerated
// for backups taken by older builds.
func Parse(raw []byte) (*storage.Envelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	if _, ok := probe["patients"]; !ok {
		return nil, fmt.Errorf("%w: missing patients", ErrBadBackup)
	}
	if _, ok := probe["rateCard"]; !ok {
		return nil, fmt.Errorf("%w: missing rateCard", ErrBadBackup)
	}
	var env storage.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadBackup, err)
	}
	return &env, nil
}

// DailyWriter drops one backup file per business day into a directory. The
// marker file next to the backups records the last day a backup was taken,
// so restarts within the same day do not produce duplicates.
type DailyWriter struct {
	dir string
	clk clock.Clock
}

// NewDailyWriter ensures the backup directory exists.
func NewDailyWriter(dir string, clk clock.Clock) (*DailyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &DailyWriter{dir: dir, clk: clk}, nil
}

func (w *DailyWriter) markerPath() string {
	return filepath.Join(w.dir, "lastBackupDate")
}

// Run writes today's backup unless one was already taken today. It reports
// whether a backup was written.
func (w *DailyWriter) Run(env *storage.Envelope) (bool, error) {
	today := clock.Today(w.clk)
	if last, err := os.ReadFile(w.markerPath()); err == nil && string(last) == today {
		return false, nil
	}
	raw, err := Marshal(env)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(filepath.Join(w.dir, Filename(w.clk)), raw, 0o644); err != nil {
		return false, fmt.Errorf("write daily backup: %w", err)
	}
	if err := os.WriteFile(w.markerPath(), []byte(today), 0o644); err != nil {
		return false, fmt.Errorf("write backup marker: %w", err)
	}
	return true, nil
}
