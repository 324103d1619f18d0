// Package state persists the engine's runtime counters across restarts and
// guards against concurrent instances with a pid lock file.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// Store reads and writes the runtime-state snapshot. Writes go through a
// write-temp-then-atomic-rename so a reader always sees either the old or the
// fully-new state, never a partial write.
type Store struct {
	path        string
	renameTries int
	retryDelay  time.Duration
	logger      *slog.Logger
}

// NewStore creates a Store for the given file path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:        path,
		renameTries: 5,
		retryDelay:  50 * time.Millisecond,
		logger:      logger.With(slog.String("component", "state_store")),
	}
}

// Load reads the persisted state. A missing file yields a zero-valued state,
// not an error; a corrupt file is an error so the operator decides what to do
// with it rather than silently resetting risk counters.
func (s *Store) Load(_ context.Context) (domain.RuntimeState, error) {
	var st domain.RuntimeState
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("state: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("state: decode %s: %w", s.path, err)
	}
	return st, nil
}

// Save writes the state atomically. The rename retries briefly on transient
// sharing violations some platforms report while another process holds the
// target open for reading.
func (s *Store) Save(_ context.Context, st domain.RuntimeState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state: close temp: %w", err)
	}

	var renameErr error
	for try := 0; try < s.renameTries; try++ {
		if renameErr = os.Rename(tmpName, s.path); renameErr == nil {
			return nil
		}
		time.Sleep(s.retryDelay)
	}
	os.Remove(tmpName)
	return fmt.Errorf("state: rename after %d tries: %w", s.renameTries, renameErr)
}
