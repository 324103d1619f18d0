package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/alanyoungcy/basketarb/internal/domain"
)

// lockPayload is the JSON body of the lock file.
type lockPayload struct {
	PID int `json:"pid"`
}

// Lock is a single-instance guard: a create-exclusive file holding the owning
// process id. A stale lock is reclaimed only when the recorded pid is
// verifiably not running.
type Lock struct {
	path   string
	logger *slog.Logger
}

// NewLock creates a Lock for the given file path.
func NewLock(path string, logger *slog.Logger) *Lock {
	return &Lock{path: path, logger: logger.With(slog.String("component", "instance_lock"))}
}

// Acquire takes the lock or returns domain-level ErrLockHeld wrapped with the
// holder's pid when a live process owns it.
func (l *Lock) Acquire() error {
	if err := l.tryCreate(); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("state: create lock %s: %w", l.path, err)
	}

	holder, err := l.readHolder()
	if err != nil {
		// Unreadable lock file: refuse to reclaim, someone has to look.
		return fmt.Errorf("state: lock %s unreadable: %w", l.path, err)
	}
	if pidAlive(holder) {
		return fmt.Errorf("state: lock %s held by pid %d: %w", l.path, holder, domain.ErrLockHeld)
	}

	l.logger.Warn("reclaiming stale lock",
		slog.String("path", l.path),
		slog.Int("stale_pid", holder),
	)
	if err := os.Remove(l.path); err != nil {
		return fmt.Errorf("state: remove stale lock: %w", err)
	}
	if err := l.tryCreate(); err != nil {
		return fmt.Errorf("state: recreate lock after reclaim: %w", err)
	}
	return nil
}

// Release removes the lock file. Safe to call when the lock was never taken.
func (l *Lock) Release() {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("lock release failed", slog.String("error", err.Error()))
	}
}

func (l *Lock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(lockPayload{PID: os.Getpid()})
}

func (l *Lock) readHolder() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	var p lockPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return 0, err
	}
	if p.PID <= 0 {
		return 0, fmt.Errorf("no pid recorded")
	}
	return p.PID, nil
}

// pidAlive checks liveness with signal 0. EPERM means the process exists but
// belongs to another user, which still counts as alive.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
