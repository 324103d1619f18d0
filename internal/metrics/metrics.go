// Package metrics appends one JSON object per evaluated candidate to a
// line-delimited file, rotating daily and optionally shipping closed files to
// an object store.
package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alanyoungcy/basketarb/internal/evaluator"
)

// Uploader ships a closed metrics file to long-term storage.
type Uploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Config tunes the metrics sink.
type Config struct {
	Dir        string // directory for the NDJSON files
	FilePrefix string // defaults to "candidates"

	// ArchivePrefix is the object-store key prefix for rotated files. Empty
	// disables archiving even when an uploader is wired.
	ArchivePrefix string
}

// Sink writes evaluation records as NDJSON with daily rotation. It is called
// only from the reactive task, so it needs no locking.
type Sink struct {
	cfg      Config
	uploader Uploader // nil disables archiving
	now      func() time.Time
	logger   *slog.Logger

	file    *os.File
	fileDay string
}

// NewSink creates a Sink. uploader may be nil.
func NewSink(cfg Config, uploader Uploader, logger *slog.Logger) *Sink {
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "candidates"
	}
	return &Sink{
		cfg:      cfg,
		uploader: uploader,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "metrics_sink")),
	}
}

// Record appends one record to the current day's file, rotating first when
// the day has changed.
func (s *Sink) Record(rec evaluator.Record) error {
	day := s.now().UTC().Format("2006-01-02")
	if s.file == nil || day != s.fileDay {
		if err := s.rotate(day); err != nil {
			return err
		}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("metrics: marshal record: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("metrics: append: %w", err)
	}
	return nil
}

// Close flushes and closes the current file without archiving it; a partial
// day is picked up by the next rotation or by an operator.
func (s *Sink) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sink) fileName(day string) string {
	return filepath.Join(s.cfg.Dir, fmt.Sprintf("%s-%s.ndjson", s.cfg.FilePrefix, day))
}

// rotate closes the previous day's file, hands it to the uploader, and opens
// the new day's file for appending.
func (s *Sink) rotate(day string) error {
	if s.file != nil {
		closedName := s.fileName(s.fileDay)
		if err := s.file.Close(); err != nil {
			s.logger.Warn("metrics file close failed", slog.String("error", err.Error()))
		}
		s.file = nil
		s.archive(closedName)
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("metrics: create dir %s: %w", s.cfg.Dir, err)
	}
	f, err := os.OpenFile(s.fileName(day), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("metrics: open %s: %w", s.fileName(day), err)
	}
	s.file = f
	s.fileDay = day
	return nil
}

// archive ships one closed file. Failures are logged, never propagated; the
// local file is the source of truth either way.
func (s *Sink) archive(path string) {
	if s.uploader == nil || s.cfg.ArchivePrefix == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.logger.Warn("metrics archive open failed", slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	key := s.cfg.ArchivePrefix + "/" + filepath.Base(path)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.uploader.Put(ctx, key, f, "application/x-ndjson"); err != nil {
		s.logger.Warn("metrics archive upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("metrics file archived", slog.String("key", key))
}
