// Package storage is the on-disk file store for transcript exports. Export
// files are derived data: anything lost here can be regenerated from the
// utterance log, so cleanup is safe at any time.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidName is returned for export names that escape the store
// directory or use an unknown extension.
var ErrInvalidName = errors.New("storage: invalid export name")

const defaultDir = "data"

// Exports stores generated transcript export files under one directory.
// All methods are safe for concurrent use; concurrent writes to the same
// name last-writer-wins, which is harmless for derived data.
type Exports struct {
	dir string
	ttl time.Duration
}

// NewExports opens (creating if needed) the export directory. A zero ttl
// disables expiry.
func NewExports(dir string, ttl time.Duration) (*Exports, error) {
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create export dir: %w", err)
	}
	return &Exports{dir: dir, ttl: ttl}, nil
}

// Dir returns the export directory path.
func (e *Exports) Dir() string { return e.dir }

// Write stores data under name, replacing any previous content. The write
// goes through a temp file and rename so readers never observe a partial
// export.
func (e *Exports) Write(name string, data []byte) error {
	path, err := e.resolve(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(e.dir, ".export-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storage: publish export: %w", err)
	}
	return nil
}

// Read returns the stored export, or [os.ErrNotExist] when name has never
// been written (or was cleaned up).
func (e *Exports) Read(name string) ([]byte, error) {
	path, err := e.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Sweep removes exports older than the TTL. A zero TTL makes Sweep a no-op.
// It returns the number of files removed.
func (e *Exports) Sweep(now time.Time) (int, error) {
	if e.ttl <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return 0, fmt.Errorf("storage: read export dir: %w", err)
	}
	cutoff := now.Add(-e.ttl)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(e.dir, entry.Name())); err != nil {
			slog.Warn("export cleanup failed", "file", entry.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// RunSweeper sweeps at the given interval until ctx is cancelled.
func (e *Exports) RunSweeper(ctx context.Context, interval time.Duration) {
	if e.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := e.Sweep(time.Now())
			if err != nil {
				slog.Warn("export sweep failed", "error", err)
			} else if removed > 0 {
				slog.Info("expired exports removed", "count", removed)
			}
		}
	}
}

// resolve maps name to a path inside the store directory, rejecting names
// that would escape it.
func (e *Exports) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	switch filepath.Ext(name) {
	case ".vtt", ".json", ".srt":
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(e.dir, name), nil
}
