// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package workspace owns the per-job scratch directories under a base dir.
// Each workspace is created with a unique name, held under an advisory file
// lock while the job runs and removed exactly once.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/metrics"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

const (
	dirPrefix  = "job-"
	lockSuffix = ".lock"
)

// Manager creates and reaps job workspaces below Base.
type Manager struct {
	base   string
	logger zerolog.Logger
}

// NewManager returns a Manager rooted at base. An empty base selects the
// system temp directory.
func NewManager(base string) *Manager {
	base = strings.TrimSpace(base)
	if base == "" {
		base = filepath.Join(os.TempDir(), "clipfetch")
	}
	return &Manager{
		base:   base,
		logger: xglog.WithComponent("workspace"),
	}
}

// Base returns the directory all workspaces live in.
func (m *Manager) Base() string { return m.base }

// Workspace is a single job's scratch directory.
type Workspace struct {
	dir    string
	lock   *flock.Flock
	logger zerolog.Logger

	once sync.Once
	err  error
}

// Open creates a fresh workspace for jobID and locks it.
func (m *Manager) Open(jobID string) (*Workspace, error) {
	if err := os.MkdirAll(m.base, 0o750); err != nil {
		return nil, &job.ResourceError{Op: "create workspace base", Path: m.base, Err: err}
	}

	dir, err := os.MkdirTemp(m.base, dirPrefix+sanitize(jobID)+"-")
	if err != nil {
		return nil, &job.ResourceError{Op: "create workspace", Path: m.base, Err: err}
	}

	lock := flock.New(dir + lockSuffix)
	ok, err := lock.TryLock()
	if err != nil || !ok {
		_ = os.RemoveAll(dir)
		if err == nil {
			err = errors.New("lock already held")
		}
		return nil, &job.ResourceError{Op: "lock workspace", Path: dir, Err: err}
	}

	m.logger.Debug().
		Str(xglog.FieldEvent, "workspace.opened").
		Str(xglog.FieldJobID, jobID).
		Str(xglog.FieldWorkspace, dir).
		Msg("workspace opened")

	return &Workspace{dir: dir, lock: lock, logger: m.logger}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.dir }

// ErrInvalidName is returned by Path for names that are not a bare file name.
var ErrInvalidName = errors.New("workspace file name must be a bare name")

// Path joins a bare file name onto the workspace directory.
func (w *Workspace) Path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(w.dir, name), nil
}

// Close removes the workspace and releases its lock. Safe to call any number
// of times; only the first call does work and its error is returned to all.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.err = &job.ResourceError{Op: "remove workspace", Path: w.dir, Err: err}
			metrics.IncWorkspaceCleanupError()
			w.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "workspace.cleanup_failed").
				Str(xglog.FieldWorkspace, w.dir).
				Msg("failed to remove workspace")
		}
		if err := w.lock.Unlock(); err != nil && w.err == nil {
			w.err = &job.ResourceError{Op: "unlock workspace", Path: w.dir, Err: err}
		}
		if err := os.Remove(w.lock.Path()); err != nil && !os.IsNotExist(err) && w.err == nil {
			w.err = &job.ResourceError{Op: "remove workspace lock", Path: w.lock.Path(), Err: err}
		}
		if w.err == nil {
			w.logger.Debug().
				Str(xglog.FieldEvent, "workspace.removed").
				Str(xglog.FieldWorkspace, w.dir).
				Msg("workspace removed")
		}
	})
	return w.err
}

// SweepResult contains the outcome of a stale workspace sweep.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its cleanup error.
type SweepError struct {
	Path  string
	Error error
}

// Sweep removes workspaces older than maxAge whose lock is not held. It
// reclaims directories left behind by a crashed process.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) SweepResult {
	result := SweepResult{}

	entries, err := os.ReadDir(m.base)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: m.base, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		if !entry.IsDir() {
			if strings.HasSuffix(entry.Name(), lockSuffix) {
				m.sweepOrphanLock(filepath.Join(m.base, entry.Name()), cutoff, &result)
			}
			continue
		}

		dirPath := filepath.Join(m.base, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		lock := flock.New(dirPath + lockSuffix)
		ok, err := lock.TryLock()
		if err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			continue
		}
		if !ok {
			// Still owned by a running job.
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dirPath, Error: err})
			m.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "workspace.sweep_failed").
				Str(xglog.FieldPath, dirPath).
				Msg("failed to remove stale workspace")
		} else {
			result.Removed = append(result.Removed, dirPath)
			m.logger.Info().
				Str(xglog.FieldEvent, "workspace.swept").
				Str(xglog.FieldPath, dirPath).
				Dur("age", time.Since(info.ModTime())).
				Msg("removed stale workspace")
		}
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}

	metrics.AddWorkspaceSwept(len(result.Removed))
	return result
}

// sweepOrphanLock removes a lock file whose workspace directory is gone, as
// left by a crash between the two removals in Close.
func (m *Manager) sweepOrphanLock(lockPath string, cutoff time.Time, result *SweepResult) {
	if _, err := os.Stat(strings.TrimSuffix(lockPath, lockSuffix)); !os.IsNotExist(err) {
		return
	}
	// The directory pass may already have taken it; TryLock would recreate it.
	info, err := os.Lstat(lockPath)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, SweepError{Path: lockPath, Error: err})
		}
		return
	}
	if !info.ModTime().Before(cutoff) {
		return
	}

	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		result.Errors = append(result.Errors, SweepError{Path: lockPath, Error: err})
		return
	}
	if !ok {
		return
	}
	err = os.Remove(lockPath)
	_ = lock.Unlock()
	if err != nil && !os.IsNotExist(err) {
		result.Errors = append(result.Errors, SweepError{Path: lockPath, Error: err})
		return
	}
	result.Removed = append(result.Removed, lockPath)
	m.logger.Info().
		Str(xglog.FieldEvent, "workspace.lock_swept").
		Str(xglog.FieldPath, lockPath).
		Msg("removed orphaned workspace lock")
}

// RunSweeper sweeps once immediately and then every interval until ctx ends.
func (m *Manager) RunSweeper(ctx context.Context, interval, maxAge time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("workspace sweep interval must be positive, got %s", interval)
	}
	m.Sweep(ctx, maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx, maxAge)
		}
	}
}

// CheckWritable verifies that the base directory exists or can be created
// and accepts new files.
func (m *Manager) CheckWritable() error {
	if err := os.MkdirAll(m.base, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(m.base, ".probe-")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
