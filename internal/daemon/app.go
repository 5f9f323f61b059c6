// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Worker is a background task bound to the daemon lifetime. It must return
// once ctx is cancelled; a non-nil error stops the daemon.
type Worker func(ctx context.Context) error

type namedWorker struct {
	name string
	run  Worker
}

// App runs the Manager alongside background workers and owns their shared
// lifetime.
type App struct {
	logger  zerolog.Logger
	manager Manager
	workers []namedWorker
}

// NewApp creates a daemon app around an already configured Manager.
func NewApp(logger zerolog.Logger, mgr Manager) (*App, error) {
	if mgr == nil {
		return nil, ErrMissingManager
	}
	return &App{logger: logger, manager: mgr}, nil
}

// Manager exposes the server lifecycle, mainly for hook registration.
func (a *App) Manager() Manager { return a.manager }

// AddWorker registers a background task. Must be called before Run.
func (a *App) AddWorker(name string, w Worker) {
	a.workers = append(a.workers, namedWorker{name: name, run: w})
}

// Run starts the servers and workers and blocks until ctx ends or any of
// them fails. A worker failure cancels the servers and vice versa.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range a.workers {
		g.Go(func() error {
			a.logger.Debug().Str("worker", w.name).Msg("worker started")
			if err := w.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error().Err(err).Str("worker", w.name).Msg("worker failed")
				return fmt.Errorf("worker %s: %w", w.name, err)
			}
			a.logger.Debug().Str("worker", w.name).Msg("worker stopped")
			return nil
		})
	}

	g.Go(func() error {
		return a.manager.Start(gctx)
	})

	return g.Wait()
}
