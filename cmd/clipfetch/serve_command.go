// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/clipfetch/internal/config"
	"github.com/ManuGH/clipfetch/internal/daemon"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/version"
)

func newServeCommand(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath())
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	// Safe defaults until the configuration is known.
	xglog.Configure(xglog.Config{Level: "info", Service: "clipfetch", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	cfg, err := config.NewLoader(configPath, version.Version).Load()
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.invalid").Msg("failed to load configuration")
		return err
	}

	xglog.Configure(xglog.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: cfg.Version})
	logger = xglog.WithComponent("daemon")

	if err := config.ValidateRuntime(cfg); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.runtime_invalid").Msg("runtime checks failed")
		return err
	}

	logger.Info().
		Str("version", version.String()).
		Str("config", configPath).
		Str("listen", cfg.Server.Listen).
		Msg("starting clipfetch")

	app, err := daemon.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("daemon stopped with error")
		return err
	}
	logger.Info().Msg("clipfetch stopped")
	return nil
}
