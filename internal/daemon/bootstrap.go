// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/clipfetch/internal/acquire"
	"github.com/ManuGH/clipfetch/internal/api"
	"github.com/ManuGH/clipfetch/internal/config"
	"github.com/ManuGH/clipfetch/internal/credentials"
	"github.com/ManuGH/clipfetch/internal/health"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/pipeline"
	"github.com/ManuGH/clipfetch/internal/procexec"
	"github.com/ManuGH/clipfetch/internal/telemetry"
	"github.com/ManuGH/clipfetch/internal/transcode"
	"github.com/ManuGH/clipfetch/internal/workspace"
)

// Bootstrap is the composition root: it builds every component from cfg and
// returns an App ready to Run.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (*App, error) {
	logger := xglog.WithComponent("daemon")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.Log.Service,
		ServiceVersion: cfg.Version,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	runner := procexec.NewRunner(xglog.WithComponent("procexec"))

	acquirer := acquire.NewAdapter(acquire.Config{
		Binary:       cfg.YTDLP.Bin,
		FFmpegBinary: cfg.FFmpeg.Bin,
		Timeout:      cfg.YTDLP.Timeout,
		Defaults: acquire.Options{
			Format:          cfg.YTDLP.Format,
			Container:       cfg.YTDLP.Container,
			HLSPreferNative: cfg.YTDLP.HLSNative,
		},
	}, runner)

	transcoder := transcode.NewAdapter(transcode.Config{
		Binary:       cfg.FFmpeg.Bin,
		Preset:       cfg.FFmpeg.Preset,
		CRF:          cfg.FFmpeg.CRF,
		AudioBitrate: cfg.FFmpeg.AudioBitrate,
		Timeout:      cfg.FFmpeg.Timeout,
		StallTimeout: cfg.FFmpeg.StallTimeout,
	}, runner)

	resolver, err := acquire.NewResolver(acquire.ResolverConfig{
		Hosts:         cfg.Resolve.Hosts,
		Timeout:       cfg.Resolve.Timeout,
		MaxRedirects:  cfg.Resolve.MaxRedirects,
		RatePerSecond: cfg.Resolve.RatePerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("init resolver: %w", err)
	}

	cookies := credentials.NewCookieFile(cfg.YTDLP.CookiesFile)
	workspaces := workspace.NewManager(cfg.Workspace.Dir)

	orchestrator, err := pipeline.New(pipeline.Config{
		MaxConcurrent:   int64(cfg.Pipeline.MaxConcurrentJobs),
		AlwaysNormalize: cfg.Pipeline.AlwaysNormalize,
		Acquire:         acquirer.DefaultOptions(),
	}, pipeline.Deps{
		Workspaces: workspaces,
		Acquirer:   acquirer,
		Transcoder: transcoder,
		Resolver:   resolver,
		Cookies:    cookies,
	})
	if err != nil {
		return nil, fmt.Errorf("init pipeline: %w", err)
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewBinaryChecker("ytdlp", acquirer.Binary()))
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", transcoder.Binary()))
	hm.RegisterChecker(health.NewWorkspaceChecker(workspaces.CheckWritable))
	hm.RegisterChecker(health.NewCookieChecker(cookies.Check, credentials.ErrNotConfigured))

	apiServer, err := api.New(api.Config{
		CORSOrigins:      cfg.Server.CORSOrigins,
		RateLimitEnabled: cfg.Server.RateLimit.Enabled,
		RateLimitRPM:     cfg.Server.RateLimit.RPM,
		TracingService:   tracingService(cfg),
	}, orchestrator, hm)
	if err != nil {
		return nil, fmt.Errorf("init api: %w", err)
	}

	var metricsHandler http.Handler
	if cfg.Server.MetricsListen != "" {
		r := chi.NewRouter()
		r.Handle("/metrics", promhttp.Handler())
		metricsHandler = r
	}

	mgr, err := NewManager(cfg.Server, Deps{
		Logger:         logger,
		APIHandler:     apiServer.Handler(),
		MetricsHandler: metricsHandler,
	})
	if err != nil {
		return nil, err
	}
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)

	app, err := NewApp(logger, mgr)
	if err != nil {
		return nil, err
	}
	app.AddWorker("workspace-sweeper", func(ctx context.Context) error {
		return workspaces.RunSweeper(ctx, cfg.Workspace.SweepInterval, cfg.Workspace.StaleAfter)
	})
	app.AddWorker("cookie-watcher", func(ctx context.Context) error {
		// Cookies are optional; a watcher that cannot start only loses the
		// change notifications.
		if err := cookies.Watch(ctx); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "cookies.watch_failed").Msg("cookie watcher unavailable")
		}
		return nil
	})

	logger.Info().
		Str("workspace", workspaces.Base()).
		Str("ytdlp", acquirer.Binary()).
		Str("ffmpeg", transcoder.Binary()).
		Int("max_concurrent_jobs", cfg.Pipeline.MaxConcurrentJobs).
		Bool("always_normalize", cfg.Pipeline.AlwaysNormalize).
		Bool("cookies_configured", cookies.Path() != "").
		Msg("daemon bootstrapped")

	return app, nil
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Tracing.Enabled {
		return ""
	}
	return cfg.Log.Service
}
