// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/clipfetch/internal/validate"
)

var (
	x264Presets = []string{
		"ultrafast", "superfast", "veryfast", "faster", "fast",
		"medium", "slow", "slower", "veryslow", "placebo",
	}
	tracingExporters = []string{"grpc", "http"}
)

// Validate checks cfg without touching the filesystem.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("server.listen", cfg.Server.Listen, false)
	v.ListenAddr("server.metricsListen", cfg.Server.MetricsListen, true)
	v.PositiveDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)
	if cfg.Server.RateLimit.Enabled {
		v.Positive("server.rateLimit.rpm", cfg.Server.RateLimit.RPM)
	}

	if _, err := validate.ParseLogLevel(cfg.Log.Level); err != nil {
		v.AddError("log.level", err.Error(), cfg.Log.Level)
	}

	v.NotEmpty("workspace.dir", cfg.Workspace.Dir)
	v.PositiveDuration("workspace.staleAfter", cfg.Workspace.StaleAfter)
	v.PositiveDuration("workspace.sweepInterval", cfg.Workspace.SweepInterval)

	v.NotEmpty("ytdlp.bin", cfg.YTDLP.Bin)
	v.NotEmpty("ytdlp.format", cfg.YTDLP.Format)
	if _, err := validate.ParseContainer(cfg.YTDLP.Container); err != nil {
		v.AddError("ytdlp.container", err.Error(), cfg.YTDLP.Container)
	}
	v.PositiveDuration("ytdlp.timeout", cfg.YTDLP.Timeout)

	v.PositiveDuration("resolve.timeout", cfg.Resolve.Timeout)
	v.Range("resolve.maxRedirects", cfg.Resolve.MaxRedirects, 1, 20)
	if cfg.Resolve.RatePerSecond <= 0 {
		v.AddError("resolve.ratePerSecond", "value must be positive", cfg.Resolve.RatePerSecond)
	}

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.OneOf("ffmpeg.preset", cfg.FFmpeg.Preset, x264Presets)
	v.Range("ffmpeg.crf", cfg.FFmpeg.CRF, 0, 51)
	v.NotEmpty("ffmpeg.audioBitrate", cfg.FFmpeg.AudioBitrate)
	v.PositiveDuration("ffmpeg.timeout", cfg.FFmpeg.Timeout)
	v.PositiveDuration("ffmpeg.stallTimeout", cfg.FFmpeg.StallTimeout)

	v.NonNegative("pipeline.maxConcurrentJobs", cfg.Pipeline.MaxConcurrentJobs)

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, tracingExporters)
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		v.FloatRange("tracing.samplingRate", cfg.Tracing.SamplingRate, 0, 1)
	}

	return v.Err()
}

// ValidateRuntime checks the parts of cfg that depend on the host. The
// workspace base must be writable and is created if missing. Cookie files are
// not checked here; an unusable one only degrades readiness.
func ValidateRuntime(cfg AppConfig) error {
	v := validate.New()
	v.WritableDirectory("workspace.dir", cfg.Workspace.Dir, false)
	return v.Err()
}
