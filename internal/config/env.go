// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/clipfetch/internal/log"
)

// EnvPrefix is shared by every configuration environment key.
const EnvPrefix = "CLIPFETCH_"

// Environment keys.
const (
	EnvConfigPath         = EnvPrefix + "CONFIG"
	EnvListen             = EnvPrefix + "LISTEN"
	EnvMetricsListen      = EnvPrefix + "METRICS_LISTEN"
	EnvShutdownTimeout    = EnvPrefix + "SHUTDOWN_TIMEOUT"
	EnvCORSOrigins        = EnvPrefix + "CORS_ORIGINS"
	EnvRateLimitEnabled   = EnvPrefix + "RATE_LIMIT_ENABLED"
	EnvRateLimitRPM       = EnvPrefix + "RATE_LIMIT_RPM"
	EnvLogLevel           = EnvPrefix + "LOG_LEVEL"
	EnvLogService         = EnvPrefix + "LOG_SERVICE"
	EnvWorkspaceDir       = EnvPrefix + "WORKSPACE_DIR"
	EnvWorkspaceStale     = EnvPrefix + "WORKSPACE_STALE_AFTER"
	EnvWorkspaceSweep     = EnvPrefix + "WORKSPACE_SWEEP_INTERVAL"
	EnvYTDLPBin           = EnvPrefix + "YTDLP_BIN"
	EnvYTDLPFormat        = EnvPrefix + "YTDLP_FORMAT"
	EnvYTDLPContainer     = EnvPrefix + "YTDLP_CONTAINER"
	EnvYTDLPHLSNative     = EnvPrefix + "YTDLP_HLS_NATIVE"
	EnvYTDLPTimeout       = EnvPrefix + "YTDLP_TIMEOUT"
	EnvCookiesFile        = EnvPrefix + "COOKIES_FILE"
	EnvResolveHosts       = EnvPrefix + "RESOLVE_HOSTS"
	EnvResolveTimeout     = EnvPrefix + "RESOLVE_TIMEOUT"
	EnvResolveRedirects   = EnvPrefix + "RESOLVE_MAX_REDIRECTS"
	EnvResolveRate        = EnvPrefix + "RESOLVE_RATE"
	EnvFFmpegBin          = EnvPrefix + "FFMPEG_BIN"
	EnvFFmpegPreset       = EnvPrefix + "FFMPEG_PRESET"
	EnvFFmpegCRF          = EnvPrefix + "FFMPEG_CRF"
	EnvFFmpegAudioBitrate = EnvPrefix + "FFMPEG_AUDIO_BITRATE"
	EnvFFmpegTimeout      = EnvPrefix + "FFMPEG_TIMEOUT"
	EnvFFmpegStall        = EnvPrefix + "FFMPEG_STALL_TIMEOUT"
	EnvAlwaysNormalize    = EnvPrefix + "ALWAYS_NORMALIZE"
	EnvMaxConcurrentJobs  = EnvPrefix + "MAX_CONCURRENT_JOBS"
	EnvTracingEnabled     = EnvPrefix + "TRACING_ENABLED"
	EnvTracingExporter    = EnvPrefix + "TRACING_EXPORTER"
	EnvTracingEndpoint    = EnvPrefix + "TRACING_ENDPOINT"
	EnvTracingSampling    = EnvPrefix + "TRACING_SAMPLING_RATE"
)

// parseEnv reads key and converts it with parse. Unset or empty variables
// yield the default; unparsable values are logged and also yield the default.
func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid value in environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	return parseEnv(key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer from environment variable or returns default value.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(key, defaultValue, strconv.Atoi)
}

// ParseDuration reads a duration in Go format (e.g. "5s").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(key, defaultValue, time.ParseDuration)
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseBool accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, strconv.ErrSyntax
	})
}

// ParseStringList reads a comma-separated list. Blank entries are dropped.
func ParseStringList(key string, defaultValue []string) []string {
	return parseEnv(key, defaultValue, func(s string) ([]string, error) {
		return splitList(s), nil
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
