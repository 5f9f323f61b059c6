// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/clipfetch/internal/log"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: map[string]struct{}{EnvConfigPath: {}},
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	l.warnUnknownEnv()

	if cfg.Workspace.Dir != "" {
		if abs, err := filepath.Abs(cfg.Workspace.Dir); err == nil {
			cfg.Workspace.Dir = abs
		}
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file onto cfg with STRICT parsing. Keys absent from
// the file keep their current value.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	// Server
	cfg.Server.Listen = l.envString(EnvListen, cfg.Server.Listen)
	cfg.Server.MetricsListen = l.envString(EnvMetricsListen, cfg.Server.MetricsListen)
	cfg.Server.ShutdownTimeout = l.envDuration(EnvShutdownTimeout, cfg.Server.ShutdownTimeout)
	cfg.Server.CORSOrigins = l.envList(EnvCORSOrigins, cfg.Server.CORSOrigins)
	cfg.Server.RateLimit.Enabled = l.envBool(EnvRateLimitEnabled, cfg.Server.RateLimit.Enabled)
	cfg.Server.RateLimit.RPM = l.envInt(EnvRateLimitRPM, cfg.Server.RateLimit.RPM)

	// Logging
	cfg.Log.Level = l.envString(EnvLogLevel, cfg.Log.Level)
	cfg.Log.Service = l.envString(EnvLogService, cfg.Log.Service)

	// Workspace
	cfg.Workspace.Dir = l.envString(EnvWorkspaceDir, cfg.Workspace.Dir)
	cfg.Workspace.StaleAfter = l.envDuration(EnvWorkspaceStale, cfg.Workspace.StaleAfter)
	cfg.Workspace.SweepInterval = l.envDuration(EnvWorkspaceSweep, cfg.Workspace.SweepInterval)

	// Acquisition
	cfg.YTDLP.Bin = l.envString(EnvYTDLPBin, cfg.YTDLP.Bin)
	cfg.YTDLP.Format = l.envString(EnvYTDLPFormat, cfg.YTDLP.Format)
	cfg.YTDLP.Container = l.envString(EnvYTDLPContainer, cfg.YTDLP.Container)
	cfg.YTDLP.HLSNative = l.envBool(EnvYTDLPHLSNative, cfg.YTDLP.HLSNative)
	cfg.YTDLP.Timeout = l.envDuration(EnvYTDLPTimeout, cfg.YTDLP.Timeout)
	cfg.YTDLP.CookiesFile = l.envString(EnvCookiesFile, cfg.YTDLP.CookiesFile)

	// Short-link resolution
	cfg.Resolve.Hosts = l.envList(EnvResolveHosts, cfg.Resolve.Hosts)
	cfg.Resolve.Timeout = l.envDuration(EnvResolveTimeout, cfg.Resolve.Timeout)
	cfg.Resolve.MaxRedirects = l.envInt(EnvResolveRedirects, cfg.Resolve.MaxRedirects)
	cfg.Resolve.RatePerSecond = l.envFloat(EnvResolveRate, cfg.Resolve.RatePerSecond)

	// Transcode
	cfg.FFmpeg.Bin = l.envString(EnvFFmpegBin, cfg.FFmpeg.Bin)
	cfg.FFmpeg.Preset = l.envString(EnvFFmpegPreset, cfg.FFmpeg.Preset)
	cfg.FFmpeg.CRF = l.envInt(EnvFFmpegCRF, cfg.FFmpeg.CRF)
	cfg.FFmpeg.AudioBitrate = l.envString(EnvFFmpegAudioBitrate, cfg.FFmpeg.AudioBitrate)
	cfg.FFmpeg.Timeout = l.envDuration(EnvFFmpegTimeout, cfg.FFmpeg.Timeout)
	cfg.FFmpeg.StallTimeout = l.envDuration(EnvFFmpegStall, cfg.FFmpeg.StallTimeout)

	// Pipeline
	cfg.Pipeline.AlwaysNormalize = l.envBool(EnvAlwaysNormalize, cfg.Pipeline.AlwaysNormalize)
	cfg.Pipeline.MaxConcurrentJobs = l.envInt(EnvMaxConcurrentJobs, cfg.Pipeline.MaxConcurrentJobs)

	// Tracing
	cfg.Tracing.Enabled = l.envBool(EnvTracingEnabled, cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = l.envString(EnvTracingExporter, cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = l.envString(EnvTracingEndpoint, cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = l.envFloat(EnvTracingSampling, cfg.Tracing.SamplingRate)
}

// UnknownEnvKeys lists set CLIPFETCH_ variables that no setting consumed.
func (l *Loader) UnknownEnvKeys() []string {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (l *Loader) warnUnknownEnv() {
	unknown := l.UnknownEnvKeys()
	if len(unknown) == 0 {
		return
	}
	logger := log.WithComponent("config")
	logger.Warn().
		Strs("keys", unknown).
		Str(log.FieldEvent, "config.unknown_env").
		Msg("ignoring unknown environment variables")
}
