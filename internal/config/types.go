// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the fully resolved configuration. The yaml tags double as the
// file schema, so decoding a file onto defaults only overrides present keys.
type AppConfig struct {
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	YTDLP     YTDLPConfig     `yaml:"ytdlp"`
	Resolve   ResolveConfig   `yaml:"resolve"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Listen          string          `yaml:"listen"`
	MetricsListen   string          `yaml:"metricsListen"` // empty disables the metrics listener
	CORSOrigins     []string        `yaml:"corsOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
}

// RateLimitConfig limits download requests per client IP.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	RPM     int  `yaml:"rpm"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// WorkspaceConfig configures per-job scratch directories.
type WorkspaceConfig struct {
	Dir           string        `yaml:"dir"`
	StaleAfter    time.Duration `yaml:"staleAfter"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// YTDLPConfig configures the acquisition tool.
type YTDLPConfig struct {
	Bin         string        `yaml:"bin"`
	Format      string        `yaml:"format"`
	Container   string        `yaml:"container"`
	HLSNative   bool          `yaml:"hlsNative"`
	Timeout     time.Duration `yaml:"timeout"`
	CookiesFile string        `yaml:"cookiesFile"`
}

// ResolveConfig configures short-link resolution.
type ResolveConfig struct {
	Hosts         []string      `yaml:"hosts"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRedirects  int           `yaml:"maxRedirects"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
}

// FFmpegConfig configures the transcode tool.
type FFmpegConfig struct {
	Bin          string        `yaml:"bin"`
	Preset       string        `yaml:"preset"`
	CRF          int           `yaml:"crf"`
	AudioBitrate string        `yaml:"audioBitrate"`
	Timeout      time.Duration `yaml:"timeout"`
	StallTimeout time.Duration `yaml:"stallTimeout"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	AlwaysNormalize   bool `yaml:"alwaysNormalize"`
	MaxConcurrentJobs int  `yaml:"maxConcurrentJobs"` // 0 means unlimited
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}
