// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/clipfetch/internal/acquire"
	"github.com/ManuGH/clipfetch/internal/transcode"
)

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Listen:          ":8080",
			MetricsListen:   "",
			CORSOrigins:     []string{"*"},
			RateLimit:       RateLimitConfig{Enabled: true, RPM: 30},
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:   "info",
			Service: "clipfetch",
		},
		Workspace: WorkspaceConfig{
			Dir:           filepath.Join(os.TempDir(), "clipfetch"),
			StaleAfter:    2 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		YTDLP: YTDLPConfig{
			Bin:       acquire.DefaultBinary,
			Format:    acquire.DefaultFormat,
			Container: acquire.DefaultContainer,
			Timeout:   acquire.DefaultTimeout,
		},
		Resolve: ResolveConfig{
			Hosts:         append([]string(nil), acquire.DefaultResolveHosts...),
			Timeout:       acquire.DefaultResolveTimeout,
			MaxRedirects:  acquire.DefaultMaxRedirects,
			RatePerSecond: 5,
		},
		FFmpeg: FFmpegConfig{
			Bin:          transcode.DefaultBinary,
			Preset:       transcode.DefaultPreset,
			CRF:          transcode.DefaultCRF,
			AudioBitrate: transcode.DefaultAudioBitrate,
			Timeout:      transcode.DefaultTimeout,
			StallTimeout: transcode.DefaultStallTimeout,
		},
		Pipeline: PipelineConfig{
			MaxConcurrentJobs: 4,
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}

// DefaultYAML renders Defaults as a commented configuration file.
func DefaultYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# clipfetch configuration. Environment variables (CLIPFETCH_*) override these values.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Defaults()); err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrConfigExists is returned by WriteDefault when the target exists and
// overwrite was not requested.
var ErrConfigExists = errors.New("config file already exists")

// WriteDefault atomically writes the default configuration to path.
func WriteDefault(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}
	data, err := DefaultYAML()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
