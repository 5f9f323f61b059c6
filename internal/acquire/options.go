// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquire

import "time"

const (
	DefaultBinary    = "yt-dlp"
	DefaultFormat    = "bv*+ba/b"
	DefaultContainer = "mp4"
	DefaultTimeout   = 10 * time.Minute
)

// Config holds the static downloader settings.
type Config struct {
	Binary string
	// FFmpegBinary is handed to yt-dlp for merging separate video and audio
	// streams. Empty leaves the lookup to yt-dlp.
	FFmpegBinary string
	Timeout      time.Duration
	Defaults     Options
}

// Options are the per-invocation downloader knobs.
type Options struct {
	// CookiesFile is passed only when non-empty. Callers resolve and validate
	// it beforehand.
	CookiesFile     string
	Format          string
	Container       string
	HLSPreferNative bool
}

func (c Config) withDefaults() Config {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.Defaults = c.Defaults.withDefaults()
	return c
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	if o.Container == "" {
		o.Container = DefaultContainer
	}
	return o
}

// BuildArgs returns the yt-dlp argument vector. The URL is always the last
// element, preceded by "--" so it can never be read as an option.
func BuildArgs(ffmpegBin, sourceURL, targetPath string, opts Options) []string {
	opts = opts.withDefaults()

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--newline",
		"--progress",
		"--no-part",
		"--force-overwrites",
		"-f", opts.Format,
		"--merge-output-format", opts.Container,
	}
	if opts.HLSPreferNative {
		args = append(args, "--hls-prefer-native")
	} else {
		args = append(args, "--hls-prefer-ffmpeg")
	}
	if ffmpegBin != "" {
		args = append(args, "--ffmpeg-location", ffmpegBin)
	}
	if opts.CookiesFile != "" {
		args = append(args, "--cookies", opts.CookiesFile)
	}
	args = append(args, "-o", targetPath, "--", sourceURL)
	return args
}
