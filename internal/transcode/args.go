// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"strconv"
	"time"

	"github.com/ManuGH/clipfetch/internal/domain/job"
)

const (
	DefaultBinary       = "ffmpeg"
	DefaultPreset       = "ultrafast"
	DefaultCRF          = 30
	DefaultAudioBitrate = "128k"
	DefaultTimeout      = 30 * time.Minute
	DefaultStallTimeout = 2 * time.Minute
)

// Config holds the encode plan and supervision limits.
type Config struct {
	Binary       string
	Preset       string
	CRF          int
	AudioBitrate string
	Timeout      time.Duration
	// StallTimeout kills ffmpeg when its reported output time stops advancing.
	// Zero disables the watchdog.
	StallTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Preset == "" {
		c.Preset = DefaultPreset
	}
	if c.CRF <= 0 {
		c.CRF = DefaultCRF
	}
	if c.AudioBitrate == "" {
		c.AudioBitrate = DefaultAudioBitrate
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// BuildArgs constructs the ffmpeg argument vector. The time range bounds the
// input read window, so -ss and -t precede -i.
func BuildArgs(cfg Config, inputPath, outputPath string, tr job.TimeRange) []string {
	cfg = cfg.withDefaults()

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-nostats",
	}
	if tr.Start != nil {
		args = append(args, "-ss", job.FormatSeconds(*tr.Start))
	}
	if d, ok := tr.Duration(); ok {
		args = append(args, "-t", job.FormatSeconds(d))
	}
	args = append(args,
		"-i", inputPath,
		"-map", "0:v:0?",
		"-map", "0:a:0?",
		// Video: H.264 8-bit for broad player support
		"-c:v", "libx264",
		"-preset", cfg.Preset,
		"-crf", strconv.Itoa(cfg.CRF),
		"-pix_fmt", "yuv420p",
		// Audio
		"-c:a", "aac",
		"-b:a", cfg.AudioBitrate,
		// Structure
		"-movflags", "+faststart",
		"-sn", "-dn",
		"-f", "mp4",
		outputPath,
	)
	return args
}
