// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcode

import (
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/clipfetch/internal/domain/job"
)

// progressParser accumulates ffmpeg -progress key=value lines and emits a
// snapshot on every "progress=" key.
type progressParser struct {
	total   time.Duration
	current job.Progress
}

func newProgressParser(total time.Duration) *progressParser {
	return &progressParser{
		total:   total,
		current: job.Progress{Stage: job.StageTranscode, Percent: -1},
	}
}

// feed consumes one line and returns a snapshot when a block is complete.
func (p *progressParser) feed(line string) (job.Progress, bool) {
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return job.Progress{}, false
	}
	key, val = strings.TrimSpace(key), strings.TrimSpace(val)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v >= 0 {
			p.current.OutTime = time.Duration(v) * time.Microsecond
		}
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			p.current.Bytes = v
		}
	case "speed":
		if val != "N/A" {
			p.current.Speed = val
		}
	case "progress":
		if p.total > 0 {
			pct := float64(p.current.OutTime) / float64(p.total) * 100
			p.current.Percent = min(pct, 100)
		}
		if val == "end" && p.total > 0 {
			p.current.Percent = 100
		}
		return p.current, true
	}
	return job.Progress{}, false
}
