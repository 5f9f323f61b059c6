// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquire

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	"github.com/dustin/go-humanize"
)

var progressRe = regexp.MustCompile(`\[download\]\s+(\d+\.?\d*)%\s+of\s+~?\s*(\S+)(?:\s+at\s+(\S+))?`)

// parseProgressLine extracts a progress event from a yt-dlp --newline line.
func parseProgressLine(line string) (job.Progress, bool) {
	m := progressRe.FindStringSubmatch(line)
	if len(m) < 3 {
		return job.Progress{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return job.Progress{}, false
	}
	p := job.Progress{
		Stage:   job.StageAcquire,
		Percent: pct,
		Bytes:   parseSize(m[2]),
	}
	if len(m) > 3 && m[3] != "" && m[3] != "Unknown" {
		p.Speed = m[3]
	}
	return p, true
}

// parseSize understands yt-dlp's "12.34MiB" style totals. Unknown sizes map to 0.
func parseSize(s string) int64 {
	s = strings.TrimSpace(strings.TrimPrefix(s, "~"))
	if s == "" || strings.EqualFold(s, "Unknown") {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}

// errorLine returns the message of a yt-dlp "ERROR:" line.
func errorLine(line string) (string, bool) {
	if msg, ok := strings.CutPrefix(line, "ERROR:"); ok {
		return strings.TrimSpace(msg), true
	}
	return "", false
}
