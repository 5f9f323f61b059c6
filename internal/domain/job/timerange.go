// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"math"
	"strconv"
	"strings"
)

// TimeRange is an optional [Start, End) window in seconds.
// A nil bound means "from the beginning" or "to the end" respectively.
type TimeRange struct {
	Start *float64
	End   *float64
}

// NewTimeRange builds a fully bounded range. Handy for tests and callers
// that already hold numeric bounds.
func NewTimeRange(start, end float64) TimeRange {
	return TimeRange{Start: &start, End: &end}
}

// ParseTimeRange parses the raw start/end query values. Empty strings mean
// "absent". The result is validated before it is returned.
func ParseTimeRange(start, end string) (TimeRange, error) {
	var tr TimeRange

	s, err := parseBound("start", start)
	if err != nil {
		return TimeRange{}, err
	}
	tr.Start = s

	e, err := parseBound("end", end)
	if err != nil {
		return TimeRange{}, err
	}
	tr.End = e

	if err := tr.Validate(); err != nil {
		return TimeRange{}, err
	}
	return tr, nil
}

func parseBound(field, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &ValidationError{Field: field, Message: "must be a number of seconds"}
	}
	return &v, nil
}

// Validate enforces non-negative finite bounds and a non-empty window.
func (r TimeRange) Validate() error {
	if r.Start != nil {
		if err := checkBound("start", *r.Start); err != nil {
			return err
		}
	}
	if r.End != nil {
		if err := checkBound("end", *r.End); err != nil {
			return err
		}
	}
	if r.Start != nil && r.End != nil && *r.End <= *r.Start {
		return &ValidationError{Field: "end", Message: "must be greater than start"}
	}
	if d, bounded := r.Duration(); bounded && d <= 0 {
		return &ValidationError{Field: "end", Message: "must be greater than zero"}
	}
	return nil
}

func checkBound(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: field, Message: "must be a finite number"}
	}
	if v < 0 {
		return &ValidationError{Field: field, Message: "must not be negative"}
	}
	return nil
}

// IsZero reports whether no bound was supplied, i.e. no trimming.
func (r TimeRange) IsZero() bool {
	return r.Start == nil && r.End == nil
}

// Offset returns the seek offset in seconds (0 when Start is absent).
func (r TimeRange) Offset() float64 {
	if r.Start == nil {
		return 0
	}
	return *r.Start
}

// Duration returns the window length in seconds and whether it is bounded.
func (r TimeRange) Duration() (float64, bool) {
	if r.End == nil {
		return 0, false
	}
	return *r.End - r.Offset(), true
}

// String renders the range for logs, e.g. "30-90", "30-", "-90".
func (r TimeRange) String() string {
	if r.IsZero() {
		return "full"
	}
	var b strings.Builder
	if r.Start != nil {
		b.WriteString(FormatSeconds(*r.Start))
	}
	b.WriteByte('-')
	if r.End != nil {
		b.WriteString(FormatSeconds(*r.End))
	}
	return b.String()
}

// FormatSeconds renders seconds without a trailing ".0" and without exponent
// notation, which is what ffmpeg expects for -ss / -t.
func FormatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
