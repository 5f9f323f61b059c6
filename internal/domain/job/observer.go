// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import "time"

// Stage names the external tool step a progress event belongs to.
type Stage string

const (
	StageAcquire   Stage = "acquire"
	StageTranscode Stage = "transcode"
)

// Progress is an informational snapshot reported by an external tool.
// Percent is -1 when the tool gives no usable estimate.
type Progress struct {
	Stage   Stage
	Percent float64
	OutTime time.Duration
	Bytes   int64
	Speed   string
}

// Observer receives tool events. Events are for diagnostics only; the
// pipeline never waits on them to decide completion.
type Observer interface {
	OnProgress(p Progress)
	OnDone(stage Stage, a Artifact)
	OnError(stage Stage, err error)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) OnProgress(Progress)    {}
func (NopObserver) OnDone(Stage, Artifact) {}
func (NopObserver) OnError(Stage, error)   {}
