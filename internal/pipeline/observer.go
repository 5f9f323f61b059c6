// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"sync"
	"time"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const progressLogInterval = 5 * time.Second

// logObserver turns tool events into structured log lines. Progress is
// throttled per stage.
type logObserver struct {
	logger zerolog.Logger

	mu      sync.Mutex
	lastLog map[job.Stage]time.Time
}

func newLogObserver(logger zerolog.Logger) *logObserver {
	return &logObserver{logger: logger, lastLog: make(map[job.Stage]time.Time)}
}

func (o *logObserver) OnProgress(p job.Progress) {
	o.mu.Lock()
	now := time.Now()
	if now.Sub(o.lastLog[p.Stage]) < progressLogInterval {
		o.mu.Unlock()
		return
	}
	o.lastLog[p.Stage] = now
	o.mu.Unlock()

	evt := o.logger.Debug().
		Str(xglog.FieldEvent, "stage.progress").
		Str(xglog.FieldStage, string(p.Stage))
	if p.Percent >= 0 {
		evt = evt.Float64("percent", p.Percent)
	}
	if p.OutTime > 0 {
		evt = evt.Dur("out_time", p.OutTime)
	}
	if p.Bytes > 0 {
		evt = evt.Int64(xglog.FieldBytes, p.Bytes).Str(xglog.FieldBytesHuman, humanize.IBytes(uint64(p.Bytes)))
	}
	if p.Speed != "" {
		evt = evt.Str("speed", p.Speed)
	}
	evt.Msg("stage progress")
}

func (o *logObserver) OnDone(stage job.Stage, a job.Artifact) {
	o.logger.Info().
		Str(xglog.FieldEvent, "stage.done").
		Str(xglog.FieldStage, string(stage)).
		Str("kind", string(a.Kind)).
		Int64(xglog.FieldBytes, a.SizeBytes).
		Str(xglog.FieldBytesHuman, humanize.IBytes(uint64(a.SizeBytes))).
		Msg("stage completed")
}

func (o *logObserver) OnError(stage job.Stage, err error) {
	o.logger.Warn().Err(err).
		Str(xglog.FieldEvent, "stage.error").
		Str(xglog.FieldStage, string(stage)).
		Str(xglog.FieldReason, string(job.ReasonOf(err))).
		Msg("stage failed")
}
