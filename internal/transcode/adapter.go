// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcode trims and re-encodes acquired media with ffmpeg.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/procexec"
	"github.com/rs/zerolog"
)

var errStalled = errors.New("ffmpeg stalled")

// Adapter runs the transcoding tool.
type Adapter struct {
	cfg    Config
	runner procexec.Runner
	logger zerolog.Logger
}

// NewAdapter returns an Adapter. A nil runner selects the os/exec runner.
func NewAdapter(cfg Config, runner procexec.Runner) *Adapter {
	logger := xglog.WithComponent("transcode")
	if runner == nil {
		runner = procexec.NewRunner(logger)
	}
	return &Adapter{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// Binary returns the configured ffmpeg executable.
func (a *Adapter) Binary() string { return a.cfg.Binary }

// Transcode encodes rawPath into targetPath, bounded by tr. rawPath is only
// read; a partial targetPath is removed on failure.
func (a *Adapter) Transcode(ctx context.Context, rawPath, targetPath string, tr job.TimeRange, obs job.Observer) (job.Artifact, error) {
	if obs == nil {
		obs = job.NopObserver{}
	}
	if err := tr.Validate(); err != nil {
		return job.Artifact{}, err
	}
	if rawPath == "" || targetPath == "" {
		return job.Artifact{}, &job.ValidationError{Field: "path", Message: "input and output paths are required"}
	}
	if filepath.Clean(rawPath) == filepath.Clean(targetPath) {
		return job.Artifact{}, &job.ValidationError{Field: "path", Message: "output must differ from input"}
	}
	if _, err := os.Stat(rawPath); err != nil {
		return job.Artifact{}, &job.ValidationError{Field: "input", Message: err.Error()}
	}

	total := time.Duration(0)
	if d, ok := tr.Duration(); ok {
		total = time.Duration(d * float64(time.Second))
	}
	parser := newProgressParser(total)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var lastAdvance atomic.Int64
	lastAdvance.Store(time.Now().UnixNano())
	var lastOut atomic.Int64

	onLine := func(stream procexec.Stream, line string) {
		if stream != procexec.Stdout {
			a.logger.Debug().Str("line", line).Msg("ffmpeg stderr")
			return
		}
		p, ok := parser.feed(line)
		if !ok {
			return
		}
		if int64(p.OutTime) > lastOut.Load() {
			lastOut.Store(int64(p.OutTime))
			lastAdvance.Store(time.Now().UnixNano())
		}
		obs.OnProgress(p)
	}

	if a.cfg.StallTimeout > 0 {
		go a.watchStall(runCtx, cancel, &lastAdvance)
	}

	args := BuildArgs(a.cfg, rawPath, targetPath, tr)
	res, err := a.runner.Run(runCtx, procexec.Spec{
		Name:    a.cfg.Binary,
		Args:    args,
		Dir:     filepath.Dir(targetPath),
		Timeout: a.cfg.Timeout,
		OnLine:  onLine,
	})
	if err != nil {
		terr := a.mapRunError(ctx, runCtx, err)
		_ = os.Remove(targetPath)
		a.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "transcode.failed").
			Str(xglog.FieldReason, string(terr.Reason)).
			Int(xglog.FieldExitCode, res.ExitCode).
			Strs("stderr_tail", res.StderrTail).
			Msg("ffmpeg failed")
		obs.OnError(job.StageTranscode, terr)
		return job.Artifact{}, terr
	}

	art, err := job.StatArtifact(targetPath, job.ArtifactProcessed)
	if err != nil {
		terr := &job.TranscodeError{Reason: job.ReasonOutputMissing, Err: err}
		_ = os.Remove(targetPath)
		obs.OnError(job.StageTranscode, terr)
		return job.Artifact{}, terr
	}

	obs.OnDone(job.StageTranscode, art)
	return art, nil
}

func (a *Adapter) mapRunError(parent, runCtx context.Context, err error) *job.TranscodeError {
	switch {
	case errors.Is(err, procexec.ErrTimeout):
		return &job.TranscodeError{Reason: job.ReasonTimeout, Err: err}
	case errors.Is(context.Cause(runCtx), errStalled) && parent.Err() == nil:
		return &job.TranscodeError{Reason: job.ReasonTimeout, Err: errStalled}
	case parent.Err() != nil:
		return &job.TranscodeError{Reason: job.ReasonProcessFailed, Err: fmt.Errorf("ffmpeg aborted: %w", parent.Err())}
	default:
		return &job.TranscodeError{Reason: job.ReasonProcessFailed, Err: err}
	}
}

// watchStall cancels the run when no output time progress is seen for
// StallTimeout.
func (a *Adapter) watchStall(ctx context.Context, cancel context.CancelCauseFunc, lastAdvance *atomic.Int64) {
	tick := a.cfg.StallTimeout / 4
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since := time.Since(time.Unix(0, lastAdvance.Load()))
			if since > a.cfg.StallTimeout {
				a.logger.Error().
					Str(xglog.FieldEvent, "transcode.stalled").
					Dur("since_progress", since).
					Msg("ffmpeg stalled, killing process group")
				cancel(errStalled)
				return
			}
		}
	}
}
