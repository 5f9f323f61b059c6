// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package acquire drives yt-dlp to fetch remote media into a job workspace.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/procexec"
	"github.com/rs/zerolog"
)

// Adapter runs the acquisition tool.
type Adapter struct {
	cfg    Config
	runner procexec.Runner
	logger zerolog.Logger
}

// NewAdapter returns an Adapter. A nil runner selects the os/exec runner.
func NewAdapter(cfg Config, runner procexec.Runner) *Adapter {
	logger := xglog.WithComponent("acquire")
	if runner == nil {
		runner = procexec.NewRunner(logger)
	}
	return &Adapter{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// DefaultOptions returns the configured per-invocation defaults.
func (a *Adapter) DefaultOptions() Options { return a.cfg.Defaults }

// Binary returns the configured yt-dlp executable.
func (a *Adapter) Binary() string { return a.cfg.Binary }

// Acquire downloads sourceURL to targetPath. The returned artifact is
// verified to exist with a non-zero size.
func (a *Adapter) Acquire(ctx context.Context, sourceURL, targetPath string, opts Options, obs job.Observer) (job.Artifact, error) {
	if obs == nil {
		obs = job.NopObserver{}
	}
	if sourceURL == "" {
		return job.Artifact{}, &job.ValidationError{Field: "url", Message: "is required"}
	}
	if targetPath == "" || !filepath.IsAbs(targetPath) {
		return job.Artifact{}, &job.ValidationError{Field: "target", Message: "must be an absolute path"}
	}

	args := BuildArgs(a.cfg.FFmpegBinary, sourceURL, targetPath, opts)

	var (
		mu      sync.Mutex
		lastErr string
	)
	onLine := func(stream procexec.Stream, line string) {
		if p, ok := parseProgressLine(line); ok {
			obs.OnProgress(p)
			return
		}
		if msg, ok := errorLine(line); ok {
			mu.Lock()
			lastErr = msg
			mu.Unlock()
		}
		a.logger.Trace().Str("stream", string(stream)).Str("line", line).Msg("yt-dlp output")
	}

	res, err := a.runner.Run(ctx, procexec.Spec{
		Name:    a.cfg.Binary,
		Args:    args,
		Dir:     filepath.Dir(targetPath),
		Timeout: a.cfg.Timeout,
		OnLine:  onLine,
	})
	if err != nil {
		mu.Lock()
		detail := lastErr
		mu.Unlock()
		aerr := mapRunError(ctx, err, detail)
		a.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "acquire.failed").
			Str(xglog.FieldReason, string(aerr.Reason)).
			Int(xglog.FieldExitCode, res.ExitCode).
			Strs("stderr_tail", res.StderrTail).
			Msg("yt-dlp failed")
		obs.OnError(job.StageAcquire, aerr)
		return job.Artifact{}, aerr
	}

	art, err := job.StatArtifact(targetPath, job.ArtifactRaw)
	if err != nil {
		aerr := &job.AcquisitionError{Reason: job.ReasonOutputMissing, Err: err}
		obs.OnError(job.StageAcquire, aerr)
		return job.Artifact{}, aerr
	}

	obs.OnDone(job.StageAcquire, art)
	return art, nil
}

func mapRunError(ctx context.Context, err error, detail string) *job.AcquisitionError {
	reason := job.ReasonProcessFailed
	switch {
	case errors.Is(err, procexec.ErrTimeout):
		reason = job.ReasonTimeout
	case ctx.Err() != nil:
		err = fmt.Errorf("yt-dlp aborted: %w", ctx.Err())
	case detail != "":
		err = fmt.Errorf("%w: %s", err, detail)
	}
	if errors.Is(err, os.ErrNotExist) {
		err = fmt.Errorf("yt-dlp binary not found: %w", err)
	}
	return &job.AcquisitionError{Reason: reason, Err: err}
}
