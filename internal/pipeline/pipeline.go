// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package pipeline sequences acquisition, optional transcoding and delivery
// for one request, and guarantees the job workspace is reclaimed on every
// exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/clipfetch/internal/acquire"
	"github.com/ManuGH/clipfetch/internal/domain/job"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/metrics"
	platformnet "github.com/ManuGH/clipfetch/internal/platform/net"
	"github.com/ManuGH/clipfetch/internal/telemetry"
	"github.com/ManuGH/clipfetch/internal/workspace"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const (
	rawBaseName       = "raw"
	processedFileName = "processed.mp4"
	cookiesFileName   = "cookies.txt"
	tracerName        = "github.com/ManuGH/clipfetch/internal/pipeline"
)

// Acquirer fetches remote media into targetPath.
type Acquirer interface {
	Acquire(ctx context.Context, sourceURL, targetPath string, opts acquire.Options, obs job.Observer) (job.Artifact, error)
}

// Transcoder re-encodes rawPath into targetPath bounded by tr.
type Transcoder interface {
	Transcode(ctx context.Context, rawPath, targetPath string, tr job.TimeRange, obs job.Observer) (job.Artifact, error)
}

// URLResolver expands short links. Implementations never fail; they return
// the input on any problem.
type URLResolver interface {
	Resolve(ctx context.Context, raw string) string
}

// CookieSource yields a usable cookie file path, if any.
type CookieSource interface {
	Resolve() (string, bool)
}

// Workspaces hands out per-job scratch directories.
type Workspaces interface {
	Open(jobID string) (*workspace.Workspace, error)
}

// Delivery is what the pipeline hands to the caller once a final artifact
// exists.
type Delivery struct {
	JobID    string
	Artifact job.Artifact
	Filename string
}

// Deliver transmits the final artifact. It must call cleanup once the
// artifact file is no longer needed; the pipeline calls it again afterwards,
// which is a no-op. A returned error means the transmission failed.
type Deliver func(ctx context.Context, d Delivery, cleanup func()) error

// Request is one download request.
type Request struct {
	SourceURL string
	TimeRange job.TimeRange
}

// Outcome summarizes a finished Execute call.
type Outcome struct {
	JobID     string
	// State is the terminal state reached before cleanup (served or failed).
	State     job.State
	Final     job.Artifact
	Delivered bool
	Duration  time.Duration
}

// Config tunes the orchestrator.
type Config struct {
	// MaxConcurrent bounds jobs holding a slot. Zero means unbounded.
	MaxConcurrent int64
	// AlwaysNormalize re-encodes even when no time range was requested.
	AlwaysNormalize bool
	// Acquire holds default downloader options; cookies are filled per job.
	Acquire acquire.Options
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Workspaces Workspaces
	Acquirer   Acquirer
	Transcoder Transcoder
	Resolver   URLResolver
	Cookies    CookieSource
}

// Orchestrator runs jobs.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	sem    *semaphore.Weighted
	tracer trace.Tracer
	logger zerolog.Logger
	now    func() time.Time
}

// New returns an Orchestrator. Workspaces, Acquirer and Transcoder are required.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Workspaces == nil || deps.Acquirer == nil || deps.Transcoder == nil {
		return nil, errors.New("pipeline: workspaces, acquirer and transcoder are required")
	}
	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		tracer: telemetry.Tracer(tracerName),
		logger: xglog.WithComponent("pipeline"),
		now:    time.Now,
	}
	if cfg.MaxConcurrent > 0 {
		o.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	return o, nil
}

// Validate checks a request without side effects.
func Validate(req Request) error {
	if req.SourceURL == "" {
		return &job.ValidationError{Field: "url", Message: "is required"}
	}
	if _, err := platformnet.ParseSourceURL(req.SourceURL); err != nil {
		return &job.ValidationError{Field: "url", Message: err.Error()}
	}
	return req.TimeRange.Validate()
}

// Execute runs one job to completion. The returned error is the first stage
// failure; cleanup problems are logged only. When the error is a delivery
// failure, Outcome.State is failed and the response may be partially sent.
func (o *Orchestrator) Execute(ctx context.Context, req Request, deliver Deliver) (Outcome, error) {
	if err := Validate(req); err != nil {
		return Outcome{}, err
	}
	if deliver == nil {
		return Outcome{}, errors.New("pipeline: deliver is required")
	}

	release, err := o.admit(ctx)
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	start := o.now()
	j := job.New(req.SourceURL, req.TimeRange)
	ctx = xglog.ContextWithJobID(ctx, j.ID)
	logger := xglog.WithContext(ctx, o.logger)

	trimmed := !req.TimeRange.IsZero()
	ctx, span := o.tracer.Start(ctx, "pipeline.execute",
		trace.WithAttributes(telemetry.JobAttributes(j.ID, hostOf(req.SourceURL), req.TimeRange.String(), trimmed)...))

	metrics.JobStarted()
	if trimmed {
		metrics.IncTrimmedJob()
	}

	r := &run{o: o, job: j, logger: logger}
	out, runErr := r.execute(ctx, req, deliver)
	out.State = j.State()
	r.finish()

	out.JobID = j.ID
	out.Duration = o.now().Sub(start)

	metrics.JobFinished()
	metrics.RecordJob(outcomeLabel(out, runErr), string(job.Classify(runErr)), out.Duration)
	if runErr != nil {
		cat := job.Classify(runErr)
		span.SetAttributes(telemetry.ErrorAttributes(string(cat), string(job.ReasonOf(runErr)))...)
	}
	telemetry.EndSpan(span, runErr)

	evt := logger.Info()
	if runErr != nil {
		evt = logger.Warn().Err(runErr).Str("category", string(job.Classify(runErr)))
	}
	evt.Str(xglog.FieldEvent, "job.finished").
		Str("state", string(out.State)).
		Bool("delivered", out.Delivered).
		Dur("duration", out.Duration).
		Msg("job finished")

	return out, runErr
}

func (o *Orchestrator) admit(ctx context.Context) (func(), error) {
	if o.sem == nil {
		return func() {}, nil
	}
	start := o.now()
	if err := o.sem.Acquire(ctx, 1); err != nil {
		metrics.IncAdmissionAbandoned()
		return nil, fmt.Errorf("waiting for pipeline slot: %w", err)
	}
	metrics.ObserveAdmissionWait(o.now().Sub(start))
	return func() { o.sem.Release(1) }, nil
}

// run is the per-job state.
type run struct {
	o      *Orchestrator
	job    *job.Job
	ws     *workspace.Workspace
	logger zerolog.Logger

	cleanOnce sync.Once
}

func (r *run) execute(ctx context.Context, req Request, deliver Deliver) (Outcome, error) {
	ws, err := r.o.deps.Workspaces.Open(r.job.ID)
	if err != nil {
		r.fail(err)
		return Outcome{}, err
	}
	r.ws = ws
	r.job.WorkspaceDir = ws.Dir()

	obs := newLogObserver(r.logger)

	raw, err := r.acquire(ctx, req, obs)
	if err != nil {
		r.fail(err)
		return Outcome{}, err
	}
	r.job.AddArtifact(raw)
	r.transition(job.StateAcquired)

	if !req.TimeRange.IsZero() || r.o.cfg.AlwaysNormalize {
		processed, err := r.transcode(ctx, raw, req.TimeRange, obs)
		if err != nil {
			r.fail(err)
			return Outcome{}, err
		}
		r.job.AddArtifact(processed)
	}
	r.transition(job.StateReady)

	final, err := r.job.Final()
	if err != nil {
		r.fail(err)
		return Outcome{}, err
	}

	d := Delivery{
		JobID:    r.job.ID,
		Artifact: final,
		Filename: fmt.Sprintf("download_%s%s", r.job.ID, filepath.Ext(final.Path)),
	}
	if err := deliver(ctx, d, r.cleanup); err != nil {
		r.fail(err)
		return Outcome{Final: final}, err
	}
	r.transition(job.StateServed)
	return Outcome{Final: final, Delivered: true}, nil
}

func (r *run) acquire(ctx context.Context, req Request, obs job.Observer) (job.Artifact, error) {
	r.transition(job.StateAcquiring)

	opts := r.o.cfg.Acquire
	if r.o.deps.Cookies != nil {
		if path, ok := r.o.deps.Cookies.Resolve(); ok {
			opts.CookiesFile = r.stageCookies(path)
		}
	}
	container := opts.Container
	if container == "" {
		container = acquire.DefaultContainer
	}
	rawPath, err := r.ws.Path(rawBaseName + "." + container)
	if err != nil {
		return job.Artifact{}, &job.ResourceError{Op: "build raw path", Path: r.ws.Dir(), Err: err}
	}

	sourceURL := req.SourceURL
	if r.o.deps.Resolver != nil {
		sourceURL = r.o.deps.Resolver.Resolve(ctx, sourceURL)
	}

	ctx, span := r.o.tracer.Start(ctx, "pipeline.acquire",
		trace.WithAttributes(telemetry.StageAttributes(string(job.StageAcquire), "yt-dlp")...))
	start := r.o.now()
	_, err = r.o.deps.Acquirer.Acquire(ctx, sourceURL, rawPath, opts, obs)
	if err == nil {
		// Trust the disk, not the adapter.
		var art job.Artifact
		art, err = verify(rawPath, job.ArtifactRaw, func(e error) error {
			return &job.AcquisitionError{Reason: job.ReasonOutputMissing, Err: e}
		})
		if err == nil {
			r.stageDone(span, job.StageAcquire, start, art)
			return art, nil
		}
	}
	r.stageFailed(span, job.StageAcquire, start, err)
	return job.Artifact{}, err
}

// stageCookies copies the shared cookie jar into the workspace. yt-dlp writes
// the jar back on exit, so each job must own its copy. Returns "" when the
// copy fails; the job then runs without cookies.
func (r *run) stageCookies(src string) string {
	dst, err := r.ws.Path(cookiesFileName)
	if err == nil {
		var data []byte
		if data, err = os.ReadFile(src); err == nil { // #nosec G304 -- operator configured path
			err = renameio.WriteFile(dst, data, 0o600)
		}
	}
	if err != nil {
		r.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "cookies.stage_failed").
			Str(xglog.FieldPath, src).
			Msg("cookie file could not be copied into workspace; continuing without cookies")
		return ""
	}
	return dst
}

func (r *run) transcode(ctx context.Context, raw job.Artifact, tr job.TimeRange, obs job.Observer) (job.Artifact, error) {
	r.transition(job.StateTranscoding)

	target, err := r.ws.Path(processedFileName)
	if err != nil {
		return job.Artifact{}, &job.ResourceError{Op: "build processed path", Path: r.ws.Dir(), Err: err}
	}

	ctx, span := r.o.tracer.Start(ctx, "pipeline.transcode",
		trace.WithAttributes(telemetry.StageAttributes(string(job.StageTranscode), "ffmpeg")...))
	start := r.o.now()
	_, err = r.o.deps.Transcoder.Transcode(ctx, raw.Path, target, tr, obs)
	if err == nil {
		var art job.Artifact
		art, err = verify(target, job.ArtifactProcessed, func(e error) error {
			return &job.TranscodeError{Reason: job.ReasonOutputMissing, Err: e}
		})
		if err == nil {
			r.stageDone(span, job.StageTranscode, start, art)
			return art, nil
		}
	}
	r.stageFailed(span, job.StageTranscode, start, err)
	return job.Artifact{}, err
}

func (r *run) stageDone(span trace.Span, stage job.Stage, start time.Time, art job.Artifact) {
	metrics.ObserveStage(string(stage), true, r.o.now().Sub(start))
	metrics.ObserveArtifact(string(stage), art.SizeBytes)
	span.SetAttributes(telemetry.ArtifactAttributes(string(art.Kind), art.SizeBytes)...)
	telemetry.EndSpan(span, nil)
}

func (r *run) stageFailed(span trace.Span, stage job.Stage, start time.Time, err error) {
	metrics.ObserveStage(string(stage), false, r.o.now().Sub(start))
	reason := string(job.ReasonOf(err))
	if reason == "" {
		reason = string(job.Classify(err))
	}
	metrics.IncStageError(string(stage), reason)
	telemetry.EndSpan(span, err)
}

func (r *run) transition(to job.State) {
	from := r.job.State()
	if err := r.job.Transition(to); err != nil {
		r.logger.Error().Err(err).
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(to)).
			Msg("illegal job transition")
		return
	}
	r.logger.Debug().
		Str(xglog.FieldEvent, "job.transition").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(to)).
		Msg("job state changed")
}

func (r *run) fail(err error) {
	if r.job.State().IsTerminal() {
		return
	}
	r.logger.Debug().Err(err).Msg("job failed")
	r.transition(job.StateFailed)
}

// cleanup removes the workspace exactly once. It is handed to Deliver so the
// files go away as soon as transmission ends.
func (r *run) cleanup() {
	r.cleanOnce.Do(func() {
		if r.ws == nil {
			return
		}
		if err := r.ws.Close(); err != nil {
			r.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "job.cleanup_failed").
				Str(xglog.FieldWorkspace, r.ws.Dir()).
				Msg("workspace cleanup failed")
		}
	})
}

// finish runs cleanup and moves a served or failed job to cleaned.
func (r *run) finish() {
	r.cleanup()
	if s := r.job.State(); s == job.StateServed || s == job.StateFailed {
		r.transition(job.StateCleaned)
	}
}

func verify(path string, kind job.ArtifactKind, wrap func(error) error) (job.Artifact, error) {
	art, err := job.StatArtifact(path, kind)
	if err != nil {
		return job.Artifact{}, wrap(err)
	}
	return art, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func outcomeLabel(out Outcome, err error) string {
	switch {
	case out.Delivered:
		return "served"
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return "aborted"
	default:
		return "failed"
	}
}
