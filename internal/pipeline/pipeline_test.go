// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/clipfetch/internal/acquire"
	"github.com/ManuGH/clipfetch/internal/domain/job"
	"github.com/ManuGH/clipfetch/internal/procexec"
	"github.com/ManuGH/clipfetch/internal/transcode"
	"github.com/ManuGH/clipfetch/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAcquirer struct {
	mu      sync.Mutex
	calls   int
	dirs    []string
	urls    []string
	opts    []acquire.Options
	jars    []string // cookie file contents as seen during Acquire
	payload []byte // nil: report success without writing
	err     error
	hold    chan struct{}
}

func (s *stubAcquirer) Acquire(ctx context.Context, sourceURL, targetPath string, opts acquire.Options, _ job.Observer) (job.Artifact, error) {
	s.mu.Lock()
	s.calls++
	s.dirs = append(s.dirs, filepath.Dir(targetPath))
	s.urls = append(s.urls, sourceURL)
	s.opts = append(s.opts, opts)
	if opts.CookiesFile != "" {
		data, _ := os.ReadFile(opts.CookiesFile)
		s.jars = append(s.jars, string(data))
	}
	s.mu.Unlock()

	if s.hold != nil {
		select {
		case <-s.hold:
		case <-ctx.Done():
			return job.Artifact{}, &job.AcquisitionError{Reason: job.ReasonProcessFailed, Err: ctx.Err()}
		}
	}
	if s.err != nil {
		return job.Artifact{}, s.err
	}
	if s.payload != nil {
		if err := os.WriteFile(targetPath, s.payload, 0o600); err != nil {
			return job.Artifact{}, err
		}
	}
	return job.Artifact{Path: targetPath, Kind: job.ArtifactRaw, SizeBytes: int64(len(s.payload))}, nil
}

func (s *stubAcquirer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubTranscoder struct {
	mu      sync.Mutex
	calls   int
	ranges  []job.TimeRange
	rawSeen []bool
	err     error
}

func (s *stubTranscoder) Transcode(_ context.Context, rawPath, targetPath string, tr job.TimeRange, _ job.Observer) (job.Artifact, error) {
	s.mu.Lock()
	s.calls++
	s.ranges = append(s.ranges, tr)
	_, statErr := os.Stat(rawPath)
	s.rawSeen = append(s.rawSeen, statErr == nil)
	s.mu.Unlock()

	if s.err != nil {
		return job.Artifact{}, s.err
	}
	if err := os.WriteFile(targetPath, []byte("processed"), 0o600); err != nil {
		return job.Artifact{}, err
	}
	return job.Artifact{Path: targetPath, Kind: job.ArtifactProcessed, SizeBytes: 9}, nil
}

func (s *stubTranscoder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubResolver struct{ to string }

func (s stubResolver) Resolve(_ context.Context, raw string) string {
	if s.to == "" {
		return raw
	}
	return s.to
}

type stubCookies struct{ path string }

func (s stubCookies) Resolve() (string, bool) { return s.path, s.path != "" }

type fixture struct {
	base string
	acq  *stubAcquirer
	tc   *stubTranscoder
	orch *Orchestrator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		base: t.TempDir(),
		acq:  &stubAcquirer{payload: []byte("raw-media")},
		tc:   &stubTranscoder{},
	}
	orch, err := New(cfg, Deps{
		Workspaces: workspace.NewManager(f.base),
		Acquirer:   f.acq,
		Transcoder: f.tc,
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func (f *fixture) assertNoWorkspaces(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.base)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names, "workspace base must be empty after a request")
}

// readDeliver reads the artifact and reports what it saw.
type readDeliver struct {
	mu        sync.Mutex
	got       []Delivery
	bodies    []string
	err       error
	callClean bool
}

func (d *readDeliver) fn(_ context.Context, del Delivery, cleanup func()) error {
	data, err := os.ReadFile(del.Artifact.Path)
	d.mu.Lock()
	d.got = append(d.got, del)
	if err == nil {
		d.bodies = append(d.bodies, string(data))
	}
	d.mu.Unlock()
	if d.callClean {
		cleanup()
	}
	return d.err
}

func TestExecute_MissingURL_NoSideEffects(t *testing.T) {
	f := newFixture(t, Config{})
	d := &readDeliver{}

	_, err := f.orch.Execute(context.Background(), Request{}, d.fn)

	var ve *job.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "url", ve.Field)
	assert.Zero(t, f.acq.callCount())
	assert.Empty(t, d.got)
	f.assertNoWorkspaces(t)
}

func TestExecute_NonHTTPURLRejected(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.orch.Execute(context.Background(), Request{SourceURL: "file:///etc/passwd"}, (&readDeliver{}).fn)
	assert.Equal(t, job.CategoryValidation, job.Classify(err))
	assert.Zero(t, f.acq.callCount())
}

func TestExecute_EndBeforeStart_TranscoderNeverInvoked(t *testing.T) {
	f := newFixture(t, Config{})
	_, err := f.orch.Execute(context.Background(), Request{
		SourceURL: "https://example.com/v",
		TimeRange: job.NewTimeRange(90, 30),
	}, (&readDeliver{}).fn)

	assert.Equal(t, job.CategoryValidation, job.Classify(err))
	assert.Zero(t, f.acq.callCount())
	assert.Zero(t, f.tc.callCount())
	f.assertNoWorkspaces(t)
}

func TestExecute_NoRange_StreamsRawWithoutTranscode(t *testing.T) {
	f := newFixture(t, Config{})
	d := &readDeliver{}

	out, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/v"}, d.fn)
	require.NoError(t, err)

	assert.True(t, out.Delivered)
	assert.Equal(t, job.StateServed, out.State)
	assert.Equal(t, job.ArtifactRaw, out.Final.Kind)
	assert.Zero(t, f.tc.callCount())
	require.Len(t, d.got, 1)
	assert.Equal(t, "download_"+out.JobID+".mp4", d.got[0].Filename)
	assert.Equal(t, []string{"raw-media"}, d.bodies)
	f.assertNoWorkspaces(t)
}

func TestExecute_WithRange_StreamsProcessed(t *testing.T) {
	f := newFixture(t, Config{})
	d := &readDeliver{callClean: true}

	out, err := f.orch.Execute(context.Background(), Request{
		SourceURL: "https://example.com/v",
		TimeRange: job.NewTimeRange(30, 90),
	}, d.fn)
	require.NoError(t, err)

	assert.Equal(t, job.ArtifactProcessed, out.Final.Kind)
	require.Equal(t, 1, f.tc.callCount())
	assert.Equal(t, job.NewTimeRange(30, 90), f.tc.ranges[0])
	assert.True(t, f.tc.rawSeen[0])
	assert.Equal(t, []string{"processed"}, d.bodies)
	f.assertNoWorkspaces(t)
}

func TestExecute_AlwaysNormalize(t *testing.T) {
	f := newFixture(t, Config{AlwaysNormalize: true})
	out, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/v"}, (&readDeliver{}).fn)
	require.NoError(t, err)
	assert.Equal(t, 1, f.tc.callCount())
	assert.Equal(t, job.ArtifactProcessed, out.Final.Kind)
}

func TestExecute_AcquirerSuccessWithoutFile_OutputMissing(t *testing.T) {
	f := newFixture(t, Config{})
	f.acq.payload = nil
	d := &readDeliver{}

	out, err := f.orch.Execute(context.Background(), Request{
		SourceURL: "https://example.com/v",
		TimeRange: job.NewTimeRange(0, 10),
	}, d.fn)

	var aerr *job.AcquisitionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, job.ReasonOutputMissing, aerr.Reason)
	assert.Equal(t, job.StateFailed, out.State)
	assert.Zero(t, f.tc.callCount())
	assert.Empty(t, d.got)
	f.assertNoWorkspaces(t)
}

func TestExecute_AcquireFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.acq.err = &job.AcquisitionError{Reason: job.ReasonProcessFailed, Err: errors.New("exit 1")}

	_, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/v"}, (&readDeliver{}).fn)
	assert.Equal(t, job.ReasonProcessFailed, job.ReasonOf(err))
	f.assertNoWorkspaces(t)
}

func TestExecute_TranscodeFailure_RawDeleted(t *testing.T) {
	f := newFixture(t, Config{})
	f.tc.err = &job.TranscodeError{Reason: job.ReasonProcessFailed, Err: errors.New("exit 1")}
	d := &readDeliver{}

	out, err := f.orch.Execute(context.Background(), Request{
		SourceURL: "https://example.com/v",
		TimeRange: job.NewTimeRange(30, 90),
	}, d.fn)

	assert.Equal(t, job.CategoryTranscode, job.Classify(err))
	assert.Equal(t, job.StateFailed, out.State)
	assert.Empty(t, d.got, "nothing is delivered after a failed transcode")

	require.Len(t, f.acq.dirs, 1)
	assert.NoDirExists(t, f.acq.dirs[0])
	f.assertNoWorkspaces(t)
}

func TestExecute_DeliveryFailure(t *testing.T) {
	f := newFixture(t, Config{})
	d := &readDeliver{err: errors.New("broken pipe")}

	out, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/v"}, d.fn)
	require.Error(t, err)
	assert.False(t, out.Delivered)
	assert.Equal(t, job.StateFailed, out.State)
	f.assertNoWorkspaces(t)
}

func TestExecute_ConcurrentSameURL_DistinctWorkspaces(t *testing.T) {
	f := newFixture(t, Config{})

	const n = 8
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/same"}, (&readDeliver{}).fn)
			if assert.NoError(t, err) {
				ids <- out.JobID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seenIDs := map[string]bool{}
	for id := range ids {
		seenIDs[id] = true
	}
	assert.Len(t, seenIDs, n)

	seenDirs := map[string]bool{}
	for _, d := range f.acq.dirs {
		assert.False(t, seenDirs[d], "workspace %s reused", d)
		seenDirs[d] = true
	}
	assert.Len(t, seenDirs, n)
	f.assertNoWorkspaces(t)
}

const testJar = "# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tTRUE\t0\tsid\tabc\n"

func writeJar(t *testing.T) string {
	t.Helper()
	jar := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(jar, []byte(testJar), 0o600))
	return jar
}

func TestExecute_ResolverAndCookies(t *testing.T) {
	f := newFixture(t, Config{Acquire: acquire.Options{Format: "b"}})
	jar := writeJar(t)
	f.orch.deps.Resolver = stubResolver{to: "https://www.pinterest.com/pin/1/"}
	f.orch.deps.Cookies = stubCookies{path: jar}

	_, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://pin.it/abc"}, (&readDeliver{}).fn)
	require.NoError(t, err)

	require.Len(t, f.acq.urls, 1)
	assert.Equal(t, "https://www.pinterest.com/pin/1/", f.acq.urls[0])
	assert.Equal(t, "b", f.acq.opts[0].Format)

	// yt-dlp gets a per-job copy inside the workspace, never the shared jar.
	cookies := f.acq.opts[0].CookiesFile
	assert.NotEqual(t, jar, cookies)
	assert.Equal(t, f.acq.dirs[0], filepath.Dir(cookies))
	assert.Equal(t, []string{testJar}, f.acq.jars)
	assert.NoFileExists(t, cookies)
	f.assertNoWorkspaces(t)

	data, err := os.ReadFile(jar)
	require.NoError(t, err)
	assert.Equal(t, testJar, string(data))
}

func TestExecute_ConcurrentJobs_OwnCookieCopies(t *testing.T) {
	f := newFixture(t, Config{})
	f.orch.deps.Cookies = stubCookies{path: writeJar(t)}

	const n = 4
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/v"}, (&readDeliver{}).fn)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, f.acq.opts, n)
	seen := map[string]bool{}
	for i, o := range f.acq.opts {
		assert.Equal(t, f.acq.dirs[i], filepath.Dir(o.CookiesFile), "cookie copy must live in the job workspace")
		assert.False(t, seen[o.CookiesFile], "cookie file %s shared between jobs", o.CookiesFile)
		seen[o.CookiesFile] = true
	}
	f.assertNoWorkspaces(t)
}

func TestExecute_UnreadableCookieJar_RunsWithoutCookies(t *testing.T) {
	f := newFixture(t, Config{})
	f.orch.deps.Cookies = stubCookies{path: filepath.Join(t.TempDir(), "gone.txt")}

	_, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/v"}, (&readDeliver{}).fn)
	require.NoError(t, err)
	require.Len(t, f.acq.opts, 1)
	assert.Empty(t, f.acq.opts[0].CookiesFile)
}

func TestExecute_ClientCancelDuringAcquire_CleansUp(t *testing.T) {
	f := newFixture(t, Config{})
	f.acq.hold = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Execute(ctx, Request{SourceURL: "https://example.com/v"}, (&readDeliver{}).fn)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.acq.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
	f.assertNoWorkspaces(t)
}

func TestExecute_AdmissionWaitIsCancellable(t *testing.T) {
	f := newFixture(t, Config{MaxConcurrent: 1})
	f.acq.hold = make(chan struct{})

	first := make(chan error, 1)
	go func() {
		_, err := f.orch.Execute(context.Background(), Request{SourceURL: "https://example.com/a"}, (&readDeliver{}).fn)
		first <- err
	}()
	require.Eventually(t, func() bool { return f.acq.callCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.orch.Execute(ctx, Request{SourceURL: "https://example.com/b"}, (&readDeliver{}).fn)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, f.acq.callCount(), "second job must not start while the slot is held")

	close(f.acq.hold)
	require.NoError(t, <-first)
	f.assertNoWorkspaces(t)
}

func TestExecute_RealTranscoderArgs(t *testing.T) {
	var (
		mu   sync.Mutex
		args []string
	)
	runner := runnerFunc(func(_ context.Context, spec procexec.Spec) (procexec.Result, error) {
		mu.Lock()
		args = append([]string(nil), spec.Args...)
		mu.Unlock()
		return procexec.Result{}, os.WriteFile(spec.Args[len(spec.Args)-1], []byte("enc"), 0o600)
	})

	base := t.TempDir()
	orch, err := New(Config{}, Deps{
		Workspaces: workspace.NewManager(base),
		Acquirer:   &stubAcquirer{payload: []byte("raw")},
		Transcoder: transcode.NewAdapter(transcode.Config{Binary: "ffmpeg"}, runner),
	})
	require.NoError(t, err)

	tr, err := job.ParseTimeRange("30", "90")
	require.NoError(t, err)
	_, err = orch.Execute(context.Background(), Request{SourceURL: "https://example.com/v", TimeRange: tr}, (&readDeliver{}).fn)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Subset(t, args, []string{"-ss", "30", "-t", "60"})
	ss, ti, in := indexOf(args, "-ss"), indexOf(args, "-t"), indexOf(args, "-i")
	assert.Equal(t, "30", args[ss+1])
	assert.Equal(t, "60", args[ti+1])
	assert.Less(t, ss, in)
	assert.Less(t, ti, in)
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
}

type runnerFunc func(ctx context.Context, spec procexec.Spec) (procexec.Result, error)

func (f runnerFunc) Run(ctx context.Context, spec procexec.Spec) (procexec.Result, error) {
	return f(ctx, spec)
}

func indexOf(args []string, v string) int {
	for i, a := range args {
		if a == v {
			return i
		}
	}
	return -1
}
