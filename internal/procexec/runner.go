// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procexec runs external tools with an argument vector, a wall-clock
// limit, line-wise output callbacks and process-group teardown.
package procexec

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/clipfetch/internal/procgroup"
	"github.com/rs/zerolog"
)

// DefaultGrace is the time between SIGTERM and SIGKILL on teardown.
const DefaultGrace = 5 * time.Second

const stderrTailLines = 20

// ErrTimeout is returned when a process exceeds Spec.Timeout.
var ErrTimeout = errors.New("process exceeded time limit")

// Stream identifies which pipe a line came from.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// LineFunc receives every output line. It is called from reader goroutines,
// one per stream, and must not block for long.
type LineFunc func(stream Stream, line string)

// Spec describes a single process invocation. Args are passed verbatim;
// no shell is involved.
type Spec struct {
	Name    string
	Args    []string
	Dir     string
	Timeout time.Duration
	OnLine  LineFunc
}

// Result is the observable outcome of a finished process.
type Result struct {
	ExitCode   int
	StderrTail []string
	Duration   time.Duration
}

// ExitError reports a non-zero exit.
type ExitError struct {
	Name     string
	ExitCode int
	Tail     []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Name, e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

// Runner executes a Spec to completion.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner is the os/exec backed Runner.
type ExecRunner struct {
	Grace  time.Duration
	Logger zerolog.Logger
}

// NewRunner returns an ExecRunner with the default grace period.
func NewRunner(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{Grace: DefaultGrace, Logger: logger}
}

// Run starts the process in its own group and blocks until it exits, the
// timeout elapses or ctx is cancelled. On timeout or cancellation the whole
// group is terminated before Run returns.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	start := time.Now()
	res := Result{ExitCode: -1}

	cmd := exec.Command(spec.Name, spec.Args...) // #nosec G204 -- argv only, never a shell
	cmd.Dir = spec.Dir
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return res, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return res, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return res, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	logger := r.Logger.With().Str("bin", spec.Name).Int("pid", cmd.Process.Pid).Logger()
	logger.Debug().Strs("args", spec.Args).Msg("process started")

	tail := newTail(stderrTailLines)
	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		scanLines(stdout, func(line string) { emit(spec.OnLine, Stdout, line) })
	}()
	go func() {
		defer readers.Done()
		scanLines(stderr, func(line string) {
			tail.add(line)
			emit(spec.OnLine, Stderr, line)
		})
	}()

	// Pipes must be drained before Wait closes them.
	waitCh := make(chan error, 1)
	go func() {
		readers.Wait()
		waitCh <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	grace := r.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	var waitErr error
	var abort error
	select {
	case waitErr = <-waitCh:
	case <-timeout:
		logger.Warn().Dur("timeout", spec.Timeout).Msg("process timed out, terminating group")
		logTermination(logger, procgroup.Terminate(cmd, waitCh, grace))
		abort = fmt.Errorf("%s: %w", spec.Name, ErrTimeout)
	case <-ctx.Done():
		logger.Info().Msg("context cancelled, terminating group")
		logTermination(logger, procgroup.Terminate(cmd, waitCh, grace))
		abort = ctx.Err()
	}

	res.Duration = time.Since(start)
	res.StderrTail = tail.lines()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if abort != nil {
		return res, abort
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			logger.Debug().Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Msg("process failed")
			return res, &ExitError{Name: spec.Name, ExitCode: res.ExitCode, Tail: res.StderrTail}
		}
		return res, fmt.Errorf("wait %s: %w", spec.Name, waitErr)
	}

	logger.Debug().Dur("duration", res.Duration).Msg("process exited")
	return res, nil
}

func logTermination(logger zerolog.Logger, out procgroup.Outcome) {
	evt := logger.Debug()
	if out.Forced {
		evt = logger.Warn()
	}
	evt.Bool("forced", out.Forced).
		Dur("elapsed", out.Elapsed).
		AnErr("wait_error", out.WaitErr).
		Msg("process group terminated")
}

func emit(fn LineFunc, stream Stream, line string) {
	if fn != nil {
		fn(stream, line)
	}
}

// scanLines splits on both \n and \r so carriage-return progress updates
// arrive as separate lines.
func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitCRLF)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	// Keep draining so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

func splitCRLF(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []string
}

func newTail(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *tailBuffer) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.buf))
	copy(out, t.buf)
	return out
}
