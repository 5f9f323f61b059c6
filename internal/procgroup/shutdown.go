// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/clipfetch/internal/metrics"
)

// Outcome describes how Terminate brought a process group down.
type Outcome struct {
	// Forced is true when the group ignored SIGTERM for the whole grace
	// period and had to be killed.
	Forced bool
	// Elapsed is the time from SIGTERM until the leader was reaped.
	Elapsed time.Duration
	// WaitErr is what waitCh delivered.
	WaitErr error
}

// Terminate stops a process group: SIGTERM, wait up to grace for waitCh,
// then SIGKILL and drain waitCh. waitCh must deliver exactly once.
// A nil command yields the zero Outcome.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) Outcome {
	if cmd == nil || cmd.Process == nil {
		return Outcome{}
	}

	start := time.Now()
	signalGroup(cmd, syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		metrics.IncProcWait(waitLabel("", err))
		return Outcome{Elapsed: time.Since(start), WaitErr: err}
	case <-timer.C:
	}

	signalGroup(cmd, syscall.SIGKILL)
	// SIGKILL cannot be ignored, so the leader will be reaped.
	err := <-waitCh
	metrics.IncProcWait(waitLabel("forced_", err))
	return Outcome{Forced: true, Elapsed: time.Since(start), WaitErr: err}
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	name := "SIGTERM"
	if sig == syscall.SIGKILL {
		name = "SIGKILL"
	}
	if err := Kill(cmd, sig); err != nil {
		metrics.IncProcTerminate(name, "error")
		return
	}
	metrics.IncProcTerminate(name, "sent")
}

func waitLabel(prefix string, err error) string {
	if err == nil {
		return prefix + "exit0"
	}
	return prefix + "error"
}
