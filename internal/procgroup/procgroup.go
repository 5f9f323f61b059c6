// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup spawns external tools in their own process group so that
// a timeout or cancellation reaps the whole tree (yt-dlp forks ffmpeg for
// merging, and killing only the leader would leak the child).
package procgroup

import (
	"errors"
	"os/exec"
)

// ErrKillFailed wraps signal delivery failures other than "already gone".
var ErrKillFailed = errors.New("kill operation failed")

// Set configures cmd to start as the leader of a new process group.
// Must be called before cmd.Start for Terminate to reach descendants.
func Set(cmd *exec.Cmd) {
	set(cmd)
}
