// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID_FormatAndUniqueness(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	re := regexp.MustCompile(`^1700000000000-[0-9a-f]{8}$`)

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id := NewID(now)
		require.Regexp(t, re, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestJob_HappyPathTransitions(t *testing.T) {
	j := New("https://example.com/v.mp4", TimeRange{})
	require.Equal(t, StateCreated, j.State())

	for _, to := range []State{StateAcquiring, StateAcquired, StateReady, StateServed, StateCleaned} {
		require.NoError(t, j.Transition(to), "-> %s", to)
	}
	assert.Equal(t, StateCleaned, j.State())
}

func TestJob_IllegalTransitionKeepsState(t *testing.T) {
	j := New("https://example.com/v.mp4", TimeRange{})

	err := j.Transition(StateTranscoding)
	require.Error(t, err)
	assert.Equal(t, StateCreated, j.State())

	require.NoError(t, j.Transition(StateFailed))
	require.Error(t, j.Transition(StateServed), "failed job cannot be served")
	require.NoError(t, j.Transition(StateCleaned))
	require.Error(t, j.Transition(StateCleaned), "cleaned is final")
}

func TestCanTransition_FailureFromEveryActiveState(t *testing.T) {
	for _, from := range []State{StateCreated, StateAcquiring, StateAcquired, StateTranscoding, StateReady} {
		assert.True(t, CanTransition(from, StateFailed), "%s -> failed", from)
		assert.False(t, from.IsTerminal())
	}
	assert.False(t, CanTransition(StateServed, StateFailed))
	assert.True(t, StateServed.IsTerminal())
}

func TestJob_FinalPrefersProcessed(t *testing.T) {
	j := New("https://example.com/v.mp4", NewTimeRange(30, 90))

	_, err := j.Final()
	require.ErrorIs(t, err, ErrNoFinalArtifact)

	j.AddArtifact(Artifact{Path: "/w/raw.mp4", Kind: ArtifactRaw, SizeBytes: 10})
	final, err := j.Final()
	require.NoError(t, err)
	assert.Equal(t, ArtifactRaw, final.Kind)

	j.AddArtifact(Artifact{Path: "/w/out.mp4", Kind: ArtifactProcessed, SizeBytes: 5})
	j.AddArtifact(Artifact{Path: "/w/out2.mp4", Kind: ArtifactProcessed, SizeBytes: 6})
	final, err = j.Final()
	require.NoError(t, err)
	assert.Equal(t, "/w/out2.mp4", final.Path)
	assert.Len(t, j.Artifacts(), 2)
}

func TestStatArtifact(t *testing.T) {
	dir := t.TempDir()

	_, err := StatArtifact(filepath.Join(dir, "missing.mp4"), ArtifactRaw)
	require.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.mp4")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = StatArtifact(empty, ArtifactRaw)
	require.ErrorIs(t, err, ErrEmptyArtifact)

	_, err = StatArtifact(dir, ArtifactRaw)
	require.Error(t, err)

	full := filepath.Join(dir, "full.mp4")
	require.NoError(t, os.WriteFile(full, []byte("data"), 0o600))
	a, err := StatArtifact(full, ArtifactProcessed)
	require.NoError(t, err)
	assert.Equal(t, Artifact{Path: full, Kind: ArtifactProcessed, SizeBytes: 4}, a)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		want   Category
		reason Reason
	}{
		{err: nil, want: CategoryNone},
		{err: &ValidationError{Message: "url is required"}, want: CategoryValidation},
		{err: fmt.Errorf("stage: %w", &AcquisitionError{Reason: ReasonOutputMissing}), want: CategoryAcquisition, reason: ReasonOutputMissing},
		{err: &TranscodeError{Reason: ReasonTimeout, Err: context.DeadlineExceeded}, want: CategoryTranscode, reason: ReasonTimeout},
		{err: &ResourceError{Op: "create", Path: "/tmp/x", Err: os.ErrPermission}, want: CategoryResource},
		{err: errors.New("boom"), want: CategoryUnexpected},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
		assert.Equal(t, tt.reason, ReasonOf(tt.err), "%v", tt.err)
	}
}

func TestStageErrorsUnwrap(t *testing.T) {
	err := &TranscodeError{Reason: ReasonTimeout, Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timeout")

	re := &ResourceError{Op: "remove", Path: "/tmp/x", Err: os.ErrPermission}
	assert.ErrorIs(t, re, os.ErrPermission)
}
