// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package job holds the per-request pipeline model: the Job, its state
// machine, the artifacts it owns and the error taxonomy shared by every stage.
package job

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNoFinalArtifact is returned by Final when no artifact has been produced.
var ErrNoFinalArtifact = errors.New("no artifact available")

// Job is one request's acquisition, transcode and serve lifecycle.
// It is owned by a single goroutine and is not safe for concurrent use.
type Job struct {
	ID           string
	SourceURL    string
	TimeRange    TimeRange
	WorkspaceDir string
	CreatedAt    time.Time

	state     State
	artifacts []Artifact
}

// New creates a Job in the Created state.
func New(sourceURL string, tr TimeRange) *Job {
	return &Job{
		ID:        NewID(time.Now()),
		SourceURL: sourceURL,
		TimeRange: tr,
		CreatedAt: time.Now(),
		state:     StateCreated,
	}
}

// NewID returns "<unix millis>-<8 hex chars>", unique across concurrent jobs.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

// State returns the current lifecycle state.
func (j *Job) State() State {
	return j.state
}

// Transition moves the job to the next state. Illegal edges are rejected and
// leave the state unchanged.
func (j *Job) Transition(to State) error {
	if !CanTransition(j.state, to) {
		return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.state, to)
	}
	j.state = to
	return nil
}

// AddArtifact records a produced artifact. A second artifact of the same
// kind replaces the first, so at most one Raw and one Processed exist.
func (j *Job) AddArtifact(a Artifact) {
	for i := range j.artifacts {
		if j.artifacts[i].Kind == a.Kind {
			j.artifacts[i] = a
			return
		}
	}
	j.artifacts = append(j.artifacts, a)
}

// Artifacts returns a copy of the recorded artifacts in production order.
func (j *Job) Artifacts() []Artifact {
	out := make([]Artifact, len(j.artifacts))
	copy(out, j.artifacts)
	return out
}

// Final selects the artifact to stream: Processed when present, otherwise Raw.
func (j *Job) Final() (Artifact, error) {
	var raw *Artifact
	for i := range j.artifacts {
		switch j.artifacts[i].Kind {
		case ArtifactProcessed:
			return j.artifacts[i], nil
		case ArtifactRaw:
			raw = &j.artifacts[i]
		}
	}
	if raw == nil {
		return Artifact{}, ErrNoFinalArtifact
	}
	return *raw, nil
}
