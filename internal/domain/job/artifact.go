// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"errors"
	"fmt"
	"os"
)

// ArtifactKind distinguishes the stage that produced a file.
type ArtifactKind string

const (
	ArtifactRaw       ArtifactKind = "raw"
	ArtifactProcessed ArtifactKind = "processed"
)

// Artifact is a media file produced by a pipeline stage.
type Artifact struct {
	Path      string
	Kind      ArtifactKind
	SizeBytes int64
}

// ErrEmptyArtifact is returned by StatArtifact for zero-byte files.
var ErrEmptyArtifact = errors.New("artifact is empty")

// StatArtifact verifies that path is a non-empty regular file and returns
// the artifact describing it.
func StatArtifact(path string, kind ArtifactKind) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("artifact %s is not a regular file", path)
	}
	if info.Size() == 0 {
		return Artifact{}, ErrEmptyArtifact
	}
	return Artifact{Path: path, Kind: kind, SizeBytes: info.Size()}, nil
}
