// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// Job attributes
	JobIDKey        = "job.id"
	JobStateKey     = "job.state"
	JobSourceHost   = "job.source_host"
	JobTimeRangeKey = "job.time_range"
	JobTrimmedKey   = "job.trimmed"

	// Stage attributes
	StageNameKey     = "stage.name"
	StageReasonKey   = "stage.reason"
	StageBinaryKey   = "stage.binary"
	ArtifactBytesKey = "artifact.bytes"
	ArtifactKindKey  = "artifact.kind"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// JobAttributes creates job-related span attributes.
func JobAttributes(jobID, sourceHost, timeRange string, trimmed bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(JobIDKey, jobID),
		attribute.String(JobTimeRangeKey, timeRange),
		attribute.Bool(JobTrimmedKey, trimmed),
	}
	if sourceHost != "" {
		attrs = append(attrs, attribute.String(JobSourceHost, sourceHost))
	}
	return attrs
}

// StageAttributes creates stage-related span attributes.
func StageAttributes(stage, binary string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StageNameKey, stage),
		attribute.String(StageBinaryKey, binary),
	}
}

// ArtifactAttributes describes a produced artifact.
func ArtifactAttributes(kind string, size int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ArtifactKindKey, kind),
		attribute.Int64(ArtifactBytesKey, size),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String(StageReasonKey, reason))
	}
	return attrs
}
