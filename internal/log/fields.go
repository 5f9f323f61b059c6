// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTraceID   = "trace_id"
	FieldSpanID    = "span_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldReason    = "reason"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"
	FieldBinary    = "bin"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath      = "path"
	FieldSourceURL = "source_url"
	FieldFinalPath = "final_path"
	FieldWorkspace = "workspace"

	// Size fields
	FieldBytes      = "bytes"
	FieldBytesHuman = "bytes_human"
)
