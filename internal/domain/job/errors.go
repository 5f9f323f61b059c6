// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package job

import (
	"errors"
	"fmt"
)

// Reason narrows down why an external-tool stage failed.
// Keep these stable: metric labels depend on them.
type Reason string

const (
	ReasonProcessFailed Reason = "process_failed"
	ReasonOutputMissing Reason = "output_missing"
	ReasonTimeout       Reason = "timeout"
)

// Category is the coarse error class used for HTTP mapping and metrics.
type Category string

const (
	CategoryNone        Category = ""
	CategoryValidation  Category = "validation"
	CategoryAcquisition Category = "acquisition"
	CategoryTranscode   Category = "transcode"
	CategoryResource    Category = "resource"
	CategoryUnexpected  Category = "unexpected"
)

// ValidationError reports bad or missing input. It is always raised before
// any filesystem or subprocess work happens.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// AcquisitionError reports a downloader failure.
type AcquisitionError struct {
	Reason Reason
	Err    error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acquisition failed (%s)", e.Reason)
	}
	return fmt.Sprintf("acquisition failed (%s): %v", e.Reason, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// TranscodeError reports a media processor failure.
type TranscodeError struct {
	Reason Reason
	Err    error
}

func (e *TranscodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transcode failed (%s)", e.Reason)
	}
	return fmt.Sprintf("transcode failed (%s): %v", e.Reason, e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// ResourceError reports that a workspace could not be created or removed.
type ResourceError struct {
	Op   string
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Classify maps err onto the error taxonomy.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var (
		ve *ValidationError
		ae *AcquisitionError
		te *TranscodeError
		re *ResourceError
	)
	switch {
	case errors.As(err, &ve):
		return CategoryValidation
	case errors.As(err, &ae):
		return CategoryAcquisition
	case errors.As(err, &te):
		return CategoryTranscode
	case errors.As(err, &re):
		return CategoryResource
	default:
		return CategoryUnexpected
	}
}

// ReasonOf returns the stage failure reason carried by err, if any.
func ReasonOf(err error) Reason {
	var ae *AcquisitionError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	var te *TranscodeError
	if errors.As(err, &te) {
		return te.Reason
	}
	return ""
}
