// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	"github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/pipeline"
	"github.com/ManuGH/clipfetch/internal/stream"
)

// handleDownload serves GET /download?url=&start=&end=.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	q := r.URL.Query()

	tr, err := job.ParseTimeRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeValidationError(w, err)
		return
	}
	req := pipeline.Request{
		SourceURL: strings.TrimSpace(q.Get("url")),
		TimeRange: tr,
	}
	// Reject before any filesystem or subprocess work.
	if err := pipeline.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	var served stream.Result
	deliver := func(_ context.Context, d pipeline.Delivery, cleanup func()) error {
		served = s.streamer.Serve(w, r, d.Artifact, d.Filename, cleanup)
		return served.Err
	}

	out, err := s.exec.Execute(r.Context(), req, deliver)
	if err == nil {
		return
	}

	if served.HeadersSent {
		// Status line is gone; the truncated body is all the client gets.
		logger.Warn().Err(err).
			Str(log.FieldJobID, out.JobID).
			Str(log.FieldEvent, "download.aborted").
			Int64(log.FieldBytes, served.Bytes).
			Msg("download interrupted after headers were sent")
		return
	}
	if r.Context().Err() != nil {
		logger.Info().
			Str(log.FieldJobID, out.JobID).
			Str(log.FieldEvent, "download.client_gone").
			Msg("client went away before delivery")
		return
	}

	logger.Error().Err(err).
		Str(log.FieldJobID, out.JobID).
		Str(log.FieldEvent, "download.failed").
		Str("category", string(job.Classify(err))).
		Str(log.FieldReason, string(job.ReasonOf(err))).
		Msg("download failed")
	writeInternalError(w)
}
