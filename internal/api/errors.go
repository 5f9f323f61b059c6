// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/clipfetch/internal/domain/job"
)

// errorResponse is the only error shape clients ever see.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeValidationError writes a 400 with a message naming the offending
// parameter. Parser details are not echoed.
func writeValidationError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationMessage(err)})
}

// writeInternalError writes the generic 500 used for every pipeline failure.
func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "download failed"})
}

// writeNotFound writes a 404 Not Found response
func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func validationMessage(err error) string {
	var ve *job.ValidationError
	if !errors.As(err, &ve) {
		return "invalid request"
	}
	switch ve.Field {
	case "url":
		if ve.Message == "is required" {
			return "url parameter is required"
		}
		return "url must be an absolute http or https URL"
	case "start", "end":
		return "invalid time range: " + ve.Field + " " + ve.Message
	default:
		return "invalid request"
	}
}
