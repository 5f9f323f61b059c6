// SPDX-License-Identifier: MIT

// Package stream writes a finished artifact to an HTTP client.
package stream

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/metrics"
	"github.com/dustin/go-humanize"
)

const copyBufferSize = 256 * 1024

// ErrShortWrite is reported when fewer bytes than the artifact size were sent.
var ErrShortWrite = errors.New("short write to client")

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4a":  "audio/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
}

// Result describes one delivery attempt.
type Result struct {
	// HeadersSent is false only when the artifact could not be opened; the
	// caller may still send an error response in that case.
	HeadersSent bool
	Bytes       int64
	Err         error
}

// Streamer sends artifacts.
type Streamer struct{}

// New returns a Streamer.
func New() *Streamer { return &Streamer{} }

// Serve writes the artifact as an attachment named filename. onComplete is
// invoked exactly once when Serve returns, whatever the outcome. Transmission
// errors are reported in the Result and never panic.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, art job.Artifact, filename string, onComplete func()) (res Result) {
	var once sync.Once
	done := func() {
		if onComplete != nil {
			once.Do(onComplete)
		}
	}
	defer done()

	logger := xglog.WithComponentFromContext(r.Context(), "stream")

	f, err := os.Open(art.Path) // #nosec G304 -- path comes from the job workspace
	if err != nil {
		metrics.RecordStream("open_failed", 0)
		return Result{Err: fmt.Errorf("open artifact: %w", err)}
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		metrics.RecordStream("open_failed", 0)
		return Result{Err: fmt.Errorf("stat artifact: %w", err)}
	}
	size := info.Size()

	h := w.Header()
	h.Set("Content-Type", ContentType(art.Path))
	h.Set("Content-Disposition", Disposition(filename))
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Cache-Control", "no-store")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	res.HeadersSent = true

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(w, io.LimitReader(f, size), buf)
	res.Bytes = n
	switch {
	case err != nil:
		res.Err = fmt.Errorf("write to client: %w", err)
	case n < size && r.Context().Err() != nil:
		res.Err = fmt.Errorf("client went away after %d of %d bytes: %w", n, size, r.Context().Err())
	case n < size:
		res.Err = fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, size)
	}

	if res.Err != nil {
		metrics.RecordStream("aborted", n)
		logger.Warn().Err(res.Err).
			Str(xglog.FieldEvent, "stream.aborted").
			Int64(xglog.FieldBytes, n).
			Int64("size", size).
			Msg("artifact transmission failed")
		return res
	}

	metrics.RecordStream("complete", n)
	logger.Info().
		Str(xglog.FieldEvent, "stream.complete").
		Int64(xglog.FieldBytes, n).
		Str(xglog.FieldBytesHuman, humanize.IBytes(uint64(n))).
		Msg("artifact sent")
	return res
}

// ContentType picks the media type by extension.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Disposition renders an attachment Content-Disposition for filename.
func Disposition(filename string) string {
	filename = filepath.Base(filename)
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
