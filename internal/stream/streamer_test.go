// SPDX-License-Identifier: MIT

package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/clipfetch/internal/domain/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, name, body string) job.Artifact {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return job.Artifact{Path: p, Kind: job.ArtifactRaw, SizeBytes: int64(len(body))}
}

func TestServe_Success(t *testing.T) {
	art := writeArtifact(t, "raw.mp4", "0123456789")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/download", nil)

	var calls atomic.Int32
	res := New().Serve(rec, req, art, "download_1-abc.mp4", func() { calls.Add(1) })

	require.NoError(t, res.Err)
	assert.True(t, res.HeadersSent)
	assert.Equal(t, int64(10), res.Bytes)
	assert.Equal(t, int32(1), calls.Load())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "10", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename=download_1-abc.mp4`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "0123456789", rec.Body.String())
}

func TestServe_MissingFile(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/download", nil)
	var calls atomic.Int32

	res := New().Serve(rec, req, job.Artifact{Path: filepath.Join(t.TempDir(), "gone.mp4")}, "x.mp4", func() { calls.Add(1) })
	assert.Error(t, res.Err)
	assert.False(t, res.HeadersSent)
	assert.Equal(t, int32(1), calls.Load())
}

type failingWriter struct {
	header  http.Header
	written int
	limit   int
}

func (f *failingWriter) Header() http.Header { return f.header }
func (f *failingWriter) WriteHeader(int)     {}
func (f *failingWriter) Write(p []byte) (int, error) {
	if f.written+len(p) > f.limit {
		n := f.limit - f.written
		f.written = f.limit
		return n, errors.New("connection reset by peer")
	}
	f.written += len(p)
	return len(p), nil
}

func TestServe_ClientDisconnect(t *testing.T) {
	art := writeArtifact(t, "processed.mp4", strings.Repeat("x", 1024))
	w := &failingWriter{header: http.Header{}, limit: 100}
	req := httptest.NewRequest(http.MethodGet, "/download", nil)

	var calls atomic.Int32
	res := New().Serve(w, req, art, "a.mp4", func() { calls.Add(1) })
	assert.Error(t, res.Err)
	assert.True(t, res.HeadersSent)
	assert.Equal(t, int64(100), res.Bytes)
	assert.Equal(t, int32(1), calls.Load())
}

// cancelWriter cancels the request context once cancelAt bytes have been
// accepted and fails writes past limit (0 means no limit).
type cancelWriter struct {
	header   http.Header
	cancel   context.CancelFunc
	cancelAt int
	limit    int
	written  int
}

func (c *cancelWriter) Header() http.Header { return c.header }
func (c *cancelWriter) WriteHeader(int)     {}
func (c *cancelWriter) Write(p []byte) (int, error) {
	n := len(p)
	var err error
	if c.limit > 0 && c.written+n > c.limit {
		n = c.limit - c.written
		err = errors.New("broken pipe")
	}
	c.written += n
	if c.written >= c.cancelAt {
		c.cancel()
	}
	return n, err
}

func TestServe_RequestCancellation(t *testing.T) {
	body := strings.Repeat("y", 4096)
	tests := []struct {
		name      string
		preCancel bool
		cancelAt  int
		limit     int
		wantErr   bool
		wantBytes int64
	}{
		{name: "cancelled before copy but fully written", preCancel: true, wantBytes: 4096},
		{name: "cancelled by final write", cancelAt: 4096, wantBytes: 4096},
		{name: "cancelled mid transfer", cancelAt: 100, limit: 100, wantErr: true, wantBytes: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art := writeArtifact(t, "processed.mp4", body)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.preCancel {
				cancel()
			}
			req := httptest.NewRequest(http.MethodGet, "/download", nil).WithContext(ctx)
			w := &cancelWriter{header: http.Header{}, cancel: cancel, cancelAt: tt.cancelAt, limit: tt.limit}

			var calls atomic.Int32
			res := New().Serve(w, req, art, "a.mp4", func() { calls.Add(1) })
			assert.Equal(t, tt.wantBytes, res.Bytes)
			assert.Equal(t, int32(1), calls.Load())
			if tt.wantErr {
				assert.Error(t, res.Err)
				return
			}
			assert.NoError(t, res.Err)
			assert.Error(t, ctx.Err())
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", ContentType("/a/b.MP4"))
	assert.Equal(t, "video/webm", ContentType("x.webm"))
	assert.Equal(t, "video/x-matroska", ContentType("x.mkv"))
	assert.Equal(t, "application/octet-stream", ContentType("x.unknownext"))
}

func TestDisposition(t *testing.T) {
	assert.Equal(t, "attachment; filename=a.mp4", Disposition("../../a.mp4"))
	assert.Contains(t, Disposition("clip one.mp4"), `filename="clip one.mp4"`)
}
