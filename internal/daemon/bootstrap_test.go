// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/clipfetch/internal/config"
	"github.com/ManuGH/clipfetch/internal/health"
)

func TestBootstrap_ServesProbes(t *testing.T) {
	cfg := config.Defaults()
	cfg.Version = "v0.0.0-test"
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Workspace.Dir = t.TempDir()
	cfg.YTDLP.Bin = "clipfetch-test-missing-ytdlp"
	cfg.FFmpeg.Bin = "clipfetch-test-missing-ffmpeg"

	app, err := Bootstrap(context.Background(), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	addr := waitForAddr(t, app.Manager())

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

	resp, err := client.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	var hr health.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hr))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "v0.0.0-test", hr.Version)

	resp, err = client.Get("http://" + addr + "/readyz")
	require.NoError(t, err)
	var rr health.ReadinessResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rr))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, rr.Ready)
	assert.Equal(t, health.StatusUnhealthy, rr.Checks["ytdlp"].Status)
	assert.Equal(t, health.StatusHealthy, rr.Checks["workspace"].Status)

	cancel()
	require.NoError(t, <-done)
}
