// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/clipfetch/internal/platform/httpx"
)

func newHealthcheckCommand() *cobra.Command {
	var (
		mode    string
		baseURL string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server (for container health checks)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/readyz"
			switch mode {
			case "ready":
			case "live":
				path = "/healthz"
			default:
				return fmt.Errorf("healthcheck mode must be ready or live, got %q", mode)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			target := strings.TrimRight(baseURL, "/") + path
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
			if err != nil {
				return fmt.Errorf("healthcheck request: %w", err)
			}
			resp, err := httpx.NewClient(timeout).Do(req)
			if err != nil {
				return fmt.Errorf("healthcheck failed (network): %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("healthcheck failed (status): %s", resp.Status)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Healthcheck successful (%s)\n", mode)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "ready", "Probe: ready or live")
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "Base URL of the server")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Probe timeout")
	return cmd
}
