// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/metrics"
	"github.com/ManuGH/clipfetch/internal/platform/httpx"
	platformnet "github.com/ManuGH/clipfetch/internal/platform/net"
	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const (
	DefaultResolveTimeout = 10 * time.Second
	DefaultMaxRedirects   = 5
	defaultResolveRate    = 5
	defaultResolveBurst   = 10
	userAgent             = "Mozilla/5.0 (compatible; clipfetch)"
)

// DefaultResolveHosts are URL shorteners that some extractors do not follow.
var DefaultResolveHosts = []string{"pin.it", "vm.tiktok.com", "vt.tiktok.com", "t.co", "bit.ly"}

var errTooManyRedirects = errors.New("too many redirects")

// ResolverConfig controls short link resolution.
type ResolverConfig struct {
	Hosts        []string
	Timeout      time.Duration
	MaxRedirects int
	// RatePerSecond bounds outbound lookups across all requests.
	RatePerSecond float64
	Burst         int
}

// Resolver expands short links before they are handed to the downloader.
type Resolver struct {
	hosts        platformnet.HostSet
	client       *http.Client
	limiter      *rate.Limiter
	maxRedirects int
	logger       zerolog.Logger
}

// NewResolver builds a Resolver. An empty host list disables resolution.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	hosts, err := platformnet.NewHostSet(cfg.Hosts)
	if err != nil {
		return nil, fmt.Errorf("resolve hosts: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultResolveTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = defaultResolveRate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultResolveBurst
	}
	return &Resolver{
		hosts:        hosts,
		client:       httpx.NewTracedClient(cfg.Timeout),
		limiter:      rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		maxRedirects: cfg.MaxRedirects,
		logger:       xglog.WithComponent("resolver"),
	}, nil
}

// NeedsResolution reports whether raw points at a configured short link host.
func (r *Resolver) NeedsResolution(raw string) bool {
	if r == nil || len(r.hosts) == 0 {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return r.hosts.Contains(u.Hostname())
}

// Resolve returns the redirect target of a short link, or raw unchanged when
// the host is not configured or anything goes wrong.
func (r *Resolver) Resolve(ctx context.Context, raw string) string {
	if !r.NeedsResolution(raw) {
		return raw
	}
	logger := xglog.WithContext(ctx, r.logger)

	resolved, err := r.follow(ctx, raw)
	if err != nil {
		metrics.IncShortLinkResolve("fallback")
		logger.Warn().Err(err).
			Str(xglog.FieldEvent, "resolve.fallback").
			Str(xglog.FieldSourceURL, platformnet.RedactURL(raw)).
			Msg("short link resolution failed, using original url")
		return raw
	}

	metrics.IncShortLinkResolve("resolved")
	logger.Info().
		Str(xglog.FieldEvent, "resolve.done").
		Str(xglog.FieldSourceURL, platformnet.RedactURL(raw)).
		Str("resolved_url", platformnet.RedactURL(resolved)).
		Msg("short link resolved")
	return resolved
}

func (r *Resolver) follow(ctx context.Context, raw string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return "", err
	}
	client := *r.client
	client.Jar = jar
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) > r.maxRedirects {
			return errTooManyRedirects
		}
		return nil
	}

	final, status, err := r.request(ctx, &client, http.MethodHead, raw)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		final, _, err = r.request(ctx, &client, http.MethodGet, raw)
	}
	if err != nil {
		return "", err
	}
	if _, err := platformnet.ParseSourceURL(final); err != nil {
		return "", fmt.Errorf("redirect target rejected: %w", err)
	}
	return final, nil
}

func (r *Resolver) request(ctx context.Context, client *http.Client, method, raw string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, raw, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	return resp.Request.URL.String(), resp.StatusCode, nil
}
