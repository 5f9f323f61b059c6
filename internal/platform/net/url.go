// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrUnsupportedScheme is returned for source URLs that are not http(s).
	ErrUnsupportedScheme = errors.New("url scheme must be http or https")
	// ErrMissingHost is returned for source URLs without a host.
	ErrMissingHost = errors.New("url host is empty")
)

// RedactURL removes user info for safe logging. The query is kept because
// media sites carry the content identifier there.
func RedactURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

// ParseSourceURL validates a user supplied media URL.
// It enforces:
//   - Scheme must be "http" or "https"
//   - Host must be non-empty
func ParseSourceURL(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("url is empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	// strict scheme check (case-insensitive)
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, ErrUnsupportedScheme
	}

	if u.Hostname() == "" {
		return nil, ErrMissingHost
	}
	return u, nil
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// HostSet is a normalized set of host names.
type HostSet map[string]struct{}

// NewHostSet normalizes hosts into a set, rejecting invalid entries.
func NewHostSet(hosts []string) (HostSet, error) {
	set := make(HostSet, len(hosts))
	for _, h := range hosts {
		n, err := NormalizeHost(h)
		if err != nil {
			return nil, err
		}
		set[n] = struct{}{}
	}
	return set, nil
}

// Contains reports whether host, or host with a leading "www." removed, is in the set.
func (s HostSet) Contains(host string) bool {
	n, err := NormalizeHost(host)
	if err != nil {
		return false
	}
	if _, ok := s[n]; ok {
		return true
	}
	_, ok := s[strings.TrimPrefix(n, "www.")]
	return ok
}
