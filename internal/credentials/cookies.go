// SPDX-License-Identifier: MIT

// Package credentials manages the optional cookie jar handed to the
// acquisition tool.
package credentials

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	xglog "github.com/ManuGH/clipfetch/internal/log"
	"github.com/ManuGH/clipfetch/internal/metrics"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	maxScanBytes     = 4 << 20
	debounceDuration = 500 * time.Millisecond
	httpOnlyPrefix   = "#HttpOnly_"
)

var (
	// ErrNotConfigured means no cookie file path was set.
	ErrNotConfigured = errors.New("cookie file not configured")
	// ErrMalformed means the file is not a Netscape cookie jar.
	ErrMalformed = errors.New("cookie file is not in Netscape format")
)

// CookieFile is a Netscape formatted cookie jar on disk. The zero path
// disables cookies.
type CookieFile struct {
	path   string
	logger zerolog.Logger
}

// NewCookieFile returns a CookieFile for path.
func NewCookieFile(path string) *CookieFile {
	return &CookieFile{
		path:   strings.TrimSpace(path),
		logger: xglog.WithComponent("credentials"),
	}
}

// Path returns the configured path.
func (c *CookieFile) Path() string { return c.path }

// Resolve returns the path when the file is present and well-formed. Any
// problem is logged and reported as unusable; acquisition proceeds without cookies.
func (c *CookieFile) Resolve() (string, bool) {
	if c == nil || c.path == "" {
		return "", false
	}
	if err := c.Check(); err != nil {
		c.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "cookies.skipped").
			Str(xglog.FieldPath, c.path).
			Msg("cookie file unusable, continuing without cookies")
		metrics.SetCookieFileUsable(false)
		return "", false
	}
	metrics.SetCookieFileUsable(true)
	return c.path, true
}

// Check validates the file without side effects.
func (c *CookieFile) Check() error {
	if c == nil || c.path == "" {
		return ErrNotConfigured
	}
	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("stat cookie file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cookie file %s is not a regular file", c.path)
	}
	f, err := os.Open(c.path)
	if err != nil {
		return fmt.Errorf("open cookie file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Validate(io.LimitReader(f, maxScanBytes))
}

// Validate reports whether r holds a Netscape cookie jar: either the
// canonical header line or at least one seven-field tab separated entry, and
// no malformed entries.
func Validate(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	header := false
	entries := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, httpOnlyPrefix) {
			if strings.Contains(trimmed, "HTTP Cookie File") {
				header = true
			}
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return fmt.Errorf("%w: line %d has %d fields", ErrMalformed, lineNo, len(fields))
		}
		entries++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read cookie file: %w", err)
	}
	if !header && entries == 0 {
		return ErrMalformed
	}
	return nil
}

// Watch logs changes to the cookie file until ctx ends. The parent directory
// is watched so that atomic replacements and late creation are seen.
func (c *CookieFile) Watch(ctx context.Context) error {
	if c == nil || c.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch cookie dir: %w", err)
	}

	c.logger.Info().
		Str(xglog.FieldEvent, "cookies.watcher_started").
		Str(xglog.FieldPath, c.path).
		Msg("watching cookie file")
	c.report()

	name := filepath.Clean(c.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str(xglog.FieldEvent, "cookies.watcher_stopped").Msg("cookie watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDuration, c.report)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error().Err(err).Str(xglog.FieldEvent, "cookies.watcher_error").Msg("cookie watcher error")
		}
	}
}

func (c *CookieFile) report() {
	if err := c.Check(); err != nil {
		metrics.SetCookieFileUsable(false)
		c.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "cookies.invalid").
			Str(xglog.FieldPath, c.path).
			Msg("cookie file is not usable")
		return
	}
	metrics.SetCookieFileUsable(true)
	c.logger.Info().
		Str(xglog.FieldEvent, "cookies.valid").
		Str(xglog.FieldPath, c.path).
		Msg("cookie file is usable")
}
