// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"errors"
	"os/exec"
)

// BinaryChecker verifies that an external tool resolves on PATH or as an
// explicit path.
type BinaryChecker struct {
	name     string
	binary   string
	lookPath func(string) (string, error)
}

// NewBinaryChecker creates a checker for the given executable.
func NewBinaryChecker(name, binary string) *BinaryChecker {
	return &BinaryChecker{name: name, binary: binary, lookPath: exec.LookPath}
}

func (c *BinaryChecker) Name() string { return c.name }

func (c *BinaryChecker) Check(_ context.Context) CheckResult {
	if c.binary == "" {
		return CheckResult{Status: StatusUnhealthy, Error: "binary not configured"}
	}
	resolved, err := c.lookPath(c.binary)
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: c.binary}
	}
	return CheckResult{Status: StatusHealthy, Message: resolved}
}

// FuncChecker adapts a probe function. Errors map to the configured failure
// status, so optional components can report degraded instead of unhealthy.
type FuncChecker struct {
	name      string
	failAs    Status
	check     func() error
	skipError error
}

// NewWorkspaceChecker reports unhealthy when the workspace base is not writable.
func NewWorkspaceChecker(check func() error) *FuncChecker {
	return &FuncChecker{name: "workspace", failAs: StatusUnhealthy, check: check}
}

// NewCookieChecker reports degraded when a configured cookie file is unusable.
// notConfigured is treated as healthy.
func NewCookieChecker(check func() error, notConfigured error) *FuncChecker {
	return &FuncChecker{name: "cookies", failAs: StatusDegraded, check: check, skipError: notConfigured}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(_ context.Context) CheckResult {
	err := c.check()
	switch {
	case err == nil:
		return CheckResult{Status: StatusHealthy}
	case c.skipError != nil && errors.Is(err, c.skipError):
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	default:
		return CheckResult{Status: c.failAs, Error: err.Error()}
	}
}
