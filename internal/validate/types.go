// SPDX-License-Identifier: MIT
package validate

import "strings"

// LogLevel is a zerolog level name accepted in configuration.
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) String() string { return string(l) }

// ParseLogLevel normalizes s (case and surrounding space) into a LogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch level := LogLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return level, nil
	default:
		return "", ErrInvalidLogLevel
	}
}

// Container is a merge container the acquisition tool can produce and the
// streamer can label.
type Container string

const (
	ContainerMP4  Container = "mp4"
	ContainerMKV  Container = "mkv"
	ContainerWebM Container = "webm"
)

// ParseContainer accepts the supported merge containers.
func ParseContainer(s string) (Container, error) {
	switch c := Container(strings.ToLower(strings.TrimSpace(s))); c {
	case ContainerMP4, ContainerMKV, ContainerWebM:
		return c, nil
	default:
		return "", ErrUnsupportedContainer
	}
}

var (
	ErrInvalidLogLevel = &Error{
		Field:   "logLevel",
		Message: "invalid log level (must be: trace, debug, info, warn, error)",
	}
	ErrUnsupportedContainer = &Error{
		Field:   "container",
		Message: "unsupported container (must be: mp4, mkv, webm)",
	}
)
