// Package sysutil holds small process-level helpers used by the server
// entrypoint: zerolog level wiring and loose parsing of .env-style values.
package sysutil

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel sets the global zerolog level from a LOG_LEVEL string. The
// "warning" alias is accepted alongside zerolog's own names; anything
// unrecognized (or empty) falls back to info rather than failing startup.
func SetLogLevel(lvl string) {
	s := strings.ToLower(strings.TrimSpace(lvl))
	if s == "warning" {
		s = "warn"
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil || l == zerolog.NoLevel {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

// IsTruthy interprets loosely typed environment flags such as LOG_PRETTY.
// It accepts everything strconv.ParseBool does plus yes/y/on, all
// case-insensitively; anything else is false.
func IsTruthy(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	switch s {
	case "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank, preserving its
// original spacing. Used to pick the build version over the "dev" fallback.
// All-blank input yields "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
