// Build information injected through ldflags: versioning, commit hash, build time, and the test-mode switch
// that makes invariant violations panic instead of only logging.
// CAUTION: This file shouldn't be removed or else these variables wouldn't be set properly.

package utils

import (
	"log/slog"
	"strconv"
	"time"
)

var (
	TestMode   string // Should be true when running tests.
	IsTestMode bool
	Version    string
	Commit     string
	BuildTime  string
	StartTime  time.Time
)

func init() {
	StartTime = time.Now()

	// If build info is not set, make that clear.
	if Version == "" {
		Version = "unknown"
	}
	if Commit == "" {
		Commit = "unknown"
	}
	if BuildTime == "" {
		BuildTime = "unknown"
	}
	if len(TestMode) > 0 {
		if isTestMode, err := strconv.ParseBool(TestMode); err == nil {
			IsTestMode = isTestMode
		} else {
			slog.Warn("Failed to parse TestMode build flag, defaulting to false", "error", err)
		}
	}
}
