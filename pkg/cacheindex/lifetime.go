// Record lifetimes arrive in two shapes: a bare integer meaning milliseconds, or a human-readable duration
// string. Go duration syntax is accepted as-is; on top of that this parser understands day/week/year units and
// spelled-out forms like "2 days", which the maintenance endpoints and flags use.

package cacheindex

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultLifetime is the pruning lifetime used when the caller doesn't supply one.
const DefaultLifetime = 2 * 24 * time.Hour

const (
	day  = 24 * time.Hour
	week = 7 * day
	year = time.Duration(365.25 * float64(day))
)

// verbosePattern matches a single "<number> <unit>" lifetime, with the space optional ("2d", "1.5 hours").
var verbosePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([a-z]+)$`)

var unitDurations = map[string]time.Duration{
	"ms": time.Millisecond, "msec": time.Millisecond, "msecs": time.Millisecond,
	"millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": day, "day": day, "days": day,
	"w": week, "week": week, "weeks": week,
	"y": year, "yr": year, "yrs": year, "year": year, "years": year,
}

// ParseLifetime resolves a lifetime value to a duration. Accepted forms, tried in order: a bare integer count
// of milliseconds ("172800000"), Go duration syntax ("1h", "90m", "1h30m"), and a number with a named unit
// ("2 days", "1 week", "1.5 hours", "2d").
func ParseLifetime(value string) (time.Duration, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return 0, fmt.Errorf("expected a non-empty lifetime")
	}

	if ms, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	if lifetime, err := time.ParseDuration(trimmed); err == nil {
		return lifetime, nil
	}

	match := verbosePattern.FindStringSubmatch(trimmed)
	if match == nil {
		return 0, fmt.Errorf("failed to parse lifetime %q", value)
	}
	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse lifetime amount %q: %w", match[1], err)
	}
	unit, known := unitDurations[match[2]]
	if !known {
		return 0, fmt.Errorf("unknown lifetime unit %q", match[2])
	}
	return time.Duration(amount * float64(unit)), nil
}
