package utils

import (
	"strings"
	"time"
)

// FromMillis converts a unix millisecond timestamp to UTC time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FormatMillis renders a unix millisecond timestamp as RFC3339 with milliseconds
func FormatMillis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return FromMillis(ms).Format("2006-01-02T15:04:05.000Z07:00")
}

// AgeOf returns how long ago ms was relative to now. Future timestamps yield zero.
func AgeOf(now time.Time, ms int64) time.Duration {
	age := now.Sub(time.UnixMilli(ms))
	if age < 0 {
		return 0
	}
	return age
}

// IsTimestampStale checks if a timestamp is older than the specified duration
func IsTimestampStale(now time.Time, ms int64, staleDuration time.Duration) bool {
	return AgeOf(now, ms) > staleDuration
}

// SplitCSV splits a comma separated list, trimming blanks and dropping empties
func SplitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
