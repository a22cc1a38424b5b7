package utils

import (
	"strings"
	"time"
)

// TimestampLayout is the wire format shared with the predictor service.
const TimestampLayout = "2006-01-02 15:04:05"

var acceptedLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

// ParseTimestamp parses a timestamp in any of the layouts the API accepts.
// Values without a zone are interpreted as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, NewInputError(CodeInvalidArgument, "timestamp is required")
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, NewInputErrorf(CodeInvalidArgument, "invalid timestamp %q", value)
}

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
