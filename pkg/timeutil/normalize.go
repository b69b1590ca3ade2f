package timeutil

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrUnparseableTimestamp is returned when a raw timestamp value cannot be
// interpreted. Callers drop the record from time-windowed views but keep it
// otherwise.
var ErrUnparseableTimestamp = errors.New("unparseable timestamp")

// lenientLayouts are the shapes older pipeline versions wrote, tried in order
// after strict RFC3339.
var lenientLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// Normalize converts any supported raw timestamp representation into a UTC
// instant. Numbers are UNIX seconds, strings are parsed ISO-8601 first with a
// lenient fallback, native instants pass through unchanged.
func Normalize(raw interface{}) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrUnparseableTimestamp
		}
		return v.UTC(), nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case float32:
		return time.Unix(int64(v), 0).UTC(), nil
	case int:
		return time.Unix(int64(v), 0).UTC(), nil
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case json.Number:
		return normalizeString(v.String())
	case string:
		return normalizeString(v)
	case *string:
		if v == nil {
			return time.Time{}, ErrUnparseableTimestamp
		}
		return normalizeString(*v)
	default:
		return time.Time{}, ErrUnparseableTimestamp
	}
}

// NormalizeString parses a raw timestamp stored as text, e.g. a created_raw
// column value. Numeric strings are UNIX seconds.
func NormalizeString(raw string) (time.Time, error) {
	return normalizeString(raw)
}

func normalizeString(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnparseableTimestamp
	}

	// UNIX seconds stored as text (older records kept the Reddit float)
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Unix(int64(secs), 0).UTC(), nil
	}

	// Strict ISO-8601 first, trailing Z accepted as UTC offset
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range lenientLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrUnparseableTimestamp
}
