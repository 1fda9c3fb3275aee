// Package timestamp provides standardized Unix timestamp handling utilities.
//
// The canonical timestamp format is int64 milliseconds since the Unix epoch
// (UTC). A value of 0 means "not set"; functions handle zero values
// gracefully and return appropriate defaults.
package timestamp

import (
	"fmt"
	"strconv"
	"time"
)

// Now returns the current time as Unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// ToUnixMs converts a time.Time to Unix milliseconds.
func ToUnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// ToTime converts Unix milliseconds to time.Time.
// Returns the zero time if the timestamp is 0.
func ToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Format converts Unix milliseconds to an RFC3339 string for display.
// Returns the empty string if the timestamp is 0.
func Format(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// Parse converts various timestamp representations to Unix milliseconds.
// Supports int64/float64 (milliseconds if > 1e12, seconds otherwise),
// RFC3339 strings, numeric strings, time.Time, and nil. Nil and empty
// inputs parse to 0 (unset); anything unrecognizable is an error so
// callers can reject malformed input instead of storing a zero.
func Parse(input any) (int64, error) {
	if input == nil {
		return 0, nil
	}

	switch v := input.(type) {
	case int64:
		if v == 0 {
			return 0, nil
		}
		// Values above 1e12 (year 2001 in seconds) are already milliseconds.
		if v > 1e12 {
			return v, nil
		}
		return v * 1000, nil

	case float64:
		return Parse(int64(v))

	case int:
		return Parse(int64(v))

	case string:
		if v == "" {
			return 0, nil
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return ToUnixMs(t), nil
		}
		// The original wire format carries local datetimes without a zone.
		if t, err := time.Parse("2006-01-02T15:04:05", v); err == nil {
			return ToUnixMs(t.UTC()), nil
		}
		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			return Parse(ts)
		}
		if ts, err := strconv.ParseFloat(v, 64); err == nil {
			return Parse(ts)
		}
		return 0, fmt.Errorf("unparseable timestamp %q", v)

	case time.Time:
		return ToUnixMs(v), nil

	default:
		return 0, fmt.Errorf("unsupported timestamp type %T", input)
	}
}

// IsZero checks if a timestamp is unset (zero).
func IsZero(ms int64) bool {
	return ms == 0
}

// Sub subtracts a duration from a timestamp and returns the new timestamp.
// Returns 0 if the input timestamp is zero.
func Sub(ms int64, d time.Duration) int64 {
	if ms == 0 {
		return 0
	}
	return time.UnixMilli(ms).Add(-d).UnixMilli()
}

// Between returns the duration between two timestamps.
// Returns 0 if either timestamp is zero.
func Between(start, end int64) time.Duration {
	if start == 0 || end == 0 {
		return 0
	}
	return time.UnixMilli(end).Sub(time.UnixMilli(start))
}
