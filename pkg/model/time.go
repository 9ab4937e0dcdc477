package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the date filter.
const DateLayout = "2006-01-02"

// TimePrecision is the coarsest timestamp precision of the supported stores
// (BSON dates hold milliseconds). Booking times are truncated to it before
// they are compared or written.
const TimePrecision = time.Millisecond

var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTime accepts RFC3339 or a zoneless local timestamp. Zoneless values
// are read as UTC and every result is returned in UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("time value is empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339 or YYYY-MM-DDTHH:MM[:SS]", value)
}

// ParseDate parses a YYYY-MM-DD calendar date at midnight UTC.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", value)
	}
	return t, nil
}

// DayBounds returns the half-open [midnight, next midnight) UTC range of the
// calendar day containing t.
func DayBounds(t time.Time) Interval {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}
