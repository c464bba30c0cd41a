package normalize

import (
	"strings"
	"time"
)

// dateLayouts are tried in order. The order matters: narrower layouts come
// before shorter ones that would otherwise swallow the prefix.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-Jan-06",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"01/02/06",
	"01-02-2006",
	"01-02-06",
	"01.02.2006",
	"01.02.06",
	"20060102",
	"01022006",
	"010206",
}

// ParseDate parses a date string from any of the layouts seen upstream.
// Returns an UnparseableDateError when none match.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, &UnparseableDateError{Value: value}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &UnparseableDateError{Value: value}
}

// DaysBetween returns every calendar day from start through end inclusive.
// Used to expand an ad delivery range into one Day edge per day. A reversed
// range returns just the start day.
func DaysBetween(start, end time.Time) []time.Time {
	// Calendar arithmetic is done in UTC; Truncate works in absolute time,
	// so a zoned input would land on the wrong calendar day.
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)

	days := []time.Time{start}
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
