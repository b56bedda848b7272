package sitemap

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the lastmod rendering.
const DateLayout = "2006-01-02"

// millisThreshold separates Unix seconds from Unix milliseconds in numeric dates.
const millisThreshold = 1e12

// dateLayouts are tried in order; the first match wins.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2006-01",
}

// ParseDate normalizes a date-like value to a calendar date at UTC midnight. Strings are matched
// against a fixed list of layouts; numbers are Unix seconds, or milliseconds when at least 1e12.
func ParseDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return truncate(t), true
	case string:
		return parseDateString(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromUnix(f)
	case float64:
		return fromUnix(t)
	case int:
		return fromUnix(float64(t))
	case int64:
		return fromUnix(float64(t))
	default:
		return time.Time{}, false
	}
}

func parseDateString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t), true
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromUnix(f)
	}
	return time.Time{}, false
}

func fromUnix(f float64) (time.Time, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return time.Time{}, false
	}
	if f >= millisThreshold {
		return truncate(time.UnixMilli(int64(f)).UTC()), true
	}
	return truncate(time.Unix(int64(f), 0).UTC()), true
}

// truncate drops the time of day, keeping the calendar date as written.
func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ResolveLastMod returns the first parseable value in dates, clamped to today. With nothing
// parseable it returns today.
func ResolveLastMod(dates []any, now time.Time) time.Time {
	today := truncate(now.UTC())
	for _, v := range dates {
		t, ok := ParseDate(v)
		if !ok {
			continue
		}
		if t.After(today) {
			return today
		}
		return t
	}
	return today
}
