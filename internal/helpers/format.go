package helpers

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDateFormat is the token pattern used when none is given.
const DefaultDateFormat = "YYYY-MM-DD"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02",
}

// ParseDate accepts the date forms stored in travel records. Forms without
// an offset are read in loc.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders s with the YYYY, MM and DD tokens of format, in UTC.
// Each token is replaced once. Empty or unparseable input yields "-".
func FormatDate(s, format string) string {
	return FormatDateIn(s, format, time.UTC)
}

// FormatDateIn is FormatDate in loc.
func FormatDateIn(s, format string, loc *time.Location) string {
	if s == "" {
		return "-"
	}
	if format == "" {
		format = DefaultDateFormat
	}

	t, ok := ParseDate(s, loc)
	if !ok {
		return "-"
	}

	out := strings.Replace(format, "YYYY", strconv.Itoa(t.Year()), 1)
	out = strings.Replace(out, "MM", pad2(int(t.Month())), 1)
	return strings.Replace(out, "DD", pad2(t.Day()), 1)
}

// FormatDateTime renders s as "YYYY/MM/DD HH:mm" in UTC.
func FormatDateTime(s string) string {
	return FormatDateTimeIn(s, time.UTC)
}

// FormatDateTimeIn is FormatDateTime in loc.
func FormatDateTimeIn(s string, loc *time.Location) string {
	if s == "" {
		return "-"
	}
	t, ok := ParseDate(s, loc)
	if !ok {
		return "-"
	}
	return t.Format("2006/01/02 15:04")
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
