package util

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used in requests and responses
const DateLayout = "2006-01-02"

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC 3339 timestamp.
// Calendar dates are midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
}

// FormatDate formats t as a calendar date in UTC
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// IsPastDue returns true if due falls on a calendar day before now
func IsPastDue(due, now time.Time) bool {
	dueDay := time.Date(due.UTC().Year(), due.UTC().Month(), due.UTC().Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return dueDay.Before(today)
}
