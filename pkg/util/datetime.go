package util

import (
	"fmt"
	"time"
)

const (
	ISO8601Format   = "2006-01-02T15:04:05Z"
	DateFormat      = "2006-01-02"
	TimeOfDayFormat = "15:04"
)

func TimeToISO8601Str(t time.Time) string {
	return t.UTC().Format(ISO8601Format)
}

func TimePtrToISO8601Str(t *time.Time) string {
	if t == nil {
		return ""
	}
	return TimeToISO8601Str(*t)
}

// ParseDate validates a calendar day such as "2025-03-14".
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseTimeOfDay validates a wall-clock time such as "16:30" and returns
// minutes since midnight.
func ParseTimeOfDay(s string) (int, error) {
	t, err := time.Parse(TimeOfDayFormat, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
