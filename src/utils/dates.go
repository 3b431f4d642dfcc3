package utils

import (
	"fmt"
	"time"
)

// ParseDate parses a YYYY-MM-DD value date into UTC midnight.
func ParseDate(value string) (time.Time, error) {
	date, err := time.ParseInLocation(ShortDashDateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected %s", value, ShortDashDateLayout)
	}
	return date, nil
}

// TruncateDay drops the time of day and moves t to UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
