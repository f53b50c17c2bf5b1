package timeofday

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses "YYYY-MM-DD" into a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return d, nil
}

// FormatDate renders the calendar day of t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekdayIndex maps a date onto the weekly schedule numbering where
// Monday is 0 and Sunday is 6.
func WeekdayIndex(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 6
	}
	return wd - 1
}

// WeekdayName returns the English name for a Monday=0 index.
func WeekdayName(index int) string {
	if index < 0 || index > 6 {
		return ""
	}
	return time.Weekday((index + 1) % 7).String()
}
