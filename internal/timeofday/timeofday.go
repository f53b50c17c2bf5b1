// Package timeofday handles wall-clock times and calendar dates as they travel
// between the upstream API and staff tooling.
package timeofday

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TimeOfDay is a wall-clock time with second precision. Values produced by Add
// may run past 24:00 when a reservation ends after midnight.
type TimeOfDay struct {
	seconds int
}

// New builds a TimeOfDay from components.
func New(hour, minute, second int) TimeOfDay {
	return TimeOfDay{seconds: hour*3600 + minute*60 + second}
}

// Parse accepts "HH:MM" and "HH:MM:SS".
func Parse(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	second := 0
	if len(parts) == 3 {
		second, err = strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return TimeOfDay{}, fmt.Errorf("invalid second in %q", s)
		}
	}
	return New(hour, minute, second), nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) Hour() int   { return t.seconds / 3600 }
func (t TimeOfDay) Minute() int { return (t.seconds / 60) % 60 }
func (t TimeOfDay) Second() int { return t.seconds % 60 }

// MinuteOfDay drops the seconds; comparisons between slots use this value.
func (t TimeOfDay) MinuteOfDay() int { return t.seconds / 60 }

// Add returns t shifted by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return TimeOfDay{seconds: t.seconds + minutes*60}
}

func (t TimeOfDay) Before(u TimeOfDay) bool { return t.seconds < u.seconds }
func (t TimeOfDay) After(u TimeOfDay) bool  { return t.seconds > u.seconds }
func (t TimeOfDay) Equal(u TimeOfDay) bool  { return t.seconds == u.seconds }

// String returns the wire form "HH:MM:SS".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
}

// Display truncates to "HH:MM".
func (t TimeOfDay) Display() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Format12h renders "9:00 AM" style labels.
func (t TimeOfDay) Format12h() string {
	hour := t.Hour() % 24
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:%02d %s", display, t.Minute(), period)
}

// Format12h formats a raw wire value, returning "not set" for empty or invalid input.
func Format12h(raw string) string {
	t, err := Parse(raw)
	if err != nil {
		return "not set"
	}
	return t.Format12h()
}

// DisplayRaw truncates a raw wire value to "HH:MM" without reparsing.
func DisplayRaw(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 5 {
		return raw[:5]
	}
	return raw
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
