// Package slots generates bookable start times.
package slots

import (
	"fmt"

	"tablebook/internal/hours"
	"tablebook/internal/timeofday"
)

// DefaultGranularity is the spacing between bookable start times, in minutes.
const DefaultGranularity = 30

// DefaultDuration is the preselected reservation length, in minutes.
const DefaultDuration = 90

// Generate returns the bookable start times from open through last inclusive,
// every granularity minutes. Times compare on hour and minute only. The result
// is empty when open is after last.
func Generate(open, last timeofday.TimeOfDay, granularity int) []timeofday.TimeOfDay {
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	start := timeofday.New(open.Hour(), open.Minute(), 0)

	var slots []timeofday.TimeOfDay
	for cursor := start; cursor.MinuteOfDay() <= last.MinuteOfDay(); cursor = cursor.Add(granularity) {
		slots = append(slots, cursor)
	}
	return slots
}

// ForHours generates slots for a resolved day. Closed days have no slots.
func ForHours(eff hours.EffectiveHours, granularity int) []timeofday.TimeOfDay {
	if eff.IsClosed || eff.OpenTime == nil || eff.LastReservationTime == nil {
		return nil
	}
	return Generate(*eff.OpenTime, *eff.LastReservationTime, granularity)
}

// Labels converts slots to "HH:MM" strings for the UI.
func Labels(slots []timeofday.TimeOfDay) []string {
	result := make([]string, len(slots))
	for i, s := range slots {
		result[i] = s.Display()
	}
	return result
}

// DurationOptions returns the selectable reservation lengths in minutes.
func DurationOptions() []int {
	return []int{60, 90, 120, 150, 180}
}

// ValidDuration reports whether minutes is one of DurationOptions.
func ValidDuration(minutes int) bool {
	for _, d := range DurationOptions() {
		if d == minutes {
			return true
		}
	}
	return false
}

// FormatDuration formats duration in minutes to human-readable string.
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hrs := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hrs == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hrs)
	}
	return fmt.Sprintf("%d h %d min", hrs, mins)
}
