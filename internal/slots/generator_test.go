package slots

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/hours"
	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

func TestGenerate(t *testing.T) {
	at := timeofday.MustParse

	tests := []struct {
		name          string
		open, last    string
		granularity   int
		expectedCount int
		first, final  string
	}{
		{"monday evening service", "09:00", "21:00", 30, 25, "09:00", "21:00"},
		{"last is not on the grid", "09:00", "10:45", 30, 4, "09:00", "10:30"},
		{"hourly", "12:00", "15:00", 60, 4, "12:00", "15:00"},
		{"single slot", "18:00", "18:00", 30, 1, "18:00", "18:00"},
		{"seconds on the wire", "09:00:00", "10:00:00", 30, 3, "09:00", "10:00"},
		{"zero granularity uses default", "09:00", "10:00", 0, 3, "09:00", "10:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(at(tt.open), at(tt.last), tt.granularity)
			require.Len(t, got, tt.expectedCount)
			assert.Equal(t, tt.first, got[0].Display())
			assert.Equal(t, tt.final, got[len(got)-1].Display())
		})
	}
}

func TestGenerate_OpenAfterLastIsEmpty(t *testing.T) {
	got := Generate(timeofday.MustParse("21:30"), timeofday.MustParse("21:00"), 30)
	assert.Empty(t, got)
}

func TestGenerate_StopsBeforeLastPlusStep(t *testing.T) {
	got := Labels(Generate(timeofday.MustParse("20:00"), timeofday.MustParse("21:00"), 30))
	assert.Equal(t, []string{"20:00", "20:30", "21:00"}, got)
	assert.NotContains(t, got, "21:30")
}

func TestGenerate_PureAndOrdered(t *testing.T) {
	open, last := timeofday.MustParse("11:30"), timeofday.MustParse("22:00")
	first := Generate(open, last, 30)
	second := Generate(open, last, 30)
	assert.Equal(t, first, second)

	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].Before(first[i]))
	}
}

func TestForHours(t *testing.T) {
	weekly := []model.WeeklyHours{{DayOfWeek: 0, OpenTime: "09:00:00", CloseTime: "22:00:00", LastReservationTime: "21:00:00"}}
	eff, err := hours.FromWeekly("2026-01-12", weekly, 0)
	require.NoError(t, err)

	labels := Labels(ForHours(eff, DefaultGranularity))
	require.Len(t, labels, 25)
	assert.Equal(t, "09:00", labels[0])
	assert.Equal(t, "09:30", labels[1])
	assert.Equal(t, "21:00", labels[24])

	closedDay, err := hours.FromWeekly("2026-01-13", weekly, 1)
	require.NoError(t, err)
	assert.Empty(t, ForHours(closedDay, DefaultGranularity))
}

func TestDurations(t *testing.T) {
	assert.Equal(t, []int{60, 90, 120, 150, 180}, DurationOptions())
	assert.True(t, ValidDuration(DefaultDuration))
	assert.False(t, ValidDuration(45))

	assert.Equal(t, "45 min", FormatDuration(45))
	assert.Equal(t, "1 hour", FormatDuration(60))
	assert.Equal(t, "1 h 30 min", FormatDuration(90))
	assert.Equal(t, "3 hours", FormatDuration(180))
}
