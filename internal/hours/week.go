package hours

import (
	"context"
	"errors"
	"fmt"

	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

// ErrCloseBeforeOpen rejects windows that end at or before they open. Hours
// are one calendar day; a venue open past midnight is configured to close at
// 23:59 with last_reservation_time before it.
var ErrCloseBeforeOpen = errors.New("close_time must be after open_time (hours cannot cross midnight)")

// DayRow is one line of the weekly overview.
type DayRow struct {
	DayOfWeek           int    `json:"day_of_week"`
	Name                string `json:"name"`
	IsClosed            bool   `json:"is_closed"`
	OpenTime            string `json:"open_time,omitempty"`
	CloseTime           string `json:"close_time,omitempty"`
	LastReservationTime string `json:"last_reservation_time,omitempty"`
}

// Week returns Monday..Sunday rows of the regular schedule.
func (r *Resolver) Week(ctx context.Context) ([]DayRow, error) {
	weekly, err := r.source.ListHours(ctx)
	if err != nil {
		return nil, fmt.Errorf("list hours: %w", err)
	}
	return WeekRows(weekly), nil
}

// WeekRows lays out weekly entries for display, HH:MM truncated.
func WeekRows(weekly []model.WeeklyHours) []DayRow {
	rows := make([]DayRow, 7)
	for day := 0; day < 7; day++ {
		rows[day] = DayRow{DayOfWeek: day, Name: timeofday.WeekdayName(day), IsClosed: true}
	}
	for _, wh := range weekly {
		if wh.DayOfWeek < 0 || wh.DayOfWeek > 6 {
			continue
		}
		rows[wh.DayOfWeek] = DayRow{
			DayOfWeek:           wh.DayOfWeek,
			Name:                timeofday.WeekdayName(wh.DayOfWeek),
			OpenTime:            timeofday.DisplayRaw(wh.OpenTime),
			CloseTime:           timeofday.DisplayRaw(wh.CloseTime),
			LastReservationTime: timeofday.DisplayRaw(wh.LastReservationTime),
		}
	}
	return rows
}

// WeekdayEntries builds identical Monday..Friday entries for bulk updates.
func WeekdayEntries(open, closeTime, last string) []model.WeeklyHours {
	entries := make([]model.WeeklyHours, 0, 5)
	for day := 0; day < 5; day++ {
		entries = append(entries, model.WeeklyHours{
			DayOfWeek:           day,
			OpenTime:            open,
			CloseTime:           closeTime,
			LastReservationTime: last,
		})
	}
	return entries
}

// ValidateEntry checks a weekly entry before it is written upstream.
func ValidateEntry(wh model.WeeklyHours) error {
	if wh.DayOfWeek < 0 || wh.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0..6, got %d", wh.DayOfWeek)
	}
	open, err := timeofday.Parse(wh.OpenTime)
	if err != nil {
		return fmt.Errorf("open_time: %w", err)
	}
	closeT, err := timeofday.Parse(wh.CloseTime)
	if err != nil {
		return fmt.Errorf("close_time: %w", err)
	}
	last, err := timeofday.Parse(wh.LastReservationTime)
	if err != nil {
		return fmt.Errorf("last_reservation_time: %w", err)
	}
	if !closeT.After(open) {
		return ErrCloseBeforeOpen
	}
	if last.Before(open) || last.After(closeT) {
		return fmt.Errorf("last_reservation_time must be between open_time and close_time")
	}
	return nil
}
