// Package hours resolves the effective opening window for a calendar date.
package hours

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

// ErrMisconfiguredSpecialDay is returned when a special day is marked open but
// lacks one of its time fields. The accompanying EffectiveHours is closed.
var ErrMisconfiguredSpecialDay = errors.New("misconfigured special day")

// Source provides the schedule data the resolver works from.
type Source interface {
	ListHours(ctx context.Context) ([]model.WeeklyHours, error)
	GetSpecialHoursByDate(ctx context.Context, date string) (*model.SpecialDay, error)
}

// EffectiveHours is the opening window that applies to one date.
type EffectiveHours struct {
	Date                string               `json:"date"`
	IsClosed            bool                 `json:"is_closed"`
	OpenTime            *timeofday.TimeOfDay `json:"open_time,omitempty"`
	CloseTime           *timeofday.TimeOfDay `json:"close_time,omitempty"`
	LastReservationTime *timeofday.TimeOfDay `json:"last_reservation_time,omitempty"`
	IsSpecial           bool                 `json:"is_special"`
	SpecialName         string               `json:"special_name,omitempty"`
}

func closed(date string) EffectiveHours {
	return EffectiveHours{Date: date, IsClosed: true}
}

// Resolver picks special-day overrides over the weekly schedule.
type Resolver struct {
	source Source
}

// NewResolver creates a resolver backed by source.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the effective hours for date.
func (r *Resolver) Resolve(ctx context.Context, date time.Time) (EffectiveHours, error) {
	dateStr := timeofday.FormatDate(date)

	special, err := r.source.GetSpecialHoursByDate(ctx, dateStr)
	if err != nil {
		return closed(dateStr), fmt.Errorf("get special hours %s: %w", dateStr, err)
	}
	if special != nil {
		return FromSpecialDay(dateStr, special)
	}

	weekly, err := r.source.ListHours(ctx)
	if err != nil {
		return closed(dateStr), fmt.Errorf("list hours: %w", err)
	}
	return FromWeekly(dateStr, weekly, timeofday.WeekdayIndex(date))
}

// FromSpecialDay converts an override. Missing times on an open special day
// yield a closed value and ErrMisconfiguredSpecialDay.
func FromSpecialDay(date string, s *model.SpecialDay) (EffectiveHours, error) {
	eff := EffectiveHours{Date: date, IsClosed: true, IsSpecial: true, SpecialName: s.Name}
	if s.IsClosed {
		return eff, nil
	}
	if !s.HasAllTimes() {
		return eff, fmt.Errorf("%w: %s (%s) is open without times", ErrMisconfiguredSpecialDay, date, s.Name)
	}

	open, errOpen := timeofday.Parse(*s.OpenTime)
	closeT, errClose := timeofday.Parse(*s.CloseTime)
	last, errLast := timeofday.Parse(*s.LastReservationTime)
	if err := errors.Join(errOpen, errClose, errLast); err != nil {
		return eff, fmt.Errorf("%w: %s: %w", ErrMisconfiguredSpecialDay, date, err)
	}

	eff.IsClosed = false
	eff.OpenTime = &open
	eff.CloseTime = &closeT
	eff.LastReservationTime = &last
	return eff, nil
}

// FromWeekly looks up the entry for a Monday=0 weekday. No entry means closed.
func FromWeekly(date string, weekly []model.WeeklyHours, weekday int) (EffectiveHours, error) {
	for i := range weekly {
		if weekly[i].DayOfWeek != weekday {
			continue
		}
		wh := weekly[i]
		open, errOpen := timeofday.Parse(wh.OpenTime)
		closeT, errClose := timeofday.Parse(wh.CloseTime)
		last, errLast := timeofday.Parse(wh.LastReservationTime)
		if err := errors.Join(errOpen, errClose, errLast); err != nil {
			return closed(date), fmt.Errorf("weekly hours for day %d: %w", weekday, err)
		}
		return EffectiveHours{
			Date:                date,
			OpenTime:            &open,
			CloseTime:           &closeT,
			LastReservationTime: &last,
		}, nil
	}
	return closed(date), nil
}
