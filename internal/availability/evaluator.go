// Package availability decides which tables can take a party at a given slot.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tablebook/internal/hours"
	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

// ErrInvalidRequest is returned for requests that cannot be evaluated at all.
var ErrInvalidRequest = errors.New("invalid availability request")

// Checker answers availability requests.
type Checker interface {
	Check(ctx context.Context, req model.AvailabilityRequest) (model.AvailabilityResult, error)
}

// HoursResolver resolves effective opening hours for a date.
type HoursResolver interface {
	Resolve(ctx context.Context, date time.Time) (hours.EffectiveHours, error)
}

// FloorSource lists tables and reservations.
type FloorSource interface {
	ListTables(ctx context.Context) ([]model.Table, error)
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
}

// Evaluator is the local availability check.
type Evaluator struct {
	hours  HoursResolver
	floor  FloorSource
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator.
func NewEvaluator(h HoursResolver, floor FloorSource, logger zerolog.Logger) *Evaluator {
	return &Evaluator{hours: h, floor: floor, logger: logger}
}

func emptyResult(valid bool) model.AvailabilityResult {
	return model.AvailabilityResult{IsValidTime: valid, AvailableTables: []model.Table{}}
}

// ValidateRequest checks the request fields without touching any data source.
func ValidateRequest(req model.AvailabilityRequest) (time.Time, timeofday.TimeOfDay, error) {
	if req.PartySize <= 0 {
		return time.Time{}, timeofday.TimeOfDay{}, fmt.Errorf("%w: party_size must be positive", ErrInvalidRequest)
	}
	if req.DurationMinutes <= 0 {
		return time.Time{}, timeofday.TimeOfDay{}, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidRequest)
	}
	date, err := timeofday.ParseDate(req.ReservationDate)
	if err != nil {
		return time.Time{}, timeofday.TimeOfDay{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	start, err := timeofday.Parse(req.StartTime)
	if err != nil {
		return time.Time{}, timeofday.TimeOfDay{}, fmt.Errorf("%w: start_time: %w", ErrInvalidRequest, err)
	}
	return date, start, nil
}

// Check validates the slot against operating hours and returns the free tables.
func (e *Evaluator) Check(ctx context.Context, req model.AvailabilityRequest) (model.AvailabilityResult, error) {
	date, start, err := ValidateRequest(req)
	if err != nil {
		return emptyResult(false), err
	}

	eff, err := e.hours.Resolve(ctx, date)
	if errors.Is(err, hours.ErrMisconfiguredSpecialDay) {
		e.logger.Warn().Err(err).Str("date", req.ReservationDate).Msg("special day misconfigured; treating as closed")
		return emptyResult(false), nil
	}
	if err != nil {
		return emptyResult(false), fmt.Errorf("resolve hours: %w", err)
	}
	if !WithinHours(eff, start) {
		return emptyResult(false), nil
	}

	end := start.Add(req.DurationMinutes)

	reservations, err := e.floor.ListReservations(ctx, model.ReservationFilter{
		DateFrom: req.ReservationDate,
		DateTo:   req.ReservationDate,
	})
	if err != nil {
		return emptyResult(true), fmt.Errorf("list reservations: %w", err)
	}
	tables, err := e.floor.ListTables(ctx)
	if err != nil {
		return emptyResult(true), fmt.Errorf("list tables: %w", err)
	}

	occupancy := e.occupancy(reservations, req.ReservationDate, start, end)

	result := emptyResult(true)
	for _, t := range tables {
		occupied, overlapped := occupancy[t.ID]
		if Qualifies(t, occupied, overlapped, req.PartySize) {
			result.AvailableTables = append(result.AvailableTables, t)
		}
	}
	return result, nil
}

// occupancy sums the party sizes of blocking reservations overlapping
// [start, end), per assigned table. A table present in the map is overlapped.
func (e *Evaluator) occupancy(reservations []model.Reservation, date string, start, end timeofday.TimeOfDay) map[string]int {
	occupancy := make(map[string]int)
	for i := range reservations {
		r := &reservations[i]
		if r.ReservationDate != date || !r.Status.Blocking() {
			continue
		}
		overlaps, err := r.OverlapsWith(start, end)
		if err != nil {
			// An unreadable reservation keeps its tables blocked.
			e.logger.Warn().Err(err).Str("reservation_id", r.ID).Msg("reservation has malformed start time")
			overlaps = true
		}
		if !overlaps {
			continue
		}
		for _, tableID := range r.TableIDs {
			occupancy[tableID] += r.PartySize
		}
	}
	return occupancy
}

// WithinHours reports whether a reservation may start at start: between open
// and last reservation time inclusive. Closing time does not bind the start.
func WithinHours(eff hours.EffectiveHours, start timeofday.TimeOfDay) bool {
	if eff.IsClosed || eff.OpenTime == nil || eff.LastReservationTime == nil {
		return false
	}
	m := start.MinuteOfDay()
	return m >= eff.OpenTime.MinuteOfDay() && m <= eff.LastReservationTime.MinuteOfDay()
}

// Qualifies applies the sharing and capacity rules to one table.
// occupied is the combined party size already seated in the window.
func Qualifies(t model.Table, occupied int, overlapped bool, partySize int) bool {
	if overlapped && !(t.IsShared && occupied+partySize <= t.MaxCapacity) {
		return false
	}
	return t.Fits(partySize) || (t.IsShared && t.MaxCapacity-occupied >= partySize)
}
