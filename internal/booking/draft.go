package booking

import (
	"errors"
	"fmt"
	"strings"

	"tablebook/internal/model"
	"tablebook/internal/slots"
	"tablebook/internal/timeofday"
)

// DefaultPartySize is the party size a new draft starts with.
const DefaultPartySize = 2

// ErrInvalidInput is returned for draft edits that cannot be applied.
var ErrInvalidInput = errors.New("invalid booking input")

// Draft is the reservation being composed. ConfirmedSlot holds the request
// key of the last availability check that found the time valid.
type Draft struct {
	PartySize       int            `json:"party_size"`
	ReservationDate string         `json:"reservation_date"`
	StartTime       string         `json:"start_time"`
	DurationMinutes int            `json:"duration_minutes"`
	Notes           string         `json:"notes,omitempty"`
	Customer        model.Customer `json:"customer"`
	TableIDs        []string       `json:"table_ids"`
	ConfirmedSlot   string         `json:"confirmed_slot,omitempty"`
}

// NewDraft returns a draft for date with default party size and duration.
func NewDraft(date string) Draft {
	return Draft{
		PartySize:       DefaultPartySize,
		ReservationDate: date,
		DurationMinutes: slots.DefaultDuration,
		TableIDs:        []string{},
	}
}

// Request is the availability request for the draft's slot.
func (d Draft) Request() model.AvailabilityRequest {
	return model.AvailabilityRequest{
		PartySize:       d.PartySize,
		ReservationDate: d.ReservationDate,
		StartTime:       d.StartTime,
		DurationMinutes: d.DurationMinutes,
	}
}

// Create builds the POST /reservations body. Empty contact fields are omitted.
func (d Draft) Create() model.ReservationCreate {
	ids := make([]string, len(d.TableIDs))
	copy(ids, d.TableIDs)
	return model.ReservationCreate{
		PartySize:       d.PartySize,
		ReservationDate: d.ReservationDate,
		StartTime:       d.StartTime,
		DurationMinutes: d.DurationMinutes,
		Notes:           d.Notes,
		Customer: model.Customer{
			Name:  strings.TrimSpace(d.Customer.Name),
			Email: strings.TrimSpace(d.Customer.Email),
			Phone: strings.TrimSpace(d.Customer.Phone),
			Notes: d.Customer.Notes,
		},
		TableIDs: ids,
	}
}

// Patch is a partial draft edit. Nil fields are left alone.
type Patch struct {
	PartySize       *int            `json:"party_size"`
	ReservationDate *string         `json:"reservation_date"`
	StartTime       *string         `json:"start_time"`
	DurationMinutes *int            `json:"duration_minutes"`
	Notes           *string         `json:"notes"`
	Customer        *model.Customer `json:"customer"`
}

// apply edits d in place and reports whether the slot (date, time, party
// size or duration) changed.
func (p Patch) apply(d *Draft) (bool, error) {
	before := d.Request().Key()

	if p.PartySize != nil {
		if *p.PartySize <= 0 {
			return false, fmt.Errorf("%w: party_size must be positive", ErrInvalidInput)
		}
		d.PartySize = *p.PartySize
	}
	if p.ReservationDate != nil {
		if _, err := timeofday.ParseDate(*p.ReservationDate); err != nil {
			return false, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		d.ReservationDate = *p.ReservationDate
	}
	if p.StartTime != nil {
		t, err := timeofday.Parse(*p.StartTime)
		if err != nil {
			return false, fmt.Errorf("%w: start_time: %w", ErrInvalidInput, err)
		}
		d.StartTime = t.String()
	}
	if p.DurationMinutes != nil {
		if !slots.ValidDuration(*p.DurationMinutes) {
			return false, fmt.Errorf("%w: duration_minutes %d is not offered", ErrInvalidInput, *p.DurationMinutes)
		}
		d.DurationMinutes = *p.DurationMinutes
	}
	if p.Notes != nil {
		d.Notes = *p.Notes
	}
	if p.Customer != nil {
		d.Customer = *p.Customer
	}
	return d.Request().Key() != before, nil
}
