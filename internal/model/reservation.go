package model

import (
	"fmt"

	"tablebook/internal/timeofday"
)

// Status is the reservation lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusSeated    Status = "seated"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Statuses lists every known status in display order.
var Statuses = []Status{
	StatusPending, StatusConfirmed, StatusSeated, StatusCompleted, StatusCancelled, StatusNoShow,
}

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown reservation status %q", raw)
}

// Blocking reports whether a reservation in this status holds its tables.
func (s Status) Blocking() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusSeated:
		return true
	default:
		return false
	}
}

// Customer is the contact attached to a reservation.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// HasContact reports whether email or phone is present.
func (c Customer) HasContact() bool {
	return c.Email != "" || c.Phone != ""
}

// Reservation as returned by the upstream API.
type Reservation struct {
	ID              string   `json:"id,omitempty"`
	ReservationDate string   `json:"reservation_date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	PartySize       int      `json:"party_size"`
	Status          Status   `json:"status"`
	Notes           string   `json:"notes,omitempty"`
	Customer        Customer `json:"customer"`
	TableIDs        []string `json:"table_ids"`
	CreatedAt       string   `json:"created_at,omitempty"`
	UpdatedAt       string   `json:"updated_at,omitempty"`
}

// Interval returns the [start, end) window of the reservation.
func (r *Reservation) Interval() (start, end timeofday.TimeOfDay, err error) {
	start, err = timeofday.Parse(r.StartTime)
	if err != nil {
		return start, end, fmt.Errorf("reservation %s: %w", r.ID, err)
	}
	return start, start.Add(r.DurationMinutes), nil
}

// OverlapsWith reports whether the reservation intersects [start, end).
func (r *Reservation) OverlapsWith(start, end timeofday.TimeOfDay) (bool, error) {
	rs, re, err := r.Interval()
	if err != nil {
		return false, err
	}
	return rs.Before(end) && start.Before(re), nil
}

// AssignedTo reports whether the reservation holds the given table.
func (r *Reservation) AssignedTo(tableID string) bool {
	for _, id := range r.TableIDs {
		if id == tableID {
			return true
		}
	}
	return false
}

// ReservationCreate is the body of POST /reservations.
type ReservationCreate struct {
	PartySize       int      `json:"party_size"`
	ReservationDate string   `json:"reservation_date"`
	StartTime       string   `json:"start_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Notes           string   `json:"notes,omitempty"`
	Status          Status   `json:"status,omitempty"`
	Customer        Customer `json:"customer"`
	TableIDs        []string `json:"table_ids"`
}

// ReservationFilter maps onto the GET /reservations query string.
type ReservationFilter struct {
	DateFrom string
	DateTo   string
	Status   Status
	TableID  string
}

// AvailabilityRequest is the body of POST /availability.
type AvailabilityRequest struct {
	PartySize       int    `json:"party_size"`
	ReservationDate string `json:"reservation_date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Key identifies the exact slot a check was made for. Times are normalised so
// "19:00" and "19:00:00" compare equal.
func (r AvailabilityRequest) Key() string {
	start := r.StartTime
	if t, err := timeofday.Parse(r.StartTime); err == nil {
		start = t.String()
	}
	return fmt.Sprintf("%s|%s|%d|%d", r.ReservationDate, start, r.DurationMinutes, r.PartySize)
}

// AvailabilityResult is the response of an availability check.
type AvailabilityResult struct {
	IsValidTime     bool    `json:"is_valid_time"`
	AvailableTables []Table `json:"available_tables"`
}
