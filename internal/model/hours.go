package model

// WeeklyHours is the regular schedule for one weekday (0=Monday..6=Sunday).
type WeeklyHours struct {
	ID                  string `json:"id,omitempty"`
	DayOfWeek           int    `json:"day_of_week"`
	OpenTime            string `json:"open_time"`             // "09:00:00"
	CloseTime           string `json:"close_time"`            // "22:00:00"
	LastReservationTime string `json:"last_reservation_time"` // "21:00:00"
}

// SpecialDay overrides the weekly schedule for one calendar date.
type SpecialDay struct {
	ID                  string  `json:"id,omitempty"`
	Date                string  `json:"date"` // "2026-12-24"
	Name                string  `json:"name"`
	Description         *string `json:"description"`
	IsClosed            bool    `json:"is_closed"`
	OpenTime            *string `json:"open_time"`
	CloseTime           *string `json:"close_time"`
	LastReservationTime *string `json:"last_reservation_time"`
	CreatedAt           string  `json:"created_at,omitempty"`
	UpdatedAt           string  `json:"updated_at,omitempty"`
}

// HasAllTimes reports whether every time field is present and non-empty.
func (s *SpecialDay) HasAllTimes() bool {
	return nonEmpty(s.OpenTime) && nonEmpty(s.CloseTime) && nonEmpty(s.LastReservationTime)
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// StringPtr is a helper for optional wire fields.
func StringPtr(s string) *string {
	return &s
}
