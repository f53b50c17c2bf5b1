package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

var (
	ErrInvalidCapacity = errors.New("capacities must be positive and min_capacity <= max_capacity")
	ErrMissingNumber   = errors.New("table_number is required")
)

// Table is a seating resource. Location is an opaque "x,y" pair used for the floor plan.
type Table struct {
	ID          string  `json:"id,omitempty"`
	TableNumber string  `json:"table_number"`
	MinCapacity int     `json:"min_capacity"`
	MaxCapacity int     `json:"max_capacity"`
	IsShared    bool    `json:"is_shared"`
	Location    *string `json:"location"`
	CreatedAt   string  `json:"created_at,omitempty"` // upstream timestamps are kept verbatim
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// Validate checks the capacity invariants before a table is sent upstream.
func (t *Table) Validate() error {
	if strings.TrimSpace(t.TableNumber) == "" {
		return ErrMissingNumber
	}
	if t.MinCapacity <= 0 || t.MaxCapacity <= 0 || t.MinCapacity > t.MaxCapacity {
		return fmt.Errorf("table %s: %w", t.TableNumber, ErrInvalidCapacity)
	}
	return nil
}

// Fits reports whether the party is within the table's seating range.
func (t *Table) Fits(partySize int) bool {
	return t.MinCapacity <= partySize && partySize <= t.MaxCapacity
}

// Position is a floor plan coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ParseLocation reads an "x,y" location string.
func ParseLocation(location string) (Position, error) {
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("invalid location format: %q", location)
	}
	x, err := parseCoordinate(parts[0])
	if err != nil {
		return Position{}, fmt.Errorf("invalid x in location %q", location)
	}
	y, err := parseCoordinate(parts[1])
	if err != nil {
		return Position{}, fmt.Errorf("invalid y in location %q", location)
	}
	return Position{X: x, Y: y}, nil
}

// parseCoordinate accepts finite numbers only; NaN and Inf cannot be
// encoded as JSON.
func parseCoordinate(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("coordinate %q is not finite", raw)
	}
	return v, nil
}

// FormatLocation renders a position back into the wire form.
func FormatLocation(p Position) string {
	return strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64)
}

// FallbackPosition places a table without a usable location inside the
// 100..500 x 100..400 area. The result depends only on the table id so the
// layout stays put across reloads.
func FallbackPosition(tableID string) Position {
	h := xxhash.Sum64String(tableID)
	return Position{
		X: 100 + float64(h%400),
		Y: 100 + float64((h>>32)%300),
	}
}

// LayoutPosition resolves the display position of a table. The error is
// non-nil when a stored location was malformed and the fallback was used.
func (t *Table) LayoutPosition() (Position, error) {
	if t.Location == nil || strings.TrimSpace(*t.Location) == "" {
		return FallbackPosition(t.ID), nil
	}
	p, err := ParseLocation(*t.Location)
	if err != nil {
		return FallbackPosition(t.ID), err
	}
	return p, nil
}
