package restapi

import (
	"context"
	"net/http"
	"net/url"

	"tablebook/internal/model"
)

const (
	keyHours   = "hours"
	keyTables  = "tables"
	keySpecial = "special:"
)

// ListHours returns the weekly schedule.
func (c *Client) ListHours(ctx context.Context) ([]model.WeeklyHours, error) {
	var out []model.WeeklyHours
	if c.readCache(ctx, keyHours, &out) {
		return out, nil
	}
	if err := c.doGet(ctx, "hours", c.endpoint("/hours", nil), &out); err != nil {
		return nil, err
	}
	c.writeCache(ctx, keyHours, out)
	return out, nil
}

// SetHours upserts the entry for wh.DayOfWeek.
func (c *Client) SetHours(ctx context.Context, wh model.WeeklyHours) (*model.WeeklyHours, error) {
	var out model.WeeklyHours
	err := c.doJSON(ctx, http.MethodPut, "hours", c.endpoint("/hours", nil), wh, &out)
	c.invalidate(ctx, keyHours)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSpecialHours returns special days, optionally bounded by date range.
func (c *Client) ListSpecialHours(ctx context.Context, dateFrom, dateTo string) ([]model.SpecialDay, error) {
	q := url.Values{}
	if dateFrom != "" {
		q.Set("date_from", dateFrom)
	}
	if dateTo != "" {
		q.Set("date_to", dateTo)
	}
	key := keySpecial + "range:" + dateFrom + ":" + dateTo

	var out []model.SpecialDay
	if c.readCache(ctx, key, &out) {
		return out, nil
	}
	if err := c.doGet(ctx, "special-hours", c.endpoint("/special-hours", q), &out); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, out)
	return out, nil
}

// GetSpecialHoursByDate returns the override for date, or nil when the
// backend answers 404.
func (c *Client) GetSpecialHoursByDate(ctx context.Context, date string) (*model.SpecialDay, error) {
	key := keySpecial + "date:" + date
	var cached struct {
		Day *model.SpecialDay `json:"day"`
	}
	if c.readCache(ctx, key, &cached) {
		return cached.Day, nil
	}

	var out model.SpecialDay
	err := c.doGet(ctx, "special-hours", c.endpoint("/special-hours/"+url.PathEscape(date), nil), &out)
	switch {
	case IsNotFound(err):
		cached.Day = nil
	case err != nil:
		return nil, err
	default:
		cached.Day = &out
	}
	c.writeCache(ctx, key, cached)
	return cached.Day, nil
}

// SetSpecialHours creates or replaces the override for sd.Date.
func (c *Client) SetSpecialHours(ctx context.Context, sd model.SpecialDay) (*model.SpecialDay, error) {
	var out model.SpecialDay
	err := c.doJSON(ctx, http.MethodPut, "special-hours", c.endpoint("/special-hours", nil), sd, &out)
	c.invalidate(ctx, keySpecial)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSpecialHours(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, "special-hours", c.endpoint("/special-hours/"+url.PathEscape(id), nil), nil, nil)
	c.invalidate(ctx, keySpecial)
	return err
}

// ListTables returns every table.
func (c *Client) ListTables(ctx context.Context) ([]model.Table, error) {
	var out []model.Table
	if c.readCache(ctx, keyTables, &out) {
		return out, nil
	}
	if err := c.doGet(ctx, "tables", c.endpoint("/tables", nil), &out); err != nil {
		return nil, err
	}
	c.writeCache(ctx, keyTables, out)
	return out, nil
}

func (c *Client) CreateTable(ctx context.Context, t model.Table) (*model.Table, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var out model.Table
	err := c.doJSON(ctx, http.MethodPost, "tables", c.endpoint("/tables", nil), tableBody(t), &out)
	c.invalidate(ctx, keyTables)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTable(ctx context.Context, id string, t model.Table) (*model.Table, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	var out model.Table
	err := c.doJSON(ctx, http.MethodPut, "tables", c.endpoint("/tables/"+url.PathEscape(id), nil), tableBody(t), &out)
	c.invalidate(ctx, keyTables)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTable(ctx context.Context, id string) error {
	err := c.doJSON(ctx, http.MethodDelete, "tables", c.endpoint("/tables/"+url.PathEscape(id), nil), nil, nil)
	c.invalidate(ctx, keyTables)
	return err
}

type tableCreate struct {
	TableNumber string  `json:"table_number"`
	MinCapacity int     `json:"min_capacity"`
	MaxCapacity int     `json:"max_capacity"`
	IsShared    bool    `json:"is_shared"`
	Location    *string `json:"location"`
}

func tableBody(t model.Table) tableCreate {
	return tableCreate{
		TableNumber: t.TableNumber,
		MinCapacity: t.MinCapacity,
		MaxCapacity: t.MaxCapacity,
		IsShared:    t.IsShared,
		Location:    t.Location,
	}
}

// ListReservations is never cached; overlap checks need fresh data.
func (c *Client) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	q := url.Values{}
	if filter.DateFrom != "" {
		q.Set("date_from", filter.DateFrom)
	}
	if filter.DateTo != "" {
		q.Set("date_to", filter.DateTo)
	}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.TableID != "" {
		q.Set("table_id", filter.TableID)
	}
	var out []model.Reservation
	if err := c.doGet(ctx, "reservations", c.endpoint("/reservations", q), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var out model.Reservation
	if err := c.doGet(ctx, "reservations", c.endpoint("/reservations/"+url.PathEscape(id), nil), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReservation issues exactly one POST. A rejection comes back as *APIError.
func (c *Client) CreateReservation(ctx context.Context, rc model.ReservationCreate) (*model.Reservation, error) {
	var out model.Reservation
	if err := c.doJSON(ctx, http.MethodPost, "reservations", c.endpoint("/reservations", nil), rc, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateReservationStatus(ctx context.Context, id string, status model.Status) (*model.Reservation, error) {
	q := url.Values{"status": {string(status)}}
	var out model.Reservation
	err := c.doJSON(ctx, http.MethodPatch, "reservations", c.endpoint("/reservations/"+url.PathEscape(id)+"/status", q), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteReservation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "reservations", c.endpoint("/reservations/"+url.PathEscape(id), nil), nil, nil)
}

// CheckAvailability asks the backend for its availability answer.
func (c *Client) CheckAvailability(ctx context.Context, req model.AvailabilityRequest) (*model.AvailabilityResult, error) {
	var out model.AvailabilityResult
	if err := c.doJSON(ctx, http.MethodPost, "availability", c.endpoint("/availability", nil), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
