package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tablebook/internal/events"
	"tablebook/internal/hours"
	"tablebook/internal/model"
	"tablebook/internal/slots"
	"tablebook/internal/timeofday"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	token, expires, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		s.logger.Warn().Str("username", req.Username).Msg("login rejected")
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires.UTC().Format(time.RFC3339)})
}

// dateParam reads a YYYY-MM-DD query value, defaulting to today.
func (s *Server) dateParam(c *gin.Context, name string) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		now := s.now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	d, err := timeofday.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return d, nil
}

// defaultDate fills a missing date query with today so cached answers are
// keyed on the day they describe.
func (s *Server) defaultDate(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Request.URL.Query()
		if strings.TrimSpace(q.Get(name)) == "" {
			q.Set(name, timeofday.FormatDate(s.now()))
			c.Request.URL.RawQuery = q.Encode()
		}
		c.Next()
	}
}

func (s *Server) listHours(c *gin.Context) {
	list, err := s.api.ListHours(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) setHours(c *gin.Context) {
	var wh model.WeeklyHours
	if err := c.ShouldBindJSON(&wh); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	wh = normaliseWeekly(wh)
	if err := hours.ValidateEntry(wh); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	saved, err := s.api.SetHours(c.Request.Context(), wh)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.HoursChanged, fmt.Sprintf("day:%d", wh.DayOfWeek), nil, timeofday.WeekdayName(wh.DayOfWeek))
	c.JSON(http.StatusOK, saved)
}

type weekdayHoursRequest struct {
	OpenTime            string `json:"open_time"`
	CloseTime           string `json:"close_time"`
	LastReservationTime string `json:"last_reservation_time"`
}

// setWeekdayHours writes the same window to Monday..Friday. Every entry is
// validated before the first write.
func (s *Server) setWeekdayHours(c *gin.Context) {
	var req weekdayHoursRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	entries := hours.WeekdayEntries(req.OpenTime, req.CloseTime, req.LastReservationTime)
	for i := range entries {
		entries[i] = normaliseWeekly(entries[i])
		if err := hours.ValidateEntry(entries[i]); err != nil {
			s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}

	saved := make([]model.WeeklyHours, 0, len(entries))
	for _, wh := range entries {
		out, err := s.api.SetHours(c.Request.Context(), wh)
		if err != nil {
			s.fail(c, err)
			return
		}
		saved = append(saved, *out)
	}
	s.publish(c, events.HoursChanged, "weekdays", nil, "Monday-Friday")
	c.JSON(http.StatusOK, saved)
}

// normaliseWeekly sends full "HH:MM:SS" values upstream; unparsable input
// is left for ValidateEntry to reject.
func normaliseWeekly(wh model.WeeklyHours) model.WeeklyHours {
	wh.OpenTime = fullTime(wh.OpenTime)
	wh.CloseTime = fullTime(wh.CloseTime)
	wh.LastReservationTime = fullTime(wh.LastReservationTime)
	return wh
}

func fullTime(raw string) string {
	if t, err := timeofday.Parse(raw); err == nil {
		return t.String()
	}
	return raw
}

func (s *Server) weekHours(c *gin.Context) {
	rows, err := s.hours.Week(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

type effectiveResponse struct {
	hours.EffectiveHours
	Warning string `json:"warning,omitempty"`
}

// resolve treats a misconfigured special day as closed and reports the
// problem as a warning instead of an error.
func (s *Server) resolve(c *gin.Context, date time.Time) (effectiveResponse, error) {
	eff, err := s.hours.Resolve(c.Request.Context(), date)
	if errors.Is(err, hours.ErrMisconfiguredSpecialDay) {
		s.logger.Warn().Err(err).Str("date", eff.Date).Msg("special day treated as closed")
		return effectiveResponse{EffectiveHours: eff, Warning: err.Error()}, nil
	}
	if err != nil {
		return effectiveResponse{}, err
	}
	return effectiveResponse{EffectiveHours: eff}, nil
}

func (s *Server) effectiveHours(c *gin.Context) {
	date, err := s.dateParam(c, "date")
	if err != nil {
		s.fail(c, err)
		return
	}
	resp, err := s.resolve(c, date)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listSpecialHours(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	for name, v := range map[string]string{"from": from, "to": to} {
		if v == "" {
			continue
		}
		if _, err := timeofday.ParseDate(v); err != nil {
			s.fail(c, fmt.Errorf("%w: %s: %v", errBadRequest, name, err))
			return
		}
	}
	list, err := s.api.ListSpecialHours(c.Request.Context(), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func validateSpecialDay(sd *model.SpecialDay) error {
	if _, err := timeofday.ParseDate(sd.Date); err != nil {
		return fmt.Errorf("%w: date: %v", errBadRequest, err)
	}
	if strings.TrimSpace(sd.Name) == "" {
		return fmt.Errorf("%w: name is required", errBadRequest)
	}
	if sd.IsClosed {
		sd.OpenTime, sd.CloseTime, sd.LastReservationTime = nil, nil, nil
		return nil
	}
	if !sd.HasAllTimes() {
		return fmt.Errorf("%w: open days need open_time, close_time and last_reservation_time", errBadRequest)
	}
	wh := normaliseWeekly(model.WeeklyHours{
		OpenTime:            *sd.OpenTime,
		CloseTime:           *sd.CloseTime,
		LastReservationTime: *sd.LastReservationTime,
	})
	if err := hours.ValidateEntry(wh); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	sd.OpenTime = model.StringPtr(wh.OpenTime)
	sd.CloseTime = model.StringPtr(wh.CloseTime)
	sd.LastReservationTime = model.StringPtr(wh.LastReservationTime)
	return nil
}

func (s *Server) setSpecialHours(c *gin.Context) {
	var sd model.SpecialDay
	if err := c.ShouldBindJSON(&sd); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := validateSpecialDay(&sd); err != nil {
		s.fail(c, err)
		return
	}
	saved, err := s.api.SetSpecialHours(c.Request.Context(), sd)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.HoursChanged, "special:"+sd.Date, nil, sd.Name)
	c.JSON(http.StatusOK, saved)
}

func (s *Server) deleteSpecialHours(c *gin.Context) {
	id := c.Param("id")
	if err := s.api.DeleteSpecialHours(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.HoursChanged, "special:"+id, nil, "deleted")
	c.Status(http.StatusNoContent)
}

type durationOption struct {
	Minutes int    `json:"minutes"`
	Label   string `json:"label"`
}

type slotsResponse struct {
	effectiveResponse
	Slots     []string         `json:"slots"`
	Durations []durationOption `json:"duration_options"`
}

func (s *Server) listSlots(c *gin.Context) {
	date, err := s.dateParam(c, "date")
	if err != nil {
		s.fail(c, err)
		return
	}
	eff, err := s.resolve(c, date)
	if err != nil {
		s.fail(c, err)
		return
	}

	granularity := s.granularity
	if granularity <= 0 {
		granularity = slots.DefaultGranularity
	}
	resp := slotsResponse{
		effectiveResponse: eff,
		Slots:             slots.Labels(slots.ForHours(eff.EffectiveHours, granularity)),
	}
	if resp.Slots == nil {
		resp.Slots = []string{}
	}
	for _, m := range slots.DurationOptions() {
		resp.Durations = append(resp.Durations, durationOption{Minutes: m, Label: slots.FormatDuration(m)})
	}
	c.JSON(http.StatusOK, resp)
}
