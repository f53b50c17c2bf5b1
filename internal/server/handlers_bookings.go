package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tablebook/internal/booking"
	"tablebook/internal/events"
	"tablebook/internal/timeofday"
)

const roleManager = "manager"

type startBookingRequest struct {
	Date string `json:"date"`
}

func (s *Server) startBooking(c *gin.Context) {
	var req startBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	date := req.Date
	if date == "" {
		now := s.now()
		date = timeofday.FormatDate(now)
	} else if _, err := timeofday.ParseDate(date); err != nil {
		s.fail(c, fmt.Errorf("%w: date: %v", errBadRequest, err))
		return
	}

	flow := s.sessions.Create(actor(c), date)
	s.logger.Debug().Str("booking", flow.ID).Str("user", flow.Owner).Msg("booking started")
	c.JSON(http.StatusCreated, flow.Snapshot())
}

// flowFor returns the caller's booking. Other staff members' bookings are
// reported as missing unless the caller is a manager.
func (s *Server) flowFor(c *gin.Context) (*booking.Flow, bool) {
	flow, ok := s.sessions.Get(c.Param("id"))
	if ok {
		claims := claimsFrom(c)
		if claims != nil && (claims.Username == flow.Owner || claims.Role == roleManager) {
			return flow, true
		}
	}
	s.fail(c, fmt.Errorf("booking %s: %w", c.Param("id"), errNotFound))
	return nil, false
}

func (s *Server) getBooking(c *gin.Context) {
	flow, ok := s.flowFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, flow.Snapshot())
}

func (s *Server) updateBooking(c *gin.Context) {
	flow, ok := s.flowFor(c)
	if !ok {
		return
	}
	var patch booking.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	view, err := flow.Update(patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// checkBooking answers 200 with the flow view for every applied result,
// including invalid times and full houses; the client reads
// availability.is_valid_time and available_tables.
func (s *Server) checkBooking(c *gin.Context) {
	flow, ok := s.flowFor(c)
	if !ok {
		return
	}
	view, err := flow.CheckAvailability(c.Request.Context())
	if err != nil {
		if errors.Is(err, booking.ErrStaleResponse) {
			s.logger.Debug().Str("booking", flow.ID).Msg("stale availability answer discarded")
		}
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type selectTablesRequest struct {
	TableIDs []string `json:"table_ids"`
}

func (s *Server) selectBookingTables(c *gin.Context) {
	flow, ok := s.flowFor(c)
	if !ok {
		return
	}
	var req selectTablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	view, err := flow.SelectTables(req.TableIDs)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) submitBooking(c *gin.Context) {
	flow, ok := s.flowFor(c)
	if !ok {
		return
	}
	res, err := flow.Submit(c.Request.Context(), s.submitter)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.ReservationCreated, res.ID, res, "")
	c.JSON(http.StatusCreated, flow.Snapshot())
}

func (s *Server) cancelBooking(c *gin.Context) {
	flow, ok := s.flowFor(c)
	if !ok {
		return
	}
	s.sessions.Delete(flow.ID)
	c.Status(http.StatusNoContent)
}
