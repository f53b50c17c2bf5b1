package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tablebook/internal/events"
	"tablebook/internal/journal"
	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

func (s *Server) listTables(c *gin.Context) {
	tables, err := s.api.ListTables(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func (s *Server) createTable(c *gin.Context) {
	var t model.Table
	if err := c.ShouldBindJSON(&t); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	created, err := s.api.CreateTable(c.Request.Context(), t)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.TableChanged, created.ID, nil, "created "+created.TableNumber)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateTable(c *gin.Context) {
	var t model.Table
	if err := c.ShouldBindJSON(&t); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	id := c.Param("id")
	updated, err := s.api.UpdateTable(c.Request.Context(), id, t)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.TableChanged, id, nil, "updated "+updated.TableNumber)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteTable(c *gin.Context) {
	id := c.Param("id")
	if err := s.api.DeleteTable(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.TableChanged, id, nil, "deleted")
	c.Status(http.StatusNoContent)
}

type layoutEntry struct {
	Table    model.Table    `json:"table"`
	Position model.Position `json:"position"`
	Placed   bool           `json:"placed"`
}

// tableLayout positions every table for the floor plan. Tables without a
// readable location get their stable fallback and Placed=false.
func (s *Server) tableLayout(c *gin.Context) {
	tables, err := s.api.ListTables(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	layout := make([]layoutEntry, 0, len(tables))
	for _, t := range tables {
		pos, err := t.LayoutPosition()
		if err != nil {
			s.logger.Warn().Err(err).Str("table", t.TableNumber).Msg("malformed table location")
		}
		placed := err == nil && t.Location != nil && strings.TrimSpace(*t.Location) != ""
		layout = append(layout, layoutEntry{Table: t, Position: pos, Placed: placed})
	}
	c.JSON(http.StatusOK, layout)
}

func (s *Server) tableReservations(c *gin.Context) {
	date, err := s.dateParam(c, "date")
	if err != nil {
		s.fail(c, err)
		return
	}
	day := timeofday.FormatDate(date)
	list, err := s.api.ListReservations(c.Request.Context(), model.ReservationFilter{
		DateFrom: day,
		DateTo:   day,
		TableID:  c.Param("id"),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) checkAvailability(c *gin.Context) {
	var req model.AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if t, err := timeofday.Parse(req.StartTime); err == nil {
		req.StartTime = t.String()
	}
	res, err := s.checker.Check(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) listReservations(c *gin.Context) {
	filter := model.ReservationFilter{
		DateFrom: c.Query("from"),
		DateTo:   c.Query("to"),
		TableID:  c.Query("table_id"),
	}
	if date := c.Query("date"); date != "" {
		filter.DateFrom, filter.DateTo = date, date
	}
	for _, d := range []string{filter.DateFrom, filter.DateTo} {
		if d == "" {
			continue
		}
		if _, err := timeofday.ParseDate(d); err != nil {
			s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
	}
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseStatus(raw)
		if err != nil {
			s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		filter.Status = status
	}

	list, err := s.api.ListReservations(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) updateReservationStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	id := c.Param("id")
	updated, err := s.api.UpdateReservationStatus(c.Request.Context(), id, status)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.ReservationStatusChanged, id, updated, string(status))
	c.JSON(http.StatusOK, updated)
}

// deleteReservation loads the reservation first so the deletion can be
// announced with its details.
func (s *Server) deleteReservation(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	existing, err := s.api.GetReservation(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.api.DeleteReservation(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	s.publish(c, events.ReservationDeleted, id, existing, "")
	c.Status(http.StatusNoContent)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// exportReservations streams an XLSX with the reservations of [from, to]
// and the journal of the same days.
func (s *Server) exportReservations(c *gin.Context) {
	from, err := s.dateParam(c, "from")
	if err != nil {
		s.fail(c, err)
		return
	}
	to := from
	if c.Query("to") != "" {
		if to, err = s.dateParam(c, "to"); err != nil {
			s.fail(c, err)
			return
		}
	}
	if to.Before(from) {
		s.fail(c, fmt.Errorf("%w: to is before from", errBadRequest))
		return
	}

	ctx := c.Request.Context()
	fromStr, toStr := timeofday.FormatDate(from), timeofday.FormatDate(to)
	reservations, err := s.api.ListReservations(ctx, model.ReservationFilter{DateFrom: fromStr, DateTo: toStr})
	if err != nil {
		s.fail(c, err)
		return
	}
	tables, err := s.api.ListTables(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	names := make(map[string]string, len(tables))
	for _, t := range tables {
		names[t.ID] = t.TableNumber
	}

	var entries []journal.Entry
	if s.journal != nil {
		entries, err = s.journal.List(ctx, from, to.Add(24*time.Hour))
		if err != nil {
			s.logger.Error().Err(err).Msg("journal unavailable for export")
			entries = nil
		}
	}

	filename := fmt.Sprintf("reservations_%s_%s.xlsx", fromStr, toStr)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := journal.Export(c.Writer, reservations, names, entries); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}
