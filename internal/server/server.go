// Package server exposes the staff HTTP API.
package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tablebook/internal/auth"
	"tablebook/internal/availability"
	"tablebook/internal/booking"
	"tablebook/internal/events"
	"tablebook/internal/hours"
	"tablebook/internal/journal"
	"tablebook/internal/model"
)

// Backend is the part of the upstream client the handlers call.
type Backend interface {
	ListHours(ctx context.Context) ([]model.WeeklyHours, error)
	SetHours(ctx context.Context, wh model.WeeklyHours) (*model.WeeklyHours, error)
	ListSpecialHours(ctx context.Context, dateFrom, dateTo string) ([]model.SpecialDay, error)
	SetSpecialHours(ctx context.Context, sd model.SpecialDay) (*model.SpecialDay, error)
	DeleteSpecialHours(ctx context.Context, id string) error
	ListTables(ctx context.Context) ([]model.Table, error)
	CreateTable(ctx context.Context, t model.Table) (*model.Table, error)
	UpdateTable(ctx context.Context, id string, t model.Table) (*model.Table, error)
	DeleteTable(ctx context.Context, id string) error
	ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error)
	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id string, status model.Status) (*model.Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
}

// JournalReader supplies journal rows for exports.
type JournalReader interface {
	List(ctx context.Context, from, to time.Time) ([]journal.Entry, error)
}

type Deps struct {
	API         Backend
	Hours       *hours.Resolver
	Checker     availability.Checker
	Sessions    *booking.SessionStore
	Submitter   *booking.Submitter
	Auth        *auth.Service
	Journal     JournalReader
	Bus         *events.Bus
	Granularity int
	Logger      zerolog.Logger
}

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	CacheTTL       time.Duration
}

type Server struct {
	api         Backend
	hours       *hours.Resolver
	checker     availability.Checker
	sessions    *booking.SessionStore
	submitter   *booking.Submitter
	auth        *auth.Service
	journal     JournalReader
	bus         *events.Bus
	granularity int
	logger      zerolog.Logger
	now         func() time.Time
}

func New(d Deps) *Server {
	return &Server{
		api:         d.API,
		hours:       d.Hours,
		checker:     d.Checker,
		sessions:    d.Sessions,
		submitter:   d.Submitter,
		auth:        d.Auth,
		journal:     d.Journal,
		bus:         d.Bus,
		granularity: d.Granularity,
		logger:      d.Logger,
		now:         time.Now,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(s.logger))

	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 20
	}
	limiter := NewIPRateLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst)

	store := cache.New(opts.CacheTTL, 10*time.Minute)
	caching := Cache(store, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(RateLimit(limiter))
	api.POST("/login", s.login)

	staff := api.Group("")
	staff.Use(RequireAuth(s.auth), FlushOnWrite(store))
	{
		staff.GET("/hours", caching, s.listHours)
		staff.PUT("/hours", s.setHours)
		staff.PUT("/hours/weekdays", s.setWeekdayHours)
		staff.GET("/hours/week", caching, s.weekHours)
		staff.GET("/hours/effective", s.effectiveHours)

		staff.GET("/special-hours", caching, s.listSpecialHours)
		staff.PUT("/special-hours", s.setSpecialHours)
		staff.DELETE("/special-hours/:id", s.deleteSpecialHours)

		staff.GET("/tables", caching, s.listTables)
		staff.POST("/tables", s.createTable)
		staff.GET("/tables/layout", caching, s.tableLayout)
		staff.PUT("/tables/:id", s.updateTable)
		staff.DELETE("/tables/:id", s.deleteTable)
		staff.GET("/tables/:id/reservations", s.tableReservations)

		staff.GET("/slots", s.defaultDate("date"), caching, s.listSlots)
		staff.POST("/availability", s.checkAvailability)

		staff.GET("/reservations", s.listReservations)
		staff.GET("/reservations/export", s.exportReservations)
		staff.PATCH("/reservations/:id/status", s.updateReservationStatus)
		staff.DELETE("/reservations/:id", s.deleteReservation)

		staff.POST("/bookings", s.startBooking)
		staff.GET("/bookings/:id", s.getBooking)
		staff.PATCH("/bookings/:id", s.updateBooking)
		staff.POST("/bookings/:id/availability", s.checkBooking)
		staff.PUT("/bookings/:id/tables", s.selectBookingTables)
		staff.POST("/bookings/:id/submit", s.submitBooking)
		staff.DELETE("/bookings/:id", s.cancelBooking)
	}
	return r
}

func (s *Server) publish(c *gin.Context, t events.Type, subject string, r *model.Reservation, detail string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(c.Request.Context(), events.Event{
		Type:        t,
		Actor:       actor(c),
		SubjectID:   subject,
		Reservation: r,
		Detail:      detail,
	})
}
