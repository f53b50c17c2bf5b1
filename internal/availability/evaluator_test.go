package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/hours"
	"tablebook/internal/model"
	"tablebook/internal/timeofday"
)

type fakeHours struct {
	eff hours.EffectiveHours
	err error
}

func (f fakeHours) Resolve(ctx context.Context, date time.Time) (hours.EffectiveHours, error) {
	return f.eff, f.err
}

type fakeFloor struct {
	tables       []model.Table
	reservations []model.Reservation
	calls        int
}

func (f *fakeFloor) ListTables(ctx context.Context) ([]model.Table, error) {
	return f.tables, nil
}

func (f *fakeFloor) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]model.Reservation, error) {
	f.calls++
	return f.reservations, nil
}

func openHours(open, closeT, last string) hours.EffectiveHours {
	o, c, l := timeofday.MustParse(open), timeofday.MustParse(closeT), timeofday.MustParse(last)
	return hours.EffectiveHours{OpenTime: &o, CloseTime: &c, LastReservationTime: &l}
}

func request(start string, party int) model.AvailabilityRequest {
	return model.AvailabilityRequest{
		PartySize:       party,
		ReservationDate: "2026-01-12",
		StartTime:       start,
		DurationMinutes: 90,
	}
}

func ids(tables []model.Table) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.ID
	}
	return out
}

var (
	twoTop   = model.Table{ID: "t2", TableNumber: "2", MinCapacity: 1, MaxCapacity: 2}
	fourTop  = model.Table{ID: "t4", TableNumber: "4", MinCapacity: 2, MaxCapacity: 4}
	eightTop = model.Table{ID: "t8", TableNumber: "8", MinCapacity: 5, MaxCapacity: 8}
	bar      = model.Table{ID: "bar", TableNumber: "Bar", MinCapacity: 1, MaxCapacity: 10, IsShared: true}
)

func newEvaluator(eff hours.EffectiveHours, floor *fakeFloor) *Evaluator {
	return NewEvaluator(fakeHours{eff: eff}, floor, zerolog.Nop())
}

func TestCheck_AfterLastReservationTime(t *testing.T) {
	floor := &fakeFloor{tables: []model.Table{fourTop}}
	e := newEvaluator(openHours("09:00", "22:00", "21:00"), floor)

	res, err := e.Check(context.Background(), request("21:30", 2))
	require.NoError(t, err)
	assert.False(t, res.IsValidTime)
	assert.Empty(t, res.AvailableTables)
	assert.NotNil(t, res.AvailableTables)
	assert.Zero(t, floor.calls, "invalid time must not fetch reservations")
}

func TestCheck_BoundariesAndClosing(t *testing.T) {
	floor := &fakeFloor{tables: []model.Table{fourTop}}
	e := newEvaluator(openHours("09:00", "22:00", "21:00"), floor)

	res, err := e.Check(context.Background(), request("21:00:00", 2))
	require.NoError(t, err)
	assert.True(t, res.IsValidTime, "last reservation time itself is bookable even if the end passes closing")

	res, err = e.Check(context.Background(), request("09:00", 2))
	require.NoError(t, err)
	assert.True(t, res.IsValidTime)

	res, err = e.Check(context.Background(), request("08:30", 2))
	require.NoError(t, err)
	assert.False(t, res.IsValidTime)
}

func TestCheck_ClosedDay(t *testing.T) {
	e := newEvaluator(hours.EffectiveHours{IsClosed: true}, &fakeFloor{tables: []model.Table{fourTop}})
	res, err := e.Check(context.Background(), request("12:00", 2))
	require.NoError(t, err)
	assert.False(t, res.IsValidTime)
	assert.Empty(t, res.AvailableTables)
}

func TestCheck_MisconfiguredSpecialDayIsClosed(t *testing.T) {
	e := NewEvaluator(fakeHours{
		eff: hours.EffectiveHours{IsClosed: true, IsSpecial: true},
		err: hours.ErrMisconfiguredSpecialDay,
	}, &fakeFloor{}, zerolog.Nop())

	res, err := e.Check(context.Background(), request("12:00", 2))
	require.NoError(t, err)
	assert.False(t, res.IsValidTime)
}

func TestCheck_ResolverFailure(t *testing.T) {
	boom := errors.New("timeout")
	e := NewEvaluator(fakeHours{err: boom}, &fakeFloor{}, zerolog.Nop())
	_, err := e.Check(context.Background(), request("12:00", 2))
	assert.ErrorIs(t, err, boom)
}

func TestCheck_InvalidRequest(t *testing.T) {
	e := newEvaluator(openHours("09:00", "22:00", "21:00"), &fakeFloor{})
	bad := []model.AvailabilityRequest{
		{PartySize: 0, ReservationDate: "2026-01-12", StartTime: "12:00", DurationMinutes: 90},
		{PartySize: 2, ReservationDate: "2026-01-12", StartTime: "12:00", DurationMinutes: 0},
		{PartySize: 2, ReservationDate: "12/01/2026", StartTime: "12:00", DurationMinutes: 90},
		{PartySize: 2, ReservationDate: "2026-01-12", StartTime: "noon", DurationMinutes: 90},
	}
	for _, req := range bad {
		_, err := e.Check(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	}
}

func TestCheck_CapacityFilter(t *testing.T) {
	floor := &fakeFloor{tables: []model.Table{twoTop, fourTop, eightTop}}
	e := newEvaluator(openHours("09:00", "22:00", "21:00"), floor)

	res, err := e.Check(context.Background(), request("19:00", 4))
	require.NoError(t, err)
	assert.True(t, res.IsValidTime)
	assert.Equal(t, []string{"t4"}, ids(res.AvailableTables))
}

func TestCheck_OverlapRules(t *testing.T) {
	floor := &fakeFloor{
		tables: []model.Table{fourTop, eightTop},
		reservations: []model.Reservation{
			// overlaps 19:00-20:30 and holds the four-top
			{ID: "r1", ReservationDate: "2026-01-12", StartTime: "18:00:00", DurationMinutes: 90, PartySize: 3, Status: model.StatusConfirmed, TableIDs: []string{"t4"}},
			// cancelled reservations never block
			{ID: "r2", ReservationDate: "2026-01-12", StartTime: "19:00:00", DurationMinutes: 90, PartySize: 6, Status: model.StatusCancelled, TableIDs: []string{"t8"}},
			// ends exactly when the request starts
			{ID: "r3", ReservationDate: "2026-01-12", StartTime: "17:30:00", DurationMinutes: 90, PartySize: 6, Status: model.StatusSeated, TableIDs: []string{"t8"}},
		},
	}
	e := newEvaluator(openHours("09:00", "22:00", "21:00"), floor)

	res, err := e.Check(context.Background(), request("19:00", 4))
	require.NoError(t, err)
	assert.Empty(t, res.AvailableTables)

	res, err = e.Check(context.Background(), request("19:00", 6))
	require.NoError(t, err)
	assert.Equal(t, []string{"t8"}, ids(res.AvailableTables))

	res, err = e.Check(context.Background(), request("20:00", 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"t4"}, ids(res.AvailableTables), "r1 ends 19:30")
}

func TestCheck_SharedTable(t *testing.T) {
	floor := &fakeFloor{
		tables: []model.Table{bar},
		reservations: []model.Reservation{
			{ID: "r1", ReservationDate: "2026-01-12", StartTime: "19:00", DurationMinutes: 120, PartySize: 4, Status: model.StatusConfirmed, TableIDs: []string{"bar"}},
			{ID: "r2", ReservationDate: "2026-01-12", StartTime: "19:30", DurationMinutes: 60, PartySize: 3, Status: model.StatusPending, TableIDs: []string{"bar"}},
		},
	}
	e := newEvaluator(openHours("09:00", "23:00", "22:00"), floor)

	res, err := e.Check(context.Background(), request("19:30", 3))
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, ids(res.AvailableTables), "4+3+3 fits within 10")

	res, err = e.Check(context.Background(), request("19:30", 4))
	require.NoError(t, err)
	assert.Empty(t, res.AvailableTables, "4+3+4 exceeds 10")
}

func TestQualifies(t *testing.T) {
	shared := model.Table{ID: "s", MinCapacity: 4, MaxCapacity: 8, IsShared: true}

	assert.True(t, Qualifies(shared, 0, false, 2), "shared tables ignore min_capacity while seats remain")
	assert.True(t, Qualifies(shared, 5, true, 3))
	assert.False(t, Qualifies(shared, 6, true, 3))
	assert.False(t, Qualifies(fourTop, 2, true, 2), "private tables never share")
	assert.False(t, Qualifies(fourTop, 0, false, 5))
	assert.False(t, Qualifies(fourTop, 0, false, 1))
}
