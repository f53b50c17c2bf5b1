package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/model"
)

type stubChecker struct {
	res   model.AvailabilityResult
	err   error
	calls int
}

func (s *stubChecker) Check(ctx context.Context, req model.AvailabilityRequest) (model.AvailabilityResult, error) {
	s.calls++
	return s.res, s.err
}

type stubAPI struct {
	res *model.AvailabilityResult
	err error
}

func (s stubAPI) CheckAvailability(ctx context.Context, req model.AvailabilityRequest) (*model.AvailabilityResult, error) {
	return s.res, s.err
}

func TestRemote_NormalisesNilTables(t *testing.T) {
	r := NewRemote(stubAPI{res: &model.AvailabilityResult{IsValidTime: false}})
	res, err := r.Check(context.Background(), request("12:00", 2))
	require.NoError(t, err)
	assert.NotNil(t, res.AvailableTables)
}

func TestRemote_RejectsBadRequestBeforeCalling(t *testing.T) {
	r := NewRemote(stubAPI{err: errors.New("should not be called")})
	_, err := r.Check(context.Background(), request("25:00", 2))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRemote_WrapsUpstreamError(t *testing.T) {
	boom := errors.New("502")
	r := NewRemote(stubAPI{err: boom})
	_, err := r.Check(context.Background(), request("12:00", 2))
	assert.ErrorIs(t, err, boom)
}

func TestConsensus_RemoteWins(t *testing.T) {
	local := &stubChecker{res: model.AvailabilityResult{IsValidTime: true, AvailableTables: []model.Table{fourTop, eightTop}}}
	remote := &stubChecker{res: model.AvailabilityResult{IsValidTime: true, AvailableTables: []model.Table{fourTop}}}

	c := NewConsensus(local, remote, zerolog.Nop())
	res, err := c.Check(context.Background(), request("12:00", 4))
	require.NoError(t, err)
	assert.Equal(t, []string{"t4"}, ids(res.AvailableTables))
	assert.Equal(t, 1, local.calls)
}

func TestConsensus_LocalFailureIgnored(t *testing.T) {
	local := &stubChecker{err: errors.New("no tables")}
	remote := &stubChecker{res: model.AvailabilityResult{IsValidTime: true, AvailableTables: []model.Table{}}}

	res, err := NewConsensus(local, remote, zerolog.Nop()).Check(context.Background(), request("12:00", 4))
	require.NoError(t, err)
	assert.True(t, res.IsValidTime)
}

func TestConsensus_RemoteFailureSkipsLocal(t *testing.T) {
	local := &stubChecker{}
	remote := &stubChecker{err: errors.New("down")}

	_, err := NewConsensus(local, remote, zerolog.Nop()).Check(context.Background(), request("12:00", 4))
	require.Error(t, err)
	assert.Zero(t, local.calls)
}

func TestDivergence(t *testing.T) {
	a := model.AvailabilityResult{IsValidTime: true, AvailableTables: []model.Table{fourTop, eightTop}}
	b := model.AvailabilityResult{IsValidTime: true, AvailableTables: []model.Table{eightTop, fourTop}}
	assert.Empty(t, divergence(a, b), "order does not matter")

	b.IsValidTime = false
	assert.Equal(t, "valid_time", divergence(a, b))

	c := model.AvailabilityResult{IsValidTime: true, AvailableTables: []model.Table{fourTop}}
	assert.Equal(t, "tables", divergence(a, c))
}

func TestNewChecker(t *testing.T) {
	e := newEvaluator(openHours("09:00", "22:00", "21:00"), &fakeFloor{})
	r := NewRemote(stubAPI{})

	c, err := NewChecker(SourceLocal, e, r, zerolog.Nop())
	require.NoError(t, err)
	assert.Same(t, e, c)

	c, err = NewChecker("", e, r, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Consensus{}, c)

	_, err = NewChecker("oracle", e, r, zerolog.Nop())
	assert.Error(t, err)
}
