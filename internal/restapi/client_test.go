package restapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablebook/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newCachedClient(t *testing.T, srv *httptest.Server) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	c := NewClient(srv.URL, "secret", time.Second)
	c.UseRedisCache(rdb, time.Minute)
	return c, mr
}

func TestClient_SendsBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []model.WeeklyHours{})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL+"/", "secret", 0).ListHours(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", auth)
}

func TestGetSpecialHoursByDate_NotFoundIsNil(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/special-hours/2026-01-12", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Special hours not found"})
	}))
	defer srv.Close()

	c, _ := newCachedClient(t, srv)
	day, err := c.GetSpecialHoursByDate(context.Background(), "2026-01-12")
	require.NoError(t, err)
	assert.Nil(t, day)

	day, err = c.GetSpecialHoursByDate(context.Background(), "2026-01-12")
	require.NoError(t, err)
	assert.Nil(t, day)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "miss is cached too")
}

func TestGetSpecialHoursByDate_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0).GetSpecialHoursByDate(context.Background(), "2026-01-12")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Empty(t, apiErr.Detail)
}

func TestCreateReservation_DetailError(t *testing.T) {
	var posts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Table 4 is already booked"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0).CreateReservation(context.Background(), model.ReservationCreate{
		PartySize: 2, ReservationDate: "2026-01-12", StartTime: "19:00:00", DurationMinutes: 90,
		Customer: model.Customer{Name: "Ada"}, TableIDs: []string{"t4"},
	})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Table 4 is already booked", apiErr.Detail)
	assert.Equal(t, "server error: 409 - Table 4 is already booked", err.Error())
	assert.EqualValues(t, 1, atomic.LoadInt32(&posts), "no retry")
}

func TestDecodeError_ValidationList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 0).CheckAvailability(context.Background(), model.AvailabilityRequest{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Detail, "field required")
}

func TestListTables_CacheAndInvalidate(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			atomic.AddInt32(&gets, 1)
			writeJSON(w, http.StatusOK, []model.Table{{ID: "t1", TableNumber: "1", MinCapacity: 1, MaxCapacity: 4}})
		case http.MethodPost:
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotContains(t, body, "id")
			writeJSON(w, http.StatusCreated, model.Table{ID: "t2", TableNumber: "2", MinCapacity: 1, MaxCapacity: 2})
		}
	}))
	defer srv.Close()

	c, mr := newCachedClient(t, srv)
	ctx := context.Background()

	_, err := c.ListTables(ctx)
	require.NoError(t, err)
	tables, err := c.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&gets))
	assert.True(t, mr.Exists(cachePrefix+keyTables))

	_, err = c.CreateTable(ctx, model.Table{TableNumber: "2", MinCapacity: 1, MaxCapacity: 2})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cachePrefix+keyTables))

	_, err = c.ListTables(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&gets))
}

func TestCreateTable_ValidatesLocally(t *testing.T) {
	c := NewClient("http://127.0.0.1:0", "", 0)
	_, err := c.CreateTable(context.Background(), model.Table{TableNumber: "9", MinCapacity: 6, MaxCapacity: 4})
	assert.ErrorIs(t, err, model.ErrInvalidCapacity)
}

func TestSetSpecialHours_InvalidatesAllSpecialKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut:
			writeJSON(w, http.StatusOK, model.SpecialDay{ID: "s1", Date: "2026-12-24", IsClosed: true})
		case r.URL.Path == "/special-hours":
			writeJSON(w, http.StatusOK, []model.SpecialDay{})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "not found"})
		}
	}))
	defer srv.Close()

	c, mr := newCachedClient(t, srv)
	ctx := context.Background()

	_, err := c.ListSpecialHours(ctx, "2026-12-01", "2026-12-31")
	require.NoError(t, err)
	_, err = c.GetSpecialHoursByDate(ctx, "2026-12-24")
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 2)

	_, err = c.SetSpecialHours(ctx, model.SpecialDay{Date: "2026-12-24", Name: "Christmas Eve", IsClosed: true})
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestListReservations_QueryAndNoCache(t *testing.T) {
	var gets int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&gets, 1)
		q := r.URL.Query()
		assert.Equal(t, "2026-01-12", q.Get("date_from"))
		assert.Equal(t, "2026-01-12", q.Get("date_to"))
		assert.Equal(t, "confirmed", q.Get("status"))
		assert.Equal(t, "t4", q.Get("table_id"))
		writeJSON(w, http.StatusOK, []model.Reservation{{ID: "r1", StartTime: "19:00:00"}})
	}))
	defer srv.Close()

	c, _ := newCachedClient(t, srv)
	filter := model.ReservationFilter{DateFrom: "2026-01-12", DateTo: "2026-01-12", Status: model.StatusConfirmed, TableID: "t4"}
	for i := 0; i < 2; i++ {
		res, err := c.ListReservations(context.Background(), filter)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "19:00:00", res[0].StartTime, "full precision kept")
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&gets))
}

func TestUpdateReservationStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/reservations/r1/status", r.URL.Path)
		assert.Equal(t, "seated", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, model.Reservation{ID: "r1", Status: model.StatusSeated})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "", 0).UpdateReservationStatus(context.Background(), "r1", model.StatusSeated)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSeated, res.Status)
}

func TestDeleteReservation_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, "", 0).DeleteReservation(context.Background(), "r1"))
}

func TestRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []model.WeeklyHours{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	c.UseRateLimit(0.001, 1)

	_, err := c.ListHours(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.ListHours(ctx)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 0)
	assert.Error(t, c.HealthCheck(context.Background()))
	c.SetHealthPath("/status")
	assert.NoError(t, c.HealthCheck(context.Background()))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&APIError{Status: 404}))
	assert.False(t, IsNotFound(&APIError{Status: 500}))
	assert.False(t, IsNotFound(nil))
}
