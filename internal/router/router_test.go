package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/concert-reservation/internal/config"
	"github.com/iliyamo/concert-reservation/internal/middleware"
	"github.com/iliyamo/concert-reservation/internal/model"
	"github.com/iliyamo/concert-reservation/internal/repository"
)

type apiError struct {
	StatusCode int             `json:"statusCode"`
	Message    json.RawMessage `json:"message"`
	Error      string          `json:"error"`
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	return New(Deps{
		Config: config.Config{LogLevel: log.OFF, CORSOrigins: []string{"*"}},
		Ledger: repository.NewReservationLedger(),
	})
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createConcert(t *testing.T, e *echo.Echo, name string, seats int) model.Concert {
	t.Helper()
	body, err := json.Marshal(map[string]any{"name": name, "description": "desc", "totalSeats": seats})
	require.NoError(t, err)
	rec := do(t, e, http.MethodPost, "/concerts", string(body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Concert](t, rec)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateConcert(t *testing.T) {
	e := newTestServer(t)

	t.Run("trims and returns the concert", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, "/concerts", `{"name":"  NIKI Live ","description":" One night only ","totalSeats":10}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		var raw map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		assert.Equal(t, "NIKI Live", raw["name"])
		assert.Equal(t, "One night only", raw["description"])
		assert.EqualValues(t, 10, raw["totalSeats"])
		assert.Equal(t, []any{}, raw["reservedByUserIds"])
		assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, raw["createdAt"])
		assert.NotEmpty(t, raw["id"])
	})

	t.Run("rejects whitespace-only name and description", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, "/concerts", `{"name":"   ","description":"   ","totalSeats":100}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		body := decode[apiError](t, rec)
		var msgs []string
		require.NoError(t, json.Unmarshal(body.Message, &msgs))
		assert.ElementsMatch(t, []string{"name should not be empty", "description should not be empty"}, msgs)
		assert.Equal(t, "Bad Request", body.Error)
	})

	t.Run("rejects out of range seats", func(t *testing.T) {
		for body, want := range map[string]string{
			`{"name":"a","description":"b","totalSeats":0}`:     "totalSeats must not be less than 1",
			`{"name":"a","description":"b","totalSeats":50001}`: "totalSeats must not be greater than 50000",
			`{"name":"a","description":"b","totalSeats":1.5}`:   "totalSeats must be an integer number",
			`{"name":"a","description":"b","totalSeats":"10"}`:  "totalSeats must be an integer number",
		} {
			rec := do(t, e, http.MethodPost, "/concerts", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.Contains(t, rec.Body.String(), want, body)
		}
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		rec := do(t, e, http.MethodPost, "/concerts", `{"name":"a","description":"b","totalSeats":1,"price":10}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "property price should not exist")
	})
}

func TestReservationFlow(t *testing.T) {
	e := newTestServer(t)
	c := createConcert(t, e, "Coldplay", 1)
	reserve := "/concerts/" + c.ID + "/reserve"
	cancel := "/concerts/" + c.ID + "/cancel"

	rec := do(t, e, http.MethodPost, reserve, `{"userId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	list := decode[[]model.ConcertView](t, do(t, e, http.MethodGet, "/concerts", ""))
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].AvailableSeats)
	assert.True(t, list[0].SoldOut)

	rec = do(t, e, http.MethodPost, reserve, `{"userId":"u2"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[apiError](t, rec)
	assert.JSONEq(t, `"No seats available for this concert"`, string(body.Message))

	rec = do(t, e, http.MethodPost, reserve, `{"userId":"u1"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "You already reserved this concert")

	rec = do(t, e, http.MethodPost, cancel, `{"userId":"u2"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Reservation not found for this user")

	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, cancel, `{"userId":"u1"}`).Code)
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, reserve, `{"userId":"u2"}`).Code)

	view := decode[model.ConcertView](t, do(t, e, http.MethodGet, "/concerts/"+c.ID, ""))
	assert.Equal(t, []string{"u2"}, view.ReservedByUserIDs)
}

func TestReserveValidation(t *testing.T) {
	e := newTestServer(t)
	c := createConcert(t, e, "NIKI Live", 10)

	rec := do(t, e, http.MethodPost, "/concerts/"+c.ID+"/reserve", `{"userId":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "userId should not be empty")

	rec = do(t, e, http.MethodPost, "/concerts/missing/reserve", `{"userId":"u1"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Concert not found")
}

func TestDeleteKeepsHistory(t *testing.T) {
	e := newTestServer(t)
	c := createConcert(t, e, "Lorde", 10)

	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/concerts/"+c.ID+"/reserve", `{"userId":"u1"}`).Code)
	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/concerts/"+c.ID+"/cancel", `{"userId":"u1"}`).Code)

	rec := do(t, e, http.MethodDelete, "/concerts/"+c.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodDelete, "/concerts/"+c.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodGet, "/concerts/"+c.ID, "").Code)
	assert.Empty(t, decode[[]model.ConcertView](t, do(t, e, http.MethodGet, "/concerts", "")))

	admin := decode[[]model.HistoryEntry](t, do(t, e, http.MethodGet, "/concerts/history", ""))
	require.Len(t, admin, 4)
	got := make([]model.HistoryAction, 0, len(admin))
	for _, h := range admin {
		got = append(got, h.Action)
	}
	assert.ElementsMatch(t, []model.HistoryAction{
		model.ActionCreate, model.ActionReserve, model.ActionCancel, model.ActionDelete,
	}, got)

	user := decode[[]model.HistoryEntry](t, do(t, e, http.MethodGet, "/concerts/history?userId=u1", ""))
	require.Len(t, user, 2)
	for _, h := range user {
		assert.Equal(t, "u1", h.UserID)
		assert.Equal(t, "Lorde", h.ConcertName)
	}
}

func TestHistoryRequiresNonBlankUserID(t *testing.T) {
	e := newTestServer(t)

	for _, target := range []string{"/concerts/history?userId=", "/concerts/history?userId=%20%20"} {
		rec := do(t, e, http.MethodGet, target, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "userId is required")
	}
}

func TestMetrics(t *testing.T) {
	e := newTestServer(t)
	a := createConcert(t, e, "A", 10)
	b := createConcert(t, e, "B", 20)

	for _, step := range []struct{ path, user string }{
		{"/concerts/" + a.ID + "/reserve", "u1"},
		{"/concerts/" + a.ID + "/reserve", "u2"},
		{"/concerts/" + b.ID + "/reserve", "u1"},
		{"/concerts/" + a.ID + "/cancel", "u2"},
	} {
		require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, step.path, `{"userId":"`+step.user+`"}`).Code)
	}

	rec := do(t, e, http.MethodGet, "/concerts/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"totalSeats":30,"reservedSeats":2,"canceledCount":1}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	rec := do(t, newTestServer(t), http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode[apiError](t, rec)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)
	assert.JSONEq(t, `"Cannot GET /nope"`, string(body.Message))
	assert.Equal(t, "Not Found", body.Error)
}

func newRedisServer(t *testing.T, capacity int) *echo.Echo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache := middleware.NewResponseCache(config.CacheConfig{
		Enabled: true,
		Methods: map[string]bool{"GET": true},
		Prefix:  "concerts-cache",
		TTL:     time.Minute,
	}, rdb)
	return New(Deps{
		Config: config.Config{LogLevel: log.OFF, CORSOrigins: []string{"*"}},
		Ledger: repository.NewReservationLedger(repository.WithObserver(cache.InvalidateOnCommit)),
		Cache:  cache,
		RateLimit: config.RateLimitConfig{
			Enabled:        true,
			Capacity:       capacity,
			RefillTokens:   1,
			RefillInterval: time.Minute,
			Prefix:         "concerts-rl",
		},
		Redis: rdb,
	})
}

func TestCachedListFollowsMutations(t *testing.T) {
	e := newRedisServer(t, 10)

	rec := do(t, e, http.MethodGet, "/concerts", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, e, http.MethodGet, "/concerts", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `[]`, rec.Body.String())

	c := createConcert(t, e, "Radiohead", 1)
	rec = do(t, e, http.MethodGet, "/concerts", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	list := decode[[]model.ConcertView](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, 1, list[0].AvailableSeats)

	require.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/concerts/"+c.ID+"/reserve", `{"userId":"u1"}`).Code)
	rec = do(t, e, http.MethodGet, "/concerts", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	list = decode[[]model.ConcertView](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].AvailableSeats)
	assert.True(t, list[0].SoldOut)

	rec = do(t, e, http.MethodGet, "/concerts/metrics", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"totalSeats":1,"reservedSeats":1,"canceledCount":0}`, rec.Body.String())
}

func TestSeatRequestsAreLimitedPerUser(t *testing.T) {
	e := newRedisServer(t, 2)
	c := createConcert(t, e, "Muse", 10)
	reserve := "/concerts/" + c.ID + "/reserve"

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodPost, reserve, `{"userId":"u1"}`).Code)
	assert.Equal(t, http.StatusConflict, do(t, e, http.MethodPost, reserve, `{"userId":"u1"}`).Code)

	rec := do(t, e, http.MethodPost, reserve, `{"userId":"u1"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decode[apiError](t, rec)
	assert.Equal(t, http.StatusTooManyRequests, body.StatusCode)
	assert.Equal(t, "Too Many Requests", body.Error)

	assert.Equal(t, http.StatusOK, do(t, e, http.MethodPost, reserve, `{"userId":"u2"}`).Code)
	assert.Equal(t, http.StatusOK, do(t, e, http.MethodPost, "/concerts/"+c.ID+"/cancel", `{"userId":"u2"}`).Code)
}
