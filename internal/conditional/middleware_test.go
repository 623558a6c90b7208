package conditional

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorrisk/internal/core"
	"vendorrisk/internal/freshness"
)

type harness struct {
	e         *echo.Echo
	registry  *freshness.Registry
	responses *ResponseCache
	calls     atomic.Int32
	clock     int64
}

func newHarness(t *testing.T, handler func(c echo.Context) error) *harness {
	t.Helper()
	h := &harness{clock: 1_000}
	h.registry = freshness.New(nil, freshness.WithClock(func() int64 { return h.clock }))
	responses, err := NewResponseCache(16)
	require.NoError(t, err)
	h.responses = responses

	h.e = echo.New()
	h.e.HTTPErrorHandler = func(err error, c echo.Context) {
		var apiErr *core.APIError
		if errors.As(err, &apiErr) {
			_ = c.JSON(apiErr.HTTPStatusCode(), apiErr.ToJSON())
			return
		}
		_ = c.JSON(http.StatusInternalServerError, map[string]any{"error": err.Error()})
	}

	wrapped := func(c echo.Context) error {
		h.calls.Add(1)
		return handler(c)
	}
	mw := Middleware(h.registry, h.responses, func(c echo.Context) (string, error) {
		if c.QueryParam("bad") != "" {
			return "", errors.New("bad key")
		}
		if c.QueryParam("deny") != "" {
			return "", core.NewForbiddenError("Access denied")
		}
		return "view:" + c.Param("id"), nil
	})
	h.e.GET("/views/:id", wrapped, mw)
	h.e.GET("/views/:id/:timestamp", wrapped, mw)
	return h
}

func okHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, core.OKWithMessage("fetched", map[string]string{"id": c.Param("id")}))
}

func (h *harness) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func lastUpdated(t *testing.T, rec *httptest.ResponseRecorder) int64 {
	t.Helper()
	raw, ok := decode(t, rec)["lastUpdated"]
	require.True(t, ok, "lastUpdated missing from %s", rec.Body.String())
	v, err := strconv.ParseInt(string(raw), 10, 64)
	require.NoError(t, err)
	return v
}

func TestMiddleware_MissStampsRegistryAndCaches(t *testing.T) {
	h := newHarness(t, okHandler)

	rec := h.get(t, "/views/a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), h.calls.Load())

	stamp := lastUpdated(t, rec)
	got, ok := h.registry.Get("view:a")
	require.True(t, ok)
	assert.Equal(t, got, stamp)

	entry, ok := h.responses.Get("view:a")
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"a"}`, string(entry.Data))
	assert.Equal(t, stamp, entry.Stamp)
}

func TestMiddleware_SecondRequestIsLocalHit(t *testing.T) {
	h := newHarness(t, okHandler)

	first := h.get(t, "/views/a")
	second := h.get(t, "/views/a")

	assert.Equal(t, int32(1), h.calls.Load())
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, lastUpdated(t, first), lastUpdated(t, second))
	assert.JSONEq(t, `{"id":"a"}`, string(decode(t, second)["data"]))
	assert.JSONEq(t, `"fetched"`, string(decode(t, second)["message"]))
}

func TestMiddleware_MatchingTimestampIsNotModified(t *testing.T) {
	h := newHarness(t, okHandler)
	stamp := lastUpdated(t, h.get(t, "/views/a"))

	tests := []struct {
		name   string
		target string
	}{
		{"query parameter", "/views/a?timestamp=" + strconv.FormatInt(stamp, 10)},
		{"route parameter", "/views/a/" + strconv.FormatInt(stamp, 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := h.calls.Load()
			rec := h.get(t, tt.target)
			assert.Equal(t, http.StatusNotModified, rec.Code)
			assert.Empty(t, rec.Body.String())
			assert.Equal(t, before, h.calls.Load(), "handler must not run")
		})
	}
}

func TestMiddleware_MalformedTimestampIsIgnored(t *testing.T) {
	h := newHarness(t, okHandler)
	h.get(t, "/views/a")

	for _, raw := range []string{"abc", "-5", "0", "12.5"} {
		rec := h.get(t, "/views/a?timestamp="+raw)
		assert.Equal(t, http.StatusOK, rec.Code, raw)
	}
	assert.Equal(t, int32(1), h.calls.Load(), "malformed validators fall through to the local hit")
}

func TestMiddleware_MutationMakesOldValidatorStale(t *testing.T) {
	h := newHarness(t, okHandler)
	old := lastUpdated(t, h.get(t, "/views/a"))

	h.clock = 2_000
	h.registry.Touch("view:a")

	rec := h.get(t, "/views/a?timestamp="+strconv.FormatInt(old, 10))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), h.calls.Load(), "stale validator and stale local entry force recompute")
	assert.Greater(t, lastUpdated(t, rec), old)
}

func TestMiddleware_RefreshBypassesBothShortCircuits(t *testing.T) {
	h := newHarness(t, okHandler)
	stamp := lastUpdated(t, h.get(t, "/views/a"))

	target := "/views/a?refresh=true&timestamp=" + strconv.FormatInt(stamp, 10)
	first := h.get(t, target)
	second := h.get(t, "/views/a?refresh=true")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, int32(3), h.calls.Load())
	assert.Greater(t, lastUpdated(t, second), lastUpdated(t, first), "writes still happen on refresh")
}

func TestMiddleware_ErrorsAreNotCached(t *testing.T) {
	h := newHarness(t, func(c echo.Context) error {
		return core.NewNotFoundError("Vendor not found")
	})

	rec := h.get(t, "/views/a")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	_, touched := h.registry.Get("view:a")
	assert.False(t, touched)
	assert.Zero(t, h.responses.Len())
}

func TestMiddleware_NonSuccessEnvelopesPassThrough(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
		status  int
	}{
		{
			name: "written 403",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "Vendor not verified"})
			},
			status: http.StatusForbidden,
		},
		{
			name: "missing success flag",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]any{"data": []int{1}})
			},
			status: http.StatusOK,
		},
		{
			name: "null data",
			handler: func(c echo.Context) error {
				return c.JSON(http.StatusOK, core.OK(nil))
			},
			status: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.handler)
			rec := h.get(t, "/views/a")
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "lastUpdated")
			_, touched := h.registry.Get("view:a")
			assert.False(t, touched)
			assert.Zero(t, h.responses.Len())

			h.get(t, "/views/a")
			assert.Equal(t, int32(2), h.calls.Load())
		})
	}
}

func TestMiddleware_KeyErrors(t *testing.T) {
	h := newHarness(t, okHandler)

	rec := h.get(t, "/views/a?bad=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.get(t, "/views/a?deny=1")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Zero(t, h.calls.Load())
}

func TestMiddleware_ConcurrentMutationIsNotMasked(t *testing.T) {
	var h *harness
	h = newHarness(t, func(c echo.Context) error {
		// A write lands while the view is being computed.
		h.registry.Touch("view:a")
		return okHandler(c)
	})

	rec := h.get(t, "/views/a")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "lastUpdated")
	assert.Zero(t, h.responses.Len())
}

func TestMiddleware_Skipper(t *testing.T) {
	registry := freshness.New(nil)
	e := echo.New()
	var calls int
	e.GET("/v", func(c echo.Context) error {
		calls++
		return okHandler(c)
	}, WithConfig(Config{
		Registry: registry,
		Key:      Static("static"),
		Skipper:  func(c echo.Context) bool { return c.QueryParam("name") != "" },
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v?name=acme", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, registry.Len())
}

func TestMiddleware_ResponseSizeIncludesStamp(t *testing.T) {
	h := newHarness(t, okHandler)
	var size int64
	h.e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			size = c.Response().Size
			return err
		}
	})

	rec := h.get(t, "/views/1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, decode(t, rec), "lastUpdated")
	assert.Equal(t, int64(rec.Body.Len()), size)
}
