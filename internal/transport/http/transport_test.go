package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterRejectsBurstOverflowPerClient(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	fixed := time.Date(2024, time.January, 10, 8, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	handler := limiter.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, call("10.0.0.1:1000").Code)
	require.Equal(t, http.StatusOK, call("10.0.0.1:1001").Code)

	rejected := call("10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rejected.Code)
	require.Equal(t, "1", rejected.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, call("10.0.0.2:1000").Code, "other clients keep their own bucket")

	fixed = fixed.Add(time.Second)
	require.Equal(t, http.StatusOK, call("10.0.0.1:1003").Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	limiter := NewRateLimiter(RateLimitConfig{})
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		limiter.Wrap(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/pot", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	require.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "/v1/pot", record["path"])
	require.EqualValues(t, http.StatusTeapot, record["status"])
	require.Equal(t, seen, record["request_id"])
}

func TestRequestLoggerReusesInboundID(t *testing.T) {
	inbound := uuid.NewString()
	handler := RequestLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, inbound, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\n")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.NotEqual(t, "not-a-uuid\n", rec.Header().Get(RequestIDHeader))
}

func TestNewServerCopiesTimeouts(t *testing.T) {
	srv := NewServer(DefaultServerConfig(":0"), http.NotFoundHandler())
	require.Equal(t, ":0", srv.Addr)
	require.Equal(t, 15*time.Second, srv.ReadTimeout)
	require.Equal(t, 60*time.Second, srv.IdleTimeout)
}
