package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/liamashdown/launchwatch/internal/dispatch"
	"github.com/liamashdown/launchwatch/internal/quota"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct {
	ready bool
}

func (f fakeStatus) Ready() bool { return f.ready }

func (f fakeStatus) Status() dispatch.Status {
	perHour := make([]quota.HourStatus, quota.HoursPerDay)
	for h := range perHour {
		perHour[h] = quota.HourStatus{Hour: h, Quota: 20}
	}
	perHour[9].Sent = 7
	return dispatch.Status{
		Status: quota.Status{
			Day:            "2026-07-01",
			DailyTarget:    500,
			TotalSentToday: 7,
			CurrentHour:    9,
			PerHour:        perHour,
		},
		QueueDepth: 3,
		Breaker:    "closed",
		Ready:      f.ready,
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(ready bool, pingers map[string]Pinger) http.Handler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewServer(0, fakeStatus{ready: ready}, pingers, log).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newTestServer(false, nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name    string
		ready   bool
		pingers map[string]Pinger
		code    int
	}{
		{"ready", true, map[string]Pinger{"database": ok}, http.StatusOK},
		{"dispatcher not started", false, nil, http.StatusServiceUnavailable},
		{"database down", true, map[string]Pinger{"database": down}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(tt.ready, tt.pingers), "/ready")
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestStatus(t *testing.T) {
	rec := get(t, newTestServer(true, nil), "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-07-01", body["day"])
	assert.Equal(t, 7.0, body["total_sent_today"])
	assert.Equal(t, 3.0, body["queue_depth"])
	assert.Equal(t, "closed", body["delivery_breaker"])
	assert.Len(t, body["per_hour"], 24)
}

func TestHourStatus(t *testing.T) {
	h := newTestServer(true, nil)

	rec := get(t, h, "/status/hours/9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hour":9,"sent":7,"quota":20}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/status/hours/24").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/status/hours/x").Code)
}

func TestMetrics(t *testing.T) {
	rec := get(t, newTestServer(true, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "launchwatch_")
}
