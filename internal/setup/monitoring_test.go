package setup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func get(t *testing.T, handler http.Handler, path string) (int, string) {
	t.Helper()

	req := httptest.NewRequestWithContext(t.Context(), http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)

	return rec.Code, string(body)
}

func TestMonitoringHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "all healthy",
			checks: map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "failing dependency",
			checks: map[string]HealthCheck{
				"redis": func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "redis unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := NewMonitoringRouter(&config.Monitoring{}, tt.checks, zap.NewNop())

			status, body := get(t, router, "/health")
			assert.Equal(t, tt.wantStatus, status)
			assert.Contains(t, body, tt.wantBody)
		})
	}
}

func TestMonitoringMetrics(t *testing.T) {
	t.Parallel()

	router := NewMonitoringRouter(&config.Monitoring{}, nil, zap.NewNop())

	status, body := get(t, router, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "go_goroutines")
}

func TestMonitoringPprofToggle(t *testing.T) {
	t.Parallel()

	status, _ := get(t, NewMonitoringRouter(&config.Monitoring{}, nil, zap.NewNop()), "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = get(t, NewMonitoringRouter(&config.Monitoring{EnablePprof: true}, nil, zap.NewNop()), "/debug/pprof/")
	assert.Equal(t, http.StatusOK, status)
}
