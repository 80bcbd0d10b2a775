package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testOptions() Options {
	return Options{
		RequestTimeout: 5 * time.Second,
		Retry:          config.Retry{MaxRetries: 1, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		CircuitBreaker: config.CircuitBreaker{MaxRequests: 1, Interval: time.Minute, Timeout: time.Second},
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		maxSize    int64
		wantStatus int
		wantBody   string
	}{
		{name: "ok", status: http.StatusOK, body: `{"ok":true}`, maxSize: 1024, wantStatus: http.StatusOK, wantBody: `{"ok":true}`},
		{name: "truncated", status: http.StatusOK, body: "0123456789", maxSize: 4, wantStatus: http.StatusOK, wantBody: "0123"},
		{name: "not found", status: http.StatusNotFound, body: "missing", maxSize: 1024, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			status, body, err := Get(t.Context(), New(testOptions(), zap.NewNop()), server.URL, tt.maxSize)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)

			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

func TestGetUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, _, err := Get(t.Context(), New(testOptions(), zap.NewNop()), url, 1024)
	require.Error(t, err)
}
