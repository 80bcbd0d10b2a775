package profiles

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpclient "github.com/robalyx/snowball/internal/setup/client"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupFetcher(t *testing.T, handler http.HandlerFunc) (*Fetcher, string) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := httpclient.New(httpclient.Options{
		RequestTimeout: 5 * time.Second,
		Retry:          config.Retry{MaxRetries: 1, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, zap.NewNop())

	return NewFetcher("test", client, zap.NewNop()), server.URL
}

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	fetcher, url := setupFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, httpclient.UserAgent, r.Header.Get("User-Agent"))
		assert.Equal(t, "alice", r.URL.Query().Get("user"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	body, err := fetcher.Fetch(t.Context(), Request{URL: url + "?user=alice"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestFetchCheckMapsStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{name: "ok", status: http.StatusOK},
		{name: "not found", status: http.StatusNotFound, wantCode: "NOTFOUND"},
		{name: "server error", status: http.StatusServiceUnavailable, wantCode: "SERVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fetcher, url := setupFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := fetcher.Fetch(t.Context(), Request{
				URL: url,
				Check: func(status int, _ []byte) error {
					switch {
					case status == http.StatusNotFound:
						return &APIError{Code: "NOTFOUND"}
					case status >= http.StatusInternalServerError:
						return &APIError{Code: "SERVER"}
					default:
						return nil
					}
				},
			})

			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, ErrorCode(err))
		})
	}
}

func TestFetchDefaultCheck(t *testing.T) {
	t.Parallel()

	fetcher, url := setupFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := fetcher.Fetch(t.Context(), Request{URL: url})
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestFetchUnreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := httpclient.New(httpclient.Options{RequestTimeout: time.Second}, zap.NewNop())

	_, err := NewFetcher("test", client, zap.NewNop()).Fetch(t.Context(), Request{URL: url})
	require.Error(t, err)
	assert.Empty(t, ErrorCode(err))
}
