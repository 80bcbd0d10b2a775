package lastfm

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/robalyx/snowball/internal/cogs/profiles"
	httpclient "github.com/robalyx/snowball/internal/setup/client"
	"github.com/robalyx/snowball/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const recentTracksBody = `{"recenttracks":{"track":[
	{"name":"Live (Remix)","url":"https://www.last.fm/music/Band/_/Live+(Remix)","artist":{"#text":"The_Band"},"@attr":{"nowplaying":"true"}},
	{"name":"Second","url":"https://www.last.fm/music/Band/_/Second","artist":{"#text":"Band"},"date":{"uts":"1772359200","#text":"01 Mar 2026, 10:00"}},
	{"name":"Third","url":"https://www.last.fm/music/Band/_/Third","artist":{"#text":"Band"},"date":{"uts":"1772362800","#text":"01 Mar 2026, 11:00"}},
	{"name":"Fourth","url":"https://www.last.fm/music/Band/_/Fourth","artist":{"#text":"Band"},"date":{"uts":"1772362800"}}
]}}`

func setupPlugin(t *testing.T, handler http.HandlerFunc) *Plugin {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher := profiles.NewFetcher(PluginName, httpclient.New(httpclient.Options{
		RequestTimeout: 5 * time.Second,
		Retry:          config.Retry{MaxRetries: 1, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, zap.NewNop()), zap.NewNop())

	plugin := New(&config.LastFM{
		BaseURL:    server.URL + "/2.0/",
		APIKey:     "key",
		LogoEmoji:  "🎧",
		GhostEmoji: "👻",
	}, fetcher, zap.NewNop())
	plugin.now = func() time.Time { return fixedNow }

	return plugin
}

func TestFieldRendersTracks(t *testing.T) {
	t.Parallel()

	plugin := setupPlugin(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user.getrecenttracks", r.URL.Query().Get("method"))
		assert.Equal(t, "alice", r.URL.Query().Get("user"))
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))

		_, _ = w.Write([]byte(recentTracksBody))
	})

	field, err := plugin.Field(t.Context(), `{"username":"alice"}`)
	require.NoError(t, err)

	assert.Equal(t, "🎧 Last.fm", field.Name)
	require.NotNil(t, field.Inline)
	assert.True(t, *field.Inline)

	want := "🎵 [Live (Remix) by The\\_Band](https://www.last.fm/music/Band/_/Live+%28Remix%29)\n" +
		"[Second by Band](https://www.last.fm/music/Band/_/Second) `2 hours ago`\n" +
		"[Third by Band](https://www.last.fm/music/Band/_/Third) `1 hour ago`\n"
	assert.Equal(t, want, field.Value)
}

func TestFieldSingleTrackObject(t *testing.T) {
	t.Parallel()

	plugin := setupPlugin(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"recenttracks":{"track":{"name":"Only","url":"u","artist":{"#text":"A"},"@attr":{"nowplaying":"true"}}}}`))
	})

	field, err := plugin.Field(t.Context(), `{"username":"alice"}`)
	require.NoError(t, err)
	assert.Equal(t, "🎵 [Only by A](u)\n", field.Value)
}

func TestFieldEmpty(t *testing.T) {
	t.Parallel()

	plugin := setupPlugin(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"recenttracks":{"track":[]}}`))
	})

	field, err := plugin.Field(t.Context(), `{"username":"alice"}`)
	require.NoError(t, err)
	assert.Equal(t, "👻 nothing scrobbled yet", field.Value)
}

func TestFieldErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "http not found",
			status:  http.StatusNotFound,
			body:    `{"error":6,"message":"User not found"}`,
			wantMsg: "❌ This Last.fm user could not be found.",
		},
		{
			name:    "api error six",
			status:  http.StatusOK,
			body:    `{"error":6,"message":"User not found"}`,
			wantMsg: "❌ This Last.fm user could not be found.",
		},
		{
			name:    "server error",
			status:  http.StatusServiceUnavailable,
			body:    `{}`,
			wantMsg: "❌ Last.fm is having problems right now, try again later.",
		},
		{
			name:    "other error",
			status:  http.StatusForbidden,
			body:    `{"error":10,"message":"Invalid API key"}`,
			wantMsg: "❌ Could not get recent tracks.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plugin := setupPlugin(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			field, err := plugin.Field(t.Context(), `{"username":"alice"}`)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMsg, field.Value)
		})
	}
}

func TestCheckResponseCodes(t *testing.T) {
	t.Parallel()

	assert.NoError(t, checkResponse(http.StatusOK, []byte(`{"recenttracks":{}}`)))
	assert.Equal(t, ErrCodeNotFound, profiles.ErrorCode(checkResponse(http.StatusNotFound, nil)))
	assert.Equal(t, ErrCodeServerError, profiles.ErrorCode(checkResponse(http.StatusBadGateway, nil)))
	assert.Equal(t, ErrCodeUnknown, profiles.ErrorCode(checkResponse(http.StatusOK, []byte(`{"error":29}`))))
}

func TestSetup(t *testing.T) {
	t.Parallel()

	plugin := setupPlugin(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user") == "ghost" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(`{"recenttracks":{"track":[]}}`))
	})

	stored, err := plugin.Setup(t.Context(), "  alice ")
	require.NoError(t, err)
	assert.JSONEq(t, `{"username":"alice"}`, stored)

	_, err = plugin.Setup(t.Context(), "ghost")
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, profiles.ErrorCode(err))

	_, err = plugin.Setup(t.Context(), "two words")
	require.ErrorIs(t, err, profiles.ErrInvalidArgs)
}
