package overwatch

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

const blobBody = `{
	"_request": {"api_ver": 3, "route": "/api/v3/u/Player-1234/blob"},
	"eu": {"stats": {
		"quickplay": {
			"overall_stats": {"level": 42, "prestige": 2, "wins": 310},
			"game_stats": {"time_played": 97.5}
		},
		"competitive": {
			"overall_stats": {"comprank": 2875, "tier": "platinum", "games": 120, "wins": 64, "losses": 50, "ties": 6, "win_rate": 53.3}
		}
	}},
	"kr": null,
	"us": {"stats": {
		"quickplay": {
			"overall_stats": {"level": 5, "prestige": 0, "wins": 3},
			"game_stats": {"time_played": 2}
		},
		"competitive": {"overall_stats": {"comprank": null, "tier": null}}
	}}
}`

func setupPlugin(t *testing.T, handler http.HandlerFunc) *Plugin {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher := profiles.NewFetcher(PluginName, httpclient.New(httpclient.Options{
		RequestTimeout: 5 * time.Second,
		Retry:          config.Retry{MaxRetries: 1, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}, zap.NewNop()), zap.NewNop())

	return New(&config.Overwatch{
		BaseURL: server.URL + "/api/v3",
		Emojis: map[string]string{
			"overwatchicon": "<:ow:1>",
			"norating":      "<:none:2>",
			"platinum":      "<:plat:3>",
			"quickplay":     "<:qp:4>",
		},
	}, fetcher, zap.NewNop())
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    string
		want    Info
		wantErr string
	}{
		{
			name: "defaults",
			args: "Player#1234",
			want: Info{BattleTag: "Player-1234", Region: "eu", Platform: "pc"},
		},
		{
			name: "all parts with spacing and case",
			args: " Player#1234 ; US ; PSN ",
			want: Info{BattleTag: "Player-1234", Region: "us", Platform: "psn"},
		},
		{
			name: "empty region falls back",
			args: "Player#1234;;xbl",
			want: Info{BattleTag: "Player-1234", Region: "eu", Platform: "xbl"},
		},
		{
			name:    "unknown region",
			args:    "Player#1234;cn",
			wantErr: "available regions: eu, kr, us",
		},
		{
			name:    "unknown platform",
			args:    "Player#1234;eu;switch",
			wantErr: "available platforms: pc, xbl, psn",
		},
		{
			name:    "missing battletag",
			args:    ";eu;pc",
			wantErr: "BattleTag is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info, err := ParseArgs(tt.args)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, profiles.ErrInvalidArgs)
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, info)
		})
	}
}

func TestFieldRanked(t *testing.T) {
	t.Parallel()

	plugin := setupPlugin(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/u/Player-1234/blob", r.URL.Path)
		assert.Equal(t, "pc", r.URL.Query().Get("platform"))

		_, _ = w.Write([]byte(blobBody))
	})

	field, err := plugin.Field(t.Context(), `{"platform":"pc","region":"eu","battletag":"Player-1234","verifed":false}`)
	require.NoError(t, err)

	assert.Equal(t, "<:ow:1> Overwatch", field.Name)

	want := "**Level 242**\n" +
		"<:none:2> __**Competitive**__\n" +
		"<:plat:3> 2875 SR\n" +
		"Games played: 120\n" +
		" Wins: 64.\n Losses: 50.\n Ties: 6.\n" +
		"  (Win rate: 53.3%)\n" +
		"<:qp:4> __**Quick Play**__\n" +
		"Hours played: 97.5\n" +
		"Games won: 310"
	assert.Equal(t, want, field.Value)
}

func TestFieldUnranked(t *testing.T) {
	t.Parallel()

	plugin := setupPlugin(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(blobBody))
	})

	field, err := plugin.Field(t.Context(), `{"platform":"pc","region":"us","battletag":"Player-1234"}`)
	require.NoError(t, err)

	assert.Contains(t, field.Value, "**Level 5**\n")
	assert.Contains(t, field.Value, "<:none:2> "+placeholder+"\n")
	assert.Contains(t, field.Value, "Hours played: 2\nGames won: 3")
}

func TestFieldErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		region  string
		wantMsg string
	}{
		{
			name:    "profile not found",
			status:  http.StatusNotFound,
			region:  "eu",
			wantMsg: "This Overwatch profile could not be found.",
		},
		{
			name:    "region missing from blob",
			status:  http.StatusOK,
			region:  "kr",
			wantMsg: "This Overwatch profile could not be found.",
		},
		{
			name:    "api failure",
			status:  http.StatusInternalServerError,
			region:  "eu",
			wantMsg: "The Overwatch stats service is not available right now.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			plugin := setupPlugin(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(blobBody))
			})

			field, err := plugin.Field(t.Context(), `{"platform":"pc","region":"`+tt.region+`","battletag":"Player-1234"}`)
			require.NoError(t, err)
			assert.Equal(t, "❌ "+tt.wantMsg, field.Value)
		})
	}
}

func TestSetup(t *testing.T) {
	t.Parallel()

	plugin := setupPlugin(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v3/u/Missing-1/blob" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(blobBody))
	})

	stored, err := plugin.Setup(t.Context(), "Player#1234")
	require.NoError(t, err)
	assert.JSONEq(t, `{"platform":"pc","region":"eu","battletag":"Player-1234","verifed":false}`, stored)

	_, err = plugin.Setup(t.Context(), "Missing#1")
	require.Error(t, err)
	assert.Equal(t, ErrCodeProfileNotFound, profiles.ErrorCode(err))
}

func TestTierEmojiFallback(t *testing.T) {
	t.Parallel()

	plugin := New(&config.Overwatch{}, nil, zap.NewNop())

	assert.Equal(t, defaultEmojis["diamond"], plugin.tierEmoji("diamond"))
	assert.Equal(t, defaultEmojis["norating"], plugin.tierEmoji("unknown"))
	assert.Equal(t, defaultEmojis["norating"], plugin.tierEmoji(""))
}
