// Package lastfm shows the most recent scrobbles of a Last.fm user.
package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/bot/utils"
	"github.com/robalyx/snowball/internal/cogs/profiles"
	"github.com/robalyx/snowball/internal/setup/config"
	"go.uber.org/zap"
)

// Error codes reported by the Last.fm plugin.
const (
	ErrCodeNotFound    = "LASTFM_GETRECENTS_ERR_NOTFOUND"
	ErrCodeServerError = "LASTFM_GETRECENTS_ERR_SERVERERROR"
	ErrCodeUnknown     = "LASTFM_GETRECENTS_ERR_UNKNOWN"
)

const (
	// PluginName is the key the plugin is stored under.
	PluginName = "lastfm"
	trackLimit = 3

	// errorUserNotFound is the Last.fm API error for an invalid user.
	errorUserNotFound = 6
)

// Info is the stored plugin configuration.
type Info struct {
	Username string `json:"username"`
}

// Plugin implements profiles.Plugin for Last.fm.
type Plugin struct {
	cfg     *config.LastFM
	fetcher *profiles.Fetcher
	logger  *zap.Logger
	now     func() time.Time
}

// New creates the Last.fm plugin.
func New(cfg *config.LastFM, fetcher *profiles.Fetcher, logger *zap.Logger) *Plugin {
	return &Plugin{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.Named("lastfm"),
		now:     time.Now,
	}
}

// Name implements profiles.Plugin.
func (p *Plugin) Name() string {
	return PluginName
}

// SetupArgs implements profiles.Plugin.
func (p *Plugin) SetupArgs() string {
	return "<last.fm username>"
}

// Setup checks that the user exists by fetching their recent tracks.
func (p *Plugin) Setup(ctx context.Context, args string) (string, error) {
	username := strings.TrimSpace(args)
	if username == "" || strings.ContainsAny(username, " \t\n") {
		return "", fmt.Errorf("%w: a single Last.fm username is required", profiles.ErrInvalidArgs)
	}

	if _, err := p.recentTracks(ctx, username); err != nil {
		return "", fmt.Errorf("failed to fetch recent tracks of %q: %w", username, err)
	}

	return sonic.MarshalString(Info{Username: username})
}

// Field renders up to three recent tracks. API failures are rendered into the field.
func (p *Plugin) Field(ctx context.Context, raw string) (discord.EmbedField, error) {
	var info Info
	if err := sonic.UnmarshalString(raw, &info); err != nil {
		return discord.EmbedField{}, fmt.Errorf("failed to decode lastfm config: %w", err)
	}

	name := p.cfg.LogoEmoji + " Last.fm"

	tracks, err := p.recentTracks(ctx, info.Username)
	if err != nil {
		p.logger.Warn("Failed to get recent tracks",
			zap.String("username", info.Username),
			zap.Error(err))

		return profiles.InlineField(name, constants.CancelEmoji+" "+errorMessage(err)), nil
	}

	return profiles.InlineField(name, p.formatTracks(tracks)), nil
}

func (p *Plugin) formatTracks(tracks []track) string {
	if len(tracks) == 0 {
		return p.cfg.GhostEmoji + " nothing scrobbled yet"
	}

	var b strings.Builder

	for i, t := range tracks {
		if i == trackLimit {
			break
		}

		line := fmt.Sprintf("[%s by %s](%s)",
			utils.EscapeMarkdown(t.Name),
			utils.EscapeMarkdown(t.Artist.Text),
			utils.EscapeURLParens(t.URL))

		switch {
		case t.Attr != nil && t.Attr.NowPlaying == "true":
			line = "🎵 " + line
		case t.Date != nil:
			if played, err := strconv.ParseInt(t.Date.UTS, 10, 64); err == nil {
				line += " `" + utils.FormatTimeAgo(time.Unix(played, 0), p.now()) + "`"
			}
		}

		b.WriteString(line)
		b.WriteByte('\n')
	}

	return b.String()
}

func (p *Plugin) recentTracks(ctx context.Context, username string) ([]track, error) {
	query := url.Values{}
	query.Set("method", "user.getrecenttracks")
	query.Set("user", username)
	query.Set("api_key", p.cfg.APIKey)
	query.Set("format", "json")
	query.Set("limit", strconv.Itoa(trackLimit))

	body, err := p.fetcher.Fetch(ctx, profiles.Request{
		URL:   p.cfg.BaseURL + "?" + query.Encode(),
		Check: checkResponse,
	})
	if err != nil {
		if profiles.ErrorCode(err) == "" {
			return nil, &profiles.APIError{Code: ErrCodeUnknown, Err: err}
		}

		return nil, err
	}

	var resp recentTracksResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, &profiles.APIError{Code: ErrCodeUnknown, Err: err}
	}

	return resp.RecentTracks.Tracks, nil
}

// checkResponse maps HTTP and Last.fm API errors to error codes.
func checkResponse(status int, body []byte) error {
	var apiErr errorResponse
	_ = sonic.Unmarshal(body, &apiErr)

	switch {
	case status == http.StatusNotFound || apiErr.Error == errorUserNotFound:
		return &profiles.APIError{Code: ErrCodeNotFound}
	case status >= http.StatusInternalServerError:
		return &profiles.APIError{Code: ErrCodeServerError, Err: fmt.Errorf("status %d", status)}
	case status != http.StatusOK || apiErr.Error != 0:
		return &profiles.APIError{
			Code: ErrCodeUnknown,
			Err:  fmt.Errorf("status %d, error %d: %s", status, apiErr.Error, apiErr.Message),
		}
	default:
		return nil
	}
}

func errorMessage(err error) string {
	switch profiles.ErrorCode(err) {
	case ErrCodeNotFound:
		return "This Last.fm user could not be found."
	case ErrCodeServerError:
		return "Last.fm is having problems right now, try again later."
	default:
		return "Could not get recent tracks."
	}
}

var _ profiles.Plugin = (*Plugin)(nil)
