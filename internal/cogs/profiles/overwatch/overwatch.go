// Package overwatch shows Overwatch competitive and quick play statistics.
package overwatch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/snowball/internal/bot/constants"
	"github.com/robalyx/snowball/internal/cogs/profiles"
	"github.com/robalyx/snowball/internal/setup/config"
	"go.uber.org/zap"
)

// Error codes reported by the Overwatch plugin.
const (
	ErrCodeProfileNotFound = "OWAPI_FETCH_ERR_PROFILE_NOTFOUND"
	ErrCodeAPI             = "OWAPI_FETCH_ERR_API"
)

const (
	// PluginName is the key the plugin is stored under.
	PluginName      = "overwatch"
	defaultRegion   = "eu"
	defaultPlatform = "pc"
	placeholder     = "Not played yet"
)

var (
	// Regions are the accepted regions.
	Regions = []string{"eu", "kr", "us"}
	// Platforms are the accepted platforms.
	Platforms = []string{"pc", "xbl", "psn"}
)

var defaultEmojis = map[string]string{
	"overwatchIcon": "🎮",
	"competitive":   "🏆",
	"quickplay":     "⚡",
	"norating":      "▫️",
	"bronze":        "🟫",
	"silver":        "⬜",
	"gold":          "🟨",
	"platinum":      "🟦",
	"diamond":       "💎",
	"master":        "🟧",
	"grandmaster":   "🟪",
}

// Info is the stored plugin configuration.
type Info struct {
	Platform  string `json:"platform"`
	Region    string `json:"region"`
	BattleTag string `json:"battletag"`
	Verified  bool   `json:"verifed"`
}

// ParseArgs parses "battletag;region;platform" where region and platform are optional.
func ParseArgs(args string) (Info, error) {
	parts := strings.Split(args, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	info := Info{
		BattleTag: strings.Replace(parts[0], "#", "-", 1),
		Region:    defaultRegion,
		Platform:  defaultPlatform,
	}

	if len(parts) > 1 && parts[1] != "" {
		info.Region = strings.ToLower(parts[1])
	}

	if len(parts) > 2 && parts[2] != "" {
		info.Platform = strings.ToLower(parts[2])
	}

	if !slices.Contains(Regions, info.Region) {
		return Info{}, fmt.Errorf("%w: unknown region %q, available regions: %s",
			profiles.ErrInvalidArgs, info.Region, strings.Join(Regions, ", "))
	}

	if !slices.Contains(Platforms, info.Platform) {
		return Info{}, fmt.Errorf("%w: unknown platform %q, available platforms: %s",
			profiles.ErrInvalidArgs, info.Platform, strings.Join(Platforms, ", "))
	}

	if info.BattleTag == "" {
		return Info{}, fmt.Errorf("%w: a BattleTag is required", profiles.ErrInvalidArgs)
	}

	return info, nil
}

// Plugin implements profiles.Plugin for Overwatch.
type Plugin struct {
	cfg     *config.Overwatch
	fetcher *profiles.Fetcher
	logger  *zap.Logger
}

// New creates the Overwatch plugin.
func New(cfg *config.Overwatch, fetcher *profiles.Fetcher, logger *zap.Logger) *Plugin {
	return &Plugin{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.Named("overwatch"),
	}
}

// Name implements profiles.Plugin.
func (p *Plugin) Name() string {
	return PluginName
}

// SetupArgs implements profiles.Plugin.
func (p *Plugin) SetupArgs() string {
	return "<battletag>[;region][;platform]"
}

// Setup validates the arguments and checks that the profile exists.
func (p *Plugin) Setup(ctx context.Context, args string) (string, error) {
	info, err := ParseArgs(args)
	if err != nil {
		return "", err
	}

	if _, err := p.profile(ctx, info); err != nil {
		return "", fmt.Errorf("failed to get profile %q: %w", info.BattleTag, err)
	}

	return sonic.MarshalString(info)
}

// Field renders the level, competitive and quick play summaries.
func (p *Plugin) Field(ctx context.Context, raw string) (discord.EmbedField, error) {
	var info Info
	if err := sonic.UnmarshalString(raw, &info); err != nil {
		return discord.EmbedField{}, fmt.Errorf("failed to decode overwatch config: %w", err)
	}

	name := p.emoji("overwatchIcon") + " Overwatch"

	stats, err := p.profile(ctx, info)
	if err != nil {
		p.logger.Warn("Failed to get profile",
			zap.String("battletag", info.BattleTag),
			zap.String("region", info.Region),
			zap.String("platform", info.Platform),
			zap.Error(err))

		return profiles.InlineField(name, constants.CancelEmoji+" "+errorMessage(err)), nil
	}

	return profiles.InlineField(name, p.formatStats(stats)), nil
}

func (p *Plugin) formatStats(stats *regionalStats) string {
	var b strings.Builder

	quickplay := stats.Stats.QuickPlay

	level := 0
	if quickplay != nil {
		level = 100*quickplay.OverallStats.Prestige + quickplay.OverallStats.Level
	}

	fmt.Fprintf(&b, "**Level %d**\n", level)
	fmt.Fprintf(&b, "%s __**Competitive**__\n", p.emoji("norating"))

	competitive := stats.Stats.Competitive
	if competitive == nil || competitive.OverallStats.CompRank == 0 {
		b.WriteString(p.tierEmoji(""))
		b.WriteString(" " + placeholder)
	} else {
		overall := competitive.OverallStats
		fmt.Fprintf(&b, "%s %d SR\n", p.tierEmoji(overall.Tier), overall.CompRank)
		fmt.Fprintf(&b, "Games played: %d\n", overall.Games)
		fmt.Fprintf(&b, " Wins: %d.\n Losses: %d.\n Ties: %d.\n", overall.Wins, overall.Losses, overall.Ties)
		fmt.Fprintf(&b, "  (Win rate: %s%%)", formatFloat(overall.WinRate))
	}

	fmt.Fprintf(&b, "\n%s __**Quick Play**__\n", p.emoji("quickplay"))

	if quickplay == nil {
		b.WriteString(placeholder)
	} else {
		fmt.Fprintf(&b, "Hours played: %s\n", formatFloat(quickplay.GameStats.TimePlayed))
		fmt.Fprintf(&b, "Games won: %d", quickplay.OverallStats.Wins)
	}

	return b.String()
}

func (p *Plugin) profile(ctx context.Context, info Info) (*regionalStats, error) {
	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/u/" + url.PathEscape(info.BattleTag) +
		"/blob?platform=" + url.QueryEscape(info.Platform)

	body, err := p.fetcher.Fetch(ctx, profiles.Request{
		URL:   endpoint,
		Check: checkResponse,
	})
	if err != nil {
		if profiles.ErrorCode(err) == "" {
			return nil, &profiles.APIError{Code: ErrCodeAPI, Err: err}
		}

		return nil, err
	}

	var blob map[string]*regionalStats
	if err := sonic.Unmarshal(body, &blob); err != nil {
		return nil, &profiles.APIError{Code: ErrCodeAPI, Err: err}
	}

	stats := blob[info.Region]
	if stats == nil {
		return nil, &profiles.APIError{Code: ErrCodeProfileNotFound}
	}

	return stats, nil
}

func (p *Plugin) emoji(key string) string {
	// Config map keys may arrive lowercased.
	if emoji, ok := p.cfg.Emojis[strings.ToLower(key)]; ok && emoji != "" {
		return emoji
	}

	if emoji, ok := p.cfg.Emojis[key]; ok && emoji != "" {
		return emoji
	}

	return defaultEmojis[key]
}

func (p *Plugin) tierEmoji(tier string) string {
	if tier == "" {
		return p.emoji("norating")
	}

	if _, ok := defaultEmojis[tier]; !ok {
		return p.emoji("norating")
	}

	return p.emoji(tier)
}

func checkResponse(status int, _ []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusNotFound:
		return &profiles.APIError{Code: ErrCodeProfileNotFound}
	default:
		return &profiles.APIError{Code: ErrCodeAPI, Err: fmt.Errorf("status %d", status)}
	}
}

func errorMessage(err error) string {
	if profiles.ErrorCode(err) == ErrCodeProfileNotFound {
		return "This Overwatch profile could not be found."
	}

	return "The Overwatch stats service is not available right now."
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ profiles.Plugin = (*Plugin)(nil)
