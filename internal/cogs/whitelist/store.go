package whitelist

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/snowball/internal/preferences"
	"go.uber.org/zap"
)

// Preference keys.
const (
	statusKey = "whitelist:status"
	untilKey  = "whitelist:until"
	modeKey   = "whitelist:mode"
)

// Record is the persisted whitelist data of a guild.
type Record struct {
	Status *State `json:"status,omitempty"`
	// Until is a unix timestamp in milliseconds.
	Until *int64 `json:"until,omitempty"`
}

// UntilTime returns the end date of the record, or nil.
func (r Record) UntilTime() *time.Time {
	if r.Until == nil {
		return nil
	}

	t := time.UnixMilli(*r.Until)

	return &t
}

// Store reads and writes whitelist records through the preference store,
// keeping the cache consistent with every write.
type Store struct {
	prefs       preferences.Store
	cache       Cache
	defaultMode Mode
	logger      *zap.Logger
}

// NewStore creates a Store. A nil cache disables caching.
func NewStore(prefs preferences.Store, cache Cache, defaultMode Mode, logger *zap.Logger) *Store {
	return &Store{
		prefs:       prefs,
		cache:       cache,
		defaultMode: defaultMode,
		logger:      logger,
	}
}

// Record loads the stored record of a guild.
func (s *Store) Record(ctx context.Context, guildID snowflake.ID) (Record, error) {
	if s.cache != nil {
		record, found, err := s.cache.GetRecord(ctx, guildID)
		if err == nil && found {
			return record, nil
		}

		if err != nil {
			s.logger.Warn("Failed to read whitelist cache",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Error(err))
		}
	}

	scope := preferences.GuildScope(guildID)

	var (
		record Record
		status State
		until  int64
	)

	found, err := s.prefs.Get(ctx, scope, statusKey, &status)
	if err != nil {
		return Record{}, fmt.Errorf("failed to load whitelist status: %w", err)
	}

	if found {
		record.Status = &status
	}

	found, err = s.prefs.Get(ctx, scope, untilKey, &until)
	if err != nil {
		return Record{}, fmt.Errorf("failed to load whitelist end date: %w", err)
	}

	if found {
		record.Until = &until
	}

	if s.cache != nil {
		if err := s.cache.SetRecord(ctx, guildID, record); err != nil {
			s.logger.Warn("Failed to populate whitelist cache",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Error(err))
		}
	}

	return record, nil
}

// SetTimed stores a Limited or Trial status ending at until. If the status
// cannot be written the previous end date is restored. The cached record is
// dropped whether or not the write succeeds.
func (s *Store) SetTimed(ctx context.Context, guildID snowflake.ID, state State, until time.Time) (err error) {
	scope := preferences.GuildScope(guildID)

	defer s.invalidateAfter(ctx, guildID, &err)

	var previous int64

	hadPrevious, err := s.prefs.Get(ctx, scope, untilKey, &previous)
	if err != nil {
		return fmt.Errorf("failed to load whitelist end date: %w", err)
	}

	if err = s.prefs.Set(ctx, scope, untilKey, until.UnixMilli()); err != nil {
		return fmt.Errorf("failed to store whitelist end date: %w", err)
	}

	if err = s.prefs.Set(ctx, scope, statusKey, int(state)); err != nil {
		s.restoreUntil(ctx, guildID, previous, hadPrevious)
		return fmt.Errorf("failed to store whitelist status: %w", err)
	}

	return nil
}

// SetUntimed stores a status without an end date, such as Unlimited or Banned.
func (s *Store) SetUntimed(ctx context.Context, guildID snowflake.ID, state State) (err error) {
	scope := preferences.GuildScope(guildID)

	defer s.invalidateAfter(ctx, guildID, &err)

	if err = s.prefs.Remove(ctx, scope, untilKey); err != nil {
		return fmt.Errorf("failed to remove whitelist end date: %w", err)
	}

	if err = s.prefs.Set(ctx, scope, statusKey, int(state)); err != nil {
		return fmt.Errorf("failed to store whitelist status: %w", err)
	}

	return nil
}

// Clear removes the record, returning the guild to Unknown.
func (s *Store) Clear(ctx context.Context, guildID snowflake.ID) (err error) {
	scope := preferences.GuildScope(guildID)

	defer s.invalidateAfter(ctx, guildID, &err)

	if err = s.prefs.Remove(ctx, scope, untilKey); err != nil {
		return fmt.Errorf("failed to remove whitelist end date: %w", err)
	}

	if err = s.prefs.Remove(ctx, scope, statusKey); err != nil {
		return fmt.Errorf("failed to remove whitelist status: %w", err)
	}

	return nil
}

// restoreUntil puts back the end date a failed SetTimed overwrote.
func (s *Store) restoreUntil(ctx context.Context, guildID snowflake.ID, previous int64, found bool) {
	scope := preferences.GuildScope(guildID)

	var err error
	if found {
		err = s.prefs.Set(ctx, scope, untilKey, previous)
	} else {
		err = s.prefs.Remove(ctx, scope, untilKey)
	}

	if err != nil {
		s.logger.Error("Failed to restore whitelist end date",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(err))
	}
}

// Mode loads the current mode, falling back to the configured default.
func (s *Store) Mode(ctx context.Context) (Mode, error) {
	if s.cache != nil {
		mode, found, err := s.cache.GetMode(ctx)
		if err == nil && found {
			return mode, nil
		}

		if err != nil {
			s.logger.Warn("Failed to read whitelist mode cache", zap.Error(err))
		}
	}

	mode := s.defaultMode

	// Older versions stored the mode as an integer bitmask
	var stored any

	found, err := s.prefs.Get(ctx, preferences.GlobalScope, modeKey, &stored)
	if err != nil {
		return Mode{}, fmt.Errorf("failed to load whitelist mode: %w", err)
	}

	if found {
		var raw string

		switch v := stored.(type) {
		case string:
			raw = v
		case float64:
			raw = strconv.Itoa(int(v))
		default:
			return Mode{}, fmt.Errorf("%w: stored mode has type %T", ErrUnknownModeFlag, stored)
		}

		if mode, err = ParseMode(raw); err != nil {
			return Mode{}, err
		}
	}

	if s.cache != nil {
		if err := s.cache.SetMode(ctx, mode); err != nil {
			s.logger.Warn("Failed to populate whitelist mode cache", zap.Error(err))
		}
	}

	return mode, nil
}

// SetMode persists the mode.
func (s *Store) SetMode(ctx context.Context, mode Mode) error {
	if err := s.prefs.Set(ctx, preferences.GlobalScope, modeKey, mode.Serialize()); err != nil {
		return fmt.Errorf("failed to store whitelist mode: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateMode(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) invalidate(ctx context.Context, guildID snowflake.ID) error {
	if s.cache == nil {
		return nil
	}

	return s.cache.InvalidateRecord(ctx, guildID)
}

// invalidateAfter drops the cached record once a write returns. A failed
// invalidation is reported only when the write itself succeeded.
func (s *Store) invalidateAfter(ctx context.Context, guildID snowflake.ID, err *error) {
	if invalidateErr := s.invalidate(ctx, guildID); invalidateErr != nil {
		if *err == nil {
			*err = invalidateErr
			return
		}

		s.logger.Warn("Failed to invalidate whitelist cache",
			zap.Uint64("guildID", uint64(guildID)),
			zap.Error(invalidateErr))
	}
}
