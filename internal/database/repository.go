package database

import (
	"github.com/robalyx/snowball/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	preference *models.PreferenceModel
	archive    *models.ArchiveModel
	count      *models.CountModel
	profile    *models.ProfileModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		preference: models.NewPreference(db, logger),
		archive:    models.NewArchive(db, logger),
		count:      models.NewCount(db, logger),
		profile:    models.NewProfile(db, logger),
	}
}

// Preference returns the preference model repository.
func (r *Repository) Preference() *models.PreferenceModel {
	return r.preference
}

// Archive returns the archived message model repository.
func (r *Repository) Archive() *models.ArchiveModel {
	return r.archive
}

// Count returns the counting game model repository.
func (r *Repository) Count() *models.CountModel {
	return r.count
}

// Profile returns the profile plugin model repository.
func (r *Repository) Profile() *models.ProfileModel {
	return r.profile
}
