package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinic/terminal/internal/domain/identity"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormCredentialRepository implements identity.CredentialRepository using GORM
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GORM-based credential repository
func NewGormCredentialRepository(db *gorm.DB) identity.CredentialRepository {
	return &GormCredentialRepository{db: db}
}

// Upsert stores or replaces the cached entry for a username
func (r *GormCredentialRepository) Upsert(ctx context.Context, c *identity.CachedCredential) error {
	var model models.CachedCredential
	model.FromDomainCachedCredential(c)

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"password_hash", "user_remote_id", "display_name",
			"role_snapshot", "branch_id", "cached_at", "updated_at",
		}),
	}).Create(&model).Error
}

// FindByUsername retrieves the cached entry for a username
func (r *GormCredentialRepository) FindByUsername(ctx context.Context, username string) (*identity.CachedCredential, error) {
	var model models.CachedCredential
	err := r.db.WithContext(ctx).
		Where("username = ?", identity.NormalizeUsername(username)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Delete removes a cached entry
func (r *GormCredentialRepository) Delete(ctx context.Context, username string) error {
	result := r.db.WithContext(ctx).
		Where("username = ?", identity.NormalizeUsername(username)).
		Delete(&models.CachedCredential{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns every cached entry on this terminal
func (r *GormCredentialRepository) List(ctx context.Context) ([]*identity.CachedCredential, error) {
	var rows []models.CachedCredential
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	credentials := make([]*identity.CachedCredential, len(rows))
	for i := range rows {
		credentials[i] = rows[i].ToDomain()
	}
	return credentials, nil
}
