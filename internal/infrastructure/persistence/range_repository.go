package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormRangeRepository implements idpool.RangeRepository using GORM
type GormRangeRepository struct {
	db *gorm.DB
}

// NewGormRangeRepository creates a new GORM-based range repository
func NewGormRangeRepository(db *gorm.DB) idpool.RangeRepository {
	return &GormRangeRepository{db: db}
}

// Save persists a newly granted range
func (r *GormRangeRepository) Save(ctx context.Context, rng *idpool.Range) error {
	var model models.IdentifierRange
	model.FromDomainRange(rng)

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return err
	}
	return nil
}

// Update persists an advanced or retired range
func (r *GormRangeRepository) Update(ctx context.Context, rng *idpool.Range) error {
	var model models.IdentifierRange
	model.FromDomainRange(rng)

	result := r.db.WithContext(ctx).Model(&models.IdentifierRange{}).
		Where("id = ?", rng.ID).
		Select("*").Omit("id", "created_at").
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID retrieves a range by local id
func (r *GormRangeRepository) FindByID(ctx context.Context, id uuid.UUID) (*idpool.Range, error) {
	var model models.IdentifierRange
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByBatchID retrieves a range by its authority batch label
func (r *GormRangeRepository) FindByBatchID(ctx context.Context, batchID string) (*idpool.Range, error) {
	var model models.IdentifierRange
	err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns the oldest range of the kind that still has headroom
func (r *GormRangeRepository) FindActive(ctx context.Context, kind idpool.Kind) (*idpool.Range, error) {
	var model models.IdentifierRange
	err := r.db.WithContext(ctx).
		Where("kind = ? AND exhausted = ? AND next_unused <= end_value", string(kind), false).
		Order("issued_at ASC, created_at ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByKind returns all ranges of a kind, oldest first
func (r *GormRangeRepository) ListByKind(ctx context.Context, kind idpool.Kind) ([]*idpool.Range, error) {
	var rows []models.IdentifierRange
	err := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("issued_at ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainRanges(rows), nil
}

// List returns every range held by the terminal, oldest first
func (r *GormRangeRepository) List(ctx context.Context) ([]*idpool.Range, error) {
	var rows []models.IdentifierRange
	err := r.db.WithContext(ctx).
		Order("issued_at ASC, created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainRanges(rows), nil
}

// Remaining sums the headroom across active ranges of a kind
func (r *GormRangeRepository) Remaining(ctx context.Context, kind idpool.Kind) (int64, error) {
	var remaining *int64
	err := r.db.WithContext(ctx).Model(&models.IdentifierRange{}).
		Select("SUM(end_value - next_unused + 1)").
		Where("kind = ? AND exhausted = ? AND next_unused <= end_value", string(kind), false).
		Scan(&remaining).Error
	if err != nil {
		return 0, err
	}
	if remaining == nil {
		return 0, nil
	}
	return *remaining, nil
}

// Delete removes a range that was returned to the authority
func (r *GormRangeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.IdentifierRange{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toDomainRanges(rows []models.IdentifierRange) []*idpool.Range {
	ranges := make([]*idpool.Range, len(rows))
	for i := range rows {
		ranges[i] = rows[i].ToDomain()
	}
	return ranges
}
