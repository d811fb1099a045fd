package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormAllocationRepository implements idpool.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GORM-based allocation repository
func NewGormAllocationRepository(db *gorm.DB) idpool.AllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Append records an allocation. The unique index on code turns a
// replayed allocation into ErrAlreadyExists instead of a duplicate row.
func (r *GormAllocationRepository) Append(ctx context.Context, a *idpool.Allocation) error {
	var model models.IdentifierAllocation
	model.FromDomainAllocation(a)

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// AppendDrawn commits the advanced range and the allocation in one
// transaction. The guarded update fails the whole draw when another
// writer consumed the value first, so the same code can never be
// handed out twice.
func (r *GormAllocationRepository) AppendDrawn(ctx context.Context, rng *idpool.Range, a *idpool.Allocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.IdentifierRange{}).
			Where("id = ? AND next_unused = ?", rng.ID, a.Value).
			Updates(map[string]any{
				"next_unused": rng.NextUnused,
				"exhausted":   rng.Exhausted,
				"updated_at":  rng.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("ALLOCATION_CONFLICT", "Identifier was consumed concurrently")
		}

		var model models.IdentifierAllocation
		model.FromDomainAllocation(a)
		if err := tx.Create(&model).Error; err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return shared.ErrAlreadyExists
			}
			return err
		}
		return nil
	})
}

// CountByRange returns how many allocations a range has produced
func (r *GormAllocationRepository) CountByRange(ctx context.Context, rangeID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.IdentifierAllocation{}).
		Where("range_id = ?", rangeID).
		Count(&count).Error
	return count, err
}

// List returns allocations of a kind, newest first, capped at limit
func (r *GormAllocationRepository) List(ctx context.Context, kind idpool.Kind, limit int) ([]*idpool.Allocation, error) {
	var rows []models.IdentifierAllocation
	q := r.db.WithContext(ctx).
		Where("kind = ?", string(kind)).
		Order("allocated_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	allocations := make([]*idpool.Allocation, len(rows))
	for i := range rows {
		allocations[i] = rows[i].ToDomain()
	}
	return allocations, nil
}
