package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormPendingRecordRepository implements syncqueue.Repository using GORM
type GormPendingRecordRepository struct {
	db *gorm.DB
}

// NewGormPendingRecordRepository creates a new GORM-based pending record repository
func NewGormPendingRecordRepository(db *gorm.DB) syncqueue.Repository {
	return &GormPendingRecordRepository{db: db}
}

// Save enqueues a new pending record
func (r *GormPendingRecordRepository) Save(ctx context.Context, p *syncqueue.PendingRecord) error {
	var model models.PendingRecord
	model.FromDomainPendingRecord(p)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Update persists a state change
func (r *GormPendingRecordRepository) Update(ctx context.Context, p *syncqueue.PendingRecord) error {
	var model models.PendingRecord
	model.FromDomainPendingRecord(p)

	result := r.db.WithContext(ctx).Model(&models.PendingRecord{}).
		Where("id = ?", p.ID).
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

// FindByID retrieves a record by local id
func (r *GormPendingRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncqueue.PendingRecord, error) {
	var model models.PendingRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEntity retrieves the pending record for a local entity, if any
func (r *GormPendingRecordRepository) FindByEntity(ctx context.Context, entityType syncqueue.EntityType, entityID uuid.UUID) (*syncqueue.PendingRecord, error) {
	var model models.PendingRecord
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDue returns records eligible for pushing in creation order:
// PENDING records plus FAILED records whose backoff has elapsed.
// Parked records (FAILED with no retry scheduled) never come back here.
func (r *GormPendingRecordRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*syncqueue.PendingRecord, error) {
	var rows []models.PendingRecord
	q := r.db.WithContext(ctx).
		Where("state = ? OR (state = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?)",
			string(syncqueue.StatePending), string(syncqueue.StateFailed), now).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPendingRecords(rows), nil
}

// ListByState returns records in a state, oldest first
func (r *GormPendingRecordRepository) ListByState(ctx context.Context, state syncqueue.SyncState, limit int) ([]*syncqueue.PendingRecord, error) {
	var rows []models.PendingRecord
	q := r.db.WithContext(ctx).
		Where("state = ?", string(state)).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainPendingRecords(rows), nil
}

// CountByState counts records per state
func (r *GormPendingRecordRepository) CountByState(ctx context.Context, state syncqueue.SyncState) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PendingRecord{}).
		Where("state = ?", string(state)).
		Count(&count).Error
	return count, err
}

// DeleteSyncedBefore archives acknowledged records older than cutoff
func (r *GormPendingRecordRepository) DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("state = ? AND synced_at < ?", string(syncqueue.StateSynced), cutoff).
		Delete(&models.PendingRecord{})
	return result.RowsAffected, result.Error
}

func toDomainPendingRecords(rows []models.PendingRecord) []*syncqueue.PendingRecord {
	records := make([]*syncqueue.PendingRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records
}
