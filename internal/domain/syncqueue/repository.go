package syncqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists the pending-record queue in the local store.
type Repository interface {
	// Save enqueues a new pending record.
	Save(ctx context.Context, p *PendingRecord) error
	// Update persists a state change.
	Update(ctx context.Context, p *PendingRecord) error
	// FindByID retrieves a record by local id.
	FindByID(ctx context.Context, id uuid.UUID) (*PendingRecord, error)
	// FindByEntity retrieves the pending record for a local entity, if any.
	FindByEntity(ctx context.Context, entityType EntityType, entityID uuid.UUID) (*PendingRecord, error)
	// FindDue returns records eligible for pushing in creation order:
	// PENDING records plus FAILED records whose NextRetryAt has passed.
	FindDue(ctx context.Context, now time.Time, limit int) ([]*PendingRecord, error)
	// ListByState returns records in a state, oldest first.
	ListByState(ctx context.Context, state SyncState, limit int) ([]*PendingRecord, error)
	// CountByState counts records per state.
	CountByState(ctx context.Context, state SyncState) (int64, error)
	// DeleteSyncedBefore archives acknowledged records older than cutoff.
	DeleteSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
