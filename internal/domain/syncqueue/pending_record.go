package syncqueue

import (
	"errors"
	"time"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/google/uuid"
)

// EntityType names the kind of record waiting to be pushed.
type EntityType string

const (
	EntityPatient EntityType = "patient"
	EntityInvoice EntityType = "invoice"
)

// SyncState is the lifecycle of a pending record.
type SyncState string

const (
	StatePending SyncState = "PENDING"
	StateSyncing SyncState = "SYNCING"
	StateSynced  SyncState = "SYNCED"
	StateFailed  SyncState = "FAILED"
)

// Retry policy for rejected pushes. Once the cap is hit the record stays
// FAILED until an operator resets it; sync never retries forever.
const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
)

// PendingRecord is a locally created record that the authority has not
// acknowledged yet. Records drain in creation order; a record with a
// dependency is never pushed before the dependency is SYNCED.
type PendingRecord struct {
	shared.BaseEntity
	EntityType  EntityType
	EntityID    uuid.UUID  // local id of the patient/invoice
	DependsOn   *uuid.UUID // local id of another pending record
	Payload     []byte     // JSON body pushed to the authority
	State       SyncState
	RetryCount  int
	MaxRetries  int
	LastError   string
	NextRetryAt *time.Time
	RemoteID    string // durable id assigned by the authority
	SyncedAt    *time.Time
}

// NewPendingRecord queues a record created while the authority was
// unreachable.
func NewPendingRecord(entityType EntityType, entityID uuid.UUID, payload []byte) *PendingRecord {
	return &PendingRecord{
		BaseEntity: shared.NewBaseEntity(),
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
		State:      StatePending,
		MaxRetries: DefaultMaxRetries,
	}
}

// WithDependency marks another pending record as a push prerequisite.
func (p *PendingRecord) WithDependency(pendingID uuid.UUID) *PendingRecord {
	p.DependsOn = &pendingID
	return p
}

// CanRetry reports whether a failed record is still within its retry
// budget.
func (p *PendingRecord) CanRetry() bool {
	return p.State == StateFailed && p.RetryCount < p.MaxRetries
}

// NeedsOperator reports whether the record exhausted its retries and is
// parked for manual review.
func (p *PendingRecord) NeedsOperator() bool {
	return p.State == StateFailed && p.RetryCount >= p.MaxRetries
}

// MarkSyncing claims the record for an in-flight push.
func (p *PendingRecord) MarkSyncing() error {
	if p.State != StatePending && p.State != StateFailed {
		return errors.New("can only push pending or failed records")
	}
	p.State = StateSyncing
	p.Touch()
	return nil
}

// MarkSynced records the authority's acknowledgment.
func (p *PendingRecord) MarkSynced(remoteID string) {
	now := time.Now()
	p.State = StateSynced
	p.RemoteID = remoteID
	p.SyncedAt = &now
	p.LastError = ""
	p.NextRetryAt = nil
	p.Touch()
}

// ReleaseClaim returns an in-flight record to the queue after a
// transport failure. Transport failures consume no retry budget; the
// budget is for records the authority rejected.
func (p *PendingRecord) ReleaseClaim() {
	if p.State == StateSyncing {
		p.State = StatePending
		p.Touch()
	}
}

// MarkFailed records a rejection and schedules the next attempt with
// exponential backoff, or parks the record once the cap is reached.
func (p *PendingRecord) MarkFailed(errMsg string) {
	p.RetryCount++
	p.LastError = errMsg
	p.State = StateFailed
	p.Touch()

	if p.RetryCount >= p.MaxRetries {
		p.NextRetryAt = nil
		return
	}
	backoff := DefaultBaseBackoff * time.Duration(1<<uint(p.RetryCount-1))
	next := time.Now().Add(backoff)
	p.NextRetryAt = &next
}

// ResetForRetry clears a parked record after an operator intervened.
func (p *PendingRecord) ResetForRetry() error {
	if !p.NeedsOperator() {
		return errors.New("can only reset records parked for operator review")
	}
	p.State = StatePending
	p.RetryCount = 0
	p.LastError = ""
	p.NextRetryAt = nil
	p.Touch()
	return nil
}
