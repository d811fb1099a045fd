package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/terminal/internal/domain/syncqueue"
)

// PendingRecord maps syncqueue.PendingRecord.
type PendingRecord struct {
	BaseModel
	EntityType  string     `gorm:"index;not null"`
	EntityID    uuid.UUID  `gorm:"type:text;index;not null"`
	DependsOn   *uuid.UUID `gorm:"type:text"`
	Payload     []byte
	State       string `gorm:"index;not null"`
	RetryCount  int    `gorm:"not null;default:0"`
	MaxRetries  int    `gorm:"not null"`
	LastError   string
	NextRetryAt *time.Time
	RemoteID    string
	SyncedAt    *time.Time
}

// TableName returns the table name for PendingRecord
func (PendingRecord) TableName() string {
	return "pending_records"
}

// ToDomain converts the model to a domain PendingRecord
func (m *PendingRecord) ToDomain() *syncqueue.PendingRecord {
	return &syncqueue.PendingRecord{
		BaseEntity:  m.BaseModel.ToDomain(),
		EntityType:  syncqueue.EntityType(m.EntityType),
		EntityID:    m.EntityID,
		DependsOn:   m.DependsOn,
		Payload:     m.Payload,
		State:       syncqueue.SyncState(m.State),
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		LastError:   m.LastError,
		NextRetryAt: m.NextRetryAt,
		RemoteID:    m.RemoteID,
		SyncedAt:    m.SyncedAt,
	}
}

// FromDomainPendingRecord populates the model from a domain PendingRecord
func (m *PendingRecord) FromDomainPendingRecord(p *syncqueue.PendingRecord) {
	m.BaseModel.FromDomain(p.BaseEntity)
	m.EntityType = string(p.EntityType)
	m.EntityID = p.EntityID
	m.DependsOn = p.DependsOn
	m.Payload = p.Payload
	m.State = string(p.State)
	m.RetryCount = p.RetryCount
	m.MaxRetries = p.MaxRetries
	m.LastError = p.LastError
	m.NextRetryAt = p.NextRetryAt
	m.RemoteID = p.RemoteID
	m.SyncedAt = p.SyncedAt
}
