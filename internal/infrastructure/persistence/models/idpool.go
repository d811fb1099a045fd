package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/terminal/internal/domain/idpool"
)

// IdentifierRange maps idpool.Range. "start"/"end" are SQL keywords, so
// the bound columns carry a _value suffix.
type IdentifierRange struct {
	BaseModel
	AuthorityID  string `gorm:"index"`
	BatchID      string `gorm:"uniqueIndex;not null"`
	Kind         string `gorm:"index;not null"`
	Prefix       string `gorm:"not null"`
	StartValue   int64  `gorm:"not null"`
	EndValue     int64  `gorm:"not null"`
	NextUnused   int64  `gorm:"not null"`
	TerminalID   string `gorm:"not null"`
	IssuedAt     time.Time
	Exhausted    bool `gorm:"index"`
	LastReported int64
}

// TableName returns the table name for IdentifierRange
func (IdentifierRange) TableName() string {
	return "identifier_ranges"
}

// ToDomain converts the model to a domain Range
func (m *IdentifierRange) ToDomain() *idpool.Range {
	return &idpool.Range{
		BaseEntity:   m.BaseModel.ToDomain(),
		AuthorityID:  m.AuthorityID,
		BatchID:      m.BatchID,
		Kind:         idpool.Kind(m.Kind),
		Prefix:       m.Prefix,
		Start:        m.StartValue,
		End:          m.EndValue,
		NextUnused:   m.NextUnused,
		TerminalID:   m.TerminalID,
		IssuedAt:     m.IssuedAt,
		Exhausted:    m.Exhausted,
		LastReported: m.LastReported,
	}
}

// FromDomainRange populates the model from a domain Range
func (m *IdentifierRange) FromDomainRange(r *idpool.Range) {
	m.BaseModel.FromDomain(r.BaseEntity)
	m.AuthorityID = r.AuthorityID
	m.BatchID = r.BatchID
	m.Kind = string(r.Kind)
	m.Prefix = r.Prefix
	m.StartValue = r.Start
	m.EndValue = r.End
	m.NextUnused = r.NextUnused
	m.TerminalID = r.TerminalID
	m.IssuedAt = r.IssuedAt
	m.Exhausted = r.Exhausted
	m.LastReported = r.LastReported
}

// IdentifierAllocation maps idpool.Allocation. The unique index on code
// is the last line of defense for the never-twice guarantee.
type IdentifierAllocation struct {
	ID          uuid.UUID `gorm:"type:text;primaryKey"`
	RangeID     uuid.UUID `gorm:"type:text;index;not null"`
	BatchID     string    `gorm:"not null"`
	Kind        string    `gorm:"index;not null"`
	Value       int64     `gorm:"not null"`
	Code        string    `gorm:"uniqueIndex;not null"`
	AllocatedAt time.Time `gorm:"index;not null"`
}

// TableName returns the table name for IdentifierAllocation
func (IdentifierAllocation) TableName() string {
	return "identifier_allocations"
}

// ToDomain converts the model to a domain Allocation
func (m *IdentifierAllocation) ToDomain() *idpool.Allocation {
	return &idpool.Allocation{
		ID:          m.ID,
		RangeID:     m.RangeID,
		BatchID:     m.BatchID,
		Kind:        idpool.Kind(m.Kind),
		Value:       m.Value,
		Code:        m.Code,
		AllocatedAt: m.AllocatedAt,
	}
}

// FromDomainAllocation populates the model from a domain Allocation
func (m *IdentifierAllocation) FromDomainAllocation(a *idpool.Allocation) {
	m.ID = a.ID
	m.RangeID = a.RangeID
	m.BatchID = a.BatchID
	m.Kind = string(a.Kind)
	m.Value = a.Value
	m.Code = a.Code
	m.AllocatedAt = a.AllocatedAt
}
