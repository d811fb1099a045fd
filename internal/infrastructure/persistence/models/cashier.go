package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/terminal/internal/domain/cashier"
)

// CashSession maps cashier.CashSession. Money columns are stored as
// text; sqlite has no decimal type and floats would drift.
type CashSession struct {
	BaseModel
	TerminalID     string    `gorm:"index;not null"`
	OpenedBy       uuid.UUID `gorm:"type:text;not null"`
	OpenedByName   string
	OpenedAt       time.Time `gorm:"not null"`
	ClosedAt       *time.Time
	AccountingDate time.Time       `gorm:"index;not null"`
	OpeningFloat   decimal.Decimal `gorm:"type:text;not null"`
	Status         string          `gorm:"index;not null"`
}

// TableName returns the table name for CashSession
func (CashSession) TableName() string {
	return "cash_sessions"
}

// ToDomain converts the model to a domain CashSession
func (m *CashSession) ToDomain() *cashier.CashSession {
	return &cashier.CashSession{
		BaseEntity:     m.BaseModel.ToDomain(),
		TerminalID:     m.TerminalID,
		OpenedBy:       m.OpenedBy,
		OpenedByName:   m.OpenedByName,
		OpenedAt:       m.OpenedAt,
		ClosedAt:       m.ClosedAt,
		AccountingDate: m.AccountingDate,
		OpeningFloat:   m.OpeningFloat,
		Status:         cashier.SessionStatus(m.Status),
	}
}

// FromDomainCashSession populates the model from a domain CashSession
func (m *CashSession) FromDomainCashSession(s *cashier.CashSession) {
	m.BaseModel.FromDomain(s.BaseEntity)
	m.TerminalID = s.TerminalID
	m.OpenedBy = s.OpenedBy
	m.OpenedByName = s.OpenedByName
	m.OpenedAt = s.OpenedAt
	m.ClosedAt = s.ClosedAt
	m.AccountingDate = s.AccountingDate
	m.OpeningFloat = s.OpeningFloat
	m.Status = string(s.Status)
}
