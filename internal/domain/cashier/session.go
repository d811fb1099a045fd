package cashier

import (
	"time"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus is the lifecycle state of a cash session.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// Accounting-day boundaries. A session opened at or after the evening
// cutover belongs to the next accounting day; accounting days are
// anchored at the morning hour so overnight shifts group together.
const (
	eveningCutoverHour = 20
	accountingDayHour  = 5
)

// CashSession groups every invoice a terminal issues during one shift for
// daily cash reconciliation. At most one session is open per terminal; an
// invoice belongs to the session open at the instant of issuance,
// regardless of when it is printed or synced.
type CashSession struct {
	shared.BaseEntity
	TerminalID     string
	OpenedBy       uuid.UUID
	OpenedByName   string
	OpenedAt       time.Time
	ClosedAt       *time.Time
	AccountingDate time.Time
	OpeningFloat   decimal.Decimal // always zero by business rule
	Status         SessionStatus
}

// NewCashSession opens a session for the terminal.
func NewCashSession(terminalID string, openedBy uuid.UUID, openedByName string, now time.Time) (*CashSession, error) {
	if terminalID == "" {
		return nil, shared.NewDomainError("INVALID_TERMINAL", "Terminal ID cannot be empty")
	}
	if openedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Session must be opened by a user")
	}

	return &CashSession{
		BaseEntity:     shared.NewBaseEntity(),
		TerminalID:     terminalID,
		OpenedBy:       openedBy,
		OpenedByName:   openedByName,
		OpenedAt:       now,
		AccountingDate: AccountingDate(now),
		OpeningFloat:   decimal.Zero,
		Status:         SessionOpen,
	}, nil
}

// IsOpen reports whether the session still accepts invoices.
func (s *CashSession) IsOpen() bool {
	return s.Status == SessionOpen
}

// Close ends the session. Subsequent invoices require a new open.
func (s *CashSession) Close(now time.Time) error {
	if !s.IsOpen() {
		return shared.ErrInvalidState
	}
	s.Status = SessionClosed
	s.ClosedAt = &now
	s.Touch()
	return nil
}

// AccountingDate maps a wall-clock instant to the accounting day it
// belongs to: instants at or after 20:00 roll over to the next day, and
// every accounting day is normalized to 05:00 local time.
func AccountingDate(now time.Time) time.Time {
	day := now
	if now.Hour() >= eveningCutoverHour {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), accountingDayHour, 0, 0, 0, day.Location())
}
