package cashier

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/billing"
	"github.com/clinic/terminal/internal/domain/cashier"
	"github.com/clinic/terminal/internal/domain/shared"
)

// Service manages the terminal's cash sessions.
type Service struct {
	sessions   cashier.Repository
	invoices   billing.InvoiceRepository
	terminalID string
	logger     *zap.Logger
}

// NewService creates a new session service
func NewService(sessions cashier.Repository, invoices billing.InvoiceRepository, terminalID string, logger *zap.Logger) *Service {
	return &Service{
		sessions:   sessions,
		invoices:   invoices,
		terminalID: terminalID,
		logger:     logger.Named("cashier"),
	}
}

// SessionDTO is the UI view of a cash session.
type SessionDTO struct {
	ID             uuid.UUID       `json:"id"`
	TerminalID     string          `json:"terminal_id"`
	OpenedBy       uuid.UUID       `json:"opened_by"`
	OpenedByName   string          `json:"opened_by_name"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
	AccountingDate string          `json:"accounting_date"`
	Status         string          `json:"status"`
	Totals         *billing.Totals `json:"totals,omitempty"`
}

func toDTO(s *cashier.CashSession, totals *billing.Totals) *SessionDTO {
	return &SessionDTO{
		ID:             s.ID,
		TerminalID:     s.TerminalID,
		OpenedBy:       s.OpenedBy,
		OpenedByName:   s.OpenedByName,
		OpenedAt:       s.OpenedAt,
		ClosedAt:       s.ClosedAt,
		AccountingDate: s.AccountingDate.Format("2006-01-02"),
		Status:         string(s.Status),
		Totals:         totals,
	}
}

// Open opens a session for the operator. The repository enforces the
// single-open-session invariant.
func (s *Service) Open(ctx context.Context, openedBy uuid.UUID, openedByName string) (*SessionDTO, error) {
	session, err := cashier.NewCashSession(s.terminalID, openedBy, openedByName, time.Now())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("cash session opened",
		zap.String("session_id", session.ID.String()),
		zap.String("opened_by", openedByName),
		zap.String("accounting_date", session.AccountingDate.Format("2006-01-02")))
	return toDTO(session, nil), nil
}

// Close closes the terminal's open session and returns the final
// per-method totals for the reconciliation slip.
func (s *Service) Close(ctx context.Context) (*SessionDTO, error) {
	session, err := s.sessions.FindOpen(ctx, s.terminalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNoOpenSession
		}
		return nil, err
	}

	totals, err := s.invoices.SessionTotals(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if err := session.Close(time.Now()); err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("cash session closed",
		zap.String("session_id", session.ID.String()),
		zap.Int("invoices", totals.InvoiceCount),
		zap.String("total", totals.Total.StringFixed(2)))
	return toDTO(session, totals), nil
}

// Active returns the open session with its running totals, or
// shared.ErrNoOpenSession.
func (s *Service) Active(ctx context.Context) (*SessionDTO, error) {
	session, err := s.sessions.FindOpen(ctx, s.terminalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNoOpenSession
		}
		return nil, err
	}

	totals, err := s.invoices.SessionTotals(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return toDTO(session, totals), nil
}

// History returns past sessions, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]*SessionDTO, error) {
	sessions, err := s.sessions.List(ctx, s.terminalID, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]*SessionDTO, len(sessions))
	for i, session := range sessions {
		totals, err := s.invoices.SessionTotals(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		dtos[i] = toDTO(session, totals)
	}
	return dtos, nil
}
