package cashier

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists cash sessions in the local store.
type Repository interface {
	// Save persists a newly opened session. Implementations enforce the
	// single-open-session invariant per terminal.
	Save(ctx context.Context, s *CashSession) error
	// Update persists a close.
	Update(ctx context.Context, s *CashSession) error
	// FindByID retrieves a session by id.
	FindByID(ctx context.Context, id uuid.UUID) (*CashSession, error)
	// FindOpen returns the terminal's open session, or shared.ErrNotFound.
	FindOpen(ctx context.Context, terminalID string) (*CashSession, error)
	// List returns the terminal's session history, newest first.
	List(ctx context.Context, terminalID string, limit int) ([]*CashSession, error)
}
