package billing

import (
	"context"

	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/google/uuid"
)

// InvoiceRepository persists invoices in the local store.
type InvoiceRepository interface {
	// CreateIssued persists the invoice, its lines, the advanced
	// identifier range, the allocation-log entry and, when pending is
	// non-nil, the pending-sync record — all in one local transaction.
	// Either everything commits or nothing does; a crash can never leave
	// an identifier allocated without its invoice.
	CreateIssued(ctx context.Context, inv *Invoice, rng *idpool.Range, alloc *idpool.Allocation, pending *syncqueue.PendingRecord) error
	// Update persists a void or sync acknowledgment.
	Update(ctx context.Context, inv *Invoice) error
	// FindByID retrieves an invoice with its lines.
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByNumber retrieves an invoice by printed number.
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	// ListBySession returns a session's invoices in issuance order.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*Invoice, error)
	// SessionTotals aggregates a session's invoices by payment method.
	SessionTotals(ctx context.Context, sessionID uuid.UUID) (*Totals, error)
}
