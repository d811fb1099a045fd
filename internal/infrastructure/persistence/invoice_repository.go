package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinic/terminal/internal/domain/billing"
	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GORM-based invoice repository
func NewGormInvoiceRepository(db *gorm.DB) billing.InvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// CreateIssued persists the invoice, the advanced range, the allocation
// log entry and the pending-sync record in one local transaction. The
// range update is guarded on the expected cursor position, so a
// concurrent allocation of the same value aborts the whole write
// instead of issuing a duplicate number.
func (r *GormInvoiceRepository) CreateIssued(ctx context.Context, inv *billing.Invoice, rng *idpool.Range, alloc *idpool.Allocation, pending *syncqueue.PendingRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.IdentifierRange{}).
			Where("id = ? AND next_unused = ?", rng.ID, alloc.Value).
			Updates(map[string]any{
				"next_unused": rng.NextUnused,
				"exhausted":   rng.Exhausted,
				"updated_at":  rng.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.NewDomainError("ALLOCATION_CONFLICT", "Identifier was consumed concurrently")
		}

		var allocModel models.IdentifierAllocation
		allocModel.FromDomainAllocation(alloc)
		if err := tx.Create(&allocModel).Error; err != nil {
			return err
		}

		var invModel models.Invoice
		invModel.FromDomainInvoice(inv)
		if err := tx.Create(&invModel).Error; err != nil {
			return err
		}

		if pending != nil {
			var pendingModel models.PendingRecord
			pendingModel.FromDomainPendingRecord(pending)
			if err := tx.Create(&pendingModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Update persists a void or sync acknowledgment. Lines are immutable
// after issuance and are not touched.
func (r *GormInvoiceRepository) Update(ctx context.Context, inv *billing.Invoice) error {
	var model models.Invoice
	model.FromDomainInvoice(inv)
	model.Lines = nil

	result := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", inv.ID).
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

// FindByID retrieves an invoice with its lines
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.Invoice
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber retrieves an invoice by printed number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.Invoice
	err := r.db.WithContext(ctx).Preload("Lines").Where("number = ?", number).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListBySession returns a session's invoices in issuance order
func (r *GormInvoiceRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*billing.Invoice, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("session_id = ?", sessionID).
		Order("issued_at ASC, number_value ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	invoices := make([]*billing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = rows[i].ToDomain()
	}
	return invoices, nil
}

// SessionTotals aggregates a session's invoices by payment method.
// Amounts are stored as decimal text, so summing happens here rather
// than in SQL.
func (r *GormInvoiceRepository) SessionTotals(ctx context.Context, sessionID uuid.UUID) (*billing.Totals, error) {
	var rows []models.Invoice
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := &billing.Totals{}
	for i := range rows {
		totals.Accumulate(rows[i].ToDomain())
	}
	return totals, nil
}
