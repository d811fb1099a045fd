package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/terminal/internal/domain/billing"
	"github.com/clinic/terminal/internal/domain/cashier"
	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
)

func issueTestInvoice(t *testing.T, rng *idpool.Range, sessionID uuid.UUID, method billing.PaymentMethod, amount int64) (*billing.Invoice, *idpool.Allocation) {
	t.Helper()

	alloc, err := rng.Allocate()
	require.NoError(t, err)

	inv, err := billing.NewInvoice(alloc.Code, alloc.Value, billing.NewInvoiceInput{
		PatientID:  uuid.New(),
		SessionID:  sessionID,
		IssuedBy:   uuid.New(),
		TerminalID: "PIA-CAJA-01",
		Lines: []billing.InvoiceLine{{
			StudyID:     "study-1",
			StudyCode:   "HEM",
			Description: "Hemograma completo",
			UnitPrice:   decimal.NewFromInt(amount),
			Quantity:    1,
		}},
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return inv, alloc
}

func TestGormInvoiceRepositoryCreateIssued(t *testing.T) {
	db := setupTestDB(t)
	ranges := NewGormRangeRepository(db)
	allocations := NewGormAllocationRepository(db)
	pendings := NewGormPendingRecordRepository(db)
	sessions := NewGormCashSessionRepository(db)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	rng := mustRange(t, "LOTE-PIA-FAC-001", idpool.KindInvoice, 100, 199)
	require.NoError(t, ranges.Save(ctx, rng))

	session, err := cashier.NewCashSession("PIA-CAJA-01", uuid.New(), "Ana Reyes", time.Now())
	require.NoError(t, err)
	require.NoError(t, sessions.Save(ctx, session))

	t.Run("commits invoice, range advance, allocation and queue entry together", func(t *testing.T) {
		inv, alloc := issueTestInvoice(t, rng, session.ID, billing.PaymentCash, 650)
		pending := syncqueue.NewPendingRecord(syncqueue.EntityInvoice, inv.ID, []byte(`{}`))

		require.NoError(t, repo.CreateIssued(ctx, inv, rng, alloc, pending))

		stored, err := repo.FindByNumber(ctx, "FAC-PIA-000000100")
		require.NoError(t, err)
		assert.Equal(t, inv.ID, stored.ID)
		require.Len(t, stored.Lines, 1)
		assert.Equal(t, "Hemograma completo", stored.Lines[0].Description)

		advanced, err := ranges.FindByID(ctx, rng.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(101), advanced.NextUnused)

		count, err := allocations.CountByRange(ctx, rng.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		queued, err := pendings.FindByEntity(ctx, syncqueue.EntityInvoice, inv.ID)
		require.NoError(t, err)
		assert.Equal(t, syncqueue.StatePending, queued.State)
	})

	t.Run("stale range cursor aborts the whole write", func(t *testing.T) {
		stale := *rng
		stale.NextUnused = 100 // already consumed above
		inv, alloc := issueTestInvoice(t, &stale, session.ID, billing.PaymentCash, 300)

		err := repo.CreateIssued(ctx, inv, &stale, alloc, nil)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALLOCATION_CONFLICT", domainErr.Code)

		// nothing landed
		_, err = repo.FindByID(ctx, inv.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		count, err := allocations.CountByRange(ctx, rng.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("session totals group by payment method and skip voided", func(t *testing.T) {
		card, cardAlloc := issueTestInvoice(t, rng, session.ID, billing.PaymentCard, 450)
		require.NoError(t, repo.CreateIssued(ctx, card, rng, cardAlloc, nil))

		voided, voidedAlloc := issueTestInvoice(t, rng, session.ID, billing.PaymentCash, 999)
		require.NoError(t, repo.CreateIssued(ctx, voided, rng, voidedAlloc, nil))
		require.NoError(t, voided.Void())
		require.NoError(t, repo.Update(ctx, voided))

		totals, err := repo.SessionTotals(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, totals.Cash.Equal(decimal.NewFromInt(650)))
		assert.True(t, totals.Card.Equal(decimal.NewFromInt(450)))
		assert.True(t, totals.Total.Equal(decimal.NewFromInt(1100)))
		assert.Equal(t, 2, totals.InvoiceCount)
	})

	t.Run("voided invoice keeps its number", func(t *testing.T) {
		stored, err := repo.FindByNumber(ctx, "FAC-PIA-000000102")
		require.NoError(t, err)
		assert.Equal(t, billing.InvoiceVoided, stored.Status)
		assert.Equal(t, "FAC-PIA-000000102", stored.Number)
	})

	t.Run("list by session is in issuance order", func(t *testing.T) {
		invoices, err := repo.ListBySession(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, invoices, 3)
		assert.Equal(t, "FAC-PIA-000000100", invoices[0].Number)
		assert.Equal(t, "FAC-PIA-000000102", invoices[2].Number)
	})
}
