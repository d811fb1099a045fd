package billing

import (
	"testing"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() NewInvoiceInput {
	return NewInvoiceInput{
		PatientID:  uuid.New(),
		SessionID:  uuid.New(),
		IssuedBy:   uuid.New(),
		TerminalID: "term-01",
		Lines: []InvoiceLine{
			{StudyID: "st-1", StudyCode: "HEM", Description: "Hemograma", UnitPrice: decimal.NewFromInt(350), Quantity: 1},
			{StudyID: "st-2", StudyCode: "GLU", Description: "Glucosa", UnitPrice: decimal.NewFromInt(150), Quantity: 2},
		},
		Discount:      decimal.NewFromInt(50),
		Tax:           decimal.NewFromInt(30),
		PaymentMethod: PaymentCash,
	}
}

func TestNewInvoice(t *testing.T) {
	t.Run("computes totals from lines", func(t *testing.T) {
		inv, err := NewInvoice("FAC-PIA-000000100", 100, validInput())

		require.NoError(t, err)
		assert.Equal(t, "FAC-PIA-000000100", inv.Number)
		assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(650)), "subtotal %s", inv.Subtotal)
		assert.True(t, inv.Total.Equal(decimal.NewFromInt(630)), "total %s", inv.Total)
		assert.Equal(t, InvoicePaid, inv.Status)
		for _, l := range inv.Lines {
			assert.Equal(t, inv.ID, l.InvoiceID)
		}
	})

	t.Run("rejects missing number", func(t *testing.T) {
		_, err := NewInvoice("", 0, validInput())
		assert.Error(t, err)
	})

	t.Run("rejects missing session", func(t *testing.T) {
		in := validInput()
		in.SessionID = uuid.Nil
		_, err := NewInvoice("FAC-PIA-000000100", 100, in)
		assert.ErrorIs(t, err, shared.ErrNoOpenSession)
	})

	t.Run("rejects empty lines", func(t *testing.T) {
		in := validInput()
		in.Lines = nil
		_, err := NewInvoice("FAC-PIA-000000100", 100, in)
		assert.Error(t, err)
	})

	t.Run("rejects discount above subtotal", func(t *testing.T) {
		in := validInput()
		in.Discount = decimal.NewFromInt(10_000)
		_, err := NewInvoice("FAC-PIA-000000100", 100, in)
		assert.Error(t, err)
	})

	t.Run("rejects unknown payment method", func(t *testing.T) {
		in := validInput()
		in.PaymentMethod = PaymentMethod("barter")
		_, err := NewInvoice("FAC-PIA-000000100", 100, in)
		assert.Error(t, err)
	})
}

func TestInvoiceVoid(t *testing.T) {
	inv, err := NewInvoice("FAC-PIA-000000100", 100, validInput())
	require.NoError(t, err)

	require.NoError(t, inv.Void())
	assert.Equal(t, InvoiceVoided, inv.Status)
	// The reserved number stays on the document.
	assert.Equal(t, "FAC-PIA-000000100", inv.Number)
	assert.Error(t, inv.Void())
}

func TestTotalsAccumulate(t *testing.T) {
	var totals Totals

	cash, err := NewInvoice("FAC-PIA-000000100", 100, validInput())
	require.NoError(t, err)

	cardIn := validInput()
	cardIn.PaymentMethod = PaymentCard
	card, err := NewInvoice("FAC-PIA-000000101", 101, cardIn)
	require.NoError(t, err)

	voided, err := NewInvoice("FAC-PIA-000000102", 102, validInput())
	require.NoError(t, err)
	require.NoError(t, voided.Void())

	totals.Accumulate(cash)
	totals.Accumulate(card)
	totals.Accumulate(voided)

	assert.Equal(t, 2, totals.InvoiceCount)
	assert.True(t, totals.Cash.Equal(decimal.NewFromInt(630)))
	assert.True(t, totals.Card.Equal(decimal.NewFromInt(630)))
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(1260)))
	assert.True(t, totals.Insurance.IsZero())
}
