package billing

import (
	"time"

	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the patient settled the invoice.
type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "cash"
	PaymentCard      PaymentMethod = "card"
	PaymentTransfer  PaymentMethod = "transfer"
	PaymentInsurance PaymentMethod = "insurance"
)

// IsValid reports whether m is a known payment method.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentInsurance:
		return true
	}
	return false
}

// InvoiceStatus is the lifecycle of an issued invoice.
type InvoiceStatus string

const (
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceVoided InvoiceStatus = "voided"
)

// InvoiceLine is one billed study.
type InvoiceLine struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	StudyID     string // catalog id of the study
	StudyCode   string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int
}

// LineTotal returns unit price times quantity.
func (l *InvoiceLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Invoice is a billing document issued by this terminal. Its number comes
// from the identifier reservation pool and exists before the document
// does; an invoice without a reserved number is never created.
type Invoice struct {
	shared.BaseEntity
	Number        string // printed code, e.g. FAC-PIA-000000105
	NumberValue   int64  // numeric part of the reserved identifier
	PatientID     uuid.UUID
	SessionID     uuid.UUID // cash session open at the instant of issuance
	IssuedBy      uuid.UUID
	TerminalID    string
	IssuedAt      time.Time
	Lines         []InvoiceLine
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Status        InvoiceStatus
	RemoteID      string
	Synced        bool
}

// NewInvoiceInput carries everything needed to issue an invoice; the
// number is attached separately by the issuing service after the pool
// allocation succeeds.
type NewInvoiceInput struct {
	PatientID     uuid.UUID
	SessionID     uuid.UUID
	IssuedBy      uuid.UUID
	TerminalID    string
	Lines         []InvoiceLine
	Discount      decimal.Decimal
	Tax           decimal.Decimal
	PaymentMethod PaymentMethod
}

// NewInvoice issues an invoice under the given reserved number.
func NewInvoice(number string, numberValue int64, in NewInvoiceInput) (*Invoice, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice requires a reserved number")
	}
	if in.PatientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice requires a patient")
	}
	if in.SessionID == uuid.Nil {
		return nil, shared.ErrNoOpenSession
	}
	if len(in.Lines) == 0 {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice requires at least one line")
	}
	if !in.PaymentMethod.IsValid() {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Unknown payment method")
	}

	subtotal := decimal.Zero
	for i := range in.Lines {
		if in.Lines[i].Quantity <= 0 {
			return nil, shared.NewDomainError("INVALID_INVOICE", "Line quantity must be positive")
		}
		if in.Lines[i].UnitPrice.IsNegative() {
			return nil, shared.NewDomainError("INVALID_INVOICE", "Line price cannot be negative")
		}
		subtotal = subtotal.Add(in.Lines[i].LineTotal())
	}
	if in.Discount.IsNegative() || in.Discount.GreaterThan(subtotal) {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Discount must be between zero and the subtotal")
	}
	if in.Tax.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Tax cannot be negative")
	}

	inv := &Invoice{
		BaseEntity:    shared.NewBaseEntity(),
		Number:        number,
		NumberValue:   numberValue,
		PatientID:     in.PatientID,
		SessionID:     in.SessionID,
		IssuedBy:      in.IssuedBy,
		TerminalID:    in.TerminalID,
		IssuedAt:      time.Now(),
		Lines:         in.Lines,
		Subtotal:      subtotal,
		Discount:      in.Discount,
		Tax:           in.Tax,
		Total:         subtotal.Sub(in.Discount).Add(in.Tax),
		PaymentMethod: in.PaymentMethod,
		Status:        InvoicePaid,
	}
	for i := range inv.Lines {
		inv.Lines[i].ID = uuid.New()
		inv.Lines[i].InvoiceID = inv.ID
	}
	return inv, nil
}

// Void cancels the invoice. The reserved number stays consumed forever;
// voiding never returns it to the pool.
func (inv *Invoice) Void() error {
	if inv.Status == InvoiceVoided {
		return shared.ErrInvalidState
	}
	inv.Status = InvoiceVoided
	inv.Touch()
	return nil
}

// MarkSynced records the authority's durable id for this invoice.
func (inv *Invoice) MarkSynced(remoteID string) {
	inv.RemoteID = remoteID
	inv.Synced = true
	inv.Touch()
}

// Totals aggregates a session's invoices by payment method. Totals follow
// the session id, never the calendar date, so a session spanning midnight
// reconciles as one unit.
type Totals struct {
	Cash         decimal.Decimal
	Card         decimal.Decimal
	Transfer     decimal.Decimal
	Insurance    decimal.Decimal
	Total        decimal.Decimal
	InvoiceCount int
}

// Accumulate adds a non-voided invoice to the totals.
func (t *Totals) Accumulate(inv *Invoice) {
	if inv.Status == InvoiceVoided {
		return
	}
	switch inv.PaymentMethod {
	case PaymentCash:
		t.Cash = t.Cash.Add(inv.Total)
	case PaymentCard:
		t.Card = t.Card.Add(inv.Total)
	case PaymentTransfer:
		t.Transfer = t.Transfer.Add(inv.Total)
	case PaymentInsurance:
		t.Insurance = t.Insurance.Add(inv.Total)
	}
	t.Total = t.Total.Add(inv.Total)
	t.InvoiceCount++
}
