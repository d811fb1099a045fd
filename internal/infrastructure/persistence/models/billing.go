package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/terminal/internal/domain/billing"
)

// Invoice maps billing.Invoice. The unique index on number backs the
// one-invoice-per-identifier rule at the storage level.
type Invoice struct {
	BaseModel
	Number        string    `gorm:"uniqueIndex;not null"`
	NumberValue   int64     `gorm:"not null"`
	PatientID     uuid.UUID `gorm:"type:text;index;not null"`
	SessionID     uuid.UUID `gorm:"type:text;index;not null"`
	IssuedBy      uuid.UUID `gorm:"type:text;not null"`
	TerminalID    string    `gorm:"not null"`
	IssuedAt      time.Time `gorm:"index;not null"`
	Subtotal      decimal.Decimal `gorm:"type:text;not null"`
	Discount      decimal.Decimal `gorm:"type:text;not null"`
	Tax           decimal.Decimal `gorm:"type:text;not null"`
	Total         decimal.Decimal `gorm:"type:text;not null"`
	PaymentMethod string          `gorm:"not null"`
	Status        string          `gorm:"index;not null"`
	RemoteID      *string         `gorm:"uniqueIndex"`
	Synced        bool            `gorm:"index;not null;default:false"`
	Lines         []InvoiceLine   `gorm:"foreignKey:InvoiceID"`
}

// TableName returns the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceLine maps billing.InvoiceLine.
type InvoiceLine struct {
	ID          uuid.UUID `gorm:"type:text;primaryKey"`
	InvoiceID   uuid.UUID `gorm:"type:text;index;not null"`
	StudyID     string    `gorm:"not null"`
	StudyCode   string
	Description string
	UnitPrice   decimal.Decimal `gorm:"type:text;not null"`
	Quantity    int             `gorm:"not null"`
}

// TableName returns the table name for InvoiceLine
func (InvoiceLine) TableName() string {
	return "invoice_lines"
}

// ToDomain converts the model to a domain Invoice
func (m *Invoice) ToDomain() *billing.Invoice {
	lines := make([]billing.InvoiceLine, len(m.Lines))
	for i := range m.Lines {
		lines[i] = billing.InvoiceLine{
			ID:          m.Lines[i].ID,
			InvoiceID:   m.Lines[i].InvoiceID,
			StudyID:     m.Lines[i].StudyID,
			StudyCode:   m.Lines[i].StudyCode,
			Description: m.Lines[i].Description,
			UnitPrice:   m.Lines[i].UnitPrice,
			Quantity:    m.Lines[i].Quantity,
		}
	}

	remoteID := ""
	if m.RemoteID != nil {
		remoteID = *m.RemoteID
	}

	return &billing.Invoice{
		BaseEntity:    m.BaseModel.ToDomain(),
		Number:        m.Number,
		NumberValue:   m.NumberValue,
		PatientID:     m.PatientID,
		SessionID:     m.SessionID,
		IssuedBy:      m.IssuedBy,
		TerminalID:    m.TerminalID,
		IssuedAt:      m.IssuedAt,
		Lines:         lines,
		Subtotal:      m.Subtotal,
		Discount:      m.Discount,
		Tax:           m.Tax,
		Total:         m.Total,
		PaymentMethod: billing.PaymentMethod(m.PaymentMethod),
		Status:        billing.InvoiceStatus(m.Status),
		RemoteID:      remoteID,
		Synced:        m.Synced,
	}
}

// FromDomainInvoice populates the model from a domain Invoice
func (m *Invoice) FromDomainInvoice(inv *billing.Invoice) {
	m.BaseModel.FromDomain(inv.BaseEntity)
	m.Number = inv.Number
	m.NumberValue = inv.NumberValue
	m.PatientID = inv.PatientID
	m.SessionID = inv.SessionID
	m.IssuedBy = inv.IssuedBy
	m.TerminalID = inv.TerminalID
	m.IssuedAt = inv.IssuedAt
	m.Subtotal = inv.Subtotal
	m.Discount = inv.Discount
	m.Tax = inv.Tax
	m.Total = inv.Total
	m.PaymentMethod = string(inv.PaymentMethod)
	m.Status = string(inv.Status)
	m.Synced = inv.Synced
	if inv.RemoteID != "" {
		m.RemoteID = &inv.RemoteID
	} else {
		m.RemoteID = nil
	}
	m.Lines = make([]InvoiceLine, len(inv.Lines))
	for i := range inv.Lines {
		m.Lines[i] = InvoiceLine{
			ID:          inv.Lines[i].ID,
			InvoiceID:   inv.Lines[i].InvoiceID,
			StudyID:     inv.Lines[i].StudyID,
			StudyCode:   inv.Lines[i].StudyCode,
			Description: inv.Lines[i].Description,
			UnitPrice:   inv.Lines[i].UnitPrice,
			Quantity:    inv.Lines[i].Quantity,
		}
	}
}
