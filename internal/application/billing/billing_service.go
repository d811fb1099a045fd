package billing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/application/pool"
	"github.com/clinic/terminal/internal/domain/billing"
	"github.com/clinic/terminal/internal/domain/cashier"
	"github.com/clinic/terminal/internal/domain/catalog"
	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
)

// SyncKicker wakes the sync coordinator after a local write.
type SyncKicker interface {
	Kick()
}

// Service issues invoices. Every invoice consumes one identifier from
// the reservation pool and lands in the sync queue in the same local
// transaction.
type Service struct {
	invoices   billing.InvoiceRepository
	sessions   cashier.Repository
	patients   patient.Repository
	studies    catalog.Repository
	queue      syncqueue.Repository
	pool       *pool.Service
	kicker     SyncKicker
	terminalID string
	logger     *zap.Logger
}

// NewService creates a new billing service
func NewService(
	invoices billing.InvoiceRepository,
	sessions cashier.Repository,
	patients patient.Repository,
	studies catalog.Repository,
	queue syncqueue.Repository,
	poolSvc *pool.Service,
	kicker SyncKicker,
	terminalID string,
	logger *zap.Logger,
) *Service {
	return &Service{
		invoices:   invoices,
		sessions:   sessions,
		patients:   patients,
		studies:    studies,
		queue:      queue,
		pool:       poolSvc,
		kicker:     kicker,
		terminalID: terminalID,
		logger:     logger.Named("billing"),
	}
}

// LineInput selects one study to bill.
type LineInput struct {
	StudyID  string `json:"study_id" binding:"required"`
	Quantity int    `json:"quantity"`
}

// CreateInvoiceInput contains input for issuing an invoice.
type CreateInvoiceInput struct {
	PatientID     uuid.UUID       `json:"patient_id" binding:"required"`
	IssuedBy      uuid.UUID       `json:"-"`
	Lines         []LineInput     `json:"lines" binding:"required,min=1,dive"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
}

// invoicePayload is the JSON body queued for the sync coordinator. The
// coordinator refreshes mutable fields (patient remote id, status) at
// push time.
type invoicePayload struct {
	LocalID        uuid.UUID     `json:"local_id"`
	Number         string        `json:"number"`
	NumberValue    int64         `json:"number_value"`
	PatientLocalID uuid.UUID     `json:"patient_local_id"`
	PatientID      string        `json:"patient_id,omitempty"` // remote id, filled at push
	AccountingDate string        `json:"accounting_date"`
	IssuedAt       time.Time     `json:"issued_at"`
	TerminalID     string        `json:"terminal_id"`
	Lines          []linePayload `json:"lines"`
	Subtotal       string        `json:"subtotal"`
	Discount       string        `json:"discount"`
	Tax            string        `json:"tax"`
	Total          string        `json:"total"`
	PaymentMethod  string        `json:"payment_method"`
	Status         string        `json:"status"`
}

type linePayload struct {
	StudyID     string `json:"study_id"`
	StudyCode   string `json:"study_code"`
	Description string `json:"description"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

// CreateInvoice issues an invoice under the next reserved identifier.
// It fails fast with ErrNoOpenSession when no cash session is open and
// with ErrPoolExhausted when the pool is dry and the server is
// unreachable; it never issues a provisional number.
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput) (*billing.Invoice, error) {
	session, err := s.sessions.FindOpen(ctx, s.terminalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrNoOpenSession
		}
		return nil, err
	}

	pat, err := s.patients.FindByID(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}

	lines, err := s.resolveLines(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	var issued *billing.Invoice
	err = s.pool.WithAllocation(ctx, idpool.KindInvoice, func(rng *idpool.Range, alloc *idpool.Allocation) error {
		inv, err := billing.NewInvoice(alloc.Code, alloc.Value, billing.NewInvoiceInput{
			PatientID:     pat.ID,
			SessionID:     session.ID,
			IssuedBy:      in.IssuedBy,
			TerminalID:    s.terminalID,
			Lines:         lines,
			Discount:      in.Discount,
			Tax:           in.Tax,
			PaymentMethod: billing.PaymentMethod(in.PaymentMethod),
		})
		if err != nil {
			return err
		}

		pending, err := s.buildPending(ctx, inv, session, pat)
		if err != nil {
			return err
		}

		if err := s.invoices.CreateIssued(ctx, inv, rng, alloc, pending); err != nil {
			return err
		}
		issued = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice issued",
		zap.String("number", issued.Number),
		zap.String("patient_id", pat.ID.String()),
		zap.String("total", issued.Total.StringFixed(2)))
	if s.kicker != nil {
		s.kicker.Kick()
	}
	return issued, nil
}

// resolveLines prices the requested studies from the local catalog
// mirror.
func (s *Service) resolveLines(ctx context.Context, inputs []LineInput) ([]billing.InvoiceLine, error) {
	if len(inputs) == 0 {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice requires at least one line")
	}

	lines := make([]billing.InvoiceLine, 0, len(inputs))
	for _, in := range inputs {
		study, err := s.studies.FindStudy(ctx, in.StudyID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewDomainError("UNKNOWN_STUDY", "Study is not in the local catalog")
			}
			return nil, err
		}
		qty := in.Quantity
		if qty == 0 {
			qty = 1
		}
		lines = append(lines, billing.InvoiceLine{
			StudyID:     study.RemoteID,
			StudyCode:   study.Code,
			Description: study.Name,
			UnitPrice:   study.Price,
			Quantity:    qty,
		})
	}
	return lines, nil
}

// buildPending queues the invoice for sync. If the patient was created
// offline and is still waiting, the invoice depends on it: the server
// must know the patient before it can accept the invoice.
func (s *Service) buildPending(ctx context.Context, inv *billing.Invoice, session *cashier.CashSession, pat *patient.Patient) (*syncqueue.PendingRecord, error) {
	payloadLines := make([]linePayload, len(inv.Lines))
	for i, l := range inv.Lines {
		payloadLines[i] = linePayload{
			StudyID:     l.StudyID,
			StudyCode:   l.StudyCode,
			Description: l.Description,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
		}
	}

	payload, err := json.Marshal(invoicePayload{
		LocalID:        inv.ID,
		Number:         inv.Number,
		NumberValue:    inv.NumberValue,
		PatientLocalID: pat.ID,
		PatientID:      pat.RemoteID,
		AccountingDate: session.AccountingDate.Format("2006-01-02"),
		IssuedAt:       inv.IssuedAt,
		TerminalID:     inv.TerminalID,
		Lines:          payloadLines,
		Subtotal:       inv.Subtotal.StringFixed(2),
		Discount:       inv.Discount.StringFixed(2),
		Tax:            inv.Tax.StringFixed(2),
		Total:          inv.Total.StringFixed(2),
		PaymentMethod:  string(inv.PaymentMethod),
		Status:         string(inv.Status),
	})
	if err != nil {
		return nil, err
	}

	pending := syncqueue.NewPendingRecord(syncqueue.EntityInvoice, inv.ID, payload)
	if !pat.Synced {
		if patientPending, err := s.queue.FindByEntity(ctx, syncqueue.EntityPatient, pat.ID); err == nil {
			pending.WithDependency(patientPending.ID)
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}
	return pending, nil
}

// VoidInvoice cancels an invoice. The identifier stays consumed; the
// void is visible in the session totals immediately.
func (s *Service) VoidInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := inv.Void(); err != nil {
		return nil, err
	}
	if err := s.invoices.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("invoice voided", zap.String("number", inv.Number))
	if s.kicker != nil {
		s.kicker.Kick()
	}
	return inv, nil
}

// GetInvoice retrieves an invoice by id.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	return s.invoices.FindByID(ctx, id)
}

// GetByNumber retrieves an invoice by printed number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	return s.invoices.FindByNumber(ctx, number)
}

// ListSessionInvoices returns the invoices of one session in issuance
// order.
func (s *Service) ListSessionInvoices(ctx context.Context, sessionID uuid.UUID) ([]*billing.Invoice, error) {
	return s.invoices.ListBySession(ctx, sessionID)
}
