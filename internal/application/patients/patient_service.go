package patients

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
)

// SyncKicker wakes the sync coordinator after a local write. A nil-safe
// no-op implementation is fine in tests.
type SyncKicker interface {
	Kick()
}

// Service manages the local patient directory.
type Service struct {
	patients patient.Repository
	kicker   SyncKicker
	logger   *zap.Logger
}

// NewService creates a new patient service
func NewService(patients patient.Repository, kicker SyncKicker, logger *zap.Logger) *Service {
	return &Service{
		patients: patients,
		kicker:   kicker,
		logger:   logger.Named("patients"),
	}
}

// CreateInput contains input for registering a patient.
type CreateInput struct {
	DocumentID string `json:"document_id"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	BirthDate  string `json:"birth_date"` // YYYY-MM-DD
	Sex        string `json:"sex"`
	Address    string `json:"address"`
	BranchID   string `json:"branch_id" binding:"required"`
}

// pushPayload is the JSON body queued for the sync coordinator.
type pushPayload struct {
	LocalID    uuid.UUID  `json:"local_id"`
	DocumentID string     `json:"document_id,omitempty"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Phone      string     `json:"phone,omitempty"`
	Email      string     `json:"email,omitempty"`
	BirthDate  *time.Time `json:"birth_date,omitempty"`
	Sex        string     `json:"sex,omitempty"`
	Address    string     `json:"address,omitempty"`
	BranchID   string     `json:"branch_id"`
}

// Create registers a patient locally and queues it for sync. The write
// succeeds regardless of connectivity; the coordinator pushes it when
// the server is back.
func (s *Service) Create(ctx context.Context, in CreateInput) (*patient.Patient, error) {
	p, err := patient.NewPatient(in.DocumentID, in.FirstName, in.LastName, in.BranchID)
	if err != nil {
		return nil, err
	}
	p.Phone = in.Phone
	p.Email = in.Email
	p.Sex = in.Sex
	p.Address = in.Address
	if in.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", in.BirthDate)
		if err != nil {
			return nil, shared.NewDomainError("INVALID_PATIENT", "Birth date must be YYYY-MM-DD")
		}
		p.BirthDate = &birth
	}

	if p.DocumentID != "" {
		if _, err := s.patients.FindByDocument(ctx, p.DocumentID); err == nil {
			return nil, shared.NewDomainError("DUPLICATE_PATIENT", "A patient with this document already exists")
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
	}

	payload, err := json.Marshal(pushPayload{
		LocalID:    p.ID,
		DocumentID: p.DocumentID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Phone:      p.Phone,
		Email:      p.Email,
		BirthDate:  p.BirthDate,
		Sex:        p.Sex,
		Address:    p.Address,
		BranchID:   p.BranchID,
	})
	if err != nil {
		return nil, err
	}

	pending := syncqueue.NewPendingRecord(syncqueue.EntityPatient, p.ID, payload)
	if err := s.patients.Create(ctx, p, pending); err != nil {
		return nil, err
	}

	s.logger.Info("patient registered",
		zap.String("patient_id", p.ID.String()),
		zap.String("name", p.FullName()))
	if s.kicker != nil {
		s.kicker.Kick()
	}
	return p, nil
}

// Get retrieves a patient by local id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return s.patients.FindByID(ctx, id)
}

// Search finds patients by folded name or document fragment.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*patient.Patient, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.patients.Search(ctx, query, limit)
}
