package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormPatientRepository implements patient.Repository using GORM
type GormPatientRepository struct {
	db *gorm.DB
}

// NewGormPatientRepository creates a new GORM-based patient repository
func NewGormPatientRepository(db *gorm.DB) patient.Repository {
	return &GormPatientRepository{db: db}
}

// Create persists the patient and its pending-sync record in the same
// local transaction.
func (r *GormPatientRepository) Create(ctx context.Context, p *patient.Patient, pending *syncqueue.PendingRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.Patient
		model.FromDomainPatient(p)
		if err := tx.Create(&model).Error; err != nil {
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

// Update persists changes to an existing patient
func (r *GormPatientRepository) Update(ctx context.Context, p *patient.Patient) error {
	var model models.Patient
	model.FromDomainPatient(p)

	result := r.db.WithContext(ctx).Model(&models.Patient{}).
		Where("id = ?", p.ID).
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

// FindByID retrieves a patient by local id
func (r *GormPatientRepository) FindByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var model models.Patient
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByDocument retrieves a patient by national id
func (r *GormPatientRepository) FindByDocument(ctx context.Context, documentID string) (*patient.Patient, error) {
	var model models.Patient
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Search matches the folded search key against a folded query
func (r *GormPatientRepository) Search(ctx context.Context, query string, limit int) ([]*patient.Patient, error) {
	folded := patient.FoldSearchKey(query)
	if folded == "" {
		return nil, nil
	}

	var rows []models.Patient
	q := r.db.WithContext(ctx).
		Where("search_key LIKE ?", "%"+folded+"%").
		Order("last_name ASC, first_name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	patients := make([]*patient.Patient, len(rows))
	for i := range rows {
		patients[i] = rows[i].ToDomain()
	}
	return patients, nil
}

// Upsert stores a reference-data patient pulled from the authority,
// keyed by remote id. Local unsynced patients have no remote id and are
// never matched here.
func (r *GormPatientRepository) Upsert(ctx context.Context, p *patient.Patient) error {
	if p.RemoteID == "" {
		return shared.NewDomainError("INVALID_PATIENT", "Upsert requires a remote id")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Patient
		err := tx.Where("remote_id = ?", p.RemoteID).First(&existing).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			var model models.Patient
			model.FromDomainPatient(p)
			return tx.Create(&model).Error
		}

		// Keep the local row id stable across refreshes
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		var model models.Patient
		model.FromDomainPatient(p)
		return tx.Model(&models.Patient{}).
			Where("id = ?", existing.ID).
			Select("*").Omit("id", "created_at").
			Updates(&model).Error
	})
}
