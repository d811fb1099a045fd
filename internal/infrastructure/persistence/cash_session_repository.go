package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/clinic/terminal/internal/domain/cashier"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormCashSessionRepository implements cashier.Repository using GORM
type GormCashSessionRepository struct {
	db *gorm.DB
}

// NewGormCashSessionRepository creates a new GORM-based cash session repository
func NewGormCashSessionRepository(db *gorm.DB) cashier.Repository {
	return &GormCashSessionRepository{db: db}
}

// Save persists a newly opened session. The open-count check and the
// insert run in one transaction so two racing opens cannot both land.
func (r *GormCashSessionRepository) Save(ctx context.Context, s *cashier.CashSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		err := tx.Model(&models.CashSession{}).
			Where("terminal_id = ? AND status = ?", s.TerminalID, string(cashier.SessionOpen)).
			Count(&open).Error
		if err != nil {
			return err
		}
		if open > 0 {
			return shared.NewDomainError("SESSION_ALREADY_OPEN", "A cash session is already open on this terminal")
		}

		var model models.CashSession
		model.FromDomainCashSession(s)
		return tx.Create(&model).Error
	})
}

// Update persists a close
func (r *GormCashSessionRepository) Update(ctx context.Context, s *cashier.CashSession) error {
	var model models.CashSession
	model.FromDomainCashSession(s)

	result := r.db.WithContext(ctx).Model(&models.CashSession{}).
		Where("id = ?", s.ID).
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

// FindByID retrieves a session by id
func (r *GormCashSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*cashier.CashSession, error) {
	var model models.CashSession
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpen returns the terminal's open session
func (r *GormCashSessionRepository) FindOpen(ctx context.Context, terminalID string) (*cashier.CashSession, error) {
	var model models.CashSession
	err := r.db.WithContext(ctx).
		Where("terminal_id = ? AND status = ?", terminalID, string(cashier.SessionOpen)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns the terminal's session history, newest first
func (r *GormCashSessionRepository) List(ctx context.Context, terminalID string, limit int) ([]*cashier.CashSession, error) {
	var rows []models.CashSession
	q := r.db.WithContext(ctx).
		Where("terminal_id = ?", terminalID).
		Order("opened_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	sessions := make([]*cashier.CashSession, len(rows))
	for i := range rows {
		sessions[i] = rows[i].ToDomain()
	}
	return sessions, nil
}
