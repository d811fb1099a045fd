package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clinic/terminal/internal/domain/catalog"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

// GormCatalogRepository implements catalog.Repository using GORM
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GORM-based catalog repository
func NewGormCatalogRepository(db *gorm.DB) catalog.Repository {
	return &GormCatalogRepository{db: db}
}

// upsertAll replaces rows keyed by the authority's id inside one
// transaction, so a half-applied bootstrap page never survives.
func upsertAll[T any](ctx context.Context, db *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "remote_id"}},
			UpdateAll: true,
		}).Create(&rows).Error
	})
}

// UpsertStudies stores or refreshes price-catalog studies
func (r *GormCatalogRepository) UpsertStudies(ctx context.Context, studies []catalog.Study) error {
	rows := make([]models.CatalogStudy, len(studies))
	for i := range studies {
		rows[i].FromDomainStudy(studies[i])
	}
	return upsertAll(ctx, r.db, rows)
}

// UpsertBranches stores or refreshes clinic branches
func (r *GormCatalogRepository) UpsertBranches(ctx context.Context, branches []catalog.Branch) error {
	rows := make([]models.CatalogBranch, len(branches))
	for i := range branches {
		rows[i].FromDomainBranch(branches[i])
	}
	return upsertAll(ctx, r.db, rows)
}

// UpsertEquipment stores or refreshes the equipment roster
func (r *GormCatalogRepository) UpsertEquipment(ctx context.Context, equipment []catalog.Equipment) error {
	rows := make([]models.CatalogEquipment, len(equipment))
	for i := range equipment {
		rows[i].FromDomainEquipment(equipment[i])
	}
	return upsertAll(ctx, r.db, rows)
}

// UpsertStaff stores or refreshes the staff snapshot
func (r *GormCatalogRepository) UpsertStaff(ctx context.Context, staff []catalog.StaffMember) error {
	rows := make([]models.CatalogStaff, len(staff))
	for i := range staff {
		rows[i].FromDomainStaff(staff[i])
	}
	return upsertAll(ctx, r.db, rows)
}

// ListStudies returns the study catalog ordered by code
func (r *GormCatalogRepository) ListStudies(ctx context.Context) ([]catalog.Study, error) {
	var rows []models.CatalogStudy
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	studies := make([]catalog.Study, len(rows))
	for i := range rows {
		studies[i] = rows[i].ToDomain()
	}
	return studies, nil
}

// FindStudy retrieves a study by its authority id
func (r *GormCatalogRepository) FindStudy(ctx context.Context, remoteID string) (*catalog.Study, error) {
	var model models.CatalogStudy
	err := r.db.WithContext(ctx).Where("remote_id = ?", remoteID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	study := model.ToDomain()
	return &study, nil
}

// ListBranches returns all clinic branches
func (r *GormCatalogRepository) ListBranches(ctx context.Context) ([]catalog.Branch, error) {
	var rows []models.CatalogBranch
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	branches := make([]catalog.Branch, len(rows))
	for i := range rows {
		branches[i] = rows[i].ToDomain()
	}
	return branches, nil
}

// FindBranch retrieves a branch by its short code
func (r *GormCatalogRepository) FindBranch(ctx context.Context, code string) (*catalog.Branch, error) {
	var model models.CatalogBranch
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	branch := model.ToDomain()
	return &branch, nil
}

// ListEquipment returns the equipment roster, optionally per branch
func (r *GormCatalogRepository) ListEquipment(ctx context.Context, branchID string) ([]catalog.Equipment, error) {
	q := r.db.WithContext(ctx).Order("name ASC")
	if branchID != "" {
		q = q.Where("branch_id = ?", branchID)
	}
	var rows []models.CatalogEquipment
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	equipment := make([]catalog.Equipment, len(rows))
	for i := range rows {
		equipment[i] = rows[i].ToDomain()
	}
	return equipment, nil
}

// ListStaff returns the staff snapshot
func (r *GormCatalogRepository) ListStaff(ctx context.Context) ([]catalog.StaffMember, error) {
	var rows []models.CatalogStaff
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	staff := make([]catalog.StaffMember, len(rows))
	for i := range rows {
		staff[i] = rows[i].ToDomain()
	}
	return staff, nil
}

// Counts returns per-table row counts for the sync status endpoint
func (r *GormCatalogRepository) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, 4)
	tables := map[string]any{
		"studies":   &models.CatalogStudy{},
		"branches":  &models.CatalogBranch{},
		"equipment": &models.CatalogEquipment{},
		"staff":     &models.CatalogStaff{},
	}
	for name, model := range tables {
		var count int64
		if err := r.db.WithContext(ctx).Model(model).Count(&count).Error; err != nil {
			return nil, err
		}
		counts[name] = count
	}
	return counts, nil
}
