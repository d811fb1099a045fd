package patient

import (
	"context"

	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/google/uuid"
)

// Repository persists patients in the local store.
type Repository interface {
	// Create persists the patient and, when pending is non-nil, the
	// pending-sync record in the same local transaction.
	Create(ctx context.Context, p *Patient, pending *syncqueue.PendingRecord) error
	// Update persists changes to an existing patient.
	Update(ctx context.Context, p *Patient) error
	// FindByID retrieves a patient by local id.
	FindByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	// FindByDocument retrieves a patient by national id.
	FindByDocument(ctx context.Context, documentID string) (*Patient, error)
	// Search matches the folded search key against a folded query.
	Search(ctx context.Context, query string, limit int) ([]*Patient, error)
	// Upsert stores a reference-data patient pulled from the authority,
	// keyed by remote id. Bootstrap uses it; it never touches local
	// unsynced patients.
	Upsert(ctx context.Context, p *Patient) error
}
