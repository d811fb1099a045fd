package idpool

import (
	"context"

	"github.com/google/uuid"
)

// RangeRepository persists identifier ranges in the local store.
type RangeRepository interface {
	// Save persists a newly granted range.
	Save(ctx context.Context, r *Range) error
	// Update persists an advanced or retired range.
	Update(ctx context.Context, r *Range) error
	// FindByID retrieves a range by local id.
	FindByID(ctx context.Context, id uuid.UUID) (*Range, error)
	// FindByBatchID retrieves a range by its authority batch label.
	FindByBatchID(ctx context.Context, batchID string) (*Range, error)
	// FindActive returns the oldest range of the kind that still has
	// headroom, or shared.ErrNotFound.
	FindActive(ctx context.Context, kind Kind) (*Range, error)
	// ListByKind returns all ranges of a kind, oldest first.
	ListByKind(ctx context.Context, kind Kind) ([]*Range, error)
	// List returns every range held by the terminal, oldest first.
	List(ctx context.Context) ([]*Range, error)
	// Remaining sums the headroom across active ranges of a kind.
	Remaining(ctx context.Context, kind Kind) (int64, error)
	// Delete removes a range that was returned to the authority.
	Delete(ctx context.Context, id uuid.UUID) error
}

// AllocationRepository is the append-only log of consumed identifiers.
type AllocationRepository interface {
	// Append records an allocation. Implementations enforce code
	// uniqueness so a replayed allocation cannot slip through.
	Append(ctx context.Context, a *Allocation) error
	// AppendDrawn commits the advanced range and its new allocation in
	// one transaction, guarding against a concurrent draw of the same
	// value. Used for standalone barcode draws that do not travel with
	// a document (invoice draws go through the invoice repository).
	AppendDrawn(ctx context.Context, rng *Range, a *Allocation) error
	// CountByRange returns how many allocations a range has produced.
	CountByRange(ctx context.Context, rangeID uuid.UUID) (int64, error)
	// List returns allocations of a kind, newest first, capped at limit.
	List(ctx context.Context, kind Kind, limit int) ([]*Allocation, error)
}
