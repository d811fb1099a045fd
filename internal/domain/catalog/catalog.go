package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Reference data pulled from the authority during bootstrap. The
// authority owns these records; the terminal only mirrors them so the
// UI keeps working while disconnected. All types are keyed by the
// authority's id, not a terminal-local one.

// Study is a billable lab/imaging study from the price catalog.
type Study struct {
	RemoteID  string
	Code      string
	Name      string
	Category  string
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// Branch is a clinic location.
type Branch struct {
	RemoteID string
	Code     string // short code used in identifier prefixes, e.g. PIA
	Name     string
}

// Equipment is a lab/imaging device in the roster.
type Equipment struct {
	RemoteID string
	Name     string
	Modality string
	BranchID string
	Active   bool
}

// StaffMember is the reference snapshot of a user account, pulled so the
// UI can attribute records while offline. It carries no credential; the
// authentication cache owns those.
type StaffMember struct {
	RemoteID    string
	Username    string
	DisplayName string
	Role        string
	BranchID    string
}

// Repository persists the reference-data mirror in the local store. All
// writes are upserts keyed by remote id so bootstrap stays idempotent.
type Repository interface {
	UpsertStudies(ctx context.Context, studies []Study) error
	UpsertBranches(ctx context.Context, branches []Branch) error
	UpsertEquipment(ctx context.Context, equipment []Equipment) error
	UpsertStaff(ctx context.Context, staff []StaffMember) error

	ListStudies(ctx context.Context) ([]Study, error)
	FindStudy(ctx context.Context, remoteID string) (*Study, error)
	ListBranches(ctx context.Context) ([]Branch, error)
	FindBranch(ctx context.Context, code string) (*Branch, error)
	ListEquipment(ctx context.Context, branchID string) ([]Equipment, error)
	ListStaff(ctx context.Context) ([]StaffMember, error)

	// Counts returns per-table row counts for the sync status endpoint.
	Counts(ctx context.Context) (map[string]int64, error)
}
