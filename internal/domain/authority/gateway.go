package authority

import (
	"context"
	"time"

	"github.com/clinic/terminal/internal/domain/catalog"
	"github.com/clinic/terminal/internal/domain/identity"
	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/syncqueue"
)

// RangeRequest asks the central server to reserve a block of
// identifiers for this terminal.
type RangeRequest struct {
	Kind       idpool.Kind
	TerminalID string
	BranchCode string
	Size       int64
}

// RangeGrant is the server's answer to a RangeRequest. The grant is
// durable server-side before it reaches the terminal; a grant that gets
// lost on the wire leaves a hole in the number space, never a duplicate.
type RangeGrant struct {
	AuthorityID string
	BatchID     string
	Prefix      string
	Start       int64
	End         int64
}

// PushResult is the server's acknowledgment of a pushed record.
type PushResult struct {
	RemoteID string
}

// CatalogSnapshot is one bootstrap pull of the reference data the
// terminal mirrors locally.
type CatalogSnapshot struct {
	Studies   []catalog.Study
	Branches  []catalog.Branch
	Equipment []catalog.Equipment
	Staff     []catalog.StaffMember
}

// Gateway is the terminal's only door to the central server. Every
// method can fail with shared.ErrConnectivityTimeout when the server is
// unreachable; callers decide whether that is fatal or just feeds the
// connectivity state machine.
type Gateway interface {
	// Health performs the cheap authenticated probe the connectivity
	// supervisor runs on its interval.
	Health(ctx context.Context) error

	// Login validates a credential online. Returns
	// shared.ErrUnauthorized when the server rejects it.
	Login(ctx context.Context, username, password string) (*identity.User, error)

	// RequestRange reserves a fresh identifier block.
	RequestRange(ctx context.Context, req RangeRequest) (*RangeGrant, error)

	// ReportUsage tells the server the highest value consumed from a
	// batch, so a lost terminal forfeits only the unreported tail.
	ReportUsage(ctx context.Context, batchID string, lastUsed int64) error

	// ReturnRange gives the unused tail of a batch back to the server,
	// e.g. when a terminal is decommissioned.
	ReturnRange(ctx context.Context, batchID string, fromValue int64) error

	// Push uploads one locally created record. Returns
	// shared.ErrSyncConflict when the server rejects the record for
	// business reasons; such records are parked, never retried blindly.
	Push(ctx context.Context, entityType syncqueue.EntityType, payload []byte) (*PushResult, error)

	// FetchCatalog pulls the reference-data mirror.
	FetchCatalog(ctx context.Context) (*CatalogSnapshot, error)

	// FetchPatients pulls the patient directory incrementally.
	FetchPatients(ctx context.Context, updatedSince time.Time) ([]*patient.Patient, error)
}
