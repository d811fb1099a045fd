package pool

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/identity"
	"github.com/clinic/terminal/internal/domain/idpool"
	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/clinic/terminal/internal/infrastructure/persistence"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

type stubConn struct{ online bool }

func (c *stubConn) Online() bool { return c.online }

// stubGateway grants sequential ranges and records usage reports.
type stubGateway struct {
	granted   int
	failGrant bool
	usage     map[string]int64
	returned  map[string]int64
}

func newStubGateway() *stubGateway {
	return &stubGateway{usage: map[string]int64{}, returned: map[string]int64{}}
}

func (g *stubGateway) Health(ctx context.Context) error { return nil }
func (g *stubGateway) Login(ctx context.Context, username, password string) (*identity.User, error) {
	return nil, shared.ErrUnauthorized
}

func (g *stubGateway) RequestRange(ctx context.Context, req authority.RangeRequest) (*authority.RangeGrant, error) {
	if g.failGrant {
		return nil, shared.ErrConnectivityTimeout
	}
	g.granted++
	start := int64(g.granted-1)*req.Size + 1
	return &authority.RangeGrant{
		AuthorityID: fmt.Sprintf("pool-%d", g.granted),
		BatchID:     fmt.Sprintf("LOTE-PIA-%s-%03d", req.Kind.CodePrefix(), g.granted),
		Prefix:      req.Kind.CodePrefix() + "-PIA-",
		Start:       start,
		End:         start + req.Size - 1,
	}, nil
}

func (g *stubGateway) ReportUsage(ctx context.Context, batchID string, lastUsed int64) error {
	g.usage[batchID] = lastUsed
	return nil
}

func (g *stubGateway) ReturnRange(ctx context.Context, batchID string, fromValue int64) error {
	g.returned[batchID] = fromValue
	return nil
}

func (g *stubGateway) Push(ctx context.Context, entityType syncqueue.EntityType, payload []byte) (*authority.PushResult, error) {
	return nil, shared.ErrConnectivityTimeout
}
func (g *stubGateway) FetchCatalog(ctx context.Context) (*authority.CatalogSnapshot, error) {
	return nil, shared.ErrConnectivityTimeout
}
func (g *stubGateway) FetchPatients(ctx context.Context, updatedSince time.Time) ([]*patient.Patient, error) {
	return nil, shared.ErrConnectivityTimeout
}

func setupService(t *testing.T, online bool) (*Service, *stubGateway, idpool.RangeRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	gw := newStubGateway()
	ranges := persistence.NewGormRangeRepository(db)
	svc := NewService(ranges, persistence.NewGormAllocationRepository(db), gw, &stubConn{online: online}, Options{
		TerminalID:   "PIA-CAJA-01",
		BranchCode:   "PIA",
		BatchSize:    10,
		LowWaterMark: 3,
	}, zap.NewNop())
	return svc, gw, ranges
}

// persistAll commits the advanced range and the allocation the way the
// billing transaction would.
func persistAll(ctx context.Context, ranges idpool.RangeRepository, svc *Service) func(*idpool.Range, *idpool.Allocation) error {
	return func(rng *idpool.Range, alloc *idpool.Allocation) error {
		if err := ranges.Update(ctx, rng); err != nil {
			return err
		}
		return svc.allocations.Append(ctx, alloc)
	}
}

func TestServiceWithAllocation(t *testing.T) {
	ctx := context.Background()

	t.Run("empty pool replenishes synchronously while online", func(t *testing.T) {
		svc, gw, ranges := setupService(t, true)

		var codes []string
		for i := 0; i < 3; i++ {
			err := svc.WithAllocation(ctx, idpool.KindInvoice, func(rng *idpool.Range, alloc *idpool.Allocation) error {
				codes = append(codes, alloc.Code)
				return persistAll(ctx, ranges, svc)(rng, alloc)
			})
			require.NoError(t, err)
		}

		assert.Equal(t, 1, gw.granted)
		assert.Equal(t, []string{"FAC-PIA-000000001", "FAC-PIA-000000002", "FAC-PIA-000000003"}, codes)
	})

	t.Run("empty pool offline rejects with pool exhausted", func(t *testing.T) {
		svc, _, _ := setupService(t, false)

		err := svc.WithAllocation(ctx, idpool.KindInvoice, func(rng *idpool.Range, alloc *idpool.Allocation) error {
			t.Fatal("must not allocate")
			return nil
		})
		assert.ErrorIs(t, err, shared.ErrPoolExhausted)
	})

	t.Run("failed persist does not consume the value", func(t *testing.T) {
		svc, _, ranges := setupService(t, true)

		err := svc.WithAllocation(ctx, idpool.KindInvoice, func(rng *idpool.Range, alloc *idpool.Allocation) error {
			return fmt.Errorf("printer on fire")
		})
		require.Error(t, err)

		err = svc.WithAllocation(ctx, idpool.KindInvoice, func(rng *idpool.Range, alloc *idpool.Allocation) error {
			assert.Equal(t, int64(1), alloc.Value)
			return persistAll(ctx, ranges, svc)(rng, alloc)
		})
		require.NoError(t, err)
	})

	t.Run("rolls over to a fresh grant when the range is spent", func(t *testing.T) {
		svc, gw, ranges := setupService(t, true)

		var last string
		for i := 0; i < 12; i++ {
			err := svc.WithAllocation(ctx, idpool.KindInvoice, func(rng *idpool.Range, alloc *idpool.Allocation) error {
				last = alloc.Code
				return persistAll(ctx, ranges, svc)(rng, alloc)
			})
			require.NoError(t, err)
		}

		assert.Equal(t, 2, gw.granted)
		assert.Equal(t, "FAC-PIA-000000012", last)
	})
}

func TestServiceAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("draws sequential lab order barcodes", func(t *testing.T) {
		svc, gw, _ := setupService(t, true)

		first, err := svc.Allocate(ctx, idpool.KindOrder)
		require.NoError(t, err)
		second, err := svc.Allocate(ctx, idpool.KindOrder)
		require.NoError(t, err)

		assert.Equal(t, "LAB-PIA-000000001", first.Code)
		assert.Equal(t, "LAB-PIA-000000002", second.Code)
		assert.Equal(t, 1, gw.granted)
	})

	t.Run("sample tubes draw from their own range", func(t *testing.T) {
		svc, _, _ := setupService(t, true)

		alloc, err := svc.Allocate(ctx, idpool.KindSample)
		require.NoError(t, err)
		assert.Equal(t, "MUE-PIA-000000001", alloc.Code)
	})

	t.Run("invoice numbers are refused", func(t *testing.T) {
		svc, _, _ := setupService(t, true)

		_, err := svc.Allocate(ctx, idpool.KindInvoice)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})

	t.Run("unknown kind is invalid input", func(t *testing.T) {
		svc, _, _ := setupService(t, true)

		_, err := svc.Allocate(ctx, idpool.Kind("VOUCHER"))
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("empty pool offline rejects with pool exhausted", func(t *testing.T) {
		svc, _, _ := setupService(t, false)

		_, err := svc.Allocate(ctx, idpool.KindSample)
		assert.ErrorIs(t, err, shared.ErrPoolExhausted)
	})
}

func TestServiceEnsureHeadroom(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := setupService(t, true)

	// pools are empty, so every kind is below the low-water mark
	require.NoError(t, svc.EnsureHeadroom(ctx))
	assert.Equal(t, len(idpool.AllKinds()), gw.granted)

	// headroom is now 10 per kind, above the mark of 3
	require.NoError(t, svc.EnsureHeadroom(ctx))
	assert.Equal(t, len(idpool.AllKinds()), gw.granted)
}

func TestServiceReportUsage(t *testing.T) {
	ctx := context.Background()
	svc, gw, ranges := setupService(t, true)

	require.NoError(t, svc.WithAllocation(ctx, idpool.KindInvoice, persistAll(ctx, ranges, svc)))
	require.NoError(t, svc.WithAllocation(ctx, idpool.KindInvoice, persistAll(ctx, ranges, svc)))

	require.NoError(t, svc.ReportUsage(ctx))
	assert.Equal(t, int64(2), gw.usage["LOTE-PIA-FAC-001"])

	// nothing new to report
	gw.usage = map[string]int64{}
	require.NoError(t, svc.ReportUsage(ctx))
	assert.Empty(t, gw.usage)
}

func TestServiceReturnUnused(t *testing.T) {
	ctx := context.Background()
	svc, gw, ranges := setupService(t, true)

	require.NoError(t, svc.WithAllocation(ctx, idpool.KindInvoice, persistAll(ctx, ranges, svc)))
	require.NoError(t, svc.ReturnUnused(ctx, "LOTE-PIA-FAC-001"))
	assert.Equal(t, int64(2), gw.returned["LOTE-PIA-FAC-001"])

	// the retired range never hands out another value; a new grant is used
	require.NoError(t, svc.WithAllocation(ctx, idpool.KindInvoice, func(rng *idpool.Range, alloc *idpool.Allocation) error {
		assert.Equal(t, "LOTE-PIA-FAC-002", rng.BatchID)
		return persistAll(ctx, ranges, svc)(rng, alloc)
	}))
}

func TestServiceStatus(t *testing.T) {
	ctx := context.Background()
	svc, _, ranges := setupService(t, true)

	require.NoError(t, svc.WithAllocation(ctx, idpool.KindInvoice, persistAll(ctx, ranges, svc)))

	statuses, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 3)
	for _, st := range statuses {
		if st.Kind == idpool.KindInvoice {
			assert.Equal(t, int64(9), st.Remaining)
			assert.False(t, st.LowWater)
			require.Len(t, st.Ranges, 1)
		} else {
			assert.True(t, st.LowWater)
			assert.Empty(t, st.Ranges)
		}
	}
}
