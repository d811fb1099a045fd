package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/connectivity"
	"github.com/clinic/terminal/internal/domain/identity"
	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	"github.com/clinic/terminal/internal/infrastructure/config"
)

type errBox struct{ err error }

// stubGateway fails or succeeds health probes on demand.
type stubGateway struct {
	healthErr atomic.Value // errBox
	probes    atomic.Int64
}

func (g *stubGateway) Health(ctx context.Context) error {
	g.probes.Add(1)
	if box, ok := g.healthErr.Load().(errBox); ok {
		return box.err
	}
	return nil
}

func (g *stubGateway) Login(ctx context.Context, username, password string) (*identity.User, error) {
	return nil, shared.ErrConnectivityTimeout
}
func (g *stubGateway) RequestRange(ctx context.Context, req authority.RangeRequest) (*authority.RangeGrant, error) {
	return nil, shared.ErrConnectivityTimeout
}
func (g *stubGateway) ReportUsage(ctx context.Context, batchID string, lastUsed int64) error {
	return shared.ErrConnectivityTimeout
}
func (g *stubGateway) ReturnRange(ctx context.Context, batchID string, fromValue int64) error {
	return shared.ErrConnectivityTimeout
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

func testConfig() config.ConnectivityConfig {
	return config.ConnectivityConfig{
		ProbeInterval:    10 * time.Millisecond,
		ProbeTimeout:     5 * time.Millisecond,
		FailureThreshold: 3,
		LockWindow:       50 * time.Millisecond,
	}
}

func TestSupervisorTransitions(t *testing.T) {
	gw := &stubGateway{}
	s := New(gw, testConfig(), zap.NewNop())

	assert.Equal(t, connectivity.StateOnline, s.State())

	t.Run("failures below threshold keep ONLINE", func(t *testing.T) {
		s.ReportFailure()
		s.ReportFailure()
		assert.Equal(t, connectivity.StateOnline, s.State())
	})

	t.Run("threshold moves to DEGRADED and notifies subscribers", func(t *testing.T) {
		sub := s.Subscribe()
		s.ReportFailure()
		assert.Equal(t, connectivity.StateDegraded, s.State())

		select {
		case snap := <-sub:
			assert.Equal(t, connectivity.StateDegraded, snap.State)
		default:
			t.Fatal("expected a transition notification")
		}
	})

	t.Run("single success recovers to ONLINE", func(t *testing.T) {
		s.ReportSuccess()
		assert.Equal(t, connectivity.StateOnline, s.State())
	})
}

func TestSupervisorProbeLoop(t *testing.T) {
	gw := &stubGateway{}
	gw.healthErr.Store(errBox{shared.ErrConnectivityTimeout})
	s := New(gw, testConfig(), zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	// threshold is 3 and the interval is 10ms; within half a second the
	// loop has probed enough times to degrade and then lock
	require.Eventually(t, func() bool {
		return s.State() == connectivity.StateLocked
	}, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, gw.probes.Load(), int64(3))

	gw.healthErr.Store(errBox{})
	require.Eventually(t, func() bool {
		return s.State() == connectivity.StateOnline
	}, time.Second, 5*time.Millisecond)
}
