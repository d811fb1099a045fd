package auth

import (
	"context"
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
	"github.com/clinic/terminal/internal/domain/patient"
	"github.com/clinic/terminal/internal/domain/shared"
	"github.com/clinic/terminal/internal/domain/syncqueue"
	infraauth "github.com/clinic/terminal/internal/infrastructure/auth"
	"github.com/clinic/terminal/internal/infrastructure/config"
	"github.com/clinic/terminal/internal/infrastructure/persistence"
	"github.com/clinic/terminal/internal/infrastructure/persistence/models"
)

type stubConn struct {
	online    bool
	successes int
	failures  int
}

func (c *stubConn) Online() bool    { return c.online }
func (c *stubConn) ReportSuccess() { c.successes++ }
func (c *stubConn) ReportFailure() { c.failures++ }

// stubGateway implements only Login; everything else is untouched by
// the auth service.
type stubGateway struct {
	user     *identity.User
	password string
	down     bool
}

func (g *stubGateway) Login(ctx context.Context, username, password string) (*identity.User, error) {
	if g.down {
		return nil, shared.ErrConnectivityTimeout
	}
	if g.user == nil || username != g.user.Username || password != g.password {
		return nil, shared.ErrUnauthorized
	}
	return g.user, nil
}

func (g *stubGateway) Health(ctx context.Context) error { return nil }
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

func setupService(t *testing.T) (*Service, *stubGateway, *stubConn) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	gw := &stubGateway{
		user: &identity.User{
			RemoteID:    "srv-9",
			Username:    "arodriguez",
			DisplayName: "Ana Rodríguez",
			Role:        identity.RoleReception,
			BranchID:    "branch-1",
		},
		password: "s3cret-pw",
	}
	conn := &stubConn{online: true}
	tokens := infraauth.NewJWTService(config.JWTConfig{
		Secret:     "0123456789abcdef0123456789abcdef",
		Expiration: time.Hour,
		Issuer:     "clinic-terminal",
	})
	svc := NewService(persistence.NewGormCredentialRepository(db), gw, conn, tokens, zap.NewNop())
	return svc, gw, conn
}

func TestServiceLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("online login caches the credential", func(t *testing.T) {
		svc, _, conn := setupService(t)

		result, err := svc.Login(ctx, "ARodriguez", "s3cret-pw")
		require.NoError(t, err)
		assert.False(t, result.Offline)
		assert.Equal(t, "arodriguez", result.User.Username)
		assert.Equal(t, 1, conn.successes)

		claims, err := svc.Validate(result.Token)
		require.NoError(t, err)
		assert.False(t, claims.Offline)
	})

	t.Run("offline login verifies against the cache", func(t *testing.T) {
		svc, _, conn := setupService(t)
		_, err := svc.Login(ctx, "arodriguez", "s3cret-pw")
		require.NoError(t, err)

		conn.online = false

		result, err := svc.Login(ctx, "arodriguez", "s3cret-pw")
		require.NoError(t, err)
		assert.True(t, result.Offline)
		assert.Equal(t, identity.RoleReception, result.User.Role)

		claims, err := svc.Validate(result.Token)
		require.NoError(t, err)
		assert.True(t, claims.Offline)
	})

	t.Run("offline login with wrong password is rejected", func(t *testing.T) {
		svc, _, conn := setupService(t)
		_, err := svc.Login(ctx, "arodriguez", "s3cret-pw")
		require.NoError(t, err)

		conn.online = false
		_, err = svc.Login(ctx, "arodriguez", "wrong")
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("first offline login is impossible", func(t *testing.T) {
		svc, _, conn := setupService(t)
		conn.online = false

		_, err := svc.Login(ctx, "nuevo", "whatever")
		assert.ErrorIs(t, err, shared.ErrAuthUnavailable)
	})

	t.Run("server vanishing mid-login falls back to the cache", func(t *testing.T) {
		svc, gw, conn := setupService(t)
		_, err := svc.Login(ctx, "arodriguez", "s3cret-pw")
		require.NoError(t, err)

		// supervisor still says ONLINE but the next call times out
		gw.down = true

		result, err := svc.Login(ctx, "arodriguez", "s3cret-pw")
		require.NoError(t, err)
		assert.True(t, result.Offline)
		assert.Equal(t, 1, conn.failures)
	})

	t.Run("online rejection never falls back to the cache", func(t *testing.T) {
		svc, _, _ := setupService(t)
		_, err := svc.Login(ctx, "arodriguez", "s3cret-pw")
		require.NoError(t, err)

		_, err = svc.Login(ctx, "arodriguez", "old-password")
		assert.ErrorIs(t, err, shared.ErrUnauthorized)
	})

	t.Run("empty input is invalid", func(t *testing.T) {
		svc, _, _ := setupService(t)
		_, err := svc.Login(ctx, "", "pw")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}
