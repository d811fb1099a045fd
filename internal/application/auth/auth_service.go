package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/domain/authority"
	"github.com/clinic/terminal/internal/domain/identity"
	"github.com/clinic/terminal/internal/domain/shared"
	infraauth "github.com/clinic/terminal/internal/infrastructure/auth"
)

// Connectivity is the slice of the supervisor the auth service needs.
// Login outcomes feed back into the state machine: a transport failure
// during an online login is a probe failure like any other.
type Connectivity interface {
	Online() bool
	ReportSuccess()
	ReportFailure()
}

// Service authenticates operators, online against the central server
// and offline against the local credential cache.
type Service struct {
	credentials identity.CredentialRepository
	gateway     authority.Gateway
	conn        Connectivity
	tokens      *infraauth.JWTService
	logger      *zap.Logger
}

// NewService creates a new auth service
func NewService(
	credentials identity.CredentialRepository,
	gateway authority.Gateway,
	conn Connectivity,
	tokens *infraauth.JWTService,
	logger *zap.Logger,
) *Service {
	return &Service{
		credentials: credentials,
		gateway:     gateway,
		conn:        conn,
		tokens:      tokens,
		logger:      logger.Named("auth"),
	}
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      identity.User `json:"user"`
	Offline   bool          `json:"offline"`
}

// Login authenticates a credential. While online the server is the
// authority and the cache is refreshed on success; while disconnected
// the cached fingerprint answers instead. A user who never logged in
// online on this terminal cannot log in offline.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = identity.NormalizeUsername(username)
	if username == "" || password == "" {
		return nil, shared.ErrInvalidInput
	}

	if s.conn.Online() {
		result, err := s.loginOnline(ctx, username, password)
		if err == nil || !errors.Is(err, shared.ErrConnectivityTimeout) {
			return result, err
		}
		// the server vanished between probes; fall through to the cache
		s.logger.Warn("online login unreachable, trying credential cache",
			zap.String("username", username))
	}

	return s.loginOffline(ctx, username, password)
}

func (s *Service) loginOnline(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.gateway.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, shared.ErrConnectivityTimeout) {
			s.conn.ReportFailure()
		}
		return nil, err
	}
	s.conn.ReportSuccess()

	s.cacheCredential(ctx, username, password, *user)

	token, err := s.tokens.Generate(*user, false)
	if err != nil {
		return nil, err
	}
	s.logger.Info("online login", zap.String("username", username))
	return &LoginResult{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		User:      *user,
	}, nil
}

func (s *Service) loginOffline(ctx context.Context, username, password string) (*LoginResult, error) {
	cred, err := s.credentials.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrAuthUnavailable
		}
		return nil, err
	}
	if !cred.Verify(password) {
		return nil, shared.ErrUnauthorized
	}

	user := cred.User()
	token, err := s.tokens.Generate(user, true)
	if err != nil {
		return nil, err
	}
	s.logger.Info("offline login from cache", zap.String("username", username))
	return &LoginResult{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
		User:      user,
		Offline:   true,
	}, nil
}

// cacheCredential refreshes the local fingerprint after a successful
// online login. A cache failure is logged but never fails the login.
func (s *Service) cacheCredential(ctx context.Context, username, password string, user identity.User) {
	cred, err := s.credentials.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if err := cred.Refresh(password, user); err != nil {
			s.logger.Warn("failed to refresh cached credential", zap.Error(err))
			return
		}
	case errors.Is(err, shared.ErrNotFound):
		cred, err = identity.NewCachedCredential(username, password, user)
		if err != nil {
			s.logger.Warn("failed to fingerprint credential", zap.Error(err))
			return
		}
	default:
		s.logger.Warn("failed to read credential cache", zap.Error(err))
		return
	}

	if err := s.credentials.Upsert(ctx, cred); err != nil {
		s.logger.Warn("failed to store cached credential", zap.Error(err))
	}
}

// Validate parses a UI session token.
func (s *Service) Validate(tokenString string) (*infraauth.Claims, error) {
	return s.tokens.Validate(tokenString)
}

// RemoveCachedCredential deletes a cached entry, e.g. after a user is
// deactivated server-side.
func (s *Service) RemoveCachedCredential(ctx context.Context, username string) error {
	return s.credentials.Delete(ctx, username)
}
