package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinic/terminal/internal/domain/identity"
	"github.com/clinic/terminal/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims are the custom JWT claims carried by a local UI session token.
// The token only crosses the loopback between the desktop UI and this
// process; it never authenticates anything against the central server.
type Claims struct {
	jwt.RegisteredClaims
	Username     string `json:"username"`
	DisplayName  string `json:"display_name"`
	Role         string `json:"role"`
	BranchID     string `json:"branch_id"`
	UserRemoteID string `json:"user_remote_id,omitempty"`
	Offline      bool   `json:"offline"` // issued from the credential cache
}

// Token is an issued UI session token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// JWTService issues and validates local UI session tokens
type JWTService struct {
	secret     []byte
	expiration time.Duration
	issuer     string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret:     []byte(cfg.Secret),
		expiration: cfg.Expiration,
		issuer:     cfg.Issuer,
	}
}

// Generate issues a session token for an authenticated user. offline
// marks tokens minted from the credential cache so the UI can show the
// degraded-session banner.
func (s *JWTService) Generate(user identity.User, offline bool) (*Token, error) {
	now := time.Now()
	expiresAt := now.Add(s.expiration)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   user.Username,
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username:     user.Username,
		DisplayName:  user.DisplayName,
		Role:         string(user.Role),
		BranchID:     user.BranchID,
		UserRemoteID: user.RemoteID,
		Offline:      offline,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &Token{Value: signed, ExpiresAt: expiresAt}, nil
}

// Validate parses and validates a session token
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// OperatorID derives a stable local id for the operator. Cached and
// online logins for the same username yield the same id, so offline
// attribution survives reconnection.
func (c *Claims) OperatorID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("operator:"+c.Username))
}

// User reconstructs the principal carried by the claims.
func (c *Claims) User() identity.User {
	return identity.User{
		RemoteID:    c.UserRemoteID,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Role:        identity.Role(c.Role),
		BranchID:    c.BranchID,
	}
}
