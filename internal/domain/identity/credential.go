package identity

import (
	"strings"
	"time"

	"github.com/clinic/terminal/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// Password cost for bcrypt
const bcryptCost = 12

// Role is the role snapshot captured at the last online login.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleReception Role = "reception"
	RoleLab       Role = "laboratory"
	RoleMedic     Role = "medic"
)

// User is the authenticated principal a successful login produces.
type User struct {
	RemoteID    string
	Username    string
	DisplayName string
	Role        Role
	BranchID    string
}

// CachedCredential is a salted fingerprint of a credential that
// authenticated online at least once on this terminal. It lets the same
// person log in while disconnected. It is never authoritative: the next
// online login re-validates against the server and refreshes the entry.
type CachedCredential struct {
	shared.BaseEntity
	Username     string
	PasswordHash string
	UserRemoteID string
	DisplayName  string
	RoleSnapshot Role
	BranchID     string
	CachedAt     time.Time
}

// NewCachedCredential fingerprints a credential after a successful online
// authentication.
func NewCachedCredential(username, password string, user User) (*CachedCredential, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return nil, shared.NewDomainError("INVALID_CREDENTIAL", "Username cannot be empty")
	}
	if password == "" {
		return nil, shared.NewDomainError("INVALID_CREDENTIAL", "Password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, shared.NewDomainError("CREDENTIAL_HASH_ERROR", "Failed to fingerprint credential")
	}

	return &CachedCredential{
		BaseEntity:   shared.NewBaseEntity(),
		Username:     username,
		PasswordHash: string(hash),
		UserRemoteID: user.RemoteID,
		DisplayName:  user.DisplayName,
		RoleSnapshot: user.Role,
		BranchID:     user.BranchID,
		CachedAt:     time.Now(),
	}, nil
}

// Verify compares a password against the cached fingerprint.
func (c *CachedCredential) Verify(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
}

// Refresh replaces the fingerprint and role snapshot after a new
// successful online authentication.
func (c *CachedCredential) Refresh(password string, user User) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return shared.NewDomainError("CREDENTIAL_HASH_ERROR", "Failed to fingerprint credential")
	}
	c.PasswordHash = string(hash)
	c.UserRemoteID = user.RemoteID
	c.DisplayName = user.DisplayName
	c.RoleSnapshot = user.Role
	c.BranchID = user.BranchID
	c.CachedAt = time.Now()
	c.Touch()
	return nil
}

// User reconstructs the principal the cached entry stands for.
func (c *CachedCredential) User() User {
	return User{
		RemoteID:    c.UserRemoteID,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Role:        c.RoleSnapshot,
		BranchID:    c.BranchID,
	}
}

// NormalizeUsername lowercases and trims a login name.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
