package models

import (
	"time"

	"github.com/clinic/terminal/internal/domain/identity"
)

// CachedCredential maps identity.CachedCredential.
type CachedCredential struct {
	BaseModel
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	UserRemoteID string `gorm:"not null"`
	DisplayName  string
	RoleSnapshot string    `gorm:"not null"`
	BranchID     string
	CachedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for CachedCredential
func (CachedCredential) TableName() string {
	return "cached_credentials"
}

// ToDomain converts the model to a domain CachedCredential
func (m *CachedCredential) ToDomain() *identity.CachedCredential {
	return &identity.CachedCredential{
		BaseEntity:   m.BaseModel.ToDomain(),
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		UserRemoteID: m.UserRemoteID,
		DisplayName:  m.DisplayName,
		RoleSnapshot: identity.Role(m.RoleSnapshot),
		BranchID:     m.BranchID,
		CachedAt:     m.CachedAt,
	}
}

// FromDomainCachedCredential populates the model from a domain CachedCredential
func (m *CachedCredential) FromDomainCachedCredential(c *identity.CachedCredential) {
	m.BaseModel.FromDomain(c.BaseEntity)
	m.Username = c.Username
	m.PasswordHash = c.PasswordHash
	m.UserRemoteID = c.UserRemoteID
	m.DisplayName = c.DisplayName
	m.RoleSnapshot = string(c.RoleSnapshot)
	m.BranchID = c.BranchID
	m.CachedAt = c.CachedAt
}
