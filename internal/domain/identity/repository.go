package identity

import (
	"context"
)

// CredentialRepository persists cached credentials in the local store.
type CredentialRepository interface {
	// Upsert stores or replaces the cached entry for a username.
	Upsert(ctx context.Context, c *CachedCredential) error
	// FindByUsername retrieves the cached entry, or shared.ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*CachedCredential, error)
	// Delete removes a cached entry, e.g. for a deactivated user.
	Delete(ctx context.Context, username string) error
	// List returns every cached entry on this terminal.
	List(ctx context.Context) ([]*CachedCredential, error)
}
