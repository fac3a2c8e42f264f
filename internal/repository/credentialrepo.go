// Package repository defines storage interfaces implemented by concrete backends.
package repository

import "context"

// CredentialRepository persists named client credentials in shared storage.
type CredentialRepository interface {
	// Get returns the value stored under name or errs.ErrNotFound.
	Get(ctx context.Context, name string) (string, error)
	// Put inserts or replaces the value stored under name.
	Put(ctx context.Context, name, value string) error
	// Delete removes name; deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error
}
