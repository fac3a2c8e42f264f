package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/feedwall/internal/errs"
	"github.com/and161185/feedwall/internal/repository"
)

// CredentialRepo implements repository.CredentialRepository using PostgreSQL.
type CredentialRepo struct{ db *DB }

var _ repository.CredentialRepository = (*CredentialRepo)(nil)

// NewCredentialRepo constructs a credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo { return &CredentialRepo{db: db} }

// Get selects the credential stored under name.
func (r *CredentialRepo) Get(ctx context.Context, name string) (string, error) {
	const q = `SELECT value FROM client_credentials WHERE name=$1`
	var v string
	if err := r.db.Pool.QueryRow(ctx, q, name).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", err
	}
	return v, nil
}

// Put upserts the credential stored under name.
func (r *CredentialRepo) Put(ctx context.Context, name, value string) error {
	const q = `
INSERT INTO client_credentials (name, value)
VALUES ($1, $2)
ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	_, err := r.db.Pool.Exec(ctx, q, name, value)
	return err
}

// Delete removes the credential stored under name.
func (r *CredentialRepo) Delete(ctx context.Context, name string) error {
	const q = `DELETE FROM client_credentials WHERE name=$1`
	_, err := r.db.Pool.Exec(ctx, q, name)
	return err
}
