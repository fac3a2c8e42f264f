package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/feedwall/migrations"
)

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrations.FS.ReadDir(".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	b, err := migrations.FS.ReadFile("00001_client_credentials.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), "-- +goose Up")
	require.Contains(t, string(b), "-- +goose Down")
	require.Contains(t, string(b), "client_credentials")
}

func TestUp_BadDSN(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, Up(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1"))
}
