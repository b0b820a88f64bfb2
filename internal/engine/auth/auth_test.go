package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/db"
	"studioline/internal/engine/auth"
	"studioline/internal/migrate"
	"studioline/internal/repo"
)

func newService(t *testing.T) auth.Service {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return auth.Service{Repo: repo.Repo{DB: conn}}
}

func TestIssueAuthenticateRevoke(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	plain, key, err := svc.Issue(ctx, "casting-lead", "laptop")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plain, "sl_"))
	assert.NotContains(t, key.KeyHash, plain)

	actor, err := svc.Authenticate(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, "casting-lead", actor)

	keys, err := svc.List(ctx, "casting-lead")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "laptop", keys[0].Name)
	assert.NotEmpty(t, keys[0].LastUsedAt)
	assert.Empty(t, keys[0].RevokedAt)

	require.NoError(t, svc.Revoke(ctx, key.ID))
	_, err = svc.Authenticate(ctx, plain)
	assert.ErrorIs(t, err, auth.ErrUnknownKey)
	assert.ErrorIs(t, svc.Revoke(ctx, key.ID), auth.ErrUnknownKey)

	keys, err = svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotEmpty(t, keys[0].RevokedAt)
}

func TestIssueRequiresActor(t *testing.T) {
	svc := newService(t)
	_, _, err := svc.Issue(context.Background(), " ", "")
	assert.Error(t, err)
}
