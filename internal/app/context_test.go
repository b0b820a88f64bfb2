package app

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/config"
	"studioline/internal/db"
	"studioline/internal/migrate"
	"studioline/internal/repo"
)

func newRepo(t *testing.T, workspace string) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func TestResolveSeedsDefaultStudio(t *testing.T) {
	ws := t.TempDir()
	r := newRepo(t, ws)
	ctx := context.Background()

	id, cfg, err := ResolveStudioConfig(ctx, ws, "", r)
	require.NoError(t, err)
	assert.Equal(t, DefaultStudioID, id)
	assert.Equal(t, 10, cfg.Formats.MultiRoleCap)

	stored, err := r.GetStudioConfig(ctx, DefaultStudioID)
	require.NoError(t, err)
	assert.Equal(t, cfg.Matching, stored.Matching)

	again, _, err := ResolveStudioConfig(ctx, ws, "", r)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestResolvePrefersWorkspaceFile(t *testing.T) {
	ws := t.TempDir()
	r := newRepo(t, ws)
	cfg := config.Default("north")
	cfg.Workflow.AllowSkip = false
	data, err := cfg.YAML()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(config.Path(ws), data, 0o644))

	id, got, err := ResolveStudioConfig(context.Background(), ws, "", r)
	require.NoError(t, err)
	assert.Equal(t, "north", id)
	assert.False(t, got.Workflow.AllowSkip)
}

func TestResolveOverride(t *testing.T) {
	ws := t.TempDir()
	r := newRepo(t, ws)
	id, cfg, err := ResolveStudioConfig(context.Background(), ws, "south", r)
	require.NoError(t, err)
	assert.Equal(t, "south", id)
	assert.Equal(t, "south", cfg.Studio.ID)
}
