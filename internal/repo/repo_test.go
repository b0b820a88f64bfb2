package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/db"
	"studioline/internal/domain"
	"studioline/internal/migrate"
	"studioline/internal/repo"
)

const ts = "2025-03-01T10:00:00.000Z"

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	return repo.Repo{DB: conn}
}

func seedProduction(t *testing.T, r repo.Repo, id string) domain.Production {
	t.Helper()
	p := domain.Production{
		ID:               id,
		ProjectRefID:     "ACT-" + id,
		Title:            "The Long Quiet",
		Style:            "Dual",
		ProductionStatus: domain.StatusPreProduction,
		ContractData:     domain.WorkflowState{ProductionStep: domain.StepPreProduction},
		Version:          1,
		CreatedAt:        ts,
		UpdatedAt:        ts,
		GreenlitAt:       ts,
	}
	require.NoError(t, r.InsertProduction(context.Background(), nil, p))
	return p
}

func TestNextRefIsSequential(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	first, err := r.NextRef(ctx, nil, repo.PrefixIntake)
	require.NoError(t, err)
	second, err := r.NextRef(ctx, nil, repo.PrefixIntake)
	require.NoError(t, err)
	other, err := r.NextRef(ctx, nil, repo.PrefixProduction)
	require.NoError(t, err)
	assert.Equal(t, "INT-1001", first)
	assert.Equal(t, "INT-1002", second)
	assert.Equal(t, "ACT-1001", other)
}

func TestUpdateRoleRejectsStaleVersion(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduction(t, r, "p1")
	role := domain.RoleSlot{RoleID: "ROLE-1", ProductionID: p.ID, Name: "Mara"}
	require.NoError(t, r.InsertRole(ctx, nil, role, ts))

	loaded, err := r.GetRole(ctx, nil, p.ID, role.RoleID)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotOpen, loaded.Status)
	assert.Equal(t, domain.ContractDraft, loaded.Contract.Status)

	stale := loaded
	loaded.Name = "Mara Voss"
	v, err := r.UpdateRole(ctx, nil, loaded, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	stale.Gender = "F"
	_, err = r.UpdateRole(ctx, nil, stale, ts)
	assert.ErrorIs(t, err, repo.ErrStaleVersion)

	missing := stale
	missing.RoleID = "ROLE-404"
	_, err = r.UpdateRole(ctx, nil, missing, ts)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestRoleSnapshotsRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduction(t, r, "p1")
	role := domain.RoleSlot{
		RoleID:       "ROLE-1",
		ProductionID: p.ID,
		ActorRequest: domain.ActorRequest{Primary: &domain.TalentRef{ID: "a1", DisplayName: "Ada", Email: "ada@example.com"}},
	}
	require.NoError(t, r.InsertRole(ctx, nil, role, ts))
	got, err := r.GetRole(ctx, nil, p.ID, role.RoleID)
	require.NoError(t, err)
	require.NotNil(t, got.ActorRequest.Primary)
	assert.Equal(t, "Ada", got.ActorRequest.Primary.DisplayName)
	assert.Nil(t, got.ActorRequest.Backup)
	assert.Equal(t, domain.SlotFilled, got.Status)
}

func TestRolesKeepPositionOrder(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduction(t, r, "p1")
	for i, name := range []string{"Zed", "Amy", "Kit"} {
		pos, err := r.NextRolePosition(ctx, nil, p.ID)
		require.NoError(t, err)
		assert.Equal(t, i, pos)
		require.NoError(t, r.InsertRole(ctx, nil, domain.RoleSlot{RoleID: "ROLE-" + name, ProductionID: p.ID, Position: pos, Name: name}, ts))
	}
	roles, err := r.ListRoles(ctx, nil, p.ID)
	require.NoError(t, err)
	require.Len(t, roles, 3)
	assert.Equal(t, "Zed", roles[0].Name)
	assert.Equal(t, "Kit", roles[2].Name)
}

func TestCorrespondenceIsAppendOnly(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduction(t, r, "p1")
	_, err := r.InsertNote(ctx, nil, p.ID, "ops", "first", ts)
	require.NoError(t, err)
	_, err = r.InsertNote(ctx, nil, p.ID, "ops", "second", ts)
	require.NoError(t, err)

	_, err = r.DB.ExecContext(ctx, `UPDATE correspondence SET text='edited'`)
	assert.Error(t, err)
	_, err = r.DB.ExecContext(ctx, `DELETE FROM correspondence`)
	assert.Error(t, err)

	notes, err := r.ListNotes(ctx, nil, p.ID)
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Text)
	assert.Equal(t, "second", notes[1].Text)
}

func TestStepTimestampsCannotBeDeleted(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduction(t, r, "p1")
	require.NoError(t, r.RecordStep(ctx, nil, p.ID, domain.StepRecording, ts))
	require.NoError(t, r.RecordStep(ctx, nil, p.ID, domain.StepRecording, "2025-03-02T10:00:00.000Z"))
	_, err := r.DB.ExecContext(ctx, `DELETE FROM step_timestamps`)
	assert.Error(t, err)

	stamps, err := r.StepTimestamps(ctx, nil, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-02T10:00:00.000Z", stamps[domain.StepRecording])
}

func TestUpdateProductionStateGuardsVersion(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	p := seedProduction(t, r, "p1")
	p.ProductionStatus = domain.StatusRecording
	v, err := r.UpdateProductionState(ctx, nil, p, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	_, err = r.UpdateProductionState(ctx, nil, p, ts)
	assert.ErrorIs(t, err, repo.ErrStaleVersion)

	loaded, err := r.LoadProduction(ctx, nil, "ACT-p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRecording, loaded.ProductionStatus)
	assert.NotNil(t, loaded.CrewManifest)
	assert.Empty(t, loaded.CastingManifest)
}

func TestListProductionsByArchive(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedProduction(t, r, "p1")
	done := seedProduction(t, r, "p2")
	done.ProductionStatus = domain.StatusComplete
	_, err := r.UpdateProductionState(ctx, nil, done, ts)
	require.NoError(t, err)

	archived := true
	list, err := r.ListProductions(ctx, repo.ProductionFilters{Archived: &archived})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p2", list[0].ID)

	archived = false
	list, err = r.ListProductions(ctx, repo.ProductionFilters{Archived: &archived})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)
}

func TestRosterUpsertAndStatus(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	require.NoError(t, r.UpsertActor(ctx, nil, domain.RosterActor{ID: "a1", DisplayName: "Ada", VoiceTags: []string{"warm"}}, ts))
	require.NoError(t, r.UpsertActor(ctx, nil, domain.RosterActor{ID: "a2", DisplayName: "Bo"}, ts))
	require.NoError(t, r.SetActorStatus(ctx, nil, "a2", domain.RosterInactive, ts))

	active, err := r.ListActors(ctx, nil, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, []string{"warm"}, active[0].VoiceTags)

	all, err := r.ListActors(ctx, nil, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.ErrorIs(t, r.SetActorStatus(ctx, nil, "nobody", domain.RosterActive, ts), repo.ErrNotFound)
}

func TestListIntakesSearchEscapesWildcards(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	for i, title := range []string{"100% Pure", "Plain Title"} {
		in := domain.Intake{
			ID: "i" + string(rune('a'+i)), RefID: "INT-100" + string(rune('1'+i)),
			ClientType: domain.ClientIndieAuthor, ClientName: "Client", Email: "c@example.com",
			ProjectTitle: title, Style: "Solo", Genres: []string{"Drama"},
			CharacterDetails: []domain.CharacterDetail{{Name: "N"}}, TimelinePrefs: "2030-01-01",
			Status: domain.IntakeNew, CreatedAt: ts,
		}
		require.NoError(t, r.InsertIntake(ctx, nil, in, domain.FormatSolo))
	}
	list, err := r.ListIntakes(ctx, repo.IntakeFilters{Search: "0%"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "100% Pure", list[0].ProjectTitle)
}

type codedErr struct{ code int }

func (e codedErr) Error() string { return "coded" }
func (e codedErr) Code() int     { return e.code }

func TestRetryOnBusy(t *testing.T) {
	ctx := context.Background()
	calls := 0
	var hooked []int
	attempts, err := repo.RetryOnBusy(ctx, 3, func(attempt int, _ time.Duration, _ error) {
		hooked = append(hooked, attempt)
	}, func() error {
		calls++
		if calls < 3 {
			return codedErr{code: 5}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, hooked)

	calls = 0
	attempts, err = repo.RetryOnBusy(ctx, 2, nil, func() error {
		calls++
		return errors.New("database is locked")
	})
	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 2, calls)

	calls = 0
	_, err = repo.RetryOnBusy(ctx, 5, nil, func() error {
		calls++
		return errors.New("constraint failed")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, repo.IsBusy(codedErr{code: 5}))
	assert.True(t, repo.IsBusy(codedErr{code: 6 | 256}))
	assert.False(t, repo.IsBusy(codedErr{code: 19}))
	assert.False(t, repo.IsBusy(nil))
}
