package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/config"
	"studioline/internal/domain"
	"studioline/internal/engine"
)

func heuristic() engine.HeuristicScorer {
	return engine.HeuristicScorer{Weights: config.MatchWeights{Gender: 3, Age: 2, Vocal: 1}}
}

func TestHeuristicScorer(t *testing.T) {
	role := domain.RoleSlot{Gender: "Female", Age: "30s", VocalSpecs: "warm, husky alto"}
	cases := []struct {
		name  string
		actor domain.RosterActor
		want  float64
	}{
		{"full match", domain.RosterActor{Gender: "female", AgeRange: "20s-40s", VoiceTags: []string{"Warm", "husky"}}, 3 + 2 + 2},
		{"gender only", domain.RosterActor{Gender: "FEMALE", AgeRange: "50s"}, 3},
		{"age range endpoint", domain.RosterActor{Gender: "Male", AgeRange: "late 30s"}, 2},
		{"tags only", domain.RosterActor{VoiceTags: []string{"alto", "gravel"}}, 1},
		{"nothing", domain.RosterActor{Gender: "Male", AgeRange: "60s"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, heuristic().Score(role, tc.actor))
		})
	}
}

func TestRankCandidatesOrdersAndFilters(t *testing.T) {
	role := domain.RoleSlot{Gender: "Male", Age: "40s", VocalSpecs: "gravel"}
	roster := []domain.RosterActor{
		{ID: "a", DisplayName: "Zed", Gender: "Male", Status: domain.RosterActive},
		{ID: "b", DisplayName: "Abe", Gender: "Male", Status: domain.RosterActive},
		{ID: "c", DisplayName: "Cal", Gender: "Male", AgeRange: "40s", VoiceTags: []string{"gravel"}, Status: domain.RosterActive},
		{ID: "d", DisplayName: "Dee", Gender: "Male", AgeRange: "40s", Status: domain.RosterInactive},
		{ID: "e", DisplayName: "Eve", Gender: "Female", Status: domain.RosterActive},
	}
	got := engine.RankCandidates(heuristic(), role, roster, 0)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.Actor.ID
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids)
	assert.Equal(t, 6.0, got[0].Score)

	assert.Len(t, engine.RankCandidates(heuristic(), role, roster, 1), 1)
	assert.NotNil(t, engine.RankCandidates(heuristic(), role, nil, 5))
}

func TestRankCandidatesCustomScorer(t *testing.T) {
	byTag := engine.ScorerFunc(func(_ domain.RoleSlot, a domain.RosterActor) float64 {
		return float64(len(a.VoiceTags))
	})
	roster := []domain.RosterActor{
		{ID: "a", DisplayName: "A", VoiceTags: []string{"x"}},
		{ID: "b", DisplayName: "B", VoiceTags: []string{"x", "y"}},
		{ID: "c", DisplayName: "C"},
	}
	got := engine.RankCandidates(byTag, domain.RoleSlot{}, roster, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Actor.ID)
}

func TestMatchCandidatesUsesLiveRoster(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID

	file, err := engine.ParseRosterYAML([]byte(`
actors:
  - id: act-1
    display_name: Ada Voss
    email: ada@example.com
    gender: Female
    age_range: 30s
    voice_tags: [warm]
  - id: act-2
    display_name: Bo Lind
    gender: Male
    age_range: 30s
  - id: act-3
    display_name: Cy Park
    gender: Female
    status: inactive
crew:
  - id: crew-1
    display_name: Rae Cole
    email: rae@example.com
    role: Director
`))
	require.NoError(t, err)
	res, err := env.Engine.ImportRoster(env.Ctx, file, "ops")
	require.NoError(t, err)
	assert.Equal(t, engine.ImportResult{Actors: 3, Crew: 1}, res)

	got, err := env.Engine.MatchCandidates(env.Ctx, p.ID, roleID, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "act-1", got[0].Actor.ID)
	assert.Equal(t, 6.0, got[0].Score)
	assert.Equal(t, "act-2", got[1].Actor.ID)

	after, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, after.CastingManifest[0].ActorRequest.Primary)

	_, err = env.Engine.MatchCandidates(env.Ctx, p.ID, "ROLE-1", 0)
	requireKind(t, err, engine.KindNotFound)
}

func TestRosterImportValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := engine.ParseRosterYAML([]byte("actors: {"))
	requireKind(t, err, engine.KindValidation)

	_, err = env.Engine.ImportRoster(env.Ctx, engine.RosterFile{Actors: []domain.RosterActor{{ID: "a", DisplayName: "Ok"}, {ID: "b"}}}, "ops")
	requireKind(t, err, engine.KindValidation)
	actors, err := env.Engine.ListActors(env.Ctx, false)
	require.NoError(t, err)
	assert.Empty(t, actors)

	_, err = env.Engine.UpsertActor(env.Ctx, domain.RosterActor{DisplayName: "X", Status: "retired"}, "ops")
	requireKind(t, err, engine.KindValidation)
}

func TestRosterStatusAndSnapshots(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-x", "Ada Voss", "ada@example.com")
	_, err := env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotPrimary})
	require.NoError(t, err)

	_, err = env.Engine.UpsertActor(env.Ctx, domain.RosterActor{ID: "act-x", DisplayName: "Ada Voss-Hale", Email: "ada@example.com"}, "ops")
	require.NoError(t, err)
	require.NoError(t, env.Engine.SetActorStatus(env.Ctx, "act-x", domain.RosterInactive, "ops"))

	active, err := env.Engine.ListActors(env.Ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Voss", got.CastingManifest[0].ActorRequest.Primary.DisplayName)

	err = env.Engine.SetActorStatus(env.Ctx, "ghost", domain.RosterInactive, "ops")
	requireKind(t, err, engine.KindNotFound)
}
