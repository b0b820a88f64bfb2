package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studioline/internal/config"
	"studioline/internal/domain"
	"studioline/internal/engine"
	"studioline/internal/events"
)

func strPtr(s string) *string { return &s }

func TestAddRoleRespectsSlotCeiling(t *testing.T) {
	cases := []struct {
		style   string
		seeded  int
		ceiling int
	}{
		{"Solo Narration", 1, 1},
		{"Dual", 2, 2},
		{"Duet Audio Drama", 2, 2},
		{"Multi-Cast", 4, 10},
	}
	for _, tc := range cases {
		t.Run(tc.style, func(t *testing.T) {
			env := newTestEnv(t)
			p := greenlit(t, env, tc.style, tc.seeded)
			for i := tc.seeded; i < tc.ceiling; i++ {
				_, err := env.Engine.AddRole(env.Ctx, engine.AddRoleOptions{ProductionID: p.ID, Name: "Extra"})
				require.NoError(t, err)
			}
			_, err := env.Engine.AddRole(env.Ctx, engine.AddRoleOptions{ProductionID: p.ID})
			requireKind(t, err, engine.KindValidation)

			got, err := env.Engine.GetProduction(env.Ctx, p.ID)
			require.NoError(t, err)
			assert.Len(t, got.CastingManifest, tc.ceiling)
		})
	}
}

func TestAddRoleHonoursConfiguredMultiCap(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Formats.MultiRoleCap = 4 })
	p := greenlit(t, env, "Multi", 4)
	_, err := env.Engine.AddRole(env.Ctx, engine.AddRoleOptions{ProductionID: p.ID})
	requireKind(t, err, engine.KindValidation)
}

func TestAddRoleAllocatesUniqueRoleIDs(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Multi", 4)
	role, err := env.Engine.AddRole(env.Ctx, engine.AddRoleOptions{ProductionID: p.ID, Name: "Narrator"})
	require.NoError(t, err)
	assert.Equal(t, 4, role.Position)

	got, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	seen := map[string]bool{}
	for _, r := range got.CastingManifest {
		assert.False(t, seen[r.RoleID], "duplicate %s", r.RoleID)
		seen[r.RoleID] = true
	}
	assert.Equal(t, "Narrator", got.CastingManifest[4].Name)
}

func TestAssignActorMovesBetweenSlots(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-x", "Ada Voss", "ada@example.com")

	role, err := env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotPrimary})
	require.NoError(t, err)
	require.NotNil(t, role.ActorRequest.Primary)
	assert.Equal(t, "Ada Voss", role.ActorRequest.Primary.DisplayName)
	assert.Equal(t, "ada@example.com", role.Contract.Email)
	assert.Equal(t, domain.SlotFilled, role.Status)

	role, err = env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotBackup})
	require.NoError(t, err)
	assert.Nil(t, role.ActorRequest.Primary)
	require.NotNil(t, role.ActorRequest.Backup)
	assert.Equal(t, "act-x", role.ActorRequest.Backup.ID)
	assert.Equal(t, domain.SlotOpen, role.Status)

	role, err = env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotBackup})
	require.NoError(t, err)
	assert.Nil(t, role.ActorRequest.Backup)
}

func TestAssignActorKeepsExistingContractEmail(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-x", "Ada Voss", "ada@example.com")
	_, err := env.Engine.UpdateRoleSpec(env.Ctx, engine.RoleSpecUpdate{ProductionID: p.ID, RoleID: roleID, ContractEmail: strPtr("agent@example.com")})
	require.NoError(t, err)

	role, err := env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotPrimary})
	require.NoError(t, err)
	assert.Equal(t, "agent@example.com", role.Contract.Email)
}

func TestAssignActorRejectsInactiveOrUnknownTalent(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-y", "Bo Lind", "bo@example.com")
	require.NoError(t, env.Engine.SetActorStatus(env.Ctx, "act-y", domain.RosterInactive, "ops"))

	_, err := env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-y", Slot: domain.SlotPrimary})
	requireKind(t, err, engine.KindPrecondition)

	_, err = env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "ghost", Slot: domain.SlotPrimary})
	requireKind(t, err, engine.KindNotFound)

	_, err = env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-y", Slot: "understudy"})
	requireKind(t, err, engine.KindValidation)
}

func TestActiveContractLocksRoleSpec(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-x", "Ada Voss", "ada@example.com")

	_, err := env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractActive})
	requireKind(t, err, engine.KindPrecondition)

	_, err = env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotPrimary})
	require.NoError(t, err)
	role, err := env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractActive})
	require.NoError(t, err)
	assert.True(t, role.Locked())

	_, err = env.Engine.UpdateRoleSpec(env.Ctx, engine.RoleSpecUpdate{ProductionID: p.ID, RoleID: roleID, Name: strPtr("Mara Quinn")})
	requireKind(t, err, engine.KindPrecondition)

	seedActor(t, env, "act-z", "Cy Park", "cy@example.com")
	_, err = env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-z", Slot: domain.SlotPrimary})
	requireKind(t, err, engine.KindPrecondition)
	role, err = env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-z", Slot: domain.SlotBackup})
	require.NoError(t, err)
	assert.Equal(t, "act-z", role.ActorRequest.Backup.ID)

	_, err = env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractDraft})
	require.NoError(t, err)
	role, err = env.Engine.UpdateRoleSpec(env.Ctx, engine.RoleSpecUpdate{ProductionID: p.ID, RoleID: roleID, Name: strPtr("Mara Quinn")})
	require.NoError(t, err)
	assert.Equal(t, "Mara Quinn", role.Name)
}

func TestDeleteRoleBlockedWhileActive(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Dual", 2)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-x", "Ada Voss", "ada@example.com")
	_, err := env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotPrimary})
	require.NoError(t, err)
	_, err = env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractActive})
	require.NoError(t, err)

	err = env.Engine.DeleteRole(env.Ctx, engine.DeleteRoleOptions{ProductionID: p.ID, RoleID: roleID})
	requireKind(t, err, engine.KindPrecondition)

	_, err = env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractDraft})
	require.NoError(t, err)
	require.NoError(t, env.Engine.DeleteRole(env.Ctx, engine.DeleteRoleOptions{ProductionID: p.ID, RoleID: roleID}))

	got, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.CastingManifest, 1)
	assert.Equal(t, "Theo", got.CastingManifest[0].Name)

	err = env.Engine.DeleteRole(env.Ctx, engine.DeleteRoleOptions{ProductionID: p.ID, RoleID: roleID})
	requireKind(t, err, engine.KindNotFound)
}

func TestContractRevertIsAudited(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-x", "Ada Voss", "ada@example.com")
	_, err := env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotPrimary})
	require.NoError(t, err)
	_, err = env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractActive})
	require.NoError(t, err)
	_, err = env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractDraft, ActorID: "lead"})
	require.NoError(t, err)

	got, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Correspondence, 1)
	assert.Equal(t, "lead", got.Correspondence[0].Author)
	assert.Contains(t, got.Correspondence[0].Text, "reverted from Active to Draft")

	evts, err := env.Engine.ListEvents(env.Ctx, engine.EventQuery{ProductionID: p.ID, Type: events.RoleContractReverted})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, "lead", evts[0].ActorID)
}

func TestContractRevertPolicy(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Contracts.AllowRevert = false
		c.Contracts.AnnotateReverts = false
	})
	p := greenlit(t, env, "Solo", 1)
	roleID := p.CastingManifest[0].RoleID
	seedActor(t, env, "act-x", "Ada Voss", "ada@example.com")
	_, err := env.Engine.AssignActor(env.Ctx, engine.AssignActorOptions{ProductionID: p.ID, RoleID: roleID, TalentID: "act-x", Slot: domain.SlotPrimary})
	require.NoError(t, err)
	_, err = env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractActive})
	require.NoError(t, err)

	_, err = env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractDraft})
	requireKind(t, err, engine.KindPrecondition)

	role, err := env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: roleID, Status: domain.ContractDraft, Force: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ContractDraft, role.Contract.Status)

	evts, err := env.Engine.ListEvents(env.Ctx, engine.EventQuery{ProductionID: p.ID, Type: events.RoleContractReverted})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Contains(t, evts[0].Payload, `"forced":true`)

	got, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Correspondence)
}

func TestSetContractStatusRejectsNoOp(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	_, err := env.Engine.SetContractStatus(env.Ctx, engine.SetContractOptions{ProductionID: p.ID, RoleID: p.CastingManifest[0].RoleID, Status: domain.ContractDraft})
	requireKind(t, err, engine.KindPrecondition)
}

func TestStaleRoleWriteIsRejected(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	role := p.CastingManifest[0]

	updated, err := env.Engine.UpdateRoleSpec(env.Ctx, engine.RoleSpecUpdate{ProductionID: p.ID, RoleID: role.RoleID, Age: strPtr("40s"), ExpectedVersion: role.Version})
	require.NoError(t, err)
	assert.Equal(t, role.Version+1, updated.Version)

	_, err = env.Engine.UpdateRoleSpec(env.Ctx, engine.RoleSpecUpdate{ProductionID: p.ID, RoleID: role.RoleID, Age: strPtr("50s"), ExpectedVersion: role.Version})
	requireKind(t, err, engine.KindStale)
	var stale *engine.StaleWriteError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, updated.Version, stale.Actual)
}

func TestUpdateRoleSpecValidatesContractEmail(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	_, err := env.Engine.UpdateRoleSpec(env.Ctx, engine.RoleSpecUpdate{ProductionID: p.ID, RoleID: p.CastingManifest[0].RoleID, ContractEmail: strPtr("nope")})
	requireKind(t, err, engine.KindValidation)
}

func TestCrewPositions(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)

	slot, err := env.Engine.AddCrewPosition(env.Ctx, engine.CrewPositionOptions{ProductionID: p.ID, PositionKey: "director"})
	require.NoError(t, err)
	assert.Equal(t, domain.ContractDraft, slot.Status)

	_, err = env.Engine.AddCrewPosition(env.Ctx, engine.CrewPositionOptions{ProductionID: p.ID, PositionKey: "director"})
	requireKind(t, err, engine.KindPrecondition)
	_, err = env.Engine.AddCrewPosition(env.Ctx, engine.CrewPositionOptions{ProductionID: p.ID, PositionKey: "  "})
	requireKind(t, err, engine.KindValidation)

	_, err = env.Engine.SetCrewContractStatus(env.Ctx, engine.CrewContractOptions{ProductionID: p.ID, PositionKey: "director", Status: domain.ContractActive})
	requireKind(t, err, engine.KindPrecondition)

	_, err = env.Engine.UpsertCrewMember(env.Ctx, domain.RosterCrew{ID: "crew-1", DisplayName: "Rae Cole", Email: "rae@example.com", Role: "Director"}, "ops")
	require.NoError(t, err)
	slot, err = env.Engine.AssignCrew(env.Ctx, engine.AssignCrewOptions{ProductionID: p.ID, PositionKey: "director", MemberID: "crew-1"})
	require.NoError(t, err)
	assert.Equal(t, "Rae Cole", slot.Name)
	assert.Equal(t, "rae@example.com", slot.Email)

	slot, err = env.Engine.SetCrewContractStatus(env.Ctx, engine.CrewContractOptions{ProductionID: p.ID, PositionKey: "director", Status: domain.ContractActive})
	require.NoError(t, err)
	assert.True(t, slot.Locked())

	_, err = env.Engine.UpdateCrewSlot(env.Ctx, engine.CrewSlotUpdate{ProductionID: p.ID, PositionKey: "director", Email: strPtr("other@example.com")})
	requireKind(t, err, engine.KindPrecondition)
	err = env.Engine.DeleteCrewPosition(env.Ctx, engine.DeleteCrewOptions{ProductionID: p.ID, PositionKey: "director"})
	requireKind(t, err, engine.KindPrecondition)

	_, err = env.Engine.SetCrewContractStatus(env.Ctx, engine.CrewContractOptions{ProductionID: p.ID, PositionKey: "director", Status: domain.ContractDraft})
	require.NoError(t, err)
	slot, err = env.Engine.UpdateCrewSlot(env.Ctx, engine.CrewSlotUpdate{ProductionID: p.ID, PositionKey: "director", Email: strPtr("other@example.com")})
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", slot.Email)

	require.NoError(t, env.Engine.DeleteCrewPosition(env.Ctx, engine.DeleteCrewOptions{ProductionID: p.ID, PositionKey: "director"}))
	got, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, got.CrewManifest)
}

func TestCrewHasNoSlotCeiling(t *testing.T) {
	env := newTestEnv(t)
	p := greenlit(t, env, "Solo", 1)
	for _, key := range []string{"director", "engineer", "proofer", "editor", "producer", "qc", "mastering", "coordinator", "assistant", "runner", "extra"} {
		_, err := env.Engine.AddCrewPosition(env.Ctx, engine.CrewPositionOptions{ProductionID: p.ID, PositionKey: key})
		require.NoError(t, err)
	}
	got, err := env.Engine.GetProduction(env.Ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.CrewManifest, 11)
}
