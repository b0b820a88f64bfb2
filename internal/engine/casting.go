package engine

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"studioline/internal/domain"
	"studioline/internal/events"
)

type AddRoleOptions struct {
	ProductionID string
	Name         string
	Gender       string
	Age          string
	VocalSpecs   string
	ActorID      string
}

// AddRole appends a role to the casting manifest, bounded by the format ceiling.
func (e Engine) AddRole(ctx context.Context, opts AddRoleOptions) (domain.RoleSlot, error) {
	var role domain.RoleSlot
	err := e.withTx(ctx, "add_role", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.loadMutable(ctx, tx, opts.ProductionID)
		if err != nil {
			return err
		}
		format := p.Format()
		ceiling := format.SlotCeiling(e.cfg().Formats.MultiRoleCap)
		count, err := e.Repo.CountRoles(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		if count >= ceiling {
			return invalid("casting_manifest", "%s productions allow at most %d role(s)", format, ceiling)
		}
		pos, err := e.Repo.NextRolePosition(ctx, tx, p.ID)
		if err != nil {
			return err
		}
		roleID, err := e.nextRoleID(ctx, tx, p.ID, e.now().UnixMilli())
		if err != nil {
			return err
		}
		now := e.stamp()
		role = domain.RoleSlot{
			RoleID:       roleID,
			ProductionID: p.ID,
			Position:     pos,
			Name:         strings.TrimSpace(opts.Name),
			Gender:       strings.TrimSpace(opts.Gender),
			Age:          strings.TrimSpace(opts.Age),
			VocalSpecs:   strings.TrimSpace(opts.VocalSpecs),
			Status:       domain.SlotOpen,
			Contract:     domain.Contract{Status: domain.ContractDraft},
			Version:      1,
			UpdatedAt:    now,
		}
		if err := e.Repo.InsertRole(ctx, tx, role, now); err != nil {
			return err
		}
		if err := e.Repo.TouchProduction(ctx, tx, p.ID, now); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.RoleAdded,
			ProductionID: p.ID,
			EntityKind:   "role",
			EntityID:     role.RoleID,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"position": pos, "name": role.Name},
		})
	})
	return role, err
}

type RoleSpecUpdate struct {
	ProductionID    string
	RoleID          string
	Name            *string
	Gender          *string
	Age             *string
	VocalSpecs      *string
	ContractEmail   *string
	ExpectedVersion int64
	ActorID         string
}

// UpdateRoleSpec edits a role that is not locked by an active contract.
func (e Engine) UpdateRoleSpec(ctx context.Context, upd RoleSpecUpdate) (domain.RoleSlot, error) {
	var email *string
	if upd.ContractEmail != nil {
		addr, err := parseEmail(*upd.ContractEmail)
		if err != nil {
			return domain.RoleSlot{}, invalid("contract.email", "%v", err)
		}
		email = &addr
	}
	return e.mutateRole(ctx, "update_role", upd.ProductionID, upd.RoleID, upd.ExpectedVersion, func(ctx context.Context, tx *sql.Tx, role *domain.RoleSlot) (events.Entry, error) {
		if role.Locked() {
			return events.Entry{}, precondition(string(role.Contract.Status), "role %s is locked by an active contract; revert to Draft first", role.RoleID)
		}
		changed := []string{}
		set := func(field string, dst *string, src *string) {
			if src != nil && strings.TrimSpace(*src) != *dst {
				*dst = strings.TrimSpace(*src)
				changed = append(changed, field)
			}
		}
		set("name", &role.Name, upd.Name)
		set("gender", &role.Gender, upd.Gender)
		set("age", &role.Age, upd.Age)
		set("vocal_specs", &role.VocalSpecs, upd.VocalSpecs)
		set("contract.email", &role.Contract.Email, email)
		return events.Entry{Type: events.RoleUpdated, ActorID: upd.ActorID, Payload: events.Payload{"fields": changed}}, nil
	})
}

type AssignActorOptions struct {
	ProductionID    string
	RoleID          string
	TalentID        string
	Slot            domain.SlotType
	ExpectedVersion int64
	ActorID         string
}

// AssignActor places a roster snapshot into the primary or backup slot. An
// actor holds at most one of the two: assigning to one slot clears the other,
// and assigning the current holder again clears the slot.
func (e Engine) AssignActor(ctx context.Context, opts AssignActorOptions) (domain.RoleSlot, error) {
	slot, ok := domain.ParseSlotType(string(opts.Slot))
	if !ok {
		return domain.RoleSlot{}, invalid("slot", "must be primary or backup")
	}
	if strings.TrimSpace(opts.TalentID) == "" {
		return domain.RoleSlot{}, invalid("talent_id", "is required")
	}
	return e.mutateRole(ctx, "assign_actor", opts.ProductionID, opts.RoleID, opts.ExpectedVersion, func(ctx context.Context, tx *sql.Tx, role *domain.RoleSlot) (events.Entry, error) {
		req := &role.ActorRequest
		target, other := &req.Primary, &req.Backup
		if slot == domain.SlotBackup {
			target, other = &req.Backup, &req.Primary
		}
		entry := events.Entry{Type: events.RoleAssigned, ActorID: opts.ActorID}
		if *target != nil && (*target).ID == opts.TalentID {
			if slot == domain.SlotPrimary && role.Locked() {
				return entry, precondition(string(role.Contract.Status), "primary of role %s is locked by an active contract", role.RoleID)
			}
			*target = nil
			entry.Payload = events.Payload{"slot": slot, "talent_id": opts.TalentID, "cleared": true}
			return entry, nil
		}
		movesPrimary := slot == domain.SlotPrimary || (req.Primary != nil && req.Primary.ID == opts.TalentID)
		if movesPrimary && role.Locked() {
			return entry, precondition(string(role.Contract.Status), "primary of role %s is locked by an active contract", role.RoleID)
		}
		actor, err := e.Repo.GetActor(ctx, tx, opts.TalentID)
		if err != nil {
			return entry, storeErr("actor", opts.TalentID, 0, err)
		}
		if actor.Status != domain.RosterActive {
			return entry, precondition(string(actor.Status), "actor %s is %s", actor.DisplayName, actor.Status)
		}
		ref := actor.Ref()
		*target = &ref
		moved := false
		if *other != nil && (*other).ID == opts.TalentID {
			*other = nil
			moved = true
		}
		if slot == domain.SlotPrimary && role.Contract.Email == "" {
			role.Contract.Email = ref.Email
		}
		entry.Payload = events.Payload{"slot": slot, "talent_id": ref.ID, "display_name": ref.DisplayName, "moved": moved}
		return entry, nil
	})
}

type SetContractOptions struct {
	ProductionID    string
	RoleID          string
	Status          domain.ContractStatus
	ExpectedVersion int64
	Force           bool
	ActorID         string
}

// SetContractStatus moves a role contract between Draft and Active. Active
// needs a primary actor. Reverting to Draft is policy gated and always
// audited.
func (e Engine) SetContractStatus(ctx context.Context, opts SetContractOptions) (domain.RoleSlot, error) {
	status, ok := domain.ParseContractStatus(string(opts.Status))
	if !ok {
		return domain.RoleSlot{}, invalid("status", "must be Draft or Active")
	}
	var (
		reverted bool
		forced   bool
	)
	role, err := e.mutateRole(ctx, "set_role_contract", opts.ProductionID, opts.RoleID, opts.ExpectedVersion, func(ctx context.Context, tx *sql.Tx, role *domain.RoleSlot) (events.Entry, error) {
		reverted, forced = false, false
		from := role.Contract.Status
		entry := events.Entry{Type: events.RoleContract, ActorID: opts.ActorID}
		if status == domain.ContractActive && role.ActorRequest.Primary == nil {
			return entry, precondition(string(from), "role %s needs a primary actor before its contract can be Active", role.RoleID)
		}
		var err error
		reverted, forced, err = e.checkContractTransition(from, status, opts.Force)
		if err != nil {
			return entry, err
		}
		role.Contract.Status = status
		if reverted {
			entry.Type = events.RoleContractReverted
			if err := e.annotateRevert(ctx, tx, role.ProductionID, opts.ActorID, "role", role.RoleID, role.Name); err != nil {
				return entry, err
			}
		}
		entry.Payload = events.Payload{"from": from, "to": status, "forced": forced}
		return entry, nil
	})
	if err == nil && reverted {
		e.log().Info("role contract reverted",
			zap.String("production", opts.ProductionID),
			zap.String("role", opts.RoleID),
			zap.String("actor", opts.ActorID),
			zap.Bool("forced", forced))
	}
	return role, err
}

type DeleteRoleOptions struct {
	ProductionID    string
	RoleID          string
	ExpectedVersion int64
	ActorID         string
}

// DeleteRole removes a role whose contract is still Draft.
func (e Engine) DeleteRole(ctx context.Context, opts DeleteRoleOptions) error {
	return e.withTx(ctx, "delete_role", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.loadMutable(ctx, tx, opts.ProductionID)
		if err != nil {
			return err
		}
		role, err := e.Repo.GetRole(ctx, tx, p.ID, opts.RoleID)
		if err != nil {
			return storeErr("role", opts.RoleID, 0, err)
		}
		if err := checkVersion("role", role.RoleID, opts.ExpectedVersion, role.Version); err != nil {
			return err
		}
		if role.Locked() {
			return precondition(string(role.Contract.Status), "role %s has an active contract; revert to Draft before deleting", role.RoleID)
		}
		if err := e.Repo.DeleteRole(ctx, tx, p.ID, role.RoleID, role.Version); err != nil {
			return storeErr("role", role.RoleID, role.Version, err)
		}
		if err := e.Repo.TouchProduction(ctx, tx, p.ID, e.stamp()); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.RoleDeleted,
			ProductionID: p.ID,
			EntityKind:   "role",
			EntityID:     role.RoleID,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"name": role.Name, "position": role.Position},
		})
	})
}

type roleMutation func(ctx context.Context, tx *sql.Tx, role *domain.RoleSlot) (events.Entry, error)

// mutateRole is the shared load, check, write and audit path for role edits.
func (e Engine) mutateRole(ctx context.Context, op, productionID, roleID string, expected int64, fn roleMutation) (domain.RoleSlot, error) {
	var out domain.RoleSlot
	err := e.withTx(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.loadMutable(ctx, tx, productionID)
		if err != nil {
			return err
		}
		role, err := e.Repo.GetRole(ctx, tx, p.ID, roleID)
		if err != nil {
			return storeErr("role", roleID, 0, err)
		}
		if err := checkVersion("role", role.RoleID, expected, role.Version); err != nil {
			return err
		}
		entry, err := fn(ctx, tx, &role)
		if err != nil {
			return err
		}
		now := e.stamp()
		version, err := e.Repo.UpdateRole(ctx, tx, role, now)
		if err != nil {
			return storeErr("role", role.RoleID, role.Version, err)
		}
		if err := e.Repo.TouchProduction(ctx, tx, p.ID, now); err != nil {
			return err
		}
		role.Version = version
		role.UpdatedAt = now
		role.Status = domain.SlotOpen
		if role.ActorRequest.Primary != nil {
			role.Status = domain.SlotFilled
		}
		entry.ProductionID = p.ID
		entry.EntityKind = "role"
		entry.EntityID = role.RoleID
		if err := e.appendEvent(ctx, tx, entry); err != nil {
			return err
		}
		out = role
		return nil
	})
	return out, err
}

// checkContractTransition applies the Draft/Active table. It reports whether
// the move is a revert and whether Force was needed to allow it.
func (e Engine) checkContractTransition(from, to domain.ContractStatus, force bool) (reverted, forced bool, err error) {
	switch {
	case from == to:
		return false, false, precondition(string(from), "contract is already %s", from)
	case from == domain.ContractDraft && to == domain.ContractActive:
		return false, false, nil
	case from == domain.ContractActive && to == domain.ContractDraft:
		if e.cfg().Contracts.AllowRevert {
			return true, false, nil
		}
		if force {
			return true, true, nil
		}
		return false, false, precondition(string(from), "contract reverts are disabled by studio policy; use force to override")
	}
	return false, false, precondition(string(from), "invalid contract transition %s -> %s", from, to)
}

// annotateRevert writes the correspondence note that accompanies a revert
// when the studio asks for one.
func (e Engine) annotateRevert(ctx context.Context, tx *sql.Tx, productionID, actorID, kind, id, name string) error {
	if !e.cfg().Contracts.AnnotateReverts {
		return nil
	}
	author := actorID
	if author == "" {
		author = "system"
	}
	label := id
	if name != "" {
		label = name + " (" + id + ")"
	}
	_, err := e.Repo.InsertNote(ctx, tx, productionID, author, "Contract for "+kind+" "+label+" reverted from Active to Draft.", e.stamp())
	return err
}
