package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"studioline/internal/domain"
	"studioline/internal/events"
	"studioline/internal/repo"
)

const maxPositionKey = 64

type CrewPositionOptions struct {
	ProductionID string
	PositionKey  string
	Name         string
	Email        string
	ActorID      string
}

// AddCrewPosition opens a crew slot under a caller-chosen key such as
// "director" or "engineer". Keys are unique per production.
func (e Engine) AddCrewPosition(ctx context.Context, opts CrewPositionOptions) (domain.CrewSlot, error) {
	key, err := normalizePositionKey(opts.PositionKey)
	if err != nil {
		return domain.CrewSlot{}, err
	}
	email, err := parseEmail(opts.Email)
	if err != nil {
		return domain.CrewSlot{}, invalid("email", "%v", err)
	}
	var slot domain.CrewSlot
	err = e.withTx(ctx, "add_crew", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.loadMutable(ctx, tx, opts.ProductionID)
		if err != nil {
			return err
		}
		if _, err := e.Repo.GetCrew(ctx, tx, p.ID, key); err == nil {
			return precondition("exists", "crew position %q already exists", key)
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		now := e.stamp()
		slot = domain.CrewSlot{
			PositionKey:  key,
			ProductionID: p.ID,
			Name:         strings.TrimSpace(opts.Name),
			Email:        email,
			Status:       domain.ContractDraft,
			Version:      1,
			UpdatedAt:    now,
		}
		if err := e.Repo.InsertCrew(ctx, tx, slot, now); err != nil {
			return err
		}
		if err := e.Repo.TouchProduction(ctx, tx, p.ID, now); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.CrewAdded,
			ProductionID: p.ID,
			EntityKind:   "crew",
			EntityID:     key,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"name": slot.Name},
		})
	})
	return slot, err
}

type CrewSlotUpdate struct {
	ProductionID    string
	PositionKey     string
	Name            *string
	Email           *string
	ExpectedVersion int64
	ActorID         string
}

func (e Engine) UpdateCrewSlot(ctx context.Context, upd CrewSlotUpdate) (domain.CrewSlot, error) {
	var email *string
	if upd.Email != nil {
		addr, err := parseEmail(*upd.Email)
		if err != nil {
			return domain.CrewSlot{}, invalid("email", "%v", err)
		}
		email = &addr
	}
	return e.mutateCrew(ctx, "update_crew", upd.ProductionID, upd.PositionKey, upd.ExpectedVersion, func(ctx context.Context, tx *sql.Tx, slot *domain.CrewSlot) (events.Entry, error) {
		if slot.Locked() {
			return events.Entry{}, precondition(string(slot.Status), "crew position %q is locked by an active contract; revert to Draft first", slot.PositionKey)
		}
		changed := []string{}
		if upd.Name != nil && strings.TrimSpace(*upd.Name) != slot.Name {
			slot.Name = strings.TrimSpace(*upd.Name)
			changed = append(changed, "name")
		}
		if email != nil && *email != slot.Email {
			slot.Email = *email
			changed = append(changed, "email")
		}
		return events.Entry{Type: events.CrewUpdated, ActorID: upd.ActorID, Payload: events.Payload{"fields": changed}}, nil
	})
}

type AssignCrewOptions struct {
	ProductionID    string
	PositionKey     string
	MemberID        string
	ExpectedVersion int64
	ActorID         string
}

// AssignCrew fills a crew slot from the crew roster. Assigning the current
// holder again empties the slot.
func (e Engine) AssignCrew(ctx context.Context, opts AssignCrewOptions) (domain.CrewSlot, error) {
	if strings.TrimSpace(opts.MemberID) == "" {
		return domain.CrewSlot{}, invalid("member_id", "is required")
	}
	return e.mutateCrew(ctx, "assign_crew", opts.ProductionID, opts.PositionKey, opts.ExpectedVersion, func(ctx context.Context, tx *sql.Tx, slot *domain.CrewSlot) (events.Entry, error) {
		entry := events.Entry{Type: events.CrewAssigned, ActorID: opts.ActorID}
		if slot.Locked() {
			return entry, precondition(string(slot.Status), "crew position %q is locked by an active contract", slot.PositionKey)
		}
		if slot.Assignee != nil && slot.Assignee.ID == opts.MemberID {
			slot.Assignee = nil
			slot.Name = ""
			slot.Email = ""
			entry.Payload = events.Payload{"member_id": opts.MemberID, "cleared": true}
			return entry, nil
		}
		member, err := e.Repo.GetCrewMember(ctx, tx, opts.MemberID)
		if err != nil {
			return entry, storeErr("crew member", opts.MemberID, 0, err)
		}
		if member.Status != domain.RosterActive {
			return entry, precondition(string(member.Status), "crew member %s is %s", member.DisplayName, member.Status)
		}
		ref := member.Ref()
		slot.Assignee = &ref
		slot.Name = ref.DisplayName
		slot.Email = ref.Email
		entry.Payload = events.Payload{"member_id": ref.ID, "display_name": ref.DisplayName}
		return entry, nil
	})
}

type CrewContractOptions struct {
	ProductionID    string
	PositionKey     string
	Status          domain.ContractStatus
	ExpectedVersion int64
	Force           bool
	ActorID         string
}

// SetCrewContractStatus mirrors SetContractStatus for crew. Active needs a
// name and an email on the slot.
func (e Engine) SetCrewContractStatus(ctx context.Context, opts CrewContractOptions) (domain.CrewSlot, error) {
	status, ok := domain.ParseContractStatus(string(opts.Status))
	if !ok {
		return domain.CrewSlot{}, invalid("status", "must be Draft or Active")
	}
	var reverted, forced bool
	slot, err := e.mutateCrew(ctx, "set_crew_contract", opts.ProductionID, opts.PositionKey, opts.ExpectedVersion, func(ctx context.Context, tx *sql.Tx, slot *domain.CrewSlot) (events.Entry, error) {
		reverted, forced = false, false
		from := slot.Status
		entry := events.Entry{Type: events.CrewContract, ActorID: opts.ActorID}
		if status == domain.ContractActive && (slot.Name == "" || slot.Email == "") {
			return entry, precondition(string(from), "crew position %q needs a name and email before its contract can be Active", slot.PositionKey)
		}
		var err error
		reverted, forced, err = e.checkContractTransition(from, status, opts.Force)
		if err != nil {
			return entry, err
		}
		slot.Status = status
		if reverted {
			entry.Type = events.CrewContractReverted
			if err := e.annotateRevert(ctx, tx, slot.ProductionID, opts.ActorID, "crew position", slot.PositionKey, slot.Name); err != nil {
				return entry, err
			}
		}
		entry.Payload = events.Payload{"from": from, "to": status, "forced": forced}
		return entry, nil
	})
	if err == nil && reverted {
		e.log().Info("crew contract reverted",
			zap.String("production", opts.ProductionID),
			zap.String("position", opts.PositionKey),
			zap.String("actor", opts.ActorID),
			zap.Bool("forced", forced))
	}
	return slot, err
}

type DeleteCrewOptions struct {
	ProductionID    string
	PositionKey     string
	ExpectedVersion int64
	ActorID         string
}

func (e Engine) DeleteCrewPosition(ctx context.Context, opts DeleteCrewOptions) error {
	return e.withTx(ctx, "delete_crew", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.loadMutable(ctx, tx, opts.ProductionID)
		if err != nil {
			return err
		}
		slot, err := e.Repo.GetCrew(ctx, tx, p.ID, opts.PositionKey)
		if err != nil {
			return storeErr("crew position", opts.PositionKey, 0, err)
		}
		if err := checkVersion("crew position", slot.PositionKey, opts.ExpectedVersion, slot.Version); err != nil {
			return err
		}
		if slot.Locked() {
			return precondition(string(slot.Status), "crew position %q has an active contract; revert to Draft before deleting", slot.PositionKey)
		}
		if err := e.Repo.DeleteCrew(ctx, tx, p.ID, slot.PositionKey, slot.Version); err != nil {
			return storeErr("crew position", slot.PositionKey, slot.Version, err)
		}
		if err := e.Repo.TouchProduction(ctx, tx, p.ID, e.stamp()); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.CrewDeleted,
			ProductionID: p.ID,
			EntityKind:   "crew",
			EntityID:     slot.PositionKey,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"name": slot.Name},
		})
	})
}

type crewMutation func(ctx context.Context, tx *sql.Tx, slot *domain.CrewSlot) (events.Entry, error)

func (e Engine) mutateCrew(ctx context.Context, op, productionID, key string, expected int64, fn crewMutation) (domain.CrewSlot, error) {
	var out domain.CrewSlot
	err := e.withTx(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.loadMutable(ctx, tx, productionID)
		if err != nil {
			return err
		}
		slot, err := e.Repo.GetCrew(ctx, tx, p.ID, key)
		if err != nil {
			return storeErr("crew position", key, 0, err)
		}
		if err := checkVersion("crew position", slot.PositionKey, expected, slot.Version); err != nil {
			return err
		}
		entry, err := fn(ctx, tx, &slot)
		if err != nil {
			return err
		}
		now := e.stamp()
		version, err := e.Repo.UpdateCrew(ctx, tx, slot, now)
		if err != nil {
			return storeErr("crew position", slot.PositionKey, slot.Version, err)
		}
		if err := e.Repo.TouchProduction(ctx, tx, p.ID, now); err != nil {
			return err
		}
		slot.Version = version
		slot.UpdatedAt = now
		entry.ProductionID = p.ID
		entry.EntityKind = "crew"
		entry.EntityID = slot.PositionKey
		if err := e.appendEvent(ctx, tx, entry); err != nil {
			return err
		}
		out = slot
		return nil
	})
	return out, err
}

func normalizePositionKey(s string) (string, error) {
	key := strings.TrimSpace(s)
	if key == "" {
		return "", invalid("position_key", "is required")
	}
	if len(key) > maxPositionKey {
		return "", invalid("position_key", "must be at most %d characters", maxPositionKey)
	}
	if strings.ContainsAny(key, "/?#") {
		return "", invalid("position_key", "must not contain '/', '?' or '#'")
	}
	return key, nil
}
