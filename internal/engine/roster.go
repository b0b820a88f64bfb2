package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"studioline/internal/domain"
	"studioline/internal/events"
)

// RosterFile is the YAML document accepted by ImportRoster.
type RosterFile struct {
	Actors []domain.RosterActor `yaml:"actors"`
	Crew   []domain.RosterCrew  `yaml:"crew"`
}

// ParseRosterYAML decodes a roster file.
func ParseRosterYAML(data []byte) (RosterFile, error) {
	var f RosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, invalid("roster", "invalid roster yaml: %v", err)
	}
	return f, nil
}

func (e Engine) UpsertActor(ctx context.Context, a domain.RosterActor, actorID string) (domain.RosterActor, error) {
	a, err := normalizeActor(a)
	if err != nil {
		return a, err
	}
	err = e.withTx(ctx, "upsert_actor", func(ctx context.Context, tx *sql.Tx) error {
		return e.upsertActorTx(ctx, tx, &a, actorID)
	})
	return a, err
}

func (e Engine) upsertActorTx(ctx context.Context, tx *sql.Tx, a *domain.RosterActor, actorID string) error {
	a.UpdatedAt = e.stamp()
	if err := e.Repo.UpsertActor(ctx, tx, *a, a.UpdatedAt); err != nil {
		return err
	}
	return e.appendEvent(ctx, tx, events.Entry{
		Type:       events.RosterUpserted,
		EntityKind: "actor",
		EntityID:   a.ID,
		ActorID:    actorID,
		Payload:    events.Payload{"display_name": a.DisplayName, "status": a.Status},
	})
}

func (e Engine) GetActor(ctx context.Context, id string) (domain.RosterActor, error) {
	var a domain.RosterActor
	err := e.run(ctx, "get_actor", func(ctx context.Context) error {
		var err error
		a, err = e.Repo.GetActor(ctx, nil, id)
		return storeErr("actor", id, 0, err)
	})
	return a, err
}

func (e Engine) ListActors(ctx context.Context, activeOnly bool) ([]domain.RosterActor, error) {
	var res []domain.RosterActor
	err := e.run(ctx, "list_actors", func(ctx context.Context) error {
		var err error
		res, err = e.Repo.ListActors(ctx, nil, activeOnly)
		return err
	})
	if err != nil || res == nil {
		return []domain.RosterActor{}, err
	}
	return res, nil
}

// SetActorStatus toggles an actor between active and inactive. Existing
// manifest snapshots are not touched.
func (e Engine) SetActorStatus(ctx context.Context, id string, status domain.RosterStatus, actorID string) error {
	if err := checkRosterStatus(status); err != nil {
		return err
	}
	return e.withTx(ctx, "set_actor_status", func(ctx context.Context, tx *sql.Tx) error {
		if err := e.Repo.SetActorStatus(ctx, tx, id, status, e.stamp()); err != nil {
			return storeErr("actor", id, 0, err)
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.RosterStatus,
			EntityKind: "actor",
			EntityID:   id,
			ActorID:    actorID,
			Payload:    events.Payload{"status": status},
		})
	})
}

func (e Engine) UpsertCrewMember(ctx context.Context, c domain.RosterCrew, actorID string) (domain.RosterCrew, error) {
	c, err := normalizeCrewMember(c)
	if err != nil {
		return c, err
	}
	err = e.withTx(ctx, "upsert_crew_member", func(ctx context.Context, tx *sql.Tx) error {
		return e.upsertCrewMemberTx(ctx, tx, &c, actorID)
	})
	return c, err
}

func (e Engine) upsertCrewMemberTx(ctx context.Context, tx *sql.Tx, c *domain.RosterCrew, actorID string) error {
	c.UpdatedAt = e.stamp()
	if err := e.Repo.UpsertCrewMember(ctx, tx, *c, c.UpdatedAt); err != nil {
		return err
	}
	return e.appendEvent(ctx, tx, events.Entry{
		Type:       events.RosterUpserted,
		EntityKind: "crew_member",
		EntityID:   c.ID,
		ActorID:    actorID,
		Payload:    events.Payload{"display_name": c.DisplayName, "status": c.Status},
	})
}

func (e Engine) ListCrewMembers(ctx context.Context, activeOnly bool) ([]domain.RosterCrew, error) {
	var res []domain.RosterCrew
	err := e.run(ctx, "list_crew_members", func(ctx context.Context) error {
		var err error
		res, err = e.Repo.ListCrewMembers(ctx, nil, activeOnly)
		return err
	})
	if err != nil || res == nil {
		return []domain.RosterCrew{}, err
	}
	return res, nil
}

func (e Engine) SetCrewMemberStatus(ctx context.Context, id string, status domain.RosterStatus, actorID string) error {
	if err := checkRosterStatus(status); err != nil {
		return err
	}
	return e.withTx(ctx, "set_crew_member_status", func(ctx context.Context, tx *sql.Tx) error {
		if err := e.Repo.SetCrewMemberStatus(ctx, tx, id, status, e.stamp()); err != nil {
			return storeErr("crew member", id, 0, err)
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:       events.RosterStatus,
			EntityKind: "crew_member",
			EntityID:   id,
			ActorID:    actorID,
			Payload:    events.Payload{"status": status},
		})
	})
}

type ImportResult struct {
	Actors int `json:"actors"`
	Crew   int `json:"crew"`
}

// ImportRoster upserts every record of f in a single transaction.
func (e Engine) ImportRoster(ctx context.Context, f RosterFile, actorID string) (ImportResult, error) {
	actors := make([]domain.RosterActor, 0, len(f.Actors))
	for i, a := range f.Actors {
		n, err := normalizeActor(a)
		if err != nil {
			return ImportResult{}, fmt.Errorf("actors[%d]: %w", i, err)
		}
		actors = append(actors, n)
	}
	crew := make([]domain.RosterCrew, 0, len(f.Crew))
	for i, c := range f.Crew {
		n, err := normalizeCrewMember(c)
		if err != nil {
			return ImportResult{}, fmt.Errorf("crew[%d]: %w", i, err)
		}
		crew = append(crew, n)
	}
	err := e.withTx(ctx, "import_roster", func(ctx context.Context, tx *sql.Tx) error {
		for i := range actors {
			if err := e.upsertActorTx(ctx, tx, &actors[i], actorID); err != nil {
				return err
			}
		}
		for i := range crew {
			if err := e.upsertCrewMemberTx(ctx, tx, &crew[i], actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Actors: len(actors), Crew: len(crew)}, nil
}

func normalizeActor(a domain.RosterActor) (domain.RosterActor, error) {
	a.DisplayName = strings.TrimSpace(a.DisplayName)
	if a.DisplayName == "" {
		return a, invalid("display_name", "is required")
	}
	if a.ID = strings.TrimSpace(a.ID); a.ID == "" {
		a.ID = uuid.NewString()
	}
	email, err := parseEmail(a.Email)
	if err != nil {
		return a, invalid("email", "%v", err)
	}
	a.Email = email
	if a.Status == "" {
		a.Status = domain.RosterActive
	}
	if err := checkRosterStatus(a.Status); err != nil {
		return a, err
	}
	tags := make([]string, 0, len(a.VoiceTags))
	for _, t := range a.VoiceTags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	a.VoiceTags = tags
	return a, nil
}

func normalizeCrewMember(c domain.RosterCrew) (domain.RosterCrew, error) {
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	if c.DisplayName == "" {
		return c, invalid("display_name", "is required")
	}
	if c.ID = strings.TrimSpace(c.ID); c.ID == "" {
		c.ID = uuid.NewString()
	}
	email, err := parseEmail(c.Email)
	if err != nil {
		return c, invalid("email", "%v", err)
	}
	c.Email = email
	if c.Status == "" {
		c.Status = domain.RosterActive
	}
	return c, checkRosterStatus(c.Status)
}

func checkRosterStatus(s domain.RosterStatus) error {
	if s != domain.RosterActive && s != domain.RosterInactive {
		return invalid("status", "must be active or inactive")
	}
	return nil
}
