package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studioline/internal/domain"
	"studioline/internal/events"
	"studioline/internal/repo"
)

type GreenlightOptions struct {
	IntakeID string
	ActorID  string
	// Strict rejects a repeated greenlight instead of returning the
	// production created the first time.
	Strict bool
}

// Greenlight turns a NEW intake into an active production in one transaction.
// The intake id is the idempotency key: a production is created at most once
// per intake, and a half-applied earlier attempt is completed, not repeated.
func (e Engine) Greenlight(ctx context.Context, opts GreenlightOptions) (domain.Production, error) {
	var productionID string
	err := e.withTx(ctx, "greenlight", func(ctx context.Context, tx *sql.Tx) error {
		in, err := e.Repo.GetIntakeTx(ctx, tx, opts.IntakeID)
		if err != nil {
			return storeErr("intake", opts.IntakeID, 0, err)
		}
		existing, err := e.Repo.GetProductionByIntake(ctx, tx, in.ID)
		switch {
		case err == nil:
			productionID = existing.ID
			if in.Status == domain.IntakeGreenlit {
				if opts.Strict {
					return precondition(string(in.Status), "intake %s is already greenlit as %s", in.RefID, existing.ProjectRefID)
				}
				return nil
			}
			if err := e.Repo.SetIntakeStatus(ctx, tx, in.ID, domain.IntakeNew, domain.IntakeGreenlit); err != nil {
				return storeErr("intake", in.ID, 0, err)
			}
			e.log().Info("greenlight reconciled intake status",
				zap.String("intake", in.RefID),
				zap.String("production", existing.ProjectRefID))
			return e.appendEvent(ctx, tx, events.Entry{
				Type:         events.ProductionReconciled,
				ProductionID: existing.ID,
				EntityKind:   "intake",
				EntityID:     in.ID,
				ActorID:      opts.ActorID,
				Payload:      events.Payload{"repair": "intake_status", "intake_ref": in.RefID},
			})
		case !errors.Is(err, repo.ErrNotFound):
			return err
		}

		p, err := e.createProduction(ctx, tx, in, opts.ActorID)
		if err != nil {
			return err
		}
		productionID = p.ID
		if in.Status == domain.IntakeNew {
			if err := e.Repo.SetIntakeStatus(ctx, tx, in.ID, domain.IntakeNew, domain.IntakeGreenlit); err != nil {
				return storeErr("intake", in.ID, 0, err)
			}
			return e.appendEvent(ctx, tx, events.Entry{
				Type:         events.IntakeGreenlit,
				ProductionID: p.ID,
				EntityKind:   "intake",
				EntityID:     in.ID,
				ActorID:      opts.ActorID,
				Payload:      events.Payload{"intake_ref": in.RefID, "project_ref": p.ProjectRefID},
			})
		}
		e.log().Info("greenlight reconciled missing production",
			zap.String("intake", in.RefID),
			zap.String("production", p.ProjectRefID))
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.ProductionReconciled,
			ProductionID: p.ID,
			EntityKind:   "intake",
			EntityID:     in.ID,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"repair": "production", "intake_ref": in.RefID},
		})
	})
	if err != nil {
		return domain.Production{}, err
	}
	return e.GetProduction(ctx, productionID)
}

func (e Engine) createProduction(ctx context.Context, tx *sql.Tx, in domain.Intake, actorID string) (domain.Production, error) {
	format := in.Format()
	if format == "" {
		return domain.Production{}, invalid("style", "unknown style %q", in.Style)
	}
	if ceiling := format.SlotCeiling(e.cfg().Formats.MultiRoleCap); len(in.CharacterDetails) > ceiling {
		return domain.Production{}, invalid("character_details", "%s allows at most %d role(s), intake has %d", format, ceiling, len(in.CharacterDetails))
	}
	ref, err := e.Repo.NextRef(ctx, tx, repo.PrefixProduction)
	if err != nil {
		return domain.Production{}, err
	}
	now := e.stamp()
	p := domain.Production{
		ID:               uuid.NewString(),
		ProjectRefID:     ref,
		IntakeID:         in.ID,
		Title:            in.ProjectTitle,
		Style:            in.Style,
		ProductionStatus: domain.StatusPreProduction,
		ContractData:     domain.WorkflowState{ProductionStep: domain.StepPreProduction},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
		GreenlitAt:       now,
	}
	if err := e.Repo.InsertProduction(ctx, tx, p); err != nil {
		return p, fmt.Errorf("insert production: %w", err)
	}
	base := e.now().UnixMilli()
	for i, cd := range in.CharacterDetails {
		roleID, err := e.nextRoleID(ctx, tx, p.ID, base+int64(i))
		if err != nil {
			return p, err
		}
		role := domain.RoleSlot{
			RoleID:       roleID,
			ProductionID: p.ID,
			Position:     i,
			Name:         cd.Name,
			Gender:       cd.Gender,
			Age:          cd.Age,
			VocalSpecs:   cd.VocalStyle,
			Contract:     domain.Contract{Status: domain.ContractDraft},
		}
		if err := e.Repo.InsertRole(ctx, tx, role, now); err != nil {
			return p, fmt.Errorf("seed role %d: %w", i, err)
		}
	}
	if err := e.Repo.RecordStep(ctx, tx, p.ID, domain.StepPreProduction, now); err != nil {
		return p, err
	}
	err = e.appendEvent(ctx, tx, events.Entry{
		Type:         events.ProductionCreated,
		ProductionID: p.ID,
		EntityKind:   "production",
		EntityID:     p.ID,
		ActorID:      actorID,
		Payload: events.Payload{
			"project_ref": p.ProjectRefID,
			"intake_ref":  in.RefID,
			"format":      format,
			"roles":       len(in.CharacterDetails),
		},
	})
	return p, err
}

// nextRoleID returns ROLE-<ms>, moving forward one millisecond at a time
// until the id is unused in the manifest.
func (e Engine) nextRoleID(ctx context.Context, tx *sql.Tx, productionID string, ms int64) (string, error) {
	for {
		id := fmt.Sprintf("%s-%d", repo.PrefixRole, ms)
		taken, err := e.Repo.RoleIDTaken(ctx, tx, productionID, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
		ms++
	}
}
