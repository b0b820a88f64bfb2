package engine

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"studioline/internal/config"
	"studioline/internal/domain"
	"studioline/internal/events"
)

type AdvanceStepOptions struct {
	ProductionID    string
	Step            domain.ProductionStep
	ExpectedVersion int64
	Force           bool
	ActorID         string
}

// AdvanceStep moves the workflow tracker and stamps the target step with the
// current time, overwriting any earlier stamp for that step.
func (e Engine) AdvanceStep(ctx context.Context, opts AdvanceStepOptions) (domain.Production, error) {
	step, ok := domain.ParseStep(string(opts.Step))
	if !ok {
		return domain.Production{}, invalid("step", "unknown workflow step %q", opts.Step)
	}
	var forced bool
	err := e.withTx(ctx, "advance_step", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.loadMutable(ctx, tx, opts.ProductionID)
		if err != nil {
			return err
		}
		if err := checkVersion("production", p.ProjectRefID, opts.ExpectedVersion, p.Version); err != nil {
			return err
		}
		from := p.ContractData.ProductionStep
		forced, err = checkStepTransition(e.cfg(), from, step, opts.Force)
		if err != nil {
			return err
		}
		now := e.stamp()
		p.ContractData.ProductionStep = step
		if _, err := e.Repo.UpdateProductionState(ctx, tx, p, now); err != nil {
			return storeErr("production", p.ProjectRefID, p.Version, err)
		}
		if err := e.Repo.RecordStep(ctx, tx, p.ID, step, now); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.WorkflowStep,
			ProductionID: p.ID,
			EntityKind:   "production",
			EntityID:     p.ID,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"from": from, "to": step, "forced": forced},
		})
	})
	if err != nil {
		return domain.Production{}, err
	}
	if forced {
		e.log().Info("workflow step forced",
			zap.String("production", opts.ProductionID),
			zap.String("step", string(step)),
			zap.String("actor", opts.ActorID))
	}
	return e.GetProduction(ctx, opts.ProductionID)
}

// checkStepTransition applies the studio workflow policy. Re-selecting the
// current step is always allowed and only refreshes its timestamp. The
// returned flag is true when Force was needed.
func checkStepTransition(cfg *config.Config, from, to domain.ProductionStep, force bool) (bool, error) {
	if from == to {
		return false, nil
	}
	var denial error
	fi, ti := from.Index(), to.Index()
	switch {
	case from == domain.StepFinalDelivery && cfg.Workflow.LockAfterDelivery:
		denial = precondition(string(from), "workflow is locked after %s", domain.StepFinalDelivery)
	case ti < fi && !cfg.Workflow.AllowBackward:
		denial = precondition(string(from), "moving back from %s to %s is disabled by studio policy", from, to)
	case ti > fi+1 && !cfg.Workflow.AllowSkip:
		denial = precondition(string(from), "skipping from %s to %s is disabled by studio policy", from, to)
	}
	if denial == nil {
		return false, nil
	}
	if force {
		return true, nil
	}
	return false, denial
}
