package engine

import (
	"context"
	"database/sql"
	"fmt"

	"studioline/internal/domain"
	"studioline/internal/events"
	"studioline/internal/repo"
)

// GetProduction loads a production by id or ACT reference with both
// manifests, workflow state and correspondence.
func (e Engine) GetProduction(ctx context.Context, id string) (domain.Production, error) {
	var p domain.Production
	err := e.withTx(ctx, "get_production", func(ctx context.Context, tx *sql.Tx) error {
		var err error
		p, err = e.Repo.LoadProduction(ctx, tx, id)
		return storeErr("production", id, 0, err)
	})
	return p, err
}

type ProductionQuery struct {
	Archived *bool
	Status   domain.ProductionStatus
	Search   string
	Limit    int
}

// ListProductions returns production headers without manifests.
func (e Engine) ListProductions(ctx context.Context, q ProductionQuery) ([]domain.Production, error) {
	if q.Status != "" && !domain.ValidProductionStatuses[q.Status] {
		return []domain.Production{}, invalid("status", "unknown production status %q", q.Status)
	}
	var res []domain.Production
	err := e.run(ctx, "list_productions", func(ctx context.Context) error {
		var err error
		res, err = e.Repo.ListProductions(ctx, repo.ProductionFilters{
			Archived: q.Archived,
			Status:   q.Status,
			Search:   q.Search,
			Limit:    q.Limit,
		})
		return err
	})
	if err != nil || res == nil {
		return []domain.Production{}, err
	}
	return res, nil
}

type StatusOptions struct {
	ProductionID    string
	Status          domain.ProductionStatus
	ExpectedVersion int64
	ActorID         string
}

// SetProductionStatus changes the coarse production status. Complete,
// Cancelled and Paid archive the production.
func (e Engine) SetProductionStatus(ctx context.Context, opts StatusOptions) (domain.Production, error) {
	if !domain.ValidProductionStatuses[opts.Status] {
		return domain.Production{}, invalid("status", "unknown production status %q", opts.Status)
	}
	err := e.withTx(ctx, "set_production_status", func(ctx context.Context, tx *sql.Tx) error {
		p, err := e.Repo.GetProductionRow(ctx, tx, opts.ProductionID)
		if err != nil {
			return storeErr("production", opts.ProductionID, 0, err)
		}
		if err := checkVersion("production", p.ProjectRefID, opts.ExpectedVersion, p.Version); err != nil {
			return err
		}
		from := p.ProductionStatus
		if err := ensureStatusTransition(from, opts.Status); err != nil {
			return err
		}
		p.ProductionStatus = opts.Status
		if _, err := e.Repo.UpdateProductionState(ctx, tx, p, e.stamp()); err != nil {
			return storeErr("production", p.ProjectRefID, p.Version, err)
		}
		return e.appendEvent(ctx, tx, events.Entry{
			Type:         events.ProductionStatus,
			ProductionID: p.ID,
			EntityKind:   "production",
			EntityID:     p.ID,
			ActorID:      opts.ActorID,
			Payload:      events.Payload{"from": from, "to": opts.Status, "archived": opts.Status.Terminal()},
		})
	})
	if err != nil {
		return domain.Production{}, err
	}
	return e.GetProduction(ctx, opts.ProductionID)
}

func ensureStatusTransition(from, to domain.ProductionStatus) error {
	switch {
	case from == to:
		return precondition(string(from), "production is already %s", from)
	case !from.Terminal() && to != domain.StatusPaid:
		return nil
	case from == domain.StatusComplete && to == domain.StatusPaid:
		return nil
	}
	return precondition(string(from), "invalid production status transition %s -> %s", from, to)
}

type EventQuery struct {
	ProductionID string
	Type         string
	EntityKind   string
	EntityID     string
	Cursor       int64
	Limit        int
}

// ListEvents pages the audit log newest first. A production reference is
// resolved to its id.
func (e Engine) ListEvents(ctx context.Context, q EventQuery) ([]domain.Event, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	var res []domain.Event
	err := e.run(ctx, "list_events", func(ctx context.Context) error {
		filters := repo.EventFilters{Type: q.Type, EntityKind: q.EntityKind, EntityID: q.EntityID}
		if q.ProductionID != "" {
			p, err := e.Repo.GetProductionRow(ctx, nil, q.ProductionID)
			if err != nil {
				return storeErr("production", q.ProductionID, 0, err)
			}
			filters.ProductionID = p.ID
		}
		var err error
		res, err = e.Repo.LatestEventsFrom(ctx, q.Limit, q.Cursor, filters)
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		return nil
	})
	if err != nil || res == nil {
		return []domain.Event{}, err
	}
	return res, nil
}
