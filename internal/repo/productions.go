package repo

import (
	"context"
	"database/sql"
	"strings"

	"studioline/internal/domain"
)

const productionColumns = `id,project_ref_id,COALESCE(intake_id,''),title,style,production_status,production_step,version,created_at,updated_at,greenlit_at`

func scanProduction(row rowScanner) (domain.Production, error) {
	var p domain.Production
	err := row.Scan(&p.ID, &p.ProjectRefID, &p.IntakeID, &p.Title, &p.Style, &p.ProductionStatus,
		&p.ContractData.ProductionStep, &p.Version, &p.CreatedAt, &p.UpdatedAt, &p.GreenlitAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertProduction(ctx context.Context, tx *sql.Tx, p domain.Production) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO active_productions(id,project_ref_id,intake_id,title,style,production_status,production_step,version,created_at,updated_at,greenlit_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.ProjectRefID, nullable(p.IntakeID), p.Title, p.Style, string(p.ProductionStatus),
		string(p.ContractData.ProductionStep), p.Version, p.CreatedAt, p.UpdatedAt, p.GreenlitAt)
	return err
}

// GetProductionRow loads the production header without manifests.
func (r Repo) GetProductionRow(ctx context.Context, tx *sql.Tx, id string) (domain.Production, error) {
	return scanProduction(r.q(tx).QueryRowContext(ctx, `SELECT `+productionColumns+` FROM active_productions WHERE id=? OR project_ref_id=?`, id, id))
}

// GetProductionByIntake finds the production greenlit from an intake.
func (r Repo) GetProductionByIntake(ctx context.Context, tx *sql.Tx, intakeID string) (domain.Production, error) {
	return scanProduction(r.q(tx).QueryRowContext(ctx, `SELECT `+productionColumns+` FROM active_productions WHERE intake_id=?`, intakeID))
}

// LoadProduction returns the full record: header, both manifests, workflow
// timestamps and correspondence.
func (r Repo) LoadProduction(ctx context.Context, tx *sql.Tx, id string) (domain.Production, error) {
	p, err := r.GetProductionRow(ctx, tx, id)
	if err != nil {
		return p, err
	}
	if p.CastingManifest, err = r.ListRoles(ctx, tx, p.ID); err != nil {
		return p, err
	}
	crew, err := r.ListCrew(ctx, tx, p.ID)
	if err != nil {
		return p, err
	}
	p.CrewManifest = make(map[string]domain.CrewSlot, len(crew))
	for _, c := range crew {
		p.CrewManifest[c.PositionKey] = c
	}
	if p.ContractData.StepTimestamps, err = r.StepTimestamps(ctx, tx, p.ID); err != nil {
		return p, err
	}
	if p.Correspondence, err = r.ListNotes(ctx, tx, p.ID); err != nil {
		return p, err
	}
	return p, nil
}

type ProductionFilters struct {
	Archived *bool
	Status   domain.ProductionStatus
	Search   string
	Limit    int
}

func (r Repo) ListProductions(ctx context.Context, f ProductionFilters) ([]domain.Production, error) {
	clauses := []string{"1=1"}
	var args []any
	terminal := make([]string, 0, len(domain.TerminalStatuses))
	for _, s := range domain.TerminalStatuses {
		terminal = append(terminal, "'"+string(s)+"'")
	}
	if f.Archived != nil {
		if *f.Archived {
			clauses = append(clauses, "production_status IN ("+strings.Join(terminal, ",")+")")
		} else {
			clauses = append(clauses, "production_status NOT IN ("+strings.Join(terminal, ",")+")")
		}
	}
	if f.Status != "" {
		clauses = append(clauses, "production_status=?")
		args = append(args, string(f.Status))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		clauses = append(clauses, `(lower(title) LIKE ? ESCAPE '\' OR lower(project_ref_id) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	query := `SELECT ` + productionColumns + ` FROM active_productions WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY greenlit_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Production{}
	for rows.Next() {
		p, err := scanProduction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProductionState writes status and step guarded by version. The new
// version is returned.
func (r Repo) UpdateProductionState(ctx context.Context, tx *sql.Tx, p domain.Production, now string) (int64, error) {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE active_productions SET production_status=?, production_step=?, version=version+1, updated_at=?
WHERE id=? AND version=?`, string(p.ProductionStatus), string(p.ContractData.ProductionStep), now, p.ID, p.Version)
	if err != nil {
		return 0, err
	}
	if err := affectedOrNotFound(res); err != nil {
		if _, getErr := r.GetProductionRow(ctx, tx, p.ID); getErr != nil {
			return 0, getErr
		}
		return 0, ErrStaleVersion
	}
	return p.Version + 1, nil
}

// TouchProduction bumps updated_at after a manifest change.
func (r Repo) TouchProduction(ctx context.Context, tx *sql.Tx, id, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE active_productions SET updated_at=? WHERE id=?`, now, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// RecordStep inserts or overwrites the timestamp of a step. Rows are never deleted.
func (r Repo) RecordStep(ctx context.Context, tx *sql.Tx, productionID string, step domain.ProductionStep, ts string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO step_timestamps(production_id,step,ts) VALUES (?,?,?)
ON CONFLICT(production_id,step) DO UPDATE SET ts=excluded.ts`, productionID, string(step), ts)
	return err
}

func (r Repo) StepTimestamps(ctx context.Context, tx *sql.Tx, productionID string) (map[domain.ProductionStep]string, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT step,ts FROM step_timestamps WHERE production_id=?`, productionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.ProductionStep]string{}
	for rows.Next() {
		var step, ts string
		if err := rows.Scan(&step, &ts); err != nil {
			return nil, err
		}
		res[domain.ProductionStep(step)] = ts
	}
	return res, rows.Err()
}
