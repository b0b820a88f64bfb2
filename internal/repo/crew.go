package repo

import (
	"context"
	"database/sql"

	"studioline/internal/domain"
)

const crewColumns = `production_id,position_key,name,email,status,assignee_json,version,updated_at`

func scanCrew(row rowScanner) (domain.CrewSlot, error) {
	var (
		slot     domain.CrewSlot
		assignee sql.NullString
	)
	err := row.Scan(&slot.ProductionID, &slot.PositionKey, &slot.Name, &slot.Email, &slot.Status, &assignee, &slot.Version, &slot.UpdatedAt)
	if err == sql.ErrNoRows {
		return slot, ErrNotFound
	}
	if err != nil {
		return slot, err
	}
	slot.Assignee, err = unmarshalRef(assignee)
	return slot, err
}

func (r Repo) InsertCrew(ctx context.Context, tx *sql.Tx, slot domain.CrewSlot, now string) error {
	assignee, err := marshalRef(slot.Assignee)
	if err != nil {
		return err
	}
	status := slot.Status
	if status == "" {
		status = domain.ContractDraft
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO crew_slots(production_id,position_key,name,email,status,assignee_json,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,1,?,?)`, slot.ProductionID, slot.PositionKey, slot.Name, slot.Email, string(status), assignee, now, now)
	return err
}

func (r Repo) GetCrew(ctx context.Context, tx *sql.Tx, productionID, key string) (domain.CrewSlot, error) {
	return scanCrew(r.q(tx).QueryRowContext(ctx, `SELECT `+crewColumns+` FROM crew_slots WHERE production_id=? AND position_key=?`, productionID, key))
}

// ListCrew returns crew slots sorted by position key.
func (r Repo) ListCrew(ctx context.Context, tx *sql.Tx, productionID string) ([]domain.CrewSlot, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+crewColumns+` FROM crew_slots WHERE production_id=? ORDER BY position_key`, productionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.CrewSlot{}
	for rows.Next() {
		slot, err := scanCrew(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, slot)
	}
	return res, rows.Err()
}

// UpdateCrew rewrites one crew slot guarded by its version.
func (r Repo) UpdateCrew(ctx context.Context, tx *sql.Tx, slot domain.CrewSlot, now string) (int64, error) {
	assignee, err := marshalRef(slot.Assignee)
	if err != nil {
		return 0, err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE crew_slots SET name=?, email=?, status=?, assignee_json=?, version=version+1, updated_at=?
WHERE production_id=? AND position_key=? AND version=?`,
		slot.Name, slot.Email, string(slot.Status), assignee, now, slot.ProductionID, slot.PositionKey, slot.Version)
	if err != nil {
		return 0, err
	}
	if err := affectedOrNotFound(res); err != nil {
		if _, getErr := r.GetCrew(ctx, tx, slot.ProductionID, slot.PositionKey); getErr != nil {
			return 0, getErr
		}
		return 0, ErrStaleVersion
	}
	return slot.Version + 1, nil
}

func (r Repo) DeleteCrew(ctx context.Context, tx *sql.Tx, productionID, key string, version int64) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM crew_slots WHERE production_id=? AND position_key=? AND version=?`, productionID, key, version)
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		if _, getErr := r.GetCrew(ctx, tx, productionID, key); getErr != nil {
			return getErr
		}
		return ErrStaleVersion
	}
	return nil
}
