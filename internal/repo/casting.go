package repo

import (
	"context"
	"database/sql"

	"studioline/internal/domain"
)

const roleColumns = `production_id,role_id,position,name,gender,age,vocal_specs,primary_json,backup_json,contract_status,contract_email,version,updated_at`

func scanRole(row rowScanner) (domain.RoleSlot, error) {
	var (
		role            domain.RoleSlot
		primary, backup sql.NullString
	)
	err := row.Scan(&role.ProductionID, &role.RoleID, &role.Position, &role.Name, &role.Gender, &role.Age, &role.VocalSpecs,
		&primary, &backup, &role.Contract.Status, &role.Contract.Email, &role.Version, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return role, ErrNotFound
	}
	if err != nil {
		return role, err
	}
	if role.ActorRequest.Primary, err = unmarshalRef(primary); err != nil {
		return role, err
	}
	if role.ActorRequest.Backup, err = unmarshalRef(backup); err != nil {
		return role, err
	}
	role.Status = domain.SlotOpen
	if role.ActorRequest.Primary != nil {
		role.Status = domain.SlotFilled
	}
	return role, nil
}

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, role domain.RoleSlot, now string) error {
	primary, err := marshalRef(role.ActorRequest.Primary)
	if err != nil {
		return err
	}
	backup, err := marshalRef(role.ActorRequest.Backup)
	if err != nil {
		return err
	}
	status := role.Contract.Status
	if status == "" {
		status = domain.ContractDraft
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO casting_roles(production_id,role_id,position,name,gender,age,vocal_specs,primary_json,backup_json,contract_status,contract_email,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,1,?,?)`,
		role.ProductionID, role.RoleID, role.Position, role.Name, role.Gender, role.Age, role.VocalSpecs,
		primary, backup, string(status), role.Contract.Email, now, now)
	return err
}

func (r Repo) GetRole(ctx context.Context, tx *sql.Tx, productionID, roleID string) (domain.RoleSlot, error) {
	return scanRole(r.q(tx).QueryRowContext(ctx, `SELECT `+roleColumns+` FROM casting_roles WHERE production_id=? AND role_id=?`, productionID, roleID))
}

// ListRoles returns the casting manifest in insertion order.
func (r Repo) ListRoles(ctx context.Context, tx *sql.Tx, productionID string) ([]domain.RoleSlot, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+roleColumns+` FROM casting_roles WHERE production_id=? ORDER BY position, role_id`, productionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.RoleSlot{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, role)
	}
	return res, rows.Err()
}

func (r Repo) CountRoles(ctx context.Context, tx *sql.Tx, productionID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(1) FROM casting_roles WHERE production_id=?`, productionID).Scan(&n)
	return n, err
}

// NextRolePosition returns the position after the current last role.
func (r Repo) NextRolePosition(ctx context.Context, tx *sql.Tx, productionID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(position)+1,0) FROM casting_roles WHERE production_id=?`, productionID).Scan(&n)
	return n, err
}

// UpdateRole rewrites one role row if its version still matches role.Version.
// The new version is returned.
func (r Repo) UpdateRole(ctx context.Context, tx *sql.Tx, role domain.RoleSlot, now string) (int64, error) {
	primary, err := marshalRef(role.ActorRequest.Primary)
	if err != nil {
		return 0, err
	}
	backup, err := marshalRef(role.ActorRequest.Backup)
	if err != nil {
		return 0, err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE casting_roles SET name=?, gender=?, age=?, vocal_specs=?, primary_json=?, backup_json=?,
contract_status=?, contract_email=?, version=version+1, updated_at=?
WHERE production_id=? AND role_id=? AND version=?`,
		role.Name, role.Gender, role.Age, role.VocalSpecs, primary, backup,
		string(role.Contract.Status), role.Contract.Email, now,
		role.ProductionID, role.RoleID, role.Version)
	if err != nil {
		return 0, err
	}
	if err := affectedOrNotFound(res); err != nil {
		if _, getErr := r.GetRole(ctx, tx, role.ProductionID, role.RoleID); getErr != nil {
			return 0, getErr
		}
		return 0, ErrStaleVersion
	}
	return role.Version + 1, nil
}

func (r Repo) DeleteRole(ctx context.Context, tx *sql.Tx, productionID, roleID string, version int64) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM casting_roles WHERE production_id=? AND role_id=? AND version=?`, productionID, roleID, version)
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		if _, getErr := r.GetRole(ctx, tx, productionID, roleID); getErr != nil {
			return getErr
		}
		return ErrStaleVersion
	}
	return nil
}
