package repo

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	PrefixIntake     = "INT"
	PrefixProduction = "ACT"
	PrefixRole       = "ROLE"

	refCounterStart = 1001
)

// NextRef allocates the next human reference for prefix, e.g. INT-1001.
func (r Repo) NextRef(ctx context.Context, tx *sql.Tx, prefix string) (string, error) {
	var v int64
	err := r.q(tx).QueryRowContext(ctx, `INSERT INTO ref_counters(prefix,value) VALUES (?,?)
ON CONFLICT(prefix) DO UPDATE SET value=value+1 RETURNING value`, prefix, refCounterStart).Scan(&v)
	if err != nil {
		return "", fmt.Errorf("allocate %s reference: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%04d", prefix, v), nil
}

// RoleIDTaken reports whether roleID already exists in the production manifest.
func (r Repo) RoleIDTaken(ctx context.Context, tx *sql.Tx, productionID, roleID string) (bool, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(1) FROM casting_roles WHERE production_id=? AND role_id=?`, productionID, roleID).Scan(&n)
	return n > 0, err
}
