package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"studioline/internal/config"
	"studioline/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound     = errors.New("not found")
	ErrStaleVersion = errors.New("record changed, reload")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nowString() string {
	return time.Now().UTC().Format(domain.TimeLayout)
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// marshalRef stores a snapshot as JSON text, or NULL when absent.
func marshalRef(ref *domain.TalentRef) (any, error) {
	if ref == nil {
		return nil, nil
	}
	s, err := marshalJSON(ref)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshalRef(raw sql.NullString) (*domain.TalentRef, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var ref domain.TalentRef
	if err := json.Unmarshal([]byte(raw.String), &ref); err != nil {
		return nil, fmt.Errorf("decode talent snapshot: %w", err)
	}
	return &ref, nil
}

// affectedOrNotFound converts a zero-row write into ErrNotFound.
func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpsertStudioConfig(ctx context.Context, cfg *config.Config) error {
	return r.UpsertStudioConfigTx(ctx, nil, cfg)
}

func (r Repo) UpsertStudioConfigTx(ctx context.Context, tx *sql.Tx, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := marshalJSON(cfg)
	if err != nil {
		return err
	}
	now := nowString()
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO studio_config(studio_id,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(studio_id) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, cfg.Studio.ID, payload, now, now)
	return err
}

func (r Repo) GetStudioConfig(ctx context.Context, studioID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM studio_config WHERE studio_id=?`, studioID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cfg := config.Default(studioID)
	if err := json.Unmarshal([]byte(payload), cfg); err != nil {
		return nil, err
	}
	if cfg.Studio.ID == "" {
		cfg.Studio.ID = studioID
	}
	return cfg, cfg.Validate()
}

// SingleStudio returns the only configured studio id.
func (r Repo) SingleStudio(ctx context.Context) (string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT studio_id FROM studio_config ORDER BY studio_id`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", ErrNotFound
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("multiple studios configured; specify --studio")
}
