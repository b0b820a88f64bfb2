package repo

import (
	"context"
	"database/sql"
	"strings"

	"studioline/internal/domain"
)

type EventFilters struct {
	ProductionID string
	Type         string
	EntityKind   string
	EntityID     string
}

// LatestEventsFrom pages the audit log newest first. Cursor is the last id
// the caller has seen and is excluded; zero starts at the newest event.
func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, f EventFilters) ([]domain.Event, error) {
	var (
		where []string
		args  []any
	)
	for col, v := range map[string]string{
		"production_id": f.ProductionID,
		"type":          f.Type,
		"entity_kind":   f.EntityKind,
		"entity_id":     f.EntityID,
	} {
		if v != "" {
			where = append(where, col+"=?")
			args = append(args, v)
		}
	}
	if cursor > 0 {
		where = append(where, "id<?")
		args = append(args, cursor)
	}
	query := `SELECT id, ts, type, COALESCE(production_id,''), entity_kind, COALESCE(entity_id,''), actor_id, COALESCE(payload_json,'') FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY id DESC LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	out := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProductionID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
