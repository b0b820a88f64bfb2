package repo

import (
	"context"
	"database/sql"

	"studioline/internal/domain"
)

// InsertNote appends to the correspondence log and returns the stored entry.
func (r Repo) InsertNote(ctx context.Context, tx *sql.Tx, productionID, author, text, ts string) (domain.CorrespondenceEntry, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT INTO correspondence(production_id,author,text,ts) VALUES (?,?,?,?)`, productionID, author, text, ts)
	if err != nil {
		return domain.CorrespondenceEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.CorrespondenceEntry{}, err
	}
	return domain.CorrespondenceEntry{ID: id, ProductionID: productionID, Author: author, Text: text, Timestamp: ts}, nil
}

// ListNotes returns the log oldest first.
func (r Repo) ListNotes(ctx context.Context, tx *sql.Tx, productionID string) ([]domain.CorrespondenceEntry, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT id,production_id,author,text,ts FROM correspondence WHERE production_id=? ORDER BY id`, productionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.CorrespondenceEntry{}
	for rows.Next() {
		var n domain.CorrespondenceEntry
		if err := rows.Scan(&n.ID, &n.ProductionID, &n.Author, &n.Text, &n.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}
