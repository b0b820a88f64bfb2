package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"studioline/internal/domain"
)

const intakeColumns = `id,intake_ref_id,client_type,client_name,email,project_title,word_count,style,genres_json,character_details_json,timeline_prefs,notes,status,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntake(row rowScanner) (domain.Intake, error) {
	var (
		in         domain.Intake
		genres     string
		characters string
		notes      sql.NullString
	)
	err := row.Scan(&in.ID, &in.RefID, &in.ClientType, &in.ClientName, &in.Email, &in.ProjectTitle, &in.WordCount,
		&in.Style, &genres, &characters, &in.TimelinePrefs, &notes, &in.Status, &in.CreatedAt)
	if err == sql.ErrNoRows {
		return in, ErrNotFound
	}
	if err != nil {
		return in, err
	}
	if notes.Valid {
		in.Notes = notes.String
	}
	if err := json.Unmarshal([]byte(genres), &in.Genres); err != nil {
		return in, fmt.Errorf("decode genres: %w", err)
	}
	if err := json.Unmarshal([]byte(characters), &in.CharacterDetails); err != nil {
		return in, fmt.Errorf("decode character details: %w", err)
	}
	return in, nil
}

func (r Repo) InsertIntake(ctx context.Context, tx *sql.Tx, in domain.Intake, base domain.Format) error {
	genres, err := marshalJSON(in.Genres)
	if err != nil {
		return err
	}
	characters, err := marshalJSON(in.CharacterDetails)
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO project_intake(`+intakeColumns+`,base_format) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		in.ID, in.RefID, string(in.ClientType), in.ClientName, in.Email, in.ProjectTitle, in.WordCount, in.Style,
		genres, characters, in.TimelinePrefs, nullable(in.Notes), string(in.Status), in.CreatedAt, string(base))
	return err
}

func (r Repo) GetIntake(ctx context.Context, id string) (domain.Intake, error) {
	return r.GetIntakeTx(ctx, nil, id)
}

// GetIntakeTx resolves an intake by id or by its INT reference.
func (r Repo) GetIntakeTx(ctx context.Context, tx *sql.Tx, id string) (domain.Intake, error) {
	return scanIntake(r.q(tx).QueryRowContext(ctx, `SELECT `+intakeColumns+` FROM project_intake WHERE id=? OR intake_ref_id=?`, id, id))
}

// SetIntakeStatus moves an intake from one status to another and fails with
// ErrStaleVersion when the row is no longer in the expected status.
func (r Repo) SetIntakeStatus(ctx context.Context, tx *sql.Tx, id string, from, to domain.IntakeStatus) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE project_intake SET status=? WHERE id=? AND status=?`, string(to), id, string(from))
	if err != nil {
		return err
	}
	if err := affectedOrNotFound(res); err != nil {
		if _, getErr := r.GetIntakeTx(ctx, tx, id); getErr != nil {
			return getErr
		}
		return ErrStaleVersion
	}
	return nil
}

type IntakeFilters struct {
	Status domain.IntakeStatus
	Format domain.Format
	Search string
	Sort   domain.IntakeSort
	Limit  int
}

func (r Repo) ListIntakes(ctx context.Context, f IntakeFilters) ([]domain.Intake, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Format != "" {
		clauses = append(clauses, "base_format=?")
		args = append(args, string(f.Format))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		clauses = append(clauses, `(lower(project_title) LIKE ? ESCAPE '\' OR lower(client_name) LIKE ? ESCAPE '\' OR lower(intake_ref_id) LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	order := "created_at DESC, id DESC"
	switch f.Sort {
	case domain.SortOldest:
		order = "created_at ASC, id ASC"
	case domain.SortTitle:
		order = "lower(project_title) ASC, created_at DESC"
	}
	query := `SELECT ` + intakeColumns + ` FROM project_intake WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY ` + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Intake{}
	for rows.Next() {
		in, err := scanIntake(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
