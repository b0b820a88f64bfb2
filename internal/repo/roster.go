package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"studioline/internal/domain"
)

const actorColumns = `id,display_name,COALESCE(headshot_url,''),COALESCE(email,''),COALESCE(gender,''),COALESCE(age_range,''),voice_tags_json,status,updated_at`

func scanActor(row rowScanner) (domain.RosterActor, error) {
	var (
		a    domain.RosterActor
		tags string
	)
	err := row.Scan(&a.ID, &a.DisplayName, &a.HeadshotURL, &a.Email, &a.Gender, &a.AgeRange, &tags, &a.Status, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal([]byte(tags), &a.VoiceTags); err != nil {
		return a, fmt.Errorf("decode voice tags: %w", err)
	}
	return a, nil
}

// UpsertActor inserts or replaces a roster actor keyed by id.
func (r Repo) UpsertActor(ctx context.Context, tx *sql.Tx, a domain.RosterActor, now string) error {
	if a.VoiceTags == nil {
		a.VoiceTags = []string{}
	}
	tags, err := marshalJSON(a.VoiceTags)
	if err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = domain.RosterActive
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO actor_roster(id,display_name,headshot_url,email,gender,age_range,voice_tags_json,status,updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET display_name=excluded.display_name, headshot_url=excluded.headshot_url, email=excluded.email,
gender=excluded.gender, age_range=excluded.age_range, voice_tags_json=excluded.voice_tags_json, status=excluded.status, updated_at=excluded.updated_at`,
		a.ID, a.DisplayName, nullable(a.HeadshotURL), nullable(a.Email), nullable(a.Gender), nullable(a.AgeRange), tags, string(a.Status), now)
	return err
}

func (r Repo) GetActor(ctx context.Context, tx *sql.Tx, id string) (domain.RosterActor, error) {
	return scanActor(r.q(tx).QueryRowContext(ctx, `SELECT `+actorColumns+` FROM actor_roster WHERE id=?`, id))
}

func (r Repo) ListActors(ctx context.Context, tx *sql.Tx, activeOnly bool) ([]domain.RosterActor, error) {
	query := `SELECT ` + actorColumns + ` FROM actor_roster`
	var args []any
	if activeOnly {
		query += ` WHERE status=?`
		args = append(args, string(domain.RosterActive))
	}
	query += ` ORDER BY lower(display_name), id`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.RosterActor{}
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) SetActorStatus(ctx context.Context, tx *sql.Tx, id string, status domain.RosterStatus, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE actor_roster SET status=?, updated_at=? WHERE id=?`, string(status), now, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

const crewRosterColumns = `id,display_name,COALESCE(headshot_url,''),COALESCE(email,''),COALESCE(role,''),status,updated_at`

func scanCrewMember(row rowScanner) (domain.RosterCrew, error) {
	var c domain.RosterCrew
	err := row.Scan(&c.ID, &c.DisplayName, &c.HeadshotURL, &c.Email, &c.Role, &c.Status, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

func (r Repo) UpsertCrewMember(ctx context.Context, tx *sql.Tx, c domain.RosterCrew, now string) error {
	if c.Status == "" {
		c.Status = domain.RosterActive
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO crew_roster(id,display_name,headshot_url,email,role,status,updated_at)
VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET display_name=excluded.display_name, headshot_url=excluded.headshot_url, email=excluded.email,
role=excluded.role, status=excluded.status, updated_at=excluded.updated_at`,
		c.ID, c.DisplayName, nullable(c.HeadshotURL), nullable(c.Email), nullable(c.Role), string(c.Status), now)
	return err
}

func (r Repo) GetCrewMember(ctx context.Context, tx *sql.Tx, id string) (domain.RosterCrew, error) {
	return scanCrewMember(r.q(tx).QueryRowContext(ctx, `SELECT `+crewRosterColumns+` FROM crew_roster WHERE id=?`, id))
}

func (r Repo) ListCrewMembers(ctx context.Context, tx *sql.Tx, activeOnly bool) ([]domain.RosterCrew, error) {
	query := `SELECT ` + crewRosterColumns + ` FROM crew_roster`
	var args []any
	if activeOnly {
		query += ` WHERE status=?`
		args = append(args, string(domain.RosterActive))
	}
	query += ` ORDER BY lower(display_name), id`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.RosterCrew{}
	for rows.Next() {
		c, err := scanCrewMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) SetCrewMemberStatus(ctx context.Context, tx *sql.Tx, id string, status domain.RosterStatus, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE crew_roster SET status=?, updated_at=? WHERE id=?`, string(status), now, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}
