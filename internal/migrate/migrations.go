// Package migrate applies the embedded schema to a studio database.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
)

//go:embed sql/*.sql
var files embed.FS

// Step is one numbered SQL file, e.g. sql/001_init.sql.
type Step struct {
	Version int
	Name    string
	SQL     string
}

func steps() ([]Step, error) {
	entries, err := files.ReadDir("sql")
	if err != nil {
		return nil, err
	}
	out := make([]Step, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		v, err := strconv.Atoi(prefix)
		if !ok || err != nil || v <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a positive version and '_'", name)
		}
		if i := slices.IndexFunc(out, func(s Step) bool { return s.Version == v }); i >= 0 {
			return nil, fmt.Errorf("migrations %s and %s share version %d", out[i].Name, name, v)
		}
		body, err := files.ReadFile("sql/" + name)
		if err != nil {
			return nil, err
		}
		out = append(out, Step{Version: v, Name: name, SQL: string(body)})
	}
	slices.SortFunc(out, func(a, b Step) int { return a.Version - b.Version })
	return out, nil
}

// Migrate applies pending steps with a background context.
func Migrate(db *sql.DB) error {
	_, err := Apply(context.Background(), db)
	return err
}

// Apply runs every step newer than the recorded schema in one transaction and
// returns the names it applied. A database written by a newer build is refused.
func Apply(ctx context.Context, db *sql.DB) ([]string, error) {
	all, err := steps()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
  version    INTEGER PRIMARY KEY,
  name       TEXT NOT NULL,
  applied_at TEXT NOT NULL
)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	if n := len(all); n > 0 && current > all[n-1].Version {
		return nil, fmt.Errorf("database schema %d is newer than this build (%d)", current, all[n-1].Version)
	}

	var applied []string
	stamp := time.Now().UTC().Format(time.RFC3339)
	for _, s := range all {
		if s.Version <= current {
			continue
		}
		if _, err := tx.ExecContext(ctx, s.SQL); err != nil {
			return nil, fmt.Errorf("migration %s: %w", s.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations(version, name, applied_at) VALUES (?,?,?)`, s.Version, s.Name, stamp); err != nil {
			return nil, fmt.Errorf("record %s: %w", s.Name, err)
		}
		applied = append(applied, s.Name)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return applied, nil
}
