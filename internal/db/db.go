package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir       = ".studioline"
	defaultDBName      = "studioline.db"
	defaultBusyTimeout = 5 * time.Second
)

type Config struct {
	Workspace string
	// BusyTimeout is how long SQLite waits on a locked database before
	// returning SQLITE_BUSY. Zero means five seconds.
	BusyTimeout time.Duration
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, defaultDBName)
}

// EnsureWorkspace creates the .studioline directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Dir(dbPath(workspace))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", path, err)
	}
	return path, nil
}

// Open opens the studio database with foreign keys, WAL and a busy timeout.
// Busy errors that outlive the timeout are retried by the engine.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		dbPath(cfg.Workspace), busy.Milliseconds())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %s: %w", dbPath(cfg.Workspace), err)
	}
	return conn, nil
}

// Path returns the db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
