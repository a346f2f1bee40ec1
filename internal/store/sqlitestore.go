package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/Iron-Ham/redgreen/internal/errors"
)

// schema contains the DDL executed on open. IF NOT EXISTS makes it safe
// to run on every startup.
const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    workflow_id TEXT PRIMARY KEY,
    snapshot    TEXT NOT NULL,
    saved_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore keeps checkpoints in a local SQLite database in WAL mode.
// Each save is a single upsert transaction, so a crashed save never
// leaves a partial snapshot observable.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// defaultSQLitePath returns the database location inside a run directory.
func defaultSQLitePath(runDir string) string {
	return filepath.Join(runDir, "checkpoints.db")
}

// NewSQLiteStore opens (or creates) the database at dbPath, enables WAL
// mode and a busy timeout, and creates the schema idempotently.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.NewValidationError("database path cannot be empty").
			WithField("persistence.path")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.NewPersistenceError("open database", err).WithPath(dbPath)
	}

	// Limit to one connection. SQLite only supports a single writer;
	// one connection avoids SQLITE_BUSY contention between pooled
	// connections that would each need their own PRAGMA setup.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.NewPersistenceError("enable WAL mode", err).WithPath(dbPath)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, errors.NewPersistenceError("set busy timeout", err).WithPath(dbPath)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.NewPersistenceError("create schema", err).WithPath(dbPath)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// SaveCheckpoint upserts the snapshot by workflow ID.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, workflowID string, snap Snapshot) error {
	if workflowID == "" {
		return errors.NewValidationError("workflow id cannot be empty").WithField("workflow_id")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return errors.NewPersistenceError("marshal snapshot", err).
			WithWorkflowID(workflowID).WithOp("save")
	}

	const q = `
		INSERT INTO checkpoints (workflow_id, snapshot, saved_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(workflow_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			saved_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, q, workflowID, string(data)); err != nil {
		return errors.NewPersistenceError("upsert checkpoint", err).
			WithWorkflowID(workflowID).WithOp("save").WithPath(s.path)
	}
	return nil
}

// LoadCheckpoint reads the last saved snapshot for the workflow.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, workflowID string) (Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM checkpoints WHERE workflow_id = ?", workflowID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, errors.Wrapf(errors.ErrNoCheckpoint, "workflow %s", workflowID)
	}
	if err != nil {
		return Snapshot{}, errors.NewPersistenceError("query checkpoint", err).
			WithWorkflowID(workflowID).WithOp("load").WithPath(s.path)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return Snapshot{}, errors.NewPersistenceError("unmarshal snapshot", err).
			WithWorkflowID(workflowID).WithOp("load").WithPath(s.path)
	}
	return snap, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
