// Package store persists engine checkpoints. A checkpoint is one atomic
// snapshot of everything needed to resume a workflow after a crash: the
// sprint state machine, every cycle, the lock table, and the pool shape.
// Two backends implement the same interface: a JSON file store and a
// SQLite store, selected by configuration.
package store

import (
	"context"
	"strings"
	"time"

	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/lockmgr"
	"github.com/Iron-Ham/redgreen/internal/workflow"
)

// Snapshot is one durable checkpoint of a workflow and everything running
// inside it. The lock table and pool shape are recorded for post-mortem
// visibility; restore paths re-acquire locks and re-seed workers rather
// than loading them back.
type Snapshot struct {
	WorkflowID string            `json:"workflow_id"`
	SavedAt    time.Time         `json:"saved_at"`
	Workflow   workflow.Snapshot `json:"workflow"`
	Cycles     []cycle.Snapshot  `json:"cycles,omitempty"`

	// Completed holds the cycles that reached DONE or were cancelled,
	// kept for status output and sprint review.
	Completed []cycle.Snapshot `json:"completed,omitempty"`

	Locks     []lockmgr.ResourceLock `json:"locks,omitempty"`
	PoolShape map[string]int         `json:"pool_shape,omitempty"`
}

// Store is the checkpoint persistence interface the coordinator consumes.
// Saves must be atomic: a crashed save never leaves a partial snapshot
// observable to a later load.
type Store interface {
	// SaveCheckpoint durably writes the snapshot for the workflow,
	// replacing any previous checkpoint.
	SaveCheckpoint(ctx context.Context, workflowID string, snap Snapshot) error

	// LoadCheckpoint returns the last saved snapshot for the workflow,
	// or ErrNoCheckpoint when none was ever saved.
	LoadCheckpoint(ctx context.Context, workflowID string) (Snapshot, error)

	// Close releases backend resources.
	Close() error
}

// Backend names accepted by persistence.backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// NewFromConfig builds a Store from the persistence configuration. The
// run directory holds the checkpoint data unless an explicit path
// overrides it.
func NewFromConfig(ctx context.Context, cfg config.PersistenceConfig, runDir string) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendFile, "":
		dir := cfg.Path
		if dir == "" {
			dir = runDir
		}
		return NewFileStore(dir)
	case BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = defaultSQLitePath(runDir)
		}
		return NewSQLiteStore(ctx, path)
	default:
		return nil, errors.NewValidationError("unknown persistence backend").
			WithField("persistence.backend").
			WithValue(cfg.Backend)
	}
}
