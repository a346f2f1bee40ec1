package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Iron-Ham/redgreen/internal/errors"
)

// FileStore keeps one JSON checkpoint file per workflow inside a
// directory. Saves are atomic: the snapshot is written to a temporary
// file and renamed into place, under a directory-level file lock for
// cross-process safety.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir, creating the
// directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.NewValidationError("checkpoint directory cannot be empty").
			WithField("persistence.path")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.NewPersistenceError("create checkpoint directory", err).
			WithPath(dir)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the checkpoint directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// SaveCheckpoint writes the snapshot as indented JSON via tmp+rename.
func (s *FileStore) SaveCheckpoint(ctx context.Context, workflowID string, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return errors.NewPersistenceError("save cancelled", err).
			WithWorkflowID(workflowID).WithOp("save")
	}
	if workflowID == "" {
		return errors.NewValidationError("workflow id cannot be empty").WithField("workflow_id")
	}

	fl := newFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return errors.NewPersistenceError("acquire checkpoint lock", err).
			WithWorkflowID(workflowID).WithOp("save").WithPath(s.dir)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.NewPersistenceError("marshal snapshot", err).
			WithWorkflowID(workflowID).WithOp("save")
	}

	target := s.checkpointPath(workflowID)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.NewPersistenceError("write temp file", err).
			WithWorkflowID(workflowID).WithOp("save").WithPath(tmp)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return errors.NewPersistenceError("rename temp file", err).
			WithWorkflowID(workflowID).WithOp("save").WithPath(target)
	}
	return nil
}

// LoadCheckpoint reads the workflow's checkpoint file.
func (s *FileStore) LoadCheckpoint(ctx context.Context, workflowID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, errors.NewPersistenceError("load cancelled", err).
			WithWorkflowID(workflowID).WithOp("load")
	}

	fl := newFileLock(s.dir)
	if err := fl.Lock(); err != nil {
		return Snapshot{}, errors.NewPersistenceError("acquire checkpoint lock", err).
			WithWorkflowID(workflowID).WithOp("load").WithPath(s.dir)
	}
	defer func() { _ = fl.Unlock() }()

	target := s.checkpointPath(workflowID)
	data, err := os.ReadFile(target)
	if os.IsNotExist(err) {
		return Snapshot{}, errors.Wrapf(errors.ErrNoCheckpoint, "workflow %s", workflowID)
	}
	if err != nil {
		return Snapshot{}, errors.NewPersistenceError("read checkpoint", err).
			WithWorkflowID(workflowID).WithOp("load").WithPath(target)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, errors.NewPersistenceError("unmarshal snapshot", err).
			WithWorkflowID(workflowID).WithOp("load").WithPath(target)
	}
	return snap, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) checkpointPath(workflowID string) string {
	return filepath.Join(s.dir, "checkpoint-"+workflowID+".json")
}
