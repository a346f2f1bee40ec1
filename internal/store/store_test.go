package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/lockmgr"
	"github.com/Iron-Ham/redgreen/internal/workflow"
)

// testSnapshot builds a snapshot with every section populated, so a
// round trip exercises the whole shape.
func testSnapshot(t *testing.T) Snapshot {
	t.Helper()

	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	wf := workflow.New("proj-1", workflow.WithClock(func() time.Time { return clock }))
	if err := wf.GroomBacklog(); err != nil {
		t.Fatalf("GroomBacklog() error = %v", err)
	}
	if err := wf.PlanSprint([]string{"AUTH-1", "AUTH-2"}, 8); err != nil {
		t.Fatalf("PlanSprint() error = %v", err)
	}
	if err := wf.StartSprint(); err != nil {
		t.Fatalf("StartSprint() error = %v", err)
	}

	c := cycle.New("AUTH-1", []string{"internal/auth/**"},
		cycle.WithClock(func() time.Time { return clock }))

	return Snapshot{
		WorkflowID: "proj-1",
		SavedAt:    clock,
		Workflow:   wf.Snapshot(),
		Cycles:     []cycle.Snapshot{c.Snapshot()},
		Locks: []lockmgr.ResourceLock{
			{Resource: "internal/auth/**", Mode: lockmgr.ModeExclusive, Holders: []string{c.ID()}},
		},
		PoolShape: map[string]int{"code": 2, "test": 1},
	}
}

// stores returns both backends wired to a temp location.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	sqliteStore, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "checkpoints.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{"file": fileStore, "sqlite": sqliteStore}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := testSnapshot(t)

			if err := s.SaveCheckpoint(ctx, "proj-1", want); err != nil {
				t.Fatalf("SaveCheckpoint() error = %v", err)
			}
			got, err := s.LoadCheckpoint(ctx, "proj-1")
			if err != nil {
				t.Fatalf("LoadCheckpoint() error = %v", err)
			}

			if got.WorkflowID != want.WorkflowID {
				t.Errorf("WorkflowID = %q, want %q", got.WorkflowID, want.WorkflowID)
			}
			if got.Workflow.State != want.Workflow.State {
				t.Errorf("Workflow.State = %q, want %q", got.Workflow.State, want.Workflow.State)
			}
			if len(got.Cycles) != 1 || got.Cycles[0].StoryID != "AUTH-1" {
				t.Errorf("Cycles = %+v, want one cycle for AUTH-1", got.Cycles)
			}
			if !reflect.DeepEqual(got.Locks, want.Locks) {
				t.Errorf("Locks = %+v, want %+v", got.Locks, want.Locks)
			}
			if !reflect.DeepEqual(got.PoolShape, want.PoolShape) {
				t.Errorf("PoolShape = %v, want %v", got.PoolShape, want.PoolShape)
			}
		})
	}
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			snap := testSnapshot(t)

			if err := s.SaveCheckpoint(ctx, "proj-1", snap); err != nil {
				t.Fatalf("SaveCheckpoint() error = %v", err)
			}
			snap.PoolShape = map[string]int{"code": 5}
			if err := s.SaveCheckpoint(ctx, "proj-1", snap); err != nil {
				t.Fatalf("SaveCheckpoint() second error = %v", err)
			}

			got, err := s.LoadCheckpoint(ctx, "proj-1")
			if err != nil {
				t.Fatalf("LoadCheckpoint() error = %v", err)
			}
			if got.PoolShape["code"] != 5 {
				t.Errorf("PoolShape = %v, want the replacing snapshot", got.PoolShape)
			}
		})
	}
}

func TestStore_LoadUnknownWorkflow(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LoadCheckpoint(context.Background(), "never-saved")
			if !errors.Is(err, errors.ErrNoCheckpoint) {
				t.Errorf("LoadCheckpoint() error = %v, want ErrNoCheckpoint", err)
			}
		})
	}
}

func TestStore_WorkflowsAreIsolated(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			snap := testSnapshot(t)

			if err := s.SaveCheckpoint(ctx, "proj-1", snap); err != nil {
				t.Fatalf("SaveCheckpoint() error = %v", err)
			}
			if _, err := s.LoadCheckpoint(ctx, "proj-2"); !errors.Is(err, errors.ErrNoCheckpoint) {
				t.Errorf("LoadCheckpoint(proj-2) error = %v, want ErrNoCheckpoint", err)
			}
		})
	}
}

func TestFileStore_LeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if err := s.SaveCheckpoint(context.Background(), "proj-1", testSnapshot(t)); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind after save", entry.Name())
		}
	}
}

func TestFileStore_RejectsEmptyDir(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore(\"\") error = nil, want validation error")
	}
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("file backend", func(t *testing.T) {
		s, err := NewFromConfig(ctx, config.PersistenceConfig{Backend: "file"}, t.TempDir())
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		defer s.Close()
		if _, ok := s.(*FileStore); !ok {
			t.Errorf("NewFromConfig() = %T, want *FileStore", s)
		}
	})

	t.Run("empty backend defaults to file", func(t *testing.T) {
		s, err := NewFromConfig(ctx, config.PersistenceConfig{}, t.TempDir())
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		defer s.Close()
		if _, ok := s.(*FileStore); !ok {
			t.Errorf("NewFromConfig() = %T, want *FileStore", s)
		}
	})

	t.Run("sqlite backend", func(t *testing.T) {
		s, err := NewFromConfig(ctx, config.PersistenceConfig{Backend: "sqlite"}, t.TempDir())
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		defer s.Close()
		if _, ok := s.(*SQLiteStore); !ok {
			t.Errorf("NewFromConfig() = %T, want *SQLiteStore", s)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := NewFromConfig(ctx, config.PersistenceConfig{Backend: "etcd"}, t.TempDir()); err == nil {
			t.Error("NewFromConfig(etcd) error = nil, want validation error")
		}
	})
}
