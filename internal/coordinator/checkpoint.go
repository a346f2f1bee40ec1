package coordinator

import (
	"context"
	"slices"
	"strings"

	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/event"
	"github.com/Iron-Ham/redgreen/internal/store"
	"github.com/Iron-Ham/redgreen/internal/workflow"
)

// checkpointLocked persists the engine's current state. A failed save
// flips the engine into degraded mode; the next successful save clears
// it. Caller holds e.mu.
func (e *Engine) checkpointLocked() {
	snap := e.snapshotLocked()
	if err := e.store.SaveCheckpoint(context.Background(), e.wf.ID(), snap); err != nil {
		e.log.Error("checkpoint save failed", "error", err.Error())
		e.bus.Publish(event.NewCheckpointFailedEvent(e.wf.ID(), "save", err.Error()))
		if !e.degraded {
			e.degraded = true
			e.bus.Publish(event.NewDegradedModeEvent(true, "checkpoint save failed"))
			e.log.Warn("entering degraded mode; scheduling halted")
		}
		return
	}

	e.bus.Publish(event.NewCheckpointSavedEvent(e.wf.ID(), e.backendName()))
	if e.degraded {
		e.degraded = false
		e.bus.Publish(event.NewDegradedModeEvent(false, "checkpoint save recovered"))
		e.log.Info("leaving degraded mode; scheduling resumed")
	}
}

// snapshotLocked assembles the checkpoint. Caller holds e.mu.
func (e *Engine) snapshotLocked() store.Snapshot {
	return store.Snapshot{
		WorkflowID: e.wf.ID(),
		SavedAt:    e.now(),
		Workflow:   e.wf.Snapshot(),
		Cycles:     e.cycleSnapshotsLocked(),
		Completed:  slices.Clone(e.completed),
		Locks:      e.locks.Table(),
		PoolShape:  e.pool.Shape(),
	}
}

// backendName normalizes the configured persistence backend for
// checkpoint events.
func (e *Engine) backendName() string {
	name := strings.ToLower(e.cfg.Persistence.Backend)
	if name == "" {
		name = store.BackendFile
	}
	return name
}

// Restore loads the last checkpoint and rebuilds the workflow and its
// cycles from it. Worker assignments do not survive a restart and are
// cleared; footprint locks are retaken at the next dispatch. Returns
// ErrNoCheckpoint when nothing was ever saved.
func (e *Engine) Restore(ctx context.Context) error {
	snap, err := e.store.LoadCheckpoint(ctx, e.cfg.Workflow.ID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.inflight) > 0 {
		return errors.NewValidationError("cannot restore while phases are in flight")
	}

	e.wf = workflow.FromSnapshot(snap.Workflow, workflow.WithClock(e.now))
	e.cycles = make(map[string]*cycle.Cycle, len(snap.Cycles))
	e.outputs = make(map[string]string)
	e.announced = make(map[string]bool)
	e.done = make(map[string]bool)

	for _, cs := range snap.Cycles {
		cs.Worker = "" // checkpointed workers no longer exist
		c := cycle.FromSnapshot(cs,
			cycle.WithClock(e.now),
			cycle.WithTransitionHook(e.publishCycleTransition),
		)
		e.cycles[cs.StoryID] = c
		e.announced[cs.StoryID] = true
	}
	e.completed = slices.Clone(snap.Completed)
	for _, cs := range snap.Completed {
		e.done[cs.StoryID] = true
	}
	e.degraded = false

	e.log.Info("checkpoint restored",
		"workflow_id", snap.WorkflowID,
		"state", string(e.wf.State()),
		"cycles", len(e.cycles),
		"completed", len(e.completed),
	)
	return nil
}
