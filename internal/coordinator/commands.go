package coordinator

import (
	"cmp"
	"slices"
	"strings"

	"github.com/Iron-Ham/redgreen/internal/backlog"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/event"
)

// Workflow triggers surfaced in transition events.
const (
	triggerGroom  = "groom_backlog"
	triggerPlan   = "plan_sprint"
	triggerStart  = "start_sprint"
	triggerFinish = "finish_sprint"
	triggerClose  = "close_sprint"
	triggerPause  = "pause_sprint"
	triggerResume = "resume_sprint"
)

// GroomBacklog marks the backlog groomed and ready for planning.
func (e *Engine) GroomBacklog() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transitionWorkflowLocked(triggerGroom, e.wf.GroomBacklog)
}

// PlanSprint selects stories into the next sprint by priority until the
// point budget is spent. A budget of zero or less uses the configured
// capacity.
func (e *Engine) PlanSprint(capacityPoints int) error {
	if capacityPoints <= 0 {
		capacityPoints = e.cfg.Workflow.CapacityPoints
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var pending []backlog.Story
	for _, story := range e.sortedStoriesLocked() {
		if !e.done[story.ID] {
			pending = append(pending, story)
		}
	}
	selected := backlog.SelectForSprint(pending, capacityPoints)
	if len(selected) == 0 {
		return errors.NewValidationError("no stories fit the sprint capacity").
			WithField("workflow.capacity_points")
	}
	ids := make([]string, len(selected))
	for i, story := range selected {
		ids[i] = story.ID
	}

	err := e.transitionWorkflowLocked(triggerPlan, func() error {
		return e.wf.PlanSprint(ids, capacityPoints)
	})
	if err != nil {
		return err
	}
	e.checkpointLocked()
	return nil
}

// StartSprint begins executing the planned sprint. Cycles start on the
// next scheduling pass.
func (e *Engine) StartSprint() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transitionWorkflowLocked(triggerStart, e.wf.StartSprint); err != nil {
		return err
	}
	e.checkpointLocked()
	return nil
}

// FinishSprint moves the sprint into review. Refused while any cycle is
// still registered, blocked ones included.
func (e *Engine) FinishSprint() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transitionWorkflowLocked(triggerFinish, e.wf.FinishSprint); err != nil {
		return err
	}
	e.checkpointLocked()
	return nil
}

// CloseSprint archives the reviewed sprint and returns to idle. The
// completed-cycle record resets for the next sprint; finished stories
// stay ineligible.
func (e *Engine) CloseSprint() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transitionWorkflowLocked(triggerClose, e.wf.CloseSprint); err != nil {
		return err
	}
	e.completed = nil
	e.checkpointLocked()
	return nil
}

// PauseAll suspends scheduling. In-flight phases drain; nothing new
// starts until ResumeAll.
func (e *Engine) PauseAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transitionWorkflowLocked(triggerPause, e.wf.PauseSprint); err != nil {
		return err
	}
	e.checkpointLocked()
	return nil
}

// ResumeAll resumes a paused sprint.
func (e *Engine) ResumeAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transitionWorkflowLocked(triggerResume, e.wf.ResumeSprint); err != nil {
		return err
	}
	e.checkpointLocked()
	return nil
}

// StartCycle explicitly starts a cycle for the story, bypassing the
// eligibility queue but not the conflict check, the locks, or the
// parallelism limit. A story finished earlier becomes eligible again.
func (e *Engine) StartCycle(storyID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.degraded {
		return errors.Wrap(errors.ErrPersistenceFailure, "engine is degraded; new work is not scheduled")
	}
	story, known := e.stories[storyID]
	if !known {
		return errors.NewNotFoundError("story", storyID)
	}
	if _, running := e.cycles[storyID]; running {
		return errors.NewCycleError("cycle already running", errors.ErrCycleExists).WithStoryID(storyID)
	}
	if e.runnableCountLocked() >= e.cfg.Coordinator.MaxParallelCycles {
		return errors.NewPoolError("parallel cycle limit reached", errors.ErrPoolExhausted).
			WithPoolSize(e.runnableCountLocked(), e.cfg.Coordinator.MaxParallelCycles)
	}

	delete(e.done, storyID)
	if err := e.tryStartLocked(story); err != nil {
		return err
	}
	e.dispatchReadyLocked(e.now())
	e.checkpointLocked()
	return nil
}

// CancelCycle cooperatively cancels the story's cycle. A phase in
// flight is signalled and the cycle finalizes when it returns; an idle
// cycle finalizes immediately.
func (e *Engine) CancelCycle(storyID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cycles[storyID]
	if !ok {
		return errors.NewCycleError("no cycle to cancel", errors.ErrCycleNotFound).WithStoryID(storyID)
	}
	c.MarkCancelling()

	if op, busy := e.inflight[storyID]; busy {
		op.cancel()
		e.log.Info("cycle cancelling", "story_id", storyID, "phase", op.phase.String())
		return nil
	}
	e.finalizeLocked(c, false, "cancelled")
	e.checkpointLocked()
	return nil
}

// Unblock releases a blocked cycle back into the phase it was
// interrupted in. Locks are retaken and a worker assigned on the next
// scheduling pass.
func (e *Engine) Unblock(storyID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.cycles[storyID]
	if !ok {
		return errors.NewCycleError("no cycle to unblock", errors.ErrCycleNotFound).WithStoryID(storyID)
	}
	if err := c.Unblock(); err != nil {
		return err
	}
	e.bus.Publish(event.NewCycleUnblockedEvent(storyID, event.Phase(c.Phase())))
	e.log.Info("cycle unblocked", "story_id", storyID, "resumed_phase", c.Phase().String())
	e.checkpointLocked()
	return nil
}

// ReportBlocked records a workflow-level impediment.
func (e *Engine) ReportBlocked(reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transitionWorkflowLocked("report_blocked", func() error {
		return e.wf.ReportBlocked(reason)
	}); err != nil {
		return err
	}
	e.checkpointLocked()
	return nil
}

// ClearBlocked clears a workflow-level impediment.
func (e *Engine) ClearBlocked() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.transitionWorkflowLocked("unblock", e.wf.Unblock); err != nil {
		return err
	}
	e.checkpointLocked()
	return nil
}

// transitionWorkflowLocked applies a workflow trigger and publishes the
// transition. Caller holds e.mu.
func (e *Engine) transitionWorkflowLocked(trigger string, fn func() error) error {
	from := e.wf.State()
	if err := fn(); err != nil {
		return err
	}
	to := e.wf.State()
	e.bus.Publish(event.NewWorkflowTransitionedEvent(e.wf.ID(), string(from), string(to), trigger))
	e.log.Info("workflow transitioned", "from", string(from), "to", string(to), "trigger", trigger)
	return nil
}

// sortedStoriesLocked returns the loaded stories in priority order,
// story ID breaking ties. Caller holds e.mu.
func (e *Engine) sortedStoriesLocked() []backlog.Story {
	stories := make([]backlog.Story, 0, len(e.stories))
	for _, story := range e.stories {
		stories = append(stories, story)
	}
	slices.SortStableFunc(stories, func(a, b backlog.Story) int {
		if d := cmp.Compare(a.Priority, b.Priority); d != 0 {
			return d
		}
		return strings.Compare(a.ID, b.ID)
	})
	return stories
}
