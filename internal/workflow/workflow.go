package workflow

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/redgreen/internal/errors"
)

// Sprint is one planned iteration: the stories selected into it and its
// lifecycle timestamps. ClosedAt stays zero until the sprint is archived.
type Sprint struct {
	Number         int       `json:"number"`
	StoryIDs       []string  `json:"story_ids"`
	CapacityPoints int       `json:"capacity_points"`
	PlannedAt      time.Time `json:"planned_at"`
	StartedAt      time.Time `json:"started_at"`
	ClosedAt       time.Time `json:"closed_at"`
}

// Contains reports whether the story is part of this sprint.
func (s *Sprint) Contains(storyID string) bool {
	return s != nil && slices.Contains(s.StoryIDs, storyID)
}

// Workflow is the aggregate for one project: the current state, the sprint
// under way, the cycles running inside it, and the transition audit trail.
// Workflows are created on project registration and never deleted; closed
// sprints move to the archive. All methods are safe for concurrent use.
type Workflow struct {
	mu           sync.RWMutex
	id           string
	state        State
	sprint       *Sprint
	sprintSeq    int
	activeCycles map[string]string // story ID -> cycle ID
	history      []TransitionRecord
	archive      []Sprint
	now          func() time.Time
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// New creates a Workflow in StateIdle.
func New(id string, opts ...Option) *Workflow {
	w := &Workflow{
		id:           id,
		state:        StateIdle,
		activeCycles: make(map[string]string),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the workflow identifier.
func (w *Workflow) ID() string {
	return w.id
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.state
}

// CurrentSprint returns a copy of the sprint under way, or false when no
// sprint is planned.
func (w *Workflow) CurrentSprint() (Sprint, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.sprint == nil {
		return Sprint{}, false
	}
	return cloneSprint(*w.sprint), true
}

// Archive returns copies of all closed sprints in close order.
func (w *Workflow) Archive() []Sprint {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return cloneSprints(w.archive)
}

// History returns a copy of the transition audit trail.
func (w *Workflow) History() []TransitionRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return slices.Clone(w.history)
}

// ActiveCycleCount returns the number of cycles currently registered.
func (w *Workflow) ActiveCycleCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.activeCycles)
}

// ActiveCycles returns a copy of the story ID -> cycle ID map.
func (w *Workflow) ActiveCycles() map[string]string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return maps.Clone(w.activeCycles)
}

// CycleID returns the cycle registered for the story, if any.
func (w *Workflow) CycleID(storyID string) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	id, ok := w.activeCycles[storyID]
	return id, ok
}

// GroomBacklog marks the backlog as groomed and ready for planning.
func (w *Workflow) GroomBacklog() error {
	return w.transition(TriggerGroomBacklog, "")
}

// PlanSprint selects stories into the next sprint. Valid from BACKLOG_READY
// and from SPRINT_REVIEW (planning the next sprint off the same backlog).
// The story list must be non-empty and free of duplicates; capacityPoints
// records the planned capacity for status output.
func (w *Workflow) PlanSprint(storyIDs []string, capacityPoints int) error {
	if len(storyIDs) == 0 {
		return errors.NewValidationError("sprint requires at least one story").WithField("stories")
	}
	seen := make(map[string]struct{}, len(storyIDs))
	for _, id := range storyIDs {
		if id == "" {
			return errors.NewValidationError("story ID cannot be empty").WithField("stories")
		}
		if _, dup := seen[id]; dup {
			return errors.NewValidationError("duplicate story in sprint").WithField("stories").WithValue(id)
		}
		seen[id] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.transitionLocked(TriggerPlanSprint, ""); err != nil {
		return err
	}

	w.sprintSeq++
	w.sprint = &Sprint{
		Number:         w.sprintSeq,
		StoryIDs:       slices.Clone(storyIDs),
		CapacityPoints: capacityPoints,
		PlannedAt:      w.now(),
	}
	return nil
}

// StartSprint begins executing the planned sprint.
func (w *Workflow) StartSprint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.transitionLocked(TriggerStartSprint, ""); err != nil {
		return err
	}
	if w.sprint != nil {
		w.sprint.StartedAt = w.now()
	}
	return nil
}

// FinishSprint moves the active sprint into review. Fails with
// ErrBlockedByActiveCycles while any cycle is still registered.
func (w *Workflow) FinishSprint() error {
	return w.transition(TriggerFinishSprint, "")
}

// CloseSprint archives the reviewed sprint and returns the workflow to idle.
func (w *Workflow) CloseSprint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.transitionLocked(TriggerCloseSprint, ""); err != nil {
		return err
	}
	if w.sprint != nil {
		w.sprint.ClosedAt = w.now()
		w.archive = append(w.archive, *w.sprint)
		w.sprint = nil
	}
	return nil
}

// PauseSprint suspends scheduling. Running cycles drain; no new ones start.
func (w *Workflow) PauseSprint() error {
	return w.transition(TriggerPauseSprint, "")
}

// ResumeSprint resumes a paused sprint.
func (w *Workflow) ResumeSprint() error {
	return w.transition(TriggerResumeSprint, "")
}

// ReportBlocked records an impediment. The reason is kept in the history.
func (w *Workflow) ReportBlocked(reason string) error {
	return w.transition(TriggerReportBlocked, reason)
}

// Unblock clears the impediment and returns to active work.
func (w *Workflow) Unblock() error {
	return w.transition(TriggerUnblock, "")
}

// RegisterCycle records a running cycle for the story. Cycles may only be
// registered while the sprint is active and the story belongs to it, and a
// story can have at most one cycle at a time.
func (w *Workflow) RegisterCycle(storyID, cycleID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateSprintPaused {
		return errors.Wrapf(errors.ErrWorkflowPaused, "cannot start cycle for %s", storyID)
	}
	if !w.state.CyclesMayRun() {
		return errors.NewTransitionError("cycles require an active sprint", errors.ErrIllegalTransition).
			WithState(string(w.state))
	}
	if !w.sprint.Contains(storyID) {
		return errors.NewNotFoundError("story", storyID)
	}
	if _, ok := w.activeCycles[storyID]; ok {
		return errors.NewCycleError("cycle already registered", errors.ErrCycleExists).WithStoryID(storyID)
	}

	w.activeCycles[storyID] = cycleID
	return nil
}

// UnregisterCycle removes the story's cycle from the active set. Called when
// a cycle commits, is cancelled, or fails terminally.
func (w *Workflow) UnregisterCycle(storyID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.activeCycles[storyID]; !ok {
		return errors.NewCycleError("no cycle registered", errors.ErrCycleNotFound).WithStoryID(storyID)
	}

	delete(w.activeCycles, storyID)
	return nil
}

// transition applies the trigger and records a history entry.
func (w *Workflow) transition(trigger Trigger, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.transitionLocked(trigger, reason)
}

// transitionLocked applies the trigger while the write lock is held.
func (w *Workflow) transitionLocked(trigger Trigger, reason string) error {
	next, err := Apply(w.state, trigger, len(w.activeCycles))
	if err != nil {
		return err
	}

	w.history = append(w.history, TransitionRecord{
		From:      w.state,
		To:        next,
		Trigger:   trigger,
		Timestamp: w.now(),
		Reason:    reason,
	})
	w.state = next
	return nil
}

// Snapshot is the serializable form of a Workflow, embedded in checkpoints.
type Snapshot struct {
	ID           string             `json:"id"`
	State        State              `json:"state"`
	SprintSeq    int                `json:"sprint_seq"`
	Sprint       *Sprint            `json:"sprint,omitempty"`
	ActiveCycles map[string]string  `json:"active_cycles,omitempty"`
	History      []TransitionRecord `json:"history,omitempty"`
	Archive      []Sprint           `json:"archive,omitempty"`
}

// Snapshot returns a deep copy of the workflow state for persistence.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	snap := Snapshot{
		ID:           w.id,
		State:        w.state,
		SprintSeq:    w.sprintSeq,
		ActiveCycles: maps.Clone(w.activeCycles),
		History:      slices.Clone(w.history),
		Archive:      cloneSprints(w.archive),
	}
	if w.sprint != nil {
		s := cloneSprint(*w.sprint)
		snap.Sprint = &s
	}
	return snap
}

// FromSnapshot reconstructs a Workflow from a persisted snapshot.
func FromSnapshot(snap Snapshot, opts ...Option) *Workflow {
	w := New(snap.ID, opts...)
	if snap.State != "" {
		w.state = snap.State
	}
	w.sprintSeq = snap.SprintSeq
	if snap.Sprint != nil {
		s := cloneSprint(*snap.Sprint)
		w.sprint = &s
	}
	if len(snap.ActiveCycles) > 0 {
		w.activeCycles = maps.Clone(snap.ActiveCycles)
	}
	w.history = slices.Clone(snap.History)
	w.archive = cloneSprints(snap.Archive)
	return w
}

func cloneSprint(s Sprint) Sprint {
	s.StoryIDs = slices.Clone(s.StoryIDs)
	return s
}

func cloneSprints(in []Sprint) []Sprint {
	if in == nil {
		return nil
	}
	out := make([]Sprint, len(in))
	for i, s := range in {
		out[i] = cloneSprint(s)
	}
	return out
}
