// Package workflow implements the sprint-level state machine that decides
// when TDD cycles may run. It defines a formal transition table keyed by
// (state, trigger), a pure Apply function that evaluates it, and a Workflow
// aggregate that records transition history and tracks the cycles running
// inside the active sprint.
package workflow

import (
	"time"

	"github.com/Iron-Ham/redgreen/internal/errors"
)

// State represents a discrete stage in the sprint lifecycle.
type State string

const (
	// StateIdle is the initial state: no groomed backlog, no sprint.
	StateIdle State = "IDLE"

	// StateBacklogReady indicates the backlog has been groomed and stories
	// are available for sprint planning.
	StateBacklogReady State = "BACKLOG_READY"

	// StateSprintPlanned indicates a sprint has been planned with a story
	// selection but work has not started.
	StateSprintPlanned State = "SPRINT_PLANNED"

	// StateSprintActive is the main work state. TDD cycles may only be
	// started while the workflow is in this state.
	StateSprintActive State = "SPRINT_ACTIVE"

	// StateSprintReview indicates all cycles have finished and the sprint
	// output is under review. Only reachable with zero active cycles.
	StateSprintReview State = "SPRINT_REVIEW"

	// StateSprintPaused suspends scheduling. In-flight cycles drain but no
	// new cycles start until the sprint resumes.
	StateSprintPaused State = "SPRINT_PAUSED"

	// StateBlocked indicates the workflow hit an impediment that needs
	// outside intervention before work can continue.
	StateBlocked State = "BLOCKED"
)

// AllStates returns all defined states in lifecycle order.
func AllStates() []State {
	return []State{
		StateIdle,
		StateBacklogReady,
		StateSprintPlanned,
		StateSprintActive,
		StateSprintReview,
		StateSprintPaused,
		StateBlocked,
	}
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// CyclesMayRun reports whether new TDD cycles may be started in this state.
func (s State) CyclesMayRun() bool {
	return s == StateSprintActive
}

// Trigger is a command that requests a state transition.
type Trigger string

const (
	// TriggerGroomBacklog marks the backlog as groomed and ready to plan.
	TriggerGroomBacklog Trigger = "GroomBacklog"

	// TriggerPlanSprint selects stories into a sprint.
	TriggerPlanSprint Trigger = "PlanSprint"

	// TriggerStartSprint begins executing the planned sprint.
	TriggerStartSprint Trigger = "StartSprint"

	// TriggerFinishSprint moves an active sprint into review. Guarded: the
	// transition is rejected while any cycle is still running.
	TriggerFinishSprint Trigger = "FinishSprint"

	// TriggerCloseSprint archives the reviewed sprint and returns to idle.
	TriggerCloseSprint Trigger = "CloseSprint"

	// TriggerPauseSprint suspends an active sprint.
	TriggerPauseSprint Trigger = "PauseSprint"

	// TriggerResumeSprint resumes a paused sprint.
	TriggerResumeSprint Trigger = "ResumeSprint"

	// TriggerReportBlocked records an impediment that stops all work.
	TriggerReportBlocked Trigger = "ReportBlocked"

	// TriggerUnblock clears an impediment and returns to active work.
	TriggerUnblock Trigger = "Unblock"
)

// AllTriggers returns all defined triggers.
func AllTriggers() []Trigger {
	return []Trigger{
		TriggerGroomBacklog,
		TriggerPlanSprint,
		TriggerStartSprint,
		TriggerFinishSprint,
		TriggerCloseSprint,
		TriggerPauseSprint,
		TriggerResumeSprint,
		TriggerReportBlocked,
		TriggerUnblock,
	}
}

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}

// ValidTransitions defines which trigger is accepted in which state and the
// state it leads to. This is the canonical source of truth for the sprint
// state machine; Apply evaluates it and nothing else mutates state.
var ValidTransitions = map[State]map[Trigger]State{
	StateIdle: {
		TriggerGroomBacklog: StateBacklogReady, // Backlog groomed
	},

	StateBacklogReady: {
		TriggerPlanSprint: StateSprintPlanned, // Stories selected
	},

	StateSprintPlanned: {
		TriggerStartSprint: StateSprintActive, // Work begins
	},

	StateSprintActive: {
		TriggerFinishSprint:  StateSprintReview, // Guard: zero active cycles
		TriggerPauseSprint:   StateSprintPaused, // Suspend scheduling
		TriggerReportBlocked: StateBlocked,      // Impediment hit
	},

	StateSprintReview: {
		TriggerCloseSprint: StateIdle,          // Sprint archived
		TriggerPlanSprint:  StateSprintPlanned, // Next sprint from same backlog
	},

	StateSprintPaused: {
		TriggerResumeSprint:  StateSprintActive, // Back to work
		TriggerReportBlocked: StateBlocked,      // Impediment while paused
	},

	StateBlocked: {
		TriggerUnblock: StateSprintActive, // Impediment cleared
	},
}

// CanTransition checks whether the trigger is accepted in the given state.
// It does not evaluate the active-cycle guard on FinishSprint.
func CanTransition(from State, trigger Trigger) bool {
	targets, ok := ValidTransitions[from]
	if !ok {
		return false
	}
	_, ok = targets[trigger]
	return ok
}

// Apply evaluates a single transition. It is a pure lookup: given the
// current state, a trigger, and the number of running cycles it returns the
// resulting state or an error, and never has side effects.
//
// Unknown (state, trigger) pairs fail with ErrIllegalTransition and return
// the input state unchanged. FinishSprint is additionally guarded: it fails
// with ErrBlockedByActiveCycles while activeCycleCount is nonzero, so a
// sprint can never enter review with work still in flight.
func Apply(from State, trigger Trigger, activeCycleCount int) (State, error) {
	targets, ok := ValidTransitions[from]
	if !ok {
		return from, errors.NewTransitionError("unknown state", errors.ErrIllegalTransition).
			WithState(string(from)).
			WithTrigger(string(trigger))
	}

	to, ok := targets[trigger]
	if !ok {
		return from, errors.NewTransitionError("trigger not accepted in this state", errors.ErrIllegalTransition).
			WithState(string(from)).
			WithTrigger(string(trigger))
	}

	if from == StateSprintActive && trigger == TriggerFinishSprint && activeCycleCount > 0 {
		return from, errors.NewTransitionError("cycles still running", errors.ErrBlockedByActiveCycles).
			WithState(string(from)).
			WithTrigger(string(trigger)).
			WithActiveCycles(activeCycleCount)
	}

	return to, nil
}

// TransitionRecord captures metadata about a single applied transition.
// The ordered list of records forms the audit trail of a workflow.
type TransitionRecord struct {
	// From is the source state of the transition.
	From State `json:"from"`

	// To is the destination state.
	To State `json:"to"`

	// Trigger is the command that caused the transition.
	Trigger Trigger `json:"trigger"`

	// Timestamp records when the transition was applied.
	Timestamp time.Time `json:"timestamp"`

	// Reason provides optional context, set for ReportBlocked transitions.
	Reason string `json:"reason,omitempty"`
}
