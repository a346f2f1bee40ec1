// Package event defines event types for decoupling components in Redgreen.
// These events enable communication between the coordinator, CLI observers,
// and other components without requiring direct dependencies.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "cycle.started", "conflict.detected")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Workflow Events
// -----------------------------------------------------------------------------

// WorkflowTransitionedEvent is emitted when the Scrum workflow changes state.
type WorkflowTransitionedEvent struct {
	baseEvent
	WorkflowID string // Workflow instance identifier
	From       string // State before the transition
	To         string // State after the transition
	Trigger    string // Trigger that caused the transition
}

// NewWorkflowTransitionedEvent creates a WorkflowTransitionedEvent.
func NewWorkflowTransitionedEvent(workflowID, from, to, trigger string) WorkflowTransitionedEvent {
	return WorkflowTransitionedEvent{
		baseEvent:  newBaseEvent("workflow.transitioned"),
		WorkflowID: workflowID,
		From:       from,
		To:         to,
		Trigger:    trigger,
	}
}

// -----------------------------------------------------------------------------
// Cycle Events
// -----------------------------------------------------------------------------

// Phase represents a TDD cycle phase.
// Mirrors cycle.Phase for decoupling.
type Phase string

const (
	PhaseDesign    Phase = "DESIGN"
	PhaseTestRed   Phase = "TEST_RED"
	PhaseCodeGreen Phase = "CODE_GREEN"
	PhaseRefactor  Phase = "REFACTOR"
	PhaseCommit    Phase = "COMMIT"
	PhaseBlocked   Phase = "BLOCKED"
	PhaseDone      Phase = "DONE"
)

// CycleStartedEvent is emitted when a story's TDD cycle begins execution.
type CycleStartedEvent struct {
	baseEvent
	StoryID  string // Story the cycle belongs to
	WorkerID string // Worker assigned to the first phase
	Phase    Phase  // Phase the cycle starts in
}

// NewCycleStartedEvent creates a CycleStartedEvent.
func NewCycleStartedEvent(storyID, workerID string, phase Phase) CycleStartedEvent {
	return CycleStartedEvent{
		baseEvent: newBaseEvent("cycle.started"),
		StoryID:   storyID,
		WorkerID:  workerID,
		Phase:     phase,
	}
}

// CycleTransitionedEvent is emitted when a TDD cycle moves between phases.
type CycleTransitionedEvent struct {
	baseEvent
	StoryID string // Story the cycle belongs to
	From    Phase  // Phase before the transition
	To      Phase  // Phase after the transition
}

// NewCycleTransitionedEvent creates a CycleTransitionedEvent.
func NewCycleTransitionedEvent(storyID string, from, to Phase) CycleTransitionedEvent {
	return CycleTransitionedEvent{
		baseEvent: newBaseEvent("cycle.transitioned"),
		StoryID:   storyID,
		From:      from,
		To:        to,
	}
}

// CycleCompletedEvent is emitted when a TDD cycle finishes.
type CycleCompletedEvent struct {
	baseEvent
	StoryID string // Story the cycle belongs to
	Success bool   // Whether the cycle reached COMMIT successfully
	Reason  string // Additional context (e.g., "committed", "cancelled")
}

// NewCycleCompletedEvent creates a CycleCompletedEvent.
func NewCycleCompletedEvent(storyID string, success bool, reason string) CycleCompletedEvent {
	return CycleCompletedEvent{
		baseEvent: newBaseEvent("cycle.completed"),
		StoryID:   storyID,
		Success:   success,
		Reason:    reason,
	}
}

// CycleBlockedEvent is emitted when a cycle accumulates enough consecutive
// failures to enter the BLOCKED state and requires operator intervention.
type CycleBlockedEvent struct {
	baseEvent
	StoryID string // Story the cycle belongs to
	Phase   Phase  // Phase the cycle was in when it blocked
	Strikes int    // Number of consecutive failures
	Reason  string // Last failure message
}

// NewCycleBlockedEvent creates a CycleBlockedEvent.
func NewCycleBlockedEvent(storyID string, phase Phase, strikes int, reason string) CycleBlockedEvent {
	return CycleBlockedEvent{
		baseEvent: newBaseEvent("cycle.blocked"),
		StoryID:   storyID,
		Phase:     phase,
		Strikes:   strikes,
		Reason:    reason,
	}
}

// CycleUnblockedEvent is emitted when an operator releases a blocked cycle.
type CycleUnblockedEvent struct {
	baseEvent
	StoryID      string // Story the cycle belongs to
	ResumedPhase Phase  // Phase the cycle resumed in
}

// NewCycleUnblockedEvent creates a CycleUnblockedEvent.
func NewCycleUnblockedEvent(storyID string, resumedPhase Phase) CycleUnblockedEvent {
	return CycleUnblockedEvent{
		baseEvent:    newBaseEvent("cycle.unblocked"),
		StoryID:      storyID,
		ResumedPhase: resumedPhase,
	}
}

// PhaseTimeoutEvent is emitted when a phase execution exceeds its deadline.
// Timeouts count as failures toward the cycle's strike limit.
type PhaseTimeoutEvent struct {
	baseEvent
	StoryID  string // Story the cycle belongs to
	Phase    Phase  // Phase that timed out
	Duration string // How long the phase ran before the deadline
}

// NewPhaseTimeoutEvent creates a PhaseTimeoutEvent.
func NewPhaseTimeoutEvent(storyID string, phase Phase, duration string) PhaseTimeoutEvent {
	return PhaseTimeoutEvent{
		baseEvent: newBaseEvent("cycle.phase_timeout"),
		StoryID:   storyID,
		Phase:     phase,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Conflict Events
// -----------------------------------------------------------------------------

// Classification represents the severity of a detected conflict.
// Mirrors conflict.Classification for decoupling.
type Classification string

const (
	ClassificationNone Classification = "none"
	ClassificationSoft Classification = "soft"
	ClassificationHard Classification = "hard"
)

// ConflictDetectedEvent is emitted when the conflict detector classifies a
// candidate pairing as Soft or Hard.
type ConflictDetectedEvent struct {
	baseEvent
	StoryA          string         // First story in the pairing
	StoryB          string         // Second story in the pairing
	Classification  Classification // Severity of the conflict
	Score           float64        // Weighted conflict score
	SharedResources []string       // Resources both footprints touch
}

// NewConflictDetectedEvent creates a ConflictDetectedEvent.
func NewConflictDetectedEvent(storyA, storyB string, classification Classification, score float64, sharedResources []string) ConflictDetectedEvent {
	return ConflictDetectedEvent{
		baseEvent:       newBaseEvent("conflict.detected"),
		StoryA:          storyA,
		StoryB:          storyB,
		Classification:  classification,
		Score:           score,
		SharedResources: sharedResources,
	}
}

// -----------------------------------------------------------------------------
// Lock Events
// -----------------------------------------------------------------------------

// LockLeaseExpiredEvent is emitted when a lock lease passes its TTL without
// a heartbeat renewal and is reclaimed.
type LockLeaseExpiredEvent struct {
	baseEvent
	Resource string // Resource whose lease expired
	HolderID string // Cycle that held the lease
}

// NewLockLeaseExpiredEvent creates a LockLeaseExpiredEvent.
func NewLockLeaseExpiredEvent(resource, holderID string) LockLeaseExpiredEvent {
	return LockLeaseExpiredEvent{
		baseEvent: newBaseEvent("lock.lease_expired"),
		Resource:  resource,
		HolderID:  holderID,
	}
}

// -----------------------------------------------------------------------------
// Pool Events
// -----------------------------------------------------------------------------

// PoolResizedEvent is emitted when the agent pool scales up or down.
type PoolResizedEvent struct {
	baseEvent
	Capability   string // Capability type of the resized segment
	PreviousSize int    // Worker count before the resize
	CurrentSize  int    // Worker count after the resize
	Reason       string // Why the pool resized (e.g., "high utilization")
}

// NewPoolResizedEvent creates a PoolResizedEvent.
func NewPoolResizedEvent(capability string, previousSize, currentSize int, reason string) PoolResizedEvent {
	return PoolResizedEvent{
		baseEvent:    newBaseEvent("pool.resized"),
		Capability:   capability,
		PreviousSize: previousSize,
		CurrentSize:  currentSize,
		Reason:       reason,
	}
}

// PoolUtilizationEvent is emitted when the pool's utilization sample changes.
type PoolUtilizationEvent struct {
	baseEvent
	Capability   string // Capability type sampled
	BusyWorkers  int    // Workers currently executing a phase
	TotalWorkers int    // Workers in the pool for this capability
}

// NewPoolUtilizationEvent creates a PoolUtilizationEvent.
func NewPoolUtilizationEvent(capability string, busyWorkers, totalWorkers int) PoolUtilizationEvent {
	return PoolUtilizationEvent{
		baseEvent:    newBaseEvent("pool.utilization"),
		Capability:   capability,
		BusyWorkers:  busyWorkers,
		TotalWorkers: totalWorkers,
	}
}

// Ratio returns busy workers as a fraction of total workers.
func (e PoolUtilizationEvent) Ratio() float64 {
	if e.TotalWorkers == 0 {
		return 0
	}
	return float64(e.BusyWorkers) / float64(e.TotalWorkers)
}

// -----------------------------------------------------------------------------
// Checkpoint Events
// -----------------------------------------------------------------------------

// CheckpointSavedEvent is emitted when engine state is persisted successfully.
type CheckpointSavedEvent struct {
	baseEvent
	WorkflowID string // Workflow instance that was saved
	Backend    string // Persistence backend ("file" or "sqlite")
}

// NewCheckpointSavedEvent creates a CheckpointSavedEvent.
func NewCheckpointSavedEvent(workflowID, backend string) CheckpointSavedEvent {
	return CheckpointSavedEvent{
		baseEvent:  newBaseEvent("checkpoint.saved"),
		WorkflowID: workflowID,
		Backend:    backend,
	}
}

// CheckpointFailedEvent is emitted when a persistence operation fails.
// The coordinator enters degraded mode until a subsequent save succeeds.
type CheckpointFailedEvent struct {
	baseEvent
	WorkflowID string // Workflow instance that failed to save
	Op         string // Operation that failed ("save" or "load")
	Error      string // Error message from the backend
}

// NewCheckpointFailedEvent creates a CheckpointFailedEvent.
func NewCheckpointFailedEvent(workflowID, op, errMsg string) CheckpointFailedEvent {
	return CheckpointFailedEvent{
		baseEvent:  newBaseEvent("checkpoint.failed"),
		WorkflowID: workflowID,
		Op:         op,
		Error:      errMsg,
	}
}

// DegradedModeEvent is emitted when the coordinator enters or leaves
// degraded mode following a persistence failure.
type DegradedModeEvent struct {
	baseEvent
	Active bool   // True when entering degraded mode, false when leaving
	Reason string // Why the mode changed
}

// NewDegradedModeEvent creates a DegradedModeEvent.
func NewDegradedModeEvent(active bool, reason string) DegradedModeEvent {
	return DegradedModeEvent{
		baseEvent: newBaseEvent("engine.degraded"),
		Active:    active,
		Reason:    reason,
	}
}
