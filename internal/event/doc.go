// Package event provides a pub-sub event bus for decoupled inter-component
// communication in Redgreen.
//
// This package enables loose coupling between the coordinator, the CLI, and
// other components by allowing them to communicate through events rather than
// direct method calls. Components can publish events without knowing who will
// receive them, and subscribe to events without knowing who will produce them.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement, providing EventType() and Timestamp()
//   - [Bus]: Synchronous pub-sub event dispatcher with thread-safe operations
//   - [Handler]: Function type for event handlers (func(Event))
//
// # Event Categories
//
// The package defines several categories of events:
//
// Workflow Lifecycle:
//   - [WorkflowTransitionedEvent]: Emitted when the Scrum workflow changes state
//
// Cycle Lifecycle:
//   - [CycleStartedEvent]: Emitted when a story's TDD cycle begins execution
//   - [CycleTransitionedEvent]: Emitted when a cycle moves between phases
//   - [CycleCompletedEvent]: Emitted when a cycle finishes
//   - [CycleBlockedEvent]: Emitted when a cycle hits its strike limit
//   - [CycleUnblockedEvent]: Emitted when an operator releases a blocked cycle
//   - [PhaseTimeoutEvent]: Emitted when a phase exceeds its deadline
//
// Scheduling Events:
//   - [ConflictDetectedEvent]: Emitted when a candidate pairing conflicts
//   - [LockLeaseExpiredEvent]: Emitted when a lock lease is reclaimed
//   - [PoolResizedEvent]: Emitted when the agent pool scales up or down
//   - [PoolUtilizationEvent]: Emitted when the pool utilization sample changes
//
// Persistence Events:
//   - [CheckpointSavedEvent]: Emitted when engine state is persisted
//   - [CheckpointFailedEvent]: Emitted when a persistence operation fails
//   - [DegradedModeEvent]: Emitted when degraded mode is entered or left
//
// # Thread Safety
//
// The [Bus] type is safe for concurrent use. Multiple goroutines can publish
// and subscribe concurrently. Handlers are called synchronously and protected
// against panics - a panicking handler will not prevent other handlers from
// being called.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	// Subscribe to specific event types
//	bus.Subscribe("cycle.blocked", func(e event.Event) {
//	    blocked := e.(event.CycleBlockedEvent)
//	    log.Printf("Story %s blocked after %d strikes", blocked.StoryID, blocked.Strikes)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
//
//	// Publish events
//	bus.Publish(event.NewCycleStartedEvent("AUTH-12", "worker-1", event.PhaseDesign))
//
//	// Unsubscribe when done
//	id := bus.Subscribe("conflict.detected", handler)
//	bus.Unsubscribe(id)
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - workflow.transitioned
//   - cycle.started, cycle.transitioned, cycle.completed, cycle.blocked, cycle.unblocked, cycle.phase_timeout
//   - conflict.detected
//   - lock.lease_expired
//   - pool.resized, pool.utilization
//   - checkpoint.saved, checkpoint.failed
//   - engine.degraded
package event
