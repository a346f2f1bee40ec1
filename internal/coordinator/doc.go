// Package coordinator drives parallel TDD cycles through the sprint.
//
// The Engine owns every piece of shared mutable state (the workflow
// state machine, the lock table, the worker pool, and the cycle
// records) and serializes all scheduling decisions through one
// decision point, so "is this resource free" and "grant the resource"
// can never race. Each scheduling pass collects the stories eligible to
// start, consults the conflict detector, takes footprint locks and a
// capability-typed worker, and dispatches the cycle's current phase to
// the agent backend on a worker goroutine. Workers never touch shared
// state: they report results and heartbeats over channels that the
// engine's loop drains.
//
// Every state-changing step is checkpointed. A failed checkpoint puts
// the engine into degraded mode: in-flight work still drains, but no
// new work is scheduled until a save succeeds again.
package coordinator
