// Package pool manages the capability-typed worker fleet that executes
// TDD phases. Each worker serves exactly one capability (design, test,
// code, refactor, analyze); a request for one capability is never
// satisfied by a worker of another. The pool grows on demand up to a
// per-capability maximum and a watermark control loop retires idle
// workers when a segment runs cold.
package pool

import "time"

// WorkerStatus is the lifecycle state of a pool worker.
type WorkerStatus string

const (
	// StatusIdle means the worker is available for assignment.
	StatusIdle WorkerStatus = "idle"

	// StatusBusy means the worker is executing a phase for a cycle.
	StatusBusy WorkerStatus = "busy"

	// StatusDraining means the worker finishes its current assignment
	// and then leaves the pool.
	StatusDraining WorkerStatus = "draining"
)

// Worker is one pool-owned agent slot.
type Worker struct {
	ID            string       `json:"id"`
	Capability    string       `json:"capability"`
	Status        WorkerStatus `json:"status"`
	AssignedCycle string       `json:"assigned_cycle,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Action is the direction of a pool resize.
type Action string

const (
	// ActionScaleUp adds a worker to a segment.
	ActionScaleUp Action = "scale_up"

	// ActionScaleDown retires an idle worker from a segment.
	ActionScaleDown Action = "scale_down"
)

// Decision records one applied resize from a watermark evaluation.
type Decision struct {
	Capability string
	Action     Action
	Delta      int // +1 for scale up, -1 for scale down
	Reason     string
}

// SegmentUtilization is the occupancy of one capability segment.
// Draining workers count as occupied: they still hold capacity.
type SegmentUtilization struct {
	Capability string  `json:"capability"`
	Busy       int     `json:"busy"`
	Idle       int     `json:"idle"`
	Draining   int     `json:"draining"`
	Total      int     `json:"total"`
	Ratio      float64 `json:"ratio"`
}

// Option configures a Pool.
type Option func(*Pool)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pool) {
		if now != nil {
			p.now = now
		}
	}
}
