// Package cycle implements the TDD state machine run for each story pulled
// into an active sprint. A cycle moves forward through design, failing
// tests, passing code, refactor, and commit; backward edges return to an
// earlier phase when a gate shows the previous one was not really done.
// Three consecutive phase failures block the cycle until an explicit
// unblock returns it to the phase it was in.
package cycle

import (
	"slices"
	"time"
)

// Phase represents a discrete stage of the TDD loop.
type Phase string

const (
	// PhaseDesign is the initial phase: the story is analyzed and test
	// specifications are drafted. The footprint is declared here.
	PhaseDesign Phase = "DESIGN"

	// PhaseTestRed writes the tests. The phase gate is tests that exist
	// and fail for the right reason.
	PhaseTestRed Phase = "TEST_RED"

	// PhaseCodeGreen writes the implementation. The phase gate is the
	// test suite passing.
	PhaseCodeGreen Phase = "CODE_GREEN"

	// PhaseRefactor cleans up the implementation with tests kept green.
	PhaseRefactor Phase = "REFACTOR"

	// PhaseCommit runs the pre-commit audit and lands the change.
	PhaseCommit Phase = "COMMIT"

	// PhaseBlocked parks the cycle after repeated phase failures. The
	// cycle resumes in its prior phase on Unblock.
	PhaseBlocked Phase = "BLOCKED"

	// PhaseDone marks a committed, archived cycle. Terminal.
	PhaseDone Phase = "DONE"
)

// AllPhases returns all defined phases in forward order.
func AllPhases() []Phase {
	return []Phase{
		PhaseDesign,
		PhaseTestRed,
		PhaseCodeGreen,
		PhaseRefactor,
		PhaseCommit,
		PhaseBlocked,
		PhaseDone,
	}
}

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsTerminal returns true if the phase is a final state. Blocked is not
// terminal: an unblock resumes the cycle.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone
}

// IsWorking returns true for phases that execute agent work.
func (p Phase) IsWorking() bool {
	switch p {
	case PhaseDesign, PhaseTestRed, PhaseCodeGreen, PhaseRefactor, PhaseCommit:
		return true
	default:
		return false
	}
}

// ForwardTransitions defines the forward edge out of each working phase.
// This is the canonical source of truth for phase advancement.
var ForwardTransitions = map[Phase]Phase{
	PhaseDesign:    PhaseTestRed,   // Specs complete
	PhaseTestRed:   PhaseCodeGreen, // Tests exist and fail
	PhaseCodeGreen: PhaseRefactor,  // Tests pass
	PhaseRefactor:  PhaseCommit,    // Quality gates met
	PhaseCommit:    PhaseDone,      // Change landed
}

// BackwardTransitions defines the legal backward edges: a later phase may
// return work to an earlier one when its gate uncovers a gap.
var BackwardTransitions = map[Phase][]Phase{
	PhaseRefactor:  {PhaseCodeGreen}, // Refactor broke the tests
	PhaseCodeGreen: {PhaseTestRed},   // Coverage insufficient
	PhaseTestRed:   {PhaseDesign},    // Requirements ambiguity
}

// NextPhase returns the forward target of the phase, or false when the
// phase has no forward edge.
func NextPhase(from Phase) (Phase, bool) {
	to, ok := ForwardTransitions[from]
	return to, ok
}

// CanRegress checks whether the backward edge from -> to is legal.
func CanRegress(from, to Phase) bool {
	return slices.Contains(BackwardTransitions[from], to)
}

// DefaultCapability returns the worker capability that executes each
// working phase. Stories can override the mapping in the backlog file.
// The names line up with config.ValidCapabilities; they are defined here
// as well so the cycle package stays free of config imports.
func DefaultCapability(phase Phase) string {
	switch phase {
	case PhaseDesign:
		return "design"
	case PhaseTestRed:
		return "test"
	case PhaseCodeGreen:
		return "code"
	case PhaseRefactor:
		return "refactor"
	case PhaseCommit:
		return "analyze"
	default:
		return ""
	}
}

// PhaseTransition captures metadata about a single applied phase change.
type PhaseTransition struct {
	// From is the source phase.
	From Phase `json:"from"`

	// To is the destination phase.
	To Phase `json:"to"`

	// Timestamp records when the transition was applied.
	Timestamp time.Time `json:"timestamp"`

	// Reason provides optional context: the gate that sent work backward,
	// or the failure that blocked the cycle.
	Reason string `json:"reason,omitempty"`
}
