package cycle

import (
	"slices"
	"testing"
)

func TestForwardTransitions(t *testing.T) {
	tests := []struct {
		from Phase
		want Phase
	}{
		{PhaseDesign, PhaseTestRed},
		{PhaseTestRed, PhaseCodeGreen},
		{PhaseCodeGreen, PhaseRefactor},
		{PhaseRefactor, PhaseCommit},
		{PhaseCommit, PhaseDone},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			got, ok := NextPhase(tt.from)
			if !ok {
				t.Fatalf("NextPhase(%s) not found", tt.from)
			}
			if got != tt.want {
				t.Errorf("NextPhase(%s) = %s, want %s", tt.from, got, tt.want)
			}
		})
	}

	t.Run("no forward edge from blocked or done", func(t *testing.T) {
		for _, phase := range []Phase{PhaseBlocked, PhaseDone} {
			if _, ok := NextPhase(phase); ok {
				t.Errorf("NextPhase(%s) should not exist", phase)
			}
		}
	})
}

func TestCanRegress(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
		want bool
	}{
		{"refactor back to code", PhaseRefactor, PhaseCodeGreen, true},
		{"code back to tests", PhaseCodeGreen, PhaseTestRed, true},
		{"tests back to design", PhaseTestRed, PhaseDesign, true},
		{"design has no backward edge", PhaseDesign, PhaseDesign, false},
		{"refactor cannot skip to tests", PhaseRefactor, PhaseTestRed, false},
		{"commit cannot regress", PhaseCommit, PhaseRefactor, false},
		{"forward direction is not a regression", PhaseTestRed, PhaseCodeGreen, false},
		{"blocked cannot regress", PhaseBlocked, PhaseDesign, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanRegress(tt.from, tt.to); got != tt.want {
				t.Errorf("CanRegress(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPhase_IsTerminal(t *testing.T) {
	for _, phase := range AllPhases() {
		got := phase.IsTerminal()
		want := phase == PhaseDone
		if got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", phase, got, want)
		}
	}
}

func TestPhase_IsWorking(t *testing.T) {
	working := []Phase{PhaseDesign, PhaseTestRed, PhaseCodeGreen, PhaseRefactor, PhaseCommit}
	for _, phase := range AllPhases() {
		got := phase.IsWorking()
		want := slices.Contains(working, phase)
		if got != want {
			t.Errorf("%s.IsWorking() = %v, want %v", phase, got, want)
		}
	}
}

func TestDefaultCapability(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseDesign, "design"},
		{PhaseTestRed, "test"},
		{PhaseCodeGreen, "code"},
		{PhaseRefactor, "refactor"},
		{PhaseCommit, "analyze"},
		{PhaseBlocked, ""},
		{PhaseDone, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			if got := DefaultCapability(tt.phase); got != tt.want {
				t.Errorf("DefaultCapability(%s) = %q, want %q", tt.phase, got, tt.want)
			}
		})
	}
}

func TestAllPhases_CoverTransitionTables(t *testing.T) {
	all := AllPhases()

	for from, to := range ForwardTransitions {
		if !slices.Contains(all, from) {
			t.Errorf("forward source %s missing from AllPhases()", from)
		}
		if !slices.Contains(all, to) {
			t.Errorf("forward target %s missing from AllPhases()", to)
		}
	}
	for from, targets := range BackwardTransitions {
		if !slices.Contains(all, from) {
			t.Errorf("backward source %s missing from AllPhases()", from)
		}
		for _, to := range targets {
			if !slices.Contains(all, to) {
				t.Errorf("backward target %s missing from AllPhases()", to)
			}
		}
	}
}
