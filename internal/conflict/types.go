// Package conflict scores pending work against running work and
// classifies whether starting a story now is safe, needs a merge review,
// or must wait. Scoring is deterministic and side-effect free; recording
// prior conflicts and observed file writes happens through separate
// methods.
package conflict

import "strings"

// Classification is the scheduling verdict for a candidate pairing.
type Classification string

const (
	// ClassificationNone permits concurrent scheduling.
	ClassificationNone Classification = "none"

	// ClassificationSoft permits scheduling but flags both cycles for
	// post-completion merge review.
	ClassificationSoft Classification = "soft"

	// ClassificationHard blocks scheduling; the pending cycle stays
	// queued until the running cycle finishes.
	ClassificationHard Classification = "hard"
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	return string(c)
}

// Severity orders classifications for comparisons: none < soft < hard.
func (c Classification) Severity() int {
	switch c {
	case ClassificationSoft:
		return 1
	case ClassificationHard:
		return 2
	default:
		return 0
	}
}

// CycleFootprint is the scoring view of one cycle: the story it runs,
// the resources it declared, its declared dependency edges, and any
// paths it was observed touching.
type CycleFootprint struct {
	StoryID   string
	Resources []string
	DependsOn []string
	Observed  []string
}

// Cardinality returns the declared footprint size, the tie-break key
// among pending cycles.
func (f CycleFootprint) Cardinality() int {
	return len(f.Resources)
}

// PairScore is the scored result of one pending/running pairing.
type PairScore struct {
	StoryA          string
	StoryB          string
	Score           float64
	Classification  Classification
	SharedResources []string
}

// ByCardinality compares pending footprints for scheduling order: lower
// declared cardinality first, story ID breaking exact ties. The
// scheduler applies it after priority ordering.
func ByCardinality(a, b CycleFootprint) int {
	if d := a.Cardinality() - b.Cardinality(); d != 0 {
		return d
	}
	return strings.Compare(a.StoryID, b.StoryID)
}
