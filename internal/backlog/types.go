// Package backlog loads and validates the YAML story backlog the engine
// schedules from. Stories declare the resources they will touch, the
// stories they depend on, and optional per-phase capability overrides.
package backlog

import (
	"cmp"
	"slices"

	"github.com/Iron-Ham/redgreen/internal/cycle"
)

// Story is a single unit of plannable work.
type Story struct {
	// ID uniquely identifies the story within the backlog.
	ID string `yaml:"id" json:"id"`

	// Title is a short human-readable name.
	Title string `yaml:"title" json:"title"`

	// Points is the story's size estimate, consumed from the sprint
	// capacity when the story is selected.
	Points int `yaml:"points" json:"points"`

	// Priority orders stories: lower values are scheduled earlier.
	// Stories with equal priority keep their file order.
	Priority int `yaml:"priority" json:"priority"`

	// Capabilities optionally overrides the phase-to-capability mapping
	// for this story. Keys are phase names, values capability names.
	Capabilities map[string]string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`

	// Footprint lists the resources (paths or globs) the story's cycle
	// will touch. Must be non-empty.
	Footprint []string `yaml:"footprint" json:"footprint"`

	// DependsOn lists story IDs this story builds on. Dependencies feed
	// conflict scoring; they are not a scheduling gate.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// HasDependencies returns true if the story depends on other stories.
func (s *Story) HasDependencies() bool {
	return len(s.DependsOn) > 0
}

// CapabilityOverrides converts the YAML override map into the typed form
// the cycle package accepts. Returns nil when no overrides are set.
func (s *Story) CapabilityOverrides() map[cycle.Phase]string {
	if len(s.Capabilities) == 0 {
		return nil
	}
	overrides := make(map[cycle.Phase]string, len(s.Capabilities))
	for phase, capability := range s.Capabilities {
		overrides[cycle.Phase(phase)] = capability
	}
	return overrides
}

// Backlog is the parsed backlog document.
type Backlog struct {
	// Stories holds every story, ordered by priority after parsing.
	Stories []Story `yaml:"stories" json:"stories"`
}

// ByID returns the story with the given ID.
func (b *Backlog) ByID(id string) (Story, bool) {
	for _, story := range b.Stories {
		if story.ID == id {
			return story, true
		}
	}
	return Story{}, false
}

// IDs returns all story IDs in backlog order.
func (b *Backlog) IDs() []string {
	ids := make([]string, len(b.Stories))
	for i, story := range b.Stories {
		ids[i] = story.ID
	}
	return ids
}

// TotalPoints returns the point sum across all stories.
func (b *Backlog) TotalPoints() int {
	total := 0
	for _, story := range b.Stories {
		total += story.Points
	}
	return total
}

// sortByPriority orders stories by ascending priority, keeping file
// order for ties.
func (b *Backlog) sortByPriority() {
	slices.SortStableFunc(b.Stories, func(a, z Story) int {
		return cmp.Compare(a.Priority, z.Priority)
	})
}

// SelectForSprint picks stories for a sprint greedily in priority order:
// a story is included when its points fit the remaining capacity. The
// input order is preserved in the result.
func SelectForSprint(stories []Story, capacityPoints int) []Story {
	if capacityPoints <= 0 {
		return nil
	}
	var selected []Story
	remaining := capacityPoints
	for _, story := range stories {
		if story.Points > remaining {
			continue
		}
		selected = append(selected, story)
		remaining -= story.Points
	}
	return selected
}
