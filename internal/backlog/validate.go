package backlog

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/errors"
)

// Validate checks the backlog's structural rules: unique non-empty IDs,
// non-empty footprints, known dependencies, recognizable capability
// overrides, and no dependency cycles. Every problem found is returned,
// joined into a single error.
func (b *Backlog) Validate() error {
	if len(b.Stories) == 0 {
		return errors.NewValidationError("backlog has no stories").
			WithField("stories")
	}

	known := make(map[string]bool, len(b.Stories))
	for _, story := range b.Stories {
		if story.ID != "" {
			known[story.ID] = true
		}
	}

	var errs []error
	seen := make(map[string]bool, len(b.Stories))
	for i, story := range b.Stories {
		field := func(name string) string {
			if story.ID == "" {
				return fmt.Sprintf("stories[%d].%s", i, name)
			}
			return fmt.Sprintf("stories.%s.%s", story.ID, name)
		}

		if story.ID == "" {
			errs = append(errs, errors.NewValidationError("story id cannot be empty").
				WithField(field("id")))
		} else if seen[story.ID] {
			errs = append(errs, errors.NewValidationError("duplicate story id").
				WithField(field("id")).WithValue(story.ID))
		}
		seen[story.ID] = true

		if story.Points < 0 {
			errs = append(errs, errors.NewValidationError("points cannot be negative").
				WithField(field("points")).WithValue(story.Points))
		}

		if len(story.Footprint) == 0 {
			errs = append(errs, errors.NewValidationError("footprint cannot be empty").
				WithField(field("footprint")))
		}
		for _, resource := range story.Footprint {
			if strings.TrimSpace(resource) == "" {
				errs = append(errs, errors.NewValidationError("footprint entries cannot be blank").
					WithField(field("footprint")))
				break
			}
		}

		for _, dep := range story.DependsOn {
			switch {
			case dep == story.ID:
				errs = append(errs, errors.NewValidationError("story depends on itself").
					WithField(field("depends_on")).WithValue(dep))
			case !known[dep]:
				errs = append(errs, errors.NewValidationError("depends on unknown story").
					WithField(field("depends_on")).WithValue(dep))
			}
		}

		for phase, capability := range story.Capabilities {
			if !cycle.Phase(phase).IsWorking() {
				errs = append(errs, errors.NewValidationError("capability override names an unknown phase").
					WithField(field("capabilities")).WithValue(phase))
			}
			if !config.IsValidCapability(capability) {
				errs = append(errs, errors.NewValidationError("unknown capability").
					WithField(field("capabilities")).WithValue(capability))
			}
		}
	}

	if path := b.detectDependencyCycle(); path != nil {
		errs = append(errs, errors.NewValidationError(
			fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> "))).
			WithField("stories"))
	}

	return errors.Join(errs...)
}

// detectDependencyCycle runs a depth-first search over the dependency
// edges and returns the story IDs forming a cycle, first ID repeated at
// the end, or nil when the graph is acyclic. Unknown dependencies and
// self-dependencies are reported separately and skipped here.
func (b *Backlog) detectDependencyCycle() []string {
	byID := make(map[string]*Story, len(b.Stories))
	for i := range b.Stories {
		byID[b.Stories[i].ID] = &b.Stories[i]
	}

	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(id string) []string
	dfs = func(id string) []string {
		visited[id] = true
		inStack[id] = true

		story := byID[id]
		if story == nil {
			inStack[id] = false
			return nil
		}

		for _, dep := range story.DependsOn {
			if dep == id || byID[dep] == nil {
				continue
			}
			if !visited[dep] {
				parent[dep] = id
				if path := dfs(dep); path != nil {
					return path
				}
			} else if inStack[dep] {
				path := []string{dep}
				for current := id; current != dep; current = parent[current] {
					path = append([]string{current}, path...)
				}
				return append([]string{dep}, path...)
			}
		}

		inStack[id] = false
		return nil
	}

	for _, story := range b.Stories {
		if story.ID == "" || visited[story.ID] {
			continue
		}
		if path := dfs(story.ID); path != nil {
			return path
		}
	}
	return nil
}
