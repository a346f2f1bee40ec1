package coordinator

import (
	"strings"

	"github.com/Iron-Ham/redgreen/internal/cycle"
)

// maxPriorOutput caps how much of the previous phase's output is fed
// forward in the context bundle.
const maxPriorOutput = 8192

// verdictInstructions closes every phase prompt so the default gate can
// parse the agent's ruling.
const verdictInstructions = "End your response with exactly one line:\n" +
	"VERDICT: pass | VERDICT: fail <reason> | VERDICT: regress <PHASE> <reason>"

// phasePrompts holds the work instruction per TDD phase.
var phasePrompts = map[cycle.Phase]string{
	cycle.PhaseDesign: "Analyze the story and draft test specifications. " +
		"List the behaviors to test and the files inside the footprint you will touch.\n\n" +
		verdictInstructions,
	cycle.PhaseTestRed: "Write the tests for the specifications. " +
		"The tests must exist and fail for the right reason. " +
		"If the requirements are ambiguous, regress to DESIGN.\n\n" +
		verdictInstructions,
	cycle.PhaseCodeGreen: "Implement the minimum change that makes the test suite pass. " +
		"Stay inside the declared footprint. " +
		"If coverage is insufficient to drive the implementation, regress to TEST_RED.\n\n" +
		verdictInstructions,
	cycle.PhaseRefactor: "Clean up the implementation with the tests kept green. " +
		"If the refactor broke the tests, regress to CODE_GREEN.\n\n" +
		verdictInstructions,
	cycle.PhaseCommit: "Run the pre-commit audit and land the change: " +
		"full suite green, no changes outside the footprint, coherent commit message.\n\n" +
		verdictInstructions,
}

// promptForLocked builds the prompt and context bundle for the cycle's
// current phase. Caller holds e.mu.
func (e *Engine) promptForLocked(c *cycle.Cycle) (string, map[string]string) {
	storyID := c.StoryID()
	bundle := map[string]string{
		"phase":     c.Phase().String(),
		"footprint": strings.Join(c.Footprint(), "\n"),
	}
	if story, ok := e.stories[storyID]; ok {
		bundle["story"] = story.ID + ": " + story.Title
	} else {
		bundle["story"] = storyID
	}
	if prior := e.outputs[storyID]; prior != "" {
		bundle["prior_output"] = truncate(prior, maxPriorOutput)
	}
	if c.Strikes() > 0 && c.LastFailure() != "" {
		bundle["last_failure"] = c.LastFailure()
	}
	return phasePrompts[c.Phase()], bundle
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
