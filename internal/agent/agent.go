// Package agent defines the capability interface the engine invokes to
// execute TDD phase work, and the backends that implement it. The engine
// depends only on Generate; which model or binary answers is selected by
// configuration.
package agent

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/errors"
)

// Backend names accepted by agent.backend.
const (
	BackendClaude = "claude"
	BackendMock   = "mock"
)

// Backend executes one unit of capability-typed work. Implementations
// must honor ctx: the caller enforces the phase deadline through it and
// treats a deadline error as a phase failure.
type Backend interface {
	// Name identifies the backend in logs and status output.
	Name() string

	// Generate runs the prompt under the given capability and returns
	// the produced text. The context bundle carries named sections
	// (story, phase, footprint, prior output) rendered ahead of the
	// prompt.
	Generate(ctx context.Context, capability, prompt string, contextBundle map[string]string) (string, error)
}

// NewFromConfig builds a Backend from the agent configuration.
func NewFromConfig(cfg config.AgentConfig) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendClaude, "":
		return NewClaudeBackend(cfg), nil
	case BackendMock:
		return NewMockBackend(), nil
	default:
		return nil, errors.NewValidationError("unknown agent backend").
			WithField("agent.backend").
			WithValue(cfg.Backend)
	}
}

// renderPrompt joins the context bundle and the prompt into the text a
// backend consumes. Bundle sections render in sorted key order so the
// rendering is deterministic.
func renderPrompt(capability, prompt string, contextBundle map[string]string) string {
	var b strings.Builder
	b.WriteString("# Capability: ")
	b.WriteString(capability)
	b.WriteString("\n\n")
	for _, key := range slices.Sorted(maps.Keys(contextBundle)) {
		b.WriteString("## ")
		b.WriteString(key)
		b.WriteString("\n")
		b.WriteString(contextBundle[key])
		b.WriteString("\n\n")
	}
	b.WriteString(prompt)
	return b.String()
}
