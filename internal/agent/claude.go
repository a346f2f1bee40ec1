package agent

import (
	"bytes"
	"context"
	"os/exec"
	"slices"
	"strings"

	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/errors"
)

// ClaudeBackend runs phase work through the claude CLI in one-shot
// print mode. The rendered prompt goes to stdin; stdout is the result.
type ClaudeBackend struct {
	binary string
	flags  []string
}

// NewClaudeBackend creates a claude backend from config. An empty
// binary falls back to "claude".
func NewClaudeBackend(cfg config.AgentConfig) *ClaudeBackend {
	binary := cfg.Binary
	if binary == "" {
		binary = "claude"
	}
	return &ClaudeBackend{
		binary: binary,
		flags:  slices.Clone(cfg.Flags),
	}
}

// Name returns "claude".
func (c *ClaudeBackend) Name() string {
	return BackendClaude
}

// Generate invokes the CLI one-shot. The caller's ctx carries the phase
// deadline; when it expires the subprocess is killed and the context
// error is returned so the coordinator can count the timeout.
func (c *ClaudeBackend) Generate(ctx context.Context, capability, prompt string, contextBundle map[string]string) (string, error) {
	if prompt == "" {
		return "", errors.NewValidationError("prompt cannot be empty").WithField("prompt")
	}

	args := append(slices.Clone(c.flags), "--print")
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.Stdin = strings.NewReader(renderPrompt(capability, prompt, contextBundle))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// The context error takes precedence: a killed subprocess
		// reports a generic exit failure that would mask the deadline.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", errors.Wrapf(ctxErr, "%s %s", c.binary, capability)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", errors.Wrapf(err, "%s %s", c.binary, capability)
		}
		return "", errors.Wrapf(err, "%s %s: %s", c.binary, capability, msg)
	}
	return stdout.String(), nil
}
