package agent

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Call records one Generate invocation on a MockBackend.
type Call struct {
	Capability string
	Prompt     string
	Bundle     map[string]string
}

// MockBackend is the scripted backend used by tests and dry runs. By
// default every call succeeds with a canned response; scripts, canned
// errors, and artificial delays override that per test.
type MockBackend struct {
	mu     sync.Mutex
	calls  []Call
	script func(capability, prompt string) (string, error)
	delay  time.Duration
}

// MockOption configures a MockBackend.
type MockOption func(*MockBackend)

// WithScript routes every Generate call through fn.
func WithScript(fn func(capability, prompt string) (string, error)) MockOption {
	return func(m *MockBackend) {
		m.script = fn
	}
}

// WithDelay makes every Generate call wait before answering, honoring
// ctx cancellation. Used to exercise phase timeouts.
func WithDelay(d time.Duration) MockOption {
	return func(m *MockBackend) {
		m.delay = d
	}
}

// NewMockBackend creates a mock backend.
func NewMockBackend(opts ...MockOption) *MockBackend {
	m := &MockBackend{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "mock".
func (m *MockBackend) Name() string {
	return BackendMock
}

// Generate records the call and answers from the script, or with a
// canned response when no script is set.
func (m *MockBackend) Generate(ctx context.Context, capability, prompt string, contextBundle map[string]string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Capability: capability,
		Prompt:     prompt,
		Bundle:     cloneBundle(contextBundle),
	})
	script := m.script
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if script != nil {
		return script(capability, prompt)
	}
	return fmt.Sprintf("mock %s output", capability), nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockBackend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// CallCount returns how many times Generate was invoked.
func (m *MockBackend) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func cloneBundle(bundle map[string]string) map[string]string {
	if bundle == nil {
		return nil
	}
	out := make(map[string]string, len(bundle))
	for k, v := range bundle {
		out[k] = v
	}
	return out
}
