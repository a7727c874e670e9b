package executor

import (
	"context"
	"sync"

	"github.com/getpup/codegen"
)

// MockRunner is a mock implementation of Runner for testing.
type MockRunner struct {
	mu            sync.Mutex
	GenerateFunc  func(ctx context.Context, rule codegen.CodeRule, params codegen.Params, opts codegen.RenderOptions) (codegen.Item, error)
	GenerateCalls []GenerateCall
}

// GenerateCall records the parameters of a single Generate call.
type GenerateCall struct {
	Rule    codegen.CodeRule
	Params  codegen.Params
	Options codegen.RenderOptions
}

// NewMockRunner creates a new MockRunner with an empty call history.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		GenerateCalls: make([]GenerateCall, 0),
	}
}

// Generate implements the Runner interface.
// It records the call parameters, then:
// - If GenerateFunc is set, calls and returns it
// - Otherwise, returns an item whose code is the rule id
func (m *MockRunner) Generate(ctx context.Context, rule codegen.CodeRule, params codegen.Params, opts codegen.RenderOptions) (codegen.Item, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{
		Rule:    rule,
		Params:  params,
		Options: opts,
	})
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, rule, params, opts)
	}

	return codegen.Item{Code: rule.ID}, nil
}

// CallCount returns the number of Generate calls so far.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.GenerateCalls)
}

// GetGenerateCalls returns a copy of the recorded calls.
func (m *MockRunner) GetGenerateCalls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]GenerateCall, len(m.GenerateCalls))
	copy(calls, m.GenerateCalls)
	return calls
}

// Reset clears the call history.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls = make([]GenerateCall, 0)
}
