package render

import (
	"context"
	"sync"

	"github.com/getpup/codegen"
)

// MockRenderer is a mock implementation of Renderer for testing.
type MockRenderer struct {
	mu          sync.Mutex
	RenderFunc  func(ctx context.Context, text string, opts codegen.RenderOptions) ([]byte, error)
	RenderCalls []RenderCall
}

// RenderCall records the parameters of a single Render call.
type RenderCall struct {
	Text    string
	Options codegen.RenderOptions
}

// NewMockRenderer creates a new MockRenderer with an empty call history.
func NewMockRenderer() *MockRenderer {
	return &MockRenderer{
		RenderCalls: make([]RenderCall, 0),
	}
}

// Render implements the Renderer interface.
// It records the call parameters, then:
// - If RenderFunc is set, calls and returns it
// - Otherwise, returns the text as bytes
func (m *MockRenderer) Render(ctx context.Context, text string, opts codegen.RenderOptions) ([]byte, error) {
	m.mu.Lock()
	m.RenderCalls = append(m.RenderCalls, RenderCall{
		Text:    text,
		Options: opts,
	})
	m.mu.Unlock()

	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, text, opts)
	}

	return []byte(text), nil
}

// GetRenderCalls returns a copy of the recorded calls.
func (m *MockRenderer) GetRenderCalls() []RenderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]RenderCall, len(m.RenderCalls))
	copy(calls, m.RenderCalls)
	return calls
}

// Reset clears the call history.
func (m *MockRenderer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RenderCalls = make([]RenderCall, 0)
}
