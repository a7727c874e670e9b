package rules

import (
	"context"
	"sync"

	"github.com/getpup/codegen"
)

// MockSource is a mock implementation of Source for testing.
type MockSource struct {
	mu           sync.Mutex
	GetRuleFunc  func(ctx context.Context, ruleID string) (codegen.CodeRule, error)
	GetRuleCalls []string

	// Rules is consulted when GetRuleFunc is nil.
	Rules map[string]codegen.CodeRule
}

// NewMockSource creates a MockSource serving the given rules.
func NewMockSource(rules ...codegen.CodeRule) *MockSource {
	m := &MockSource{Rules: make(map[string]codegen.CodeRule)}
	for _, r := range rules {
		m.Rules[r.ID] = r
	}
	return m
}

// GetRule implements Source.
func (m *MockSource) GetRule(ctx context.Context, ruleID string) (codegen.CodeRule, error) {
	m.mu.Lock()
	m.GetRuleCalls = append(m.GetRuleCalls, ruleID)
	m.mu.Unlock()

	if m.GetRuleFunc != nil {
		return m.GetRuleFunc(ctx, ruleID)
	}

	rule, ok := m.Rules[ruleID]
	if !ok {
		return codegen.CodeRule{}, &codegen.NotFoundError{Kind: "rule", ID: ruleID}
	}
	return rule, nil
}
