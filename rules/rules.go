// Package rules provides code rules to the composer and the batch orchestrator.
package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/getpup/codegen"
	"github.com/tidwall/gjson"
)

// Source resolves a rule id into its definition.
type Source interface {
	GetRule(ctx context.Context, ruleID string) (codegen.CodeRule, error)
}

// MemorySource is a Source backed by an in-process map. It is safe for
// concurrent use; rules can be replaced while codes are being generated.
type MemorySource struct {
	mu    sync.RWMutex
	rules map[string]codegen.CodeRule
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		rules: make(map[string]codegen.CodeRule),
	}
}

// GetRule implements Source.
func (s *MemorySource) GetRule(ctx context.Context, ruleID string) (codegen.CodeRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[ruleID]
	if !ok {
		return codegen.CodeRule{}, &codegen.NotFoundError{Kind: "rule", ID: ruleID}
	}
	segments := make([]codegen.Segment, len(rule.Segments))
	copy(segments, rule.Segments)
	rule.Segments = segments
	return rule, nil
}

// Put adds or replaces a rule.
func (s *MemorySource) Put(rule codegen.CodeRule) error {
	if rule.ID == "" {
		return codegen.NewValidationError("ruleId", "must not be empty")
	}
	if len(rule.Segments) == 0 {
		return codegen.NewValidationError("segments", "rule has no segments")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

// PutJSON adds or replaces a rule whose segments are in their stored JSON form.
func (s *MemorySource) PutJSON(ruleID, name string, segmentsJSON []byte) error {
	segments, err := codegen.ParseSegments(segmentsJSON)
	if err != nil {
		return fmt.Errorf("failed to parse segments of rule %q: %w", ruleID, err)
	}
	return s.Put(codegen.CodeRule{ID: ruleID, Name: name, Segments: segments})
}

// LoadJSON adds every rule of a rules document:
//
//	{"rules":[{"id":"R1","name":"Asset tag","segments":[{"type":"fixed","value":"A-"}]}]}
//
// Nothing is added when any rule is invalid. Returns the number of rules loaded.
func (s *MemorySource) LoadJSON(data []byte) (int, error) {
	if !gjson.ValidBytes(data) {
		return 0, codegen.NewValidationError("rules", "invalid JSON")
	}
	list := gjson.GetBytes(data, "rules")
	if !list.IsArray() {
		return 0, codegen.NewValidationError("rules", "expected a \"rules\" array")
	}

	var loaded []codegen.CodeRule
	for i, r := range list.Array() {
		id := r.Get("id").String()
		if id == "" {
			return 0, codegen.NewValidationError("rules", fmt.Sprintf("rule %d has no id", i))
		}
		segments, err := codegen.ParseSegments([]byte(r.Get("segments").Raw))
		if err != nil {
			return 0, fmt.Errorf("failed to parse segments of rule %q: %w", id, err)
		}
		if len(segments) == 0 {
			return 0, codegen.NewValidationError("segments", fmt.Sprintf("rule %q has no segments", id))
		}
		loaded = append(loaded, codegen.CodeRule{ID: id, Name: r.Get("name").String(), Segments: segments})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rule := range loaded {
		s.rules[rule.ID] = rule
	}
	return len(loaded), nil
}

// Delete removes a rule. Returns false when it did not exist.
func (s *MemorySource) Delete(ruleID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rules[ruleID]
	delete(s.rules, ruleID)
	return ok
}

// IDs returns the ids of all rules, sorted.
func (s *MemorySource) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.rules))
	for id := range s.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
