package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is a token-matching Indexer for tests and dev deployments.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemory constructs an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Document)}
}

// Index stores or replaces the document.
func (m *Memory) Index(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

// Remove drops the document if present.
func (m *Memory) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

// Search returns IDs of documents containing every query token in their
// definition, description, stakeholder, tags, criteria, or task definitions.
func (m *Memory) Search(_ context.Context, query string) []string {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for id, doc := range m.docs {
		hay := strings.ToLower(strings.Join([]string{
			doc.Definition, doc.Description, doc.Stakeholder,
			strings.Join(doc.Tags, " "),
			strings.Join(doc.Criteria, " "),
			strings.Join(doc.Tasks, " "),
		}, " "))
		match := true
		for _, tok := range tokens {
			if !strings.Contains(hay, tok) {
				match = false
				break
			}
		}
		if match {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
