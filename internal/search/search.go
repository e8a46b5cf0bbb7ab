// Package search defines the re-index signal emitted whenever a backlog item
// is saved or touched. Indexing itself is an external collaborator; this
// package carries the contract plus an in-memory implementation used by
// tests and single-process deployments.
package search

import "context"

// Document is the denormalized, searchable projection of a backlog item.
type Document struct {
	ID          string   `json:"id"`
	ProjectID   string   `json:"project_id"`
	SprintID    string   `json:"sprint_id,omitempty"`
	Definition  string   `json:"definition"`
	Description string   `json:"description"`
	Stakeholder string   `json:"stakeholder,omitempty"`
	StoryPoints *int     `json:"story_points,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Criteria    []string `json:"criteria,omitempty"`
	Tasks       []string `json:"tasks,omitempty"`
}

// Indexer receives re-index signals. Implementations must tolerate repeated
// signals for the same item.
type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Remove(ctx context.Context, id string) error
}

// Noop discards all signals.
type Noop struct{}

// Index discards the document.
func (Noop) Index(context.Context, Document) error { return nil }

// Remove discards the removal.
func (Noop) Remove(context.Context, string) error { return nil }
