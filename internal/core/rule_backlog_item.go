package core

import (
	"context"
	"fmt"

	"scrumcore/pkg/domain"
)

// BacklogItemIntegrityRule blocks commits that would persist a backlog item
// without a definition or project reference, or with a negative estimate,
// and tasks carrying negative remaining hours.
func BacklogItemIntegrityRule() domain.Rule {
	return backlogItemIntegrityRule{}
}

type backlogItemIntegrityRule struct{}

func (backlogItemIntegrityRule) Name() string { return "backlog_item_integrity" }

func (backlogItemIntegrityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Action == domain.ActionDelete {
			continue
		}
		switch change.Entity {
		case domain.EntityBacklogItem:
			item, ok := change.After.(domain.BacklogItem)
			if !ok {
				continue
			}
			if item.Definition == "" {
				result.Violations = append(result.Violations, domain.Violation{
					Rule:     "backlog_item_integrity",
					Severity: domain.SeverityBlock,
					Message:  "backlog item definition is required",
					Entity:   domain.EntityBacklogItem,
					EntityID: item.ID,
				})
			}
			if item.ProjectID == "" {
				result.Violations = append(result.Violations, domain.Violation{
					Rule:     "backlog_item_integrity",
					Severity: domain.SeverityBlock,
					Message:  "backlog item project reference is required",
					Entity:   domain.EntityBacklogItem,
					EntityID: item.ID,
				})
			}
			if item.StoryPoints != nil && *item.StoryPoints < 0 {
				result.Violations = append(result.Violations, domain.Violation{
					Rule:     "backlog_item_integrity",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("story points must be non-negative, got %d", *item.StoryPoints),
					Entity:   domain.EntityBacklogItem,
					EntityID: item.ID,
				})
			}
		case domain.EntityTask:
			task, ok := change.After.(domain.Task)
			if !ok {
				continue
			}
			if task.Hours < 0 {
				result.Violations = append(result.Violations, domain.Violation{
					Rule:     "backlog_item_integrity",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("task hours must be non-negative, got %v", task.Hours),
					Entity:   domain.EntityTask,
					EntityID: task.ID,
				})
			}
		}
	}
	return result, nil
}
