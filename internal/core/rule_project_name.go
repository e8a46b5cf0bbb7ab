package core

import (
	"context"
	"fmt"
	"strings"

	"scrumcore/pkg/domain"
)

// ProjectNameRule blocks commits that would persist a project without a name
// or with a name another project already uses (case-insensitive).
func ProjectNameRule() domain.Rule {
	return projectNameRule{}
}

type projectNameRule struct{}

func (projectNameRule) Name() string { return "project_name" }

func (projectNameRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var result domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityProject || change.Action == domain.ActionDelete {
			continue
		}
		project, ok := change.After.(domain.Project)
		if !ok {
			continue
		}
		if project.Name == "" {
			result.Violations = append(result.Violations, domain.Violation{
				Rule:     "project_name",
				Severity: domain.SeverityBlock,
				Message:  "project name is required",
				Entity:   domain.EntityProject,
				EntityID: project.ID,
			})
			continue
		}
		lowered := strings.ToLower(project.Name)
		for _, other := range view.ListProjects() {
			if other.ID != project.ID && strings.ToLower(other.Name) == lowered {
				result.Violations = append(result.Violations, domain.Violation{
					Rule:     "project_name",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("project name %q is already taken", project.Name),
					Entity:   domain.EntityProject,
					EntityID: project.ID,
				})
				break
			}
		}
	}
	return result, nil
}
