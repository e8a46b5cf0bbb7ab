package core

import (
	"context"

	"scrumcore/internal/export"
	"scrumcore/pkg/domain"
)

// BacklogRows flattens the project's backlog for export, deriving the status
// and state facets directly from the snapshot rather than the cache so an
// artifact is internally consistent.
func (s *Service) BacklogRows(ctx context.Context, projectID string) ([]export.Row, error) {
	var rows []export.Row
	err := s.store.View(ctx, func(v TransactionView) error {
		if _, ok := v.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		items := v.ItemsForProject(projectID)
		domain.SortBacklog(items)
		rows = make([]export.Row, 0, len(items))
		for _, item := range items {
			var originator *Person
			if item.PersonID != nil {
				if p, ok := v.FindPerson(*item.PersonID); ok {
					originator = &p
				}
			}
			row := export.Row{
				ID:          item.ID,
				Definition:  item.Definition,
				Description: item.Description,
				Status:      string(domain.DeriveStatus(v.TasksForItem(item.ID))),
				State:       string(domain.DeriveState(item, len(v.CriteriaForItem(item.ID)))),
				Stakeholder: domain.StakeholderName(item, originator),
				StoryPoints: item.StoryPoints,
				CreatedAt:   item.CreatedAt,
				UpdatedAt:   item.UpdatedAt,
			}
			if item.SprintID != nil {
				row.SprintID = *item.SprintID
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
