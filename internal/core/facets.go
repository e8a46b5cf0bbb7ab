package core

import (
	"context"
	"strconv"
	"time"

	"scrumcore/internal/cache"
	"scrumcore/internal/search"
	"scrumcore/pkg/domain"
)

// ItemStatus returns the backlog item's progress facet, serving from cache
// and recomputing from current task data on a miss.
func (s *Service) ItemStatus(ctx context.Context, itemID string) (Status, error) {
	if val, ok, _ := s.cache.Get(ctx, itemID, FacetStatus); ok {
		return Status(val), nil
	}
	var status Status
	err := s.store.View(ctx, func(v TransactionView) error {
		if _, ok := v.FindBacklogItem(itemID); !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: itemID}
		}
		status = domain.DeriveStatus(v.TasksForItem(itemID))
		return nil
	})
	if err != nil {
		return "", err
	}
	_ = s.cache.Put(ctx, itemID, FacetStatus, string(status), cache.DefaultTTL)
	return status, nil
}

// ItemState returns the backlog item's readiness facet, serving from cache
// and recomputing from current criteria and estimate data on a miss.
func (s *Service) ItemState(ctx context.Context, itemID string) (State, error) {
	if val, ok, _ := s.cache.Get(ctx, itemID, FacetState); ok {
		return State(val), nil
	}
	var state State
	err := s.store.View(ctx, func(v TransactionView) error {
		item, ok := v.FindBacklogItem(itemID)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: itemID}
		}
		state = domain.DeriveState(item, len(v.CriteriaForItem(itemID)))
		return nil
	})
	if err != nil {
		return "", err
	}
	_ = s.cache.Put(ctx, itemID, FacetState, string(state), cache.DefaultTTL)
	return state, nil
}

// SprintStoryPoints returns the total estimate of items currently planned
// into the sprint, cache-backed.
func (s *Service) SprintStoryPoints(ctx context.Context, sprintID string) (int, error) {
	if val, ok, _ := s.cache.Get(ctx, sprintID, FacetStoryPoints); ok {
		if total, err := strconv.Atoi(val); err == nil {
			return total, nil
		}
	}
	var total int
	err := s.store.View(ctx, func(v TransactionView) error {
		if _, ok := v.FindSprint(sprintID); !ok {
			return ErrNotFound{Entity: EntitySprint, ID: sprintID}
		}
		total = domain.TotalStoryPoints(v.ItemsForSprint(sprintID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	_ = s.cache.Put(ctx, sprintID, FacetStoryPoints, strconv.Itoa(total), cache.DefaultTTL)
	return total, nil
}

// ProjectStoryPoints returns the total estimate across the project's
// backlog, cache-backed.
func (s *Service) ProjectStoryPoints(ctx context.Context, projectID string) (int, error) {
	if val, ok, _ := s.cache.Get(ctx, projectID, FacetStoryPoints); ok {
		if total, err := strconv.Atoi(val); err == nil {
			return total, nil
		}
	}
	var total int
	err := s.store.View(ctx, func(v TransactionView) error {
		if _, ok := v.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		total = domain.TotalStoryPoints(v.ItemsForProject(projectID))
		return nil
	})
	if err != nil {
		return 0, err
	}
	_ = s.cache.Put(ctx, projectID, FacetStoryPoints, strconv.Itoa(total), cache.DefaultTTL)
	return total, nil
}

// expireItem runs the invalidation cascade for a saved or touched backlog
// item. The cascade is explicit and ordered, upward only: the item's own
// facets always drop; sprint and project story point aggregates drop only
// when the estimate or planning changed. Cache failures degrade inside the
// client and never fail the mutation.
func (s *Service) expireItem(ctx context.Context, item BacklogItem, aggregates bool, sprintIDs ...string) {
	_ = s.cache.Invalidate(ctx, item.ID, FacetStatus, FacetState)
	if !aggregates {
		return
	}
	seen := map[string]bool{}
	if item.SprintID != nil {
		seen[*item.SprintID] = true
		_ = s.cache.Invalidate(ctx, *item.SprintID, FacetStoryPoints)
	}
	for _, sprintID := range sprintIDs {
		if sprintID != "" && !seen[sprintID] {
			seen[sprintID] = true
			_ = s.cache.Invalidate(ctx, sprintID, FacetStoryPoints)
		}
	}
	_ = s.cache.Invalidate(ctx, item.ProjectID, FacetStoryPoints)
}

// reindexItem emits the search re-index signal for a saved or touched item.
// Indexing failures are logged and dropped.
func (s *Service) reindexItem(ctx context.Context, itemID string) {
	var doc search.Document
	err := s.store.View(ctx, func(v TransactionView) error {
		item, ok := v.FindBacklogItem(itemID)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: itemID}
		}
		var originator *Person
		if item.PersonID != nil {
			if p, ok := v.FindPerson(*item.PersonID); ok {
				originator = &p
			}
		}
		doc = search.Document{
			ID:          item.ID,
			ProjectID:   item.ProjectID,
			Definition:  item.Definition,
			Description: item.Description,
			Stakeholder: domain.StakeholderName(item, originator),
			StoryPoints: item.StoryPoints,
			Tags:        domain.Tags(item.Definition),
		}
		if item.SprintID != nil {
			doc.SprintID = *item.SprintID
		}
		for _, c := range v.CriteriaForItem(itemID) {
			doc.Criteria = append(doc.Criteria, c.Detail)
		}
		for _, t := range v.TasksForItem(itemID) {
			doc.Tasks = append(doc.Tasks, t.Definition)
		}
		return nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "reindex skipped", "item_id", itemID, "error", err)
		return
	}
	if err := s.indexer.Index(ctx, doc); err != nil {
		s.logger.WarnContext(ctx, "reindex failed", "item_id", itemID, "error", err)
	}
}

// AverageVelocity returns the mean completed story points across the
// project's finished sprints that planned at least one item, or nil when no
// finished sprint carries data.
func (s *Service) AverageVelocity(ctx context.Context, projectID string) (*float64, error) {
	var velocities []int
	err := s.store.View(ctx, func(v TransactionView) error {
		if _, ok := v.FindProject(projectID); !ok {
			return ErrNotFound{Entity: EntityProject, ID: projectID}
		}
		itemsBySprint := map[string][]BacklogItem{}
		for _, element := range v.ListSprintElements() {
			if item, ok := v.FindBacklogItem(element.BacklogItemID); ok {
				itemsBySprint[element.SprintID] = append(itemsBySprint[element.SprintID], item)
			}
		}
		now := time.Now().UTC()
		for _, sprint := range v.ListSprints() {
			if sprint.ProjectID != projectID || !sprint.Finished(now) {
				continue
			}
			items := itemsBySprint[sprint.ID]
			if len(items) == 0 {
				continue
			}
			velocity := 0
			for _, item := range items {
				if item.StoryPoints == nil {
					continue
				}
				if domain.DeriveStatus(v.TasksForItem(item.ID)) == StatusComplete {
					velocity += *item.StoryPoints
				}
			}
			velocities = append(velocities, velocity)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(velocities) == 0 {
		return nil, nil
	}
	sum := 0
	for _, v := range velocities {
		sum += v
	}
	avg := float64(sum) / float64(len(velocities))
	return &avg, nil
}
