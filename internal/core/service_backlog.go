package core

import (
	"context"
	"errors"
	"time"

	"scrumcore/internal/rank"
	"scrumcore/pkg/domain"
)

// errSprintViaUpdate guards the ranking invariant: changing the planned
// partition re-scopes the item's rank, so it must go through the planning
// operations that hold the scope locks.
var errSprintViaUpdate = errors.New("sprint assignment changes must use PlanBacklogItem or UnplanBacklogItem")

func sameSprint(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// projectScopes returns both ranking scopes of a project. Planning
// operations lock both so a concurrent partition move cannot race the
// sibling reads.
func projectScopes(projectID string) []rank.Scope {
	return []rank.Scope{
		{ProjectID: projectID, Partition: domain.PartitionPlanned},
		{ProjectID: projectID, Partition: domain.PartitionUnplanned},
	}
}

// rankItemInTx positions the item within its current scope at target,
// renumbering the scope first when the neighboring gap is exhausted. The
// caller must hold the scope lock.
func rankItemInTx(tx Transaction, item BacklogItem, target rank.Target) (BacklogItem, error) {
	scope := rank.ScopeOf(item)
	siblings := scopeSiblings(tx, scope, item.ID)
	positions := make([]int64, len(siblings))
	for i, sibling := range siblings {
		positions[i] = sibling.Position
	}
	pos, ok := rank.PositionFor(positions, target)
	if !ok {
		fresh := rank.Renumbered(len(siblings))
		for i, sibling := range siblings {
			position := fresh[i]
			if _, err := tx.UpdateBacklogItem(sibling.ID, func(it *BacklogItem) error {
				it.Position = position
				return nil
			}); err != nil {
				return BacklogItem{}, err
			}
			positions[i] = position
		}
		pos, _ = rank.PositionFor(positions, target)
	}
	return tx.UpdateBacklogItem(item.ID, func(it *BacklogItem) error {
		it.Position = pos
		return nil
	})
}

func scopeSiblings(tx Transaction, scope rank.Scope, excludeID string) []BacklogItem {
	var out []BacklogItem
	for _, item := range tx.Snapshot().ItemsForProject(scope.ProjectID) {
		if item.ID != excludeID && item.Partition() == scope.Partition {
			out = append(out, item)
		}
	}
	return out
}

// CreateBacklogItem persists a new backlog item and ranks it within its
// partition at the target.
func (s *Service) CreateBacklogItem(ctx context.Context, item BacklogItem, target rank.Target) (BacklogItem, error) {
	start := time.Now()
	release := s.lockScopes(projectScopes(item.ProjectID)...)
	var created BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateBacklogItem(item)
		if err != nil {
			return err
		}
		created, err = rankItemInTx(tx, created, target)
		return err
	})
	release()
	if err == nil {
		s.expireItem(ctx, created, created.StoryPoints != nil)
		s.reindexItem(ctx, created.ID)
	}
	s.finish(ctx, "create_backlog_item", start, err)
	return created, err
}

// UpdateBacklogItem mutates a backlog item and runs the invalidation
// cascade. Sprint assignment is rejected here; it re-scopes the rank and
// must use the planning operations.
func (s *Service) UpdateBacklogItem(ctx context.Context, id string, mutator func(*BacklogItem) error) (BacklogItem, error) {
	start := time.Now()
	var before, updated BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateBacklogItem(id, func(it *BacklogItem) error {
			before = *it
			if err := mutator(it); err != nil {
				return err
			}
			if !sameSprint(before.SprintID, it.SprintID) {
				return errSprintViaUpdate
			}
			return nil
		})
		return err
	})
	if err == nil {
		estimateChanged := !sameEstimate(before.StoryPoints, updated.StoryPoints)
		s.expireItem(ctx, updated, estimateChanged)
		s.reindexItem(ctx, updated.ID)
	}
	s.finish(ctx, "update_backlog_item", start, err)
	return updated, err
}

func sameEstimate(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DeleteBacklogItem removes an item and everything it owns, then drops its
// cache entries, the owning aggregates, and its search document.
func (s *Service) DeleteBacklogItem(ctx context.Context, id string) error {
	start := time.Now()
	var removed BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		item, ok := tx.FindBacklogItem(id)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: id}
		}
		removed = item
		return tx.DeleteBacklogItem(id)
	})
	if err == nil {
		s.expireItem(ctx, removed, true)
		if err := s.indexer.Remove(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "search document removal failed", "item_id", id, "error", err)
		}
	}
	s.finish(ctx, "delete_backlog_item", start, err)
	return err
}

// MoveBacklogItem re-ranks an item within its current partition.
func (s *Service) MoveBacklogItem(ctx context.Context, id string, target rank.Target) (BacklogItem, error) {
	start := time.Now()
	item, ok := s.store.GetBacklogItem(id)
	if !ok {
		err := ErrNotFound{Entity: EntityBacklogItem, ID: id}
		s.finish(ctx, "move_backlog_item", start, err)
		return BacklogItem{}, err
	}
	release := s.lockScopes(projectScopes(item.ProjectID)...)
	var moved BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		current, ok := tx.FindBacklogItem(id)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: id}
		}
		var err error
		moved, err = rankItemInTx(tx, current, target)
		return err
	})
	release()
	s.finish(ctx, "move_backlog_item", start, err)
	return moved, err
}

// PlanBacklogItem plans an item into a sprint: the current sprint reference
// is set, a sprint membership join is recorded, and the item's rank is
// re-scoped into the planned partition at the target (head by default).
func (s *Service) PlanBacklogItem(ctx context.Context, id, sprintID string, target rank.Target) (BacklogItem, error) {
	start := time.Now()
	item, ok := s.store.GetBacklogItem(id)
	if !ok {
		err := ErrNotFound{Entity: EntityBacklogItem, ID: id}
		s.finish(ctx, "plan_backlog_item", start, err)
		return BacklogItem{}, err
	}
	release := s.lockScopes(projectScopes(item.ProjectID)...)
	var planned BacklogItem
	var previousSprint string
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		sprint, ok := tx.FindSprint(sprintID)
		if !ok {
			return ErrNotFound{Entity: EntitySprint, ID: sprintID}
		}
		current, ok := tx.FindBacklogItem(id)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: id}
		}
		if sprint.ProjectID != current.ProjectID {
			return errors.New("sprint and backlog item belong to different projects")
		}
		if current.SprintID != nil {
			previousSprint = *current.SprintID
		}
		updated, err := tx.UpdateBacklogItem(id, func(it *BacklogItem) error {
			it.SprintID = &sprintID
			return nil
		})
		if err != nil {
			return err
		}
		joined := false
		for _, element := range tx.Snapshot().ListSprintElements() {
			if element.SprintID == sprintID && element.BacklogItemID == id {
				joined = true
				break
			}
		}
		if !joined {
			if _, err := tx.CreateSprintElement(SprintElement{SprintID: sprintID, BacklogItemID: id}); err != nil {
				return err
			}
		}
		planned, err = rankItemInTx(tx, updated, target)
		return err
	})
	release()
	if err == nil {
		s.expireItem(ctx, planned, true, previousSprint)
		s.reindexItem(ctx, planned.ID)
	}
	s.finish(ctx, "plan_backlog_item", start, err)
	return planned, err
}

// UnplanBacklogItem clears the item's sprint reference and re-scopes its
// rank into the unplanned partition at the target (head by default). The
// historic sprint membership join is retained.
func (s *Service) UnplanBacklogItem(ctx context.Context, id string, target rank.Target) (BacklogItem, error) {
	start := time.Now()
	item, ok := s.store.GetBacklogItem(id)
	if !ok {
		err := ErrNotFound{Entity: EntityBacklogItem, ID: id}
		s.finish(ctx, "unplan_backlog_item", start, err)
		return BacklogItem{}, err
	}
	release := s.lockScopes(projectScopes(item.ProjectID)...)
	var unplanned BacklogItem
	var previousSprint string
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		current, ok := tx.FindBacklogItem(id)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: id}
		}
		if current.SprintID != nil {
			previousSprint = *current.SprintID
		}
		updated, err := tx.UpdateBacklogItem(id, func(it *BacklogItem) error {
			it.SprintID = nil
			return nil
		})
		if err != nil {
			return err
		}
		unplanned, err = rankItemInTx(tx, updated, target)
		return err
	})
	release()
	if err == nil {
		s.expireItem(ctx, unplanned, true, previousSprint)
		s.reindexItem(ctx, unplanned.ID)
	}
	s.finish(ctx, "unplan_backlog_item", start, err)
	return unplanned, err
}

// DeleteSprint removes a sprint after returning its planned items to the
// tail of the unplanned backlog, then drops the affected cache entries.
func (s *Service) DeleteSprint(ctx context.Context, id string) error {
	start := time.Now()
	sprint, ok := s.store.GetSprint(id)
	if !ok {
		err := ErrNotFound{Entity: EntitySprint, ID: id}
		s.finish(ctx, "delete_sprint", start, err)
		return err
	}
	release := s.lockScopes(projectScopes(sprint.ProjectID)...)
	var displaced []BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, item := range tx.Snapshot().ItemsForSprint(id) {
			updated, err := tx.UpdateBacklogItem(item.ID, func(it *BacklogItem) error {
				it.SprintID = nil
				return nil
			})
			if err != nil {
				return err
			}
			ranked, err := rankItemInTx(tx, updated, rank.Last())
			if err != nil {
				return err
			}
			displaced = append(displaced, ranked)
		}
		return tx.DeleteSprint(id)
	})
	release()
	if err == nil {
		_ = s.cache.Invalidate(ctx, id, FacetStoryPoints)
		for _, item := range displaced {
			s.expireItem(ctx, item, true, id)
			s.reindexItem(ctx, item.ID)
		}
	}
	s.finish(ctx, "delete_sprint", start, err)
	return err
}

// CopyBacklogItem deep-duplicates an item into the head of the unplanned
// backlog: definition, description, estimate, acceptance criteria, and
// tasks. Task hours carry over; assignee sets do not.
func (s *Service) CopyBacklogItem(ctx context.Context, sourceID string) (BacklogItem, error) {
	start := time.Now()
	source, ok := s.store.GetBacklogItem(sourceID)
	if !ok {
		err := ErrNotFound{Entity: EntityBacklogItem, ID: sourceID}
		s.finish(ctx, "copy_backlog_item", start, err)
		return BacklogItem{}, err
	}
	release := s.lockScopes(projectScopes(source.ProjectID)...)
	var copied BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		original, ok := tx.FindBacklogItem(sourceID)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: sourceID}
		}
		draft := BacklogItem{
			ProjectID:   original.ProjectID,
			Definition:  original.Definition,
			Description: original.Description,
			Stakeholder: original.Stakeholder,
		}
		if original.PersonID != nil {
			originator := *original.PersonID
			draft.PersonID = &originator
		}
		if original.StoryPoints != nil {
			points := *original.StoryPoints
			draft.StoryPoints = &points
		}
		created, err := tx.CreateBacklogItem(draft)
		if err != nil {
			return err
		}
		view := tx.Snapshot()
		for _, criterion := range view.CriteriaForItem(sourceID) {
			if _, err := tx.CreateAcceptanceCriterion(AcceptanceCriterion{
				BacklogItemID: created.ID,
				Position:      criterion.Position,
				Detail:        criterion.Detail,
			}); err != nil {
				return err
			}
		}
		for _, task := range view.TasksForItem(sourceID) {
			if _, err := tx.CreateTask(Task{
				BacklogItemID: created.ID,
				Position:      task.Position,
				Definition:    task.Definition,
				Description:   task.Description,
				Hours:         task.Hours,
			}); err != nil {
				return err
			}
		}
		copied, err = rankItemInTx(tx, created, rank.First())
		return err
	})
	release()
	if err == nil {
		s.expireItem(ctx, copied, copied.StoryPoints != nil)
		s.reindexItem(ctx, copied.ID)
	}
	s.finish(ctx, "copy_backlog_item", start, err)
	return copied, err
}

// CreateTask adds a task to an item's collection, appended to the task order
// unless a position is supplied, and invalidates the parent's status facet.
func (s *Service) CreateTask(ctx context.Context, task Task) (Task, error) {
	start := time.Now()
	var created Task
	var parent BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		item, ok := tx.FindBacklogItem(task.BacklogItemID)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: task.BacklogItemID}
		}
		parent = item
		if task.Position == 0 {
			task.Position = nextChildPosition(len(tx.Snapshot().TasksForItem(task.BacklogItemID)))
		}
		var err error
		created, err = tx.CreateTask(task)
		return err
	})
	if err == nil {
		_ = s.cache.Invalidate(ctx, parent.ID, FacetStatus)
		s.reindexItem(ctx, parent.ID)
	}
	s.finish(ctx, "create_task", start, err)
	return created, err
}

// UpdateTask mutates a task and invalidates the parent's status facet.
// Assignment mutations have dedicated operations that also broadcast.
func (s *Service) UpdateTask(ctx context.Context, id string, mutator func(*Task) error) (Task, error) {
	start := time.Now()
	var updated Task
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateTask(id, mutator)
		return err
	})
	if err == nil {
		_ = s.cache.Invalidate(ctx, updated.BacklogItemID, FacetStatus)
		s.reindexItem(ctx, updated.BacklogItemID)
	}
	s.finish(ctx, "update_task", start, err)
	return updated, err
}

// CreateAcceptanceCriterion adds a criterion to an item, appended to the
// criterion order unless a position is supplied, and invalidates the
// parent's state facet.
func (s *Service) CreateAcceptanceCriterion(ctx context.Context, criterion AcceptanceCriterion) (AcceptanceCriterion, error) {
	start := time.Now()
	var created AcceptanceCriterion
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, ok := tx.FindBacklogItem(criterion.BacklogItemID); !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: criterion.BacklogItemID}
		}
		if criterion.Position == 0 {
			criterion.Position = nextChildPosition(len(tx.Snapshot().CriteriaForItem(criterion.BacklogItemID)))
		}
		var err error
		created, err = tx.CreateAcceptanceCriterion(criterion)
		return err
	})
	if err == nil {
		_ = s.cache.Invalidate(ctx, created.BacklogItemID, FacetState)
		s.reindexItem(ctx, created.BacklogItemID)
	}
	s.finish(ctx, "create_acceptance_criterion", start, err)
	return created, err
}

// UpdateAcceptanceCriterion mutates a criterion and invalidates the parent's
// state facet.
func (s *Service) UpdateAcceptanceCriterion(ctx context.Context, id string, mutator func(*AcceptanceCriterion) error) (AcceptanceCriterion, error) {
	start := time.Now()
	var updated AcceptanceCriterion
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateAcceptanceCriterion(id, mutator)
		return err
	})
	if err == nil {
		_ = s.cache.Invalidate(ctx, updated.BacklogItemID, FacetState)
		s.reindexItem(ctx, updated.BacklogItemID)
	}
	s.finish(ctx, "update_acceptance_criterion", start, err)
	return updated, err
}

// DeleteAcceptanceCriterion removes a criterion and invalidates the parent's
// state facet.
func (s *Service) DeleteAcceptanceCriterion(ctx context.Context, id string) error {
	start := time.Now()
	var parentID string
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		for _, criterion := range tx.Snapshot().ListAcceptanceCriteria() {
			if criterion.ID == id {
				parentID = criterion.BacklogItemID
				break
			}
		}
		return tx.DeleteAcceptanceCriterion(id)
	})
	if err == nil && parentID != "" {
		_ = s.cache.Invalidate(ctx, parentID, FacetState)
		s.reindexItem(ctx, parentID)
	}
	s.finish(ctx, "delete_acceptance_criterion", start, err)
	return err
}

func nextChildPosition(existing int) int64 {
	return int64(existing+1) * rank.Spacing
}
