package core

import (
	"context"
	"fmt"
	"time"

	"scrumcore/internal/broadcast"
)

// ClaimTask adds the person to the task's assignee set. Claiming an
// unstarted task moves it into progress by setting one remaining hour.
// Repeat claims by the same person are no-ops that still notify. The person
// must be on the parent project's team, as with every assignment mutation;
// outsiders get ErrForbidden.
func (s *Service) ClaimTask(ctx context.Context, taskID, personID string) (Task, broadcast.Payload, error) {
	return s.assign(ctx, "claim_task", taskID, personID, ActionClaim, func(task *Task) error {
		if !task.Assigned(personID) {
			task.AssigneeIDs = append(task.AssigneeIDs, personID)
		}
		if task.Hours == 0 {
			task.Hours = 1
		}
		return nil
	})
}

// RenounceTask removes the person from the task's assignee set. Remaining
// hours are untouched; renouncing the last assignee leaves the task pending
// rather than complete.
func (s *Service) RenounceTask(ctx context.Context, taskID, personID string) (Task, broadcast.Payload, error) {
	return s.assign(ctx, "renounce_task", taskID, personID, ActionRenounce, func(task *Task) error {
		kept := task.AssigneeIDs[:0]
		for _, id := range task.AssigneeIDs {
			if id != personID {
				kept = append(kept, id)
			}
		}
		task.AssigneeIDs = kept
		return nil
	})
}

// CompleteTask zeroes the task's remaining hours, which is what done means.
// Assignees are kept for attribution.
func (s *Service) CompleteTask(ctx context.Context, taskID, personID string) (Task, broadcast.Payload, error) {
	return s.assign(ctx, "complete_task", taskID, personID, ActionComplete, func(task *Task) error {
		task.Hours = 0
		return nil
	})
}

// DestroyTask deletes a task on behalf of a project team member. The
// returned payload describes the deletion for the caller's own rendering;
// it is never published to the sprint channel.
func (s *Service) DestroyTask(ctx context.Context, taskID, personID string) (broadcast.Payload, error) {
	start := time.Now()
	var removed Task
	var item BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		task, ok := tx.FindTask(taskID)
		if !ok {
			return ErrNotFound{Entity: EntityTask, ID: taskID}
		}
		parent, ok := tx.FindBacklogItem(task.BacklogItemID)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: task.BacklogItemID}
		}
		if !tx.Snapshot().IsTeamMember(parent.ProjectID, personID) {
			return ErrForbidden{ProjectID: parent.ProjectID, PersonID: personID}
		}
		removed = task
		item = parent
		return tx.DeleteTask(taskID)
	})
	if err != nil {
		s.finish(ctx, "destroy_task", start, err)
		return broadcast.Payload{}, err
	}
	_ = s.cache.Invalidate(ctx, item.ID, FacetStatus)
	status, statusErr := s.ItemStatus(ctx, item.ID)
	if statusErr != nil {
		s.logger.WarnContext(ctx, "status recompute after destroy failed", "item_id", item.ID, "error", statusErr)
	}
	s.reindexItem(ctx, item.ID)
	payload := s.payloadFor(ctx, ActionDestroy, removed, item, personID, status)
	s.finish(ctx, "destroy_task", start, nil)
	return payload, nil
}

// assign runs one assignment mutation end to end: persist, invalidate the
// parent's status facet, recompute it, then broadcast to the sprint channel.
// The three side effects are independent; a later failure never rolls back
// an earlier step.
func (s *Service) assign(ctx context.Context, op, taskID, personID string, action AssignmentAction, mutate func(*Task) error) (Task, broadcast.Payload, error) {
	start := time.Now()
	var task Task
	var item BacklogItem
	_, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		current, ok := tx.FindTask(taskID)
		if !ok {
			return ErrNotFound{Entity: EntityTask, ID: taskID}
		}
		parent, ok := tx.FindBacklogItem(current.BacklogItemID)
		if !ok {
			return ErrNotFound{Entity: EntityBacklogItem, ID: current.BacklogItemID}
		}
		if !tx.Snapshot().IsTeamMember(parent.ProjectID, personID) {
			return ErrForbidden{ProjectID: parent.ProjectID, PersonID: personID}
		}
		item = parent
		var uerr error
		task, uerr = tx.UpdateTask(taskID, mutate)
		return uerr
	})
	if err != nil {
		s.finish(ctx, op, start, err)
		return Task{}, broadcast.Payload{}, err
	}
	_ = s.cache.Invalidate(ctx, item.ID, FacetStatus)
	status, statusErr := s.ItemStatus(ctx, item.ID)
	if statusErr != nil {
		s.logger.WarnContext(ctx, "status recompute after assignment failed", "item_id", item.ID, "error", statusErr)
	}
	payload := s.payloadFor(ctx, action, task, item, personID, status)
	s.dispatcher.Publish(ctx, item.SprintID, payload)
	s.finish(ctx, op, start, nil)
	return task, payload, nil
}

// payloadFor builds the notification body for an assignment mutation.
func (s *Service) payloadFor(ctx context.Context, action AssignmentAction, task Task, item BacklogItem, personID string, status Status) broadcast.Payload {
	performer := s.personName(personID)
	devs := make([]string, 0, len(task.AssigneeIDs))
	for _, id := range task.AssigneeIDs {
		devs = append(devs, s.personName(id))
	}
	if len(devs) == 0 {
		devs = []string{broadcast.NobodyAssigned}
	}
	return broadcast.Payload{
		Notification: fmt.Sprintf("%s %s task of #%s", performer, assignmentVerb(action), item.ID),
		PerformedBy:  performer,
		Action:       action,
		TaskID:       task.ID,
		TaskHours:    task.Hours,
		TaskDevs:     devs,
		ItemStatus:   status,
		ItemID:       item.ID,
	}
}

func (s *Service) personName(personID string) string {
	if person, ok := s.store.GetPerson(personID); ok && person.Name != "" {
		return person.Name
	}
	return personID
}

func assignmentVerb(action AssignmentAction) string {
	switch action {
	case ActionClaim:
		return "claimed"
	case ActionRenounce:
		return "renounced"
	case ActionComplete:
		return "completed"
	case ActionDestroy:
		return "deleted"
	default:
		return string(action)
	}
}
