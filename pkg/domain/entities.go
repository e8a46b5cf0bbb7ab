// Package domain defines the core persistent entities, closed enumerations,
// derivation rules, and rule evaluation primitives used by scrumcore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProject identifies a project record.
	EntityProject EntityType = "project"
	// EntitySprint identifies a sprint record.
	EntitySprint EntityType = "sprint"
	// EntityBacklogItem identifies a backlog item (user story) record.
	EntityBacklogItem EntityType = "backlog_item"
	// EntityTask identifies a task record.
	EntityTask EntityType = "task"
	// EntityAcceptanceCriterion identifies an acceptance criterion record.
	EntityAcceptanceCriterion EntityType = "acceptance_criterion"
	// EntityPerson identifies a person record.
	EntityPerson EntityType = "person"
	// EntitySprintElement identifies a sprint membership join record.
	EntitySprintElement EntityType = "sprint_element"
	// EntityTeamMember identifies a project membership record.
	EntityTeamMember EntityType = "team_member"
)

// Status is the derived progress facet of a backlog item, computed from its tasks.
type Status string

// Canonical status values. A backlog item is in progress while anyone is
// actively working a task, complete once every task has zero remaining hours.
const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// State is the derived readiness facet of a backlog item, computed from its
// clarification flag, acceptance criteria, and size estimate.
type State string

// Canonical state values, checked in order during derivation.
const (
	StateNeedsClarification State = "needs_clarification"
	StateNeedsCriteria      State = "needs_criteria"
	StateNeedsEstimate      State = "needs_estimate"
	StateReadyToPlan        State = "ready_to_plan"
)

// Facet names one derived, cacheable attribute of an entity.
type Facet string

// Cacheable facets. Status and state are keyed per backlog item; story points
// aggregate per sprint or project.
const (
	FacetStatus      Facet = "status"
	FacetState       Facet = "state"
	FacetStoryPoints Facet = "story_points"
)

// Partition is the planned/unplanned grouping that scopes backlog ordering.
type Partition string

// Ranking partitions. An item's rank is only comparable to items sharing the
// same project and partition.
const (
	PartitionPlanned   Partition = "planned"
	PartitionUnplanned Partition = "unplanned"
)

// AssignmentAction identifies a task-assignment mutation carried on broadcast payloads.
type AssignmentAction string

// Assignment actions exposed by the assignment engine. Only claim, renounce,
// and complete are ever broadcast; destroy payloads are returned to the
// caller for rendering and never published.
const (
	ActionClaim    AssignmentAction = "claim"
	ActionRenounce AssignmentAction = "renounce"
	ActionComplete AssignmentAction = "complete"
	ActionDestroy  AssignmentAction = "destroy"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Person represents an account-holding collaborator.
type Person struct {
	Base
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TeamMember associates a person with a project, making them eligible to
// claim tasks and perform destructive operations on the project's records.
type TeamMember struct {
	Base
	ProjectID   string `json:"project_id"`
	PersonID    string `json:"person_id"`
	ScrumMaster bool   `json:"scrum_master"`
}

// ChatIntegration holds a project's chat-room webhook settings.
type ChatIntegration struct {
	Token  string `json:"token"`
	Room   string `json:"room"`
	Notify bool   `json:"notify"`
}

// Complete reports whether every field required for an outbound call is present.
func (c ChatIntegration) Complete() bool {
	return c.Token != "" && c.Room != ""
}

// Project is the multi-tenant root aggregate: backlog, sprints, and team.
type Project struct {
	Base
	Name            string           `json:"name"`
	IterationLength int              `json:"iteration_length"`
	ChatIntegration *ChatIntegration `json:"chat_integration,omitempty"`
}

// Sprint is a time-boxed iteration within a project.
type Sprint struct {
	Base
	ProjectID string    `json:"project_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
}

// Finished reports whether the sprint ended before the supplied instant.
func (s Sprint) Finished(now time.Time) bool {
	return !s.EndAt.IsZero() && s.EndAt.Before(now)
}

// SprintElement joins a backlog item to a sprint. The join is historic: an
// item may associate to several sprints over its lifetime, while the single
// nullable SprintID on BacklogItem names where it is currently planned.
type SprintElement struct {
	Base
	SprintID      string `json:"sprint_id"`
	BacklogItemID string `json:"backlog_item_id"`
}

// BacklogItem is a unit of planned work (user story), decomposable into
// tasks and acceptance criteria. Status and state are derived, never stored.
type BacklogItem struct {
	Base
	ProjectID         string  `json:"project_id"`
	SprintID          *string `json:"sprint_id"`
	Definition        string  `json:"definition"`
	Description       string  `json:"description"`
	StoryPoints       *int    `json:"story_points"`
	Stakeholder       string  `json:"stakeholder"`
	PersonID          *string `json:"person_id"`
	CannotBeEstimated bool    `json:"cannot_be_estimated"`
	Position          int64   `json:"position"`
}

// Partition returns the ranking partition the item currently belongs to. An
// item with a sprint reference is planned; everything else is backlog.
func (b BacklogItem) Partition() Partition {
	if b.SprintID != nil {
		return PartitionPlanned
	}
	return PartitionUnplanned
}

// Task is a unit of execution within a backlog item. Zero remaining hours
// means the task is complete.
type Task struct {
	Base
	BacklogItemID string   `json:"backlog_item_id"`
	Position      int64    `json:"position"`
	Definition    string   `json:"definition"`
	Description   string   `json:"description"`
	Hours         float64  `json:"hours"`
	AssigneeIDs   []string `json:"assignee_ids"`
}

// Complete reports whether no work remains on the task.
func (t Task) Complete() bool { return t.Hours == 0 }

// InProgress reports whether the task is actively being worked: somebody has
// claimed it and hours remain.
func (t Task) InProgress() bool { return len(t.AssigneeIDs) > 0 && t.Hours > 0 }

// Assigned reports whether the given person is in the task's assignee set.
func (t Task) Assigned(personID string) bool {
	for _, id := range t.AssigneeIDs {
		if id == personID {
			return true
		}
	}
	return false
}

// AcceptanceCriterion captures one testable condition on a backlog item.
type AcceptanceCriterion struct {
	Base
	BacklogItemID string `json:"backlog_item_id"`
	Position      int64  `json:"position"`
	Detail        string `json:"detail"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in the journal.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
