package core

import "scrumcore/pkg/domain"

type (
	EntityType          = domain.EntityType
	Status              = domain.Status
	State               = domain.State
	Facet               = domain.Facet
	Partition           = domain.Partition
	AssignmentAction    = domain.AssignmentAction
	Severity            = domain.Severity
	Base                = domain.Base
	Project             = domain.Project
	Sprint              = domain.Sprint
	BacklogItem         = domain.BacklogItem
	Task                = domain.Task
	AcceptanceCriterion = domain.AcceptanceCriterion
	Person              = domain.Person
	TeamMember          = domain.TeamMember
	SprintElement       = domain.SprintElement
	ChatIntegration     = domain.ChatIntegration
	Change              = domain.Change
	Action              = domain.Action
	Violation           = domain.Violation
	Result              = domain.Result
	RuleViolationError  = domain.RuleViolationError
	ErrNotFound         = domain.ErrNotFound
	ErrForbidden        = domain.ErrForbidden
	Rule                = domain.Rule
	RuleView            = domain.RuleView
	RulesEngine         = domain.RulesEngine
	Transaction         = domain.Transaction
	TransactionView     = domain.TransactionView
	PersistentStore     = domain.PersistentStore
)

const (
	EntityProject             = domain.EntityProject
	EntitySprint              = domain.EntitySprint
	EntityBacklogItem         = domain.EntityBacklogItem
	EntityTask                = domain.EntityTask
	EntityAcceptanceCriterion = domain.EntityAcceptanceCriterion
	EntityPerson              = domain.EntityPerson
	EntitySprintElement       = domain.EntitySprintElement
	EntityTeamMember          = domain.EntityTeamMember
)

const (
	StatusNotStarted = domain.StatusNotStarted
	StatusInProgress = domain.StatusInProgress
	StatusComplete   = domain.StatusComplete
)

const (
	StateNeedsClarification = domain.StateNeedsClarification
	StateNeedsCriteria      = domain.StateNeedsCriteria
	StateNeedsEstimate      = domain.StateNeedsEstimate
	StateReadyToPlan        = domain.StateReadyToPlan
)

const (
	FacetStatus      = domain.FacetStatus
	FacetState       = domain.FacetState
	FacetStoryPoints = domain.FacetStoryPoints
)

const (
	ActionClaim    = domain.ActionClaim
	ActionRenounce = domain.ActionRenounce
	ActionComplete = domain.ActionComplete
	ActionDestroy  = domain.ActionDestroy
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs a rules engine; re-exported for callers wiring
// the store without importing pkg/domain directly.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
