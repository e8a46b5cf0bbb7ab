package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProject(Project) (Project, error)
	UpdateProject(id string, mutator func(*Project) error) (Project, error)
	DeleteProject(id string) error
	CreateSprint(Sprint) (Sprint, error)
	UpdateSprint(id string, mutator func(*Sprint) error) (Sprint, error)
	DeleteSprint(id string) error
	CreateBacklogItem(BacklogItem) (BacklogItem, error)
	UpdateBacklogItem(id string, mutator func(*BacklogItem) error) (BacklogItem, error)
	DeleteBacklogItem(id string) error
	CreateTask(Task) (Task, error)
	UpdateTask(id string, mutator func(*Task) error) (Task, error)
	DeleteTask(id string) error
	CreateAcceptanceCriterion(AcceptanceCriterion) (AcceptanceCriterion, error)
	UpdateAcceptanceCriterion(id string, mutator func(*AcceptanceCriterion) error) (AcceptanceCriterion, error)
	DeleteAcceptanceCriterion(id string) error
	CreatePerson(Person) (Person, error)
	CreateTeamMember(TeamMember) (TeamMember, error)
	DeleteTeamMember(id string) error
	CreateSprintElement(SprintElement) (SprintElement, error)
	DeleteSprintElement(id string) error
	FindProject(id string) (Project, bool)
	FindSprint(id string) (Sprint, bool)
	FindBacklogItem(id string) (BacklogItem, bool)
	FindTask(id string) (Task, bool)
	FindPerson(id string) (Person, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// facet derivation.
type TransactionView interface {
	ListProjects() []Project
	ListSprints() []Sprint
	ListBacklogItems() []BacklogItem
	ListTasks() []Task
	ListAcceptanceCriteria() []AcceptanceCriterion
	ListPeople() []Person
	ListTeamMembers() []TeamMember
	ListSprintElements() []SprintElement
	FindProject(id string) (Project, bool)
	FindSprint(id string) (Sprint, bool)
	FindBacklogItem(id string) (BacklogItem, bool)
	FindTask(id string) (Task, bool)
	FindPerson(id string) (Person, bool)
	TasksForItem(itemID string) []Task
	CriteriaForItem(itemID string) []AcceptanceCriterion
	ItemsForProject(projectID string) []BacklogItem
	ItemsForSprint(sprintID string) []BacklogItem
	IsTeamMember(projectID, personID string) bool
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProject(id string) (Project, bool)
	GetSprint(id string) (Sprint, bool)
	GetBacklogItem(id string) (BacklogItem, bool)
	GetTask(id string) (Task, bool)
	GetPerson(id string) (Person, bool)
	ListProjects() []Project
	ListSprints() []Sprint
	ListBacklogItems() []BacklogItem
	ListTasks() []Task
	ListAcceptanceCriteria() []AcceptanceCriterion
	ListPeople() []Person
	ListTeamMembers() []TeamMember
	ListSprintElements() []SprintElement
}
