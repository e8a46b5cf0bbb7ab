// Package memory provides the in-memory transactional store for the scrum
// domain. Mutations run against a copy-on-write snapshot that is committed
// under the store lock, so concurrent assignment mutations on one task
// serialize instead of racing.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"scrumcore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

type state struct {
	projects map[string]domain.Project
	sprints  map[string]domain.Sprint
	items    map[string]domain.BacklogItem
	tasks    map[string]domain.Task
	criteria map[string]domain.AcceptanceCriterion
	people   map[string]domain.Person
	members  map[string]domain.TeamMember
	elements map[string]domain.SprintElement
}

func newState() state {
	return state{
		projects: make(map[string]domain.Project),
		sprints:  make(map[string]domain.Sprint),
		items:    make(map[string]domain.BacklogItem),
		tasks:    make(map[string]domain.Task),
		criteria: make(map[string]domain.AcceptanceCriterion),
		people:   make(map[string]domain.Person),
		members:  make(map[string]domain.TeamMember),
		elements: make(map[string]domain.SprintElement),
	}
}

func (s state) clone() state {
	cloned := newState()
	for k, v := range s.projects {
		cloned.projects[k] = cloneProject(v)
	}
	for k, v := range s.sprints {
		cloned.sprints[k] = v
	}
	for k, v := range s.items {
		cloned.items[k] = v
	}
	for k, v := range s.tasks {
		cloned.tasks[k] = cloneTask(v)
	}
	for k, v := range s.criteria {
		cloned.criteria[k] = v
	}
	for k, v := range s.people {
		cloned.people[k] = v
	}
	for k, v := range s.members {
		cloned.members[k] = v
	}
	for k, v := range s.elements {
		cloned.elements[k] = v
	}
	return cloned
}

func cloneProject(p domain.Project) domain.Project {
	cp := p
	if p.ChatIntegration != nil {
		integration := *p.ChatIntegration
		cp.ChatIntegration = &integration
	}
	return cp
}

func cloneTask(t domain.Task) domain.Task {
	cp := t
	cp.AssigneeIDs = append([]string(nil), t.AssigneeIDs...)
	return cp
}

// Store provides an in-memory transactional store for the scrum domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the commit timestamp source. Intended for tests.
func (s *Store) SetClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	state   state
	changes []domain.Change
	now     time.Time
}

// Changes returns the mutation journal accumulated so far.
func (tx *Transaction) Changes() []domain.Change { return tx.changes }

// Snapshot exposes a read-only view of the transactional state.
func (tx *Transaction) Snapshot() domain.TransactionView {
	return view{state: &tx.state}
}

// RunInTransaction executes fn within a transactional copy of the store
// state. Registered rules evaluate against the resulting snapshot; blocking
// violations abort the commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Transaction{state: s.state.clone(), now: s.nowFn()}
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(view{state: &snapshot})
}

func (tx *Transaction) record(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// CreateProject stores a new project.
func (tx *Transaction) CreateProject(p domain.Project) (domain.Project, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if _, exists := tx.state.projects[p.ID]; exists {
		return domain.Project{}, fmt.Errorf("project %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.projects[p.ID] = cloneProject(p)
	tx.record(domain.Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	return cloneProject(p), nil
}

// UpdateProject mutates a project using the provided mutator.
func (tx *Transaction) UpdateProject(id string, mutator func(*domain.Project) error) (domain.Project, error) {
	current, ok := tx.state.projects[id]
	if !ok {
		return domain.Project{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	before := cloneProject(current)
	if err := mutator(&current); err != nil {
		return domain.Project{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.projects[id] = cloneProject(current)
	tx.record(domain.Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project, cascading to its sprints, backlog items,
// team members, and everything those own.
func (tx *Transaction) DeleteProject(id string) error {
	current, ok := tx.state.projects[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityProject, ID: id}
	}
	for itemID, item := range tx.state.items {
		if item.ProjectID == id {
			if err := tx.DeleteBacklogItem(itemID); err != nil {
				return err
			}
		}
	}
	for sprintID, sprint := range tx.state.sprints {
		if sprint.ProjectID == id {
			if err := tx.DeleteSprint(sprintID); err != nil {
				return err
			}
		}
	}
	for memberID, member := range tx.state.members {
		if member.ProjectID == id {
			delete(tx.state.members, memberID)
		}
	}
	delete(tx.state.projects, id)
	tx.record(domain.Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

// CreateSprint stores a new sprint. The owning project must exist.
func (tx *Transaction) CreateSprint(sp domain.Sprint) (domain.Sprint, error) {
	if _, ok := tx.state.projects[sp.ProjectID]; !ok {
		return domain.Sprint{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: sp.ProjectID}
	}
	if sp.ID == "" {
		sp.ID = newID()
	}
	if _, exists := tx.state.sprints[sp.ID]; exists {
		return domain.Sprint{}, fmt.Errorf("sprint %q already exists", sp.ID)
	}
	sp.CreatedAt = tx.now
	sp.UpdatedAt = tx.now
	tx.state.sprints[sp.ID] = sp
	tx.record(domain.Change{Entity: domain.EntitySprint, Action: domain.ActionCreate, After: sp})
	return sp, nil
}

// UpdateSprint mutates a sprint.
func (tx *Transaction) UpdateSprint(id string, mutator func(*domain.Sprint) error) (domain.Sprint, error) {
	current, ok := tx.state.sprints[id]
	if !ok {
		return domain.Sprint{}, domain.ErrNotFound{Entity: domain.EntitySprint, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.Sprint{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.sprints[id] = current
	tx.record(domain.Change{Entity: domain.EntitySprint, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteSprint removes a sprint, its membership joins, and clears the current
// sprint reference on items planned into it.
func (tx *Transaction) DeleteSprint(id string) error {
	current, ok := tx.state.sprints[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntitySprint, ID: id}
	}
	for elementID, element := range tx.state.elements {
		if element.SprintID == id {
			delete(tx.state.elements, elementID)
		}
	}
	for itemID, item := range tx.state.items {
		if item.SprintID != nil && *item.SprintID == id {
			item.SprintID = nil
			item.UpdatedAt = tx.now
			tx.state.items[itemID] = item
		}
	}
	delete(tx.state.sprints, id)
	tx.record(domain.Change{Entity: domain.EntitySprint, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateBacklogItem stores a new backlog item.
func (tx *Transaction) CreateBacklogItem(item domain.BacklogItem) (domain.BacklogItem, error) {
	if item.SprintID != nil {
		if _, ok := tx.state.sprints[*item.SprintID]; !ok {
			return domain.BacklogItem{}, domain.ErrNotFound{Entity: domain.EntitySprint, ID: *item.SprintID}
		}
	}
	if item.ID == "" {
		item.ID = newID()
	}
	if _, exists := tx.state.items[item.ID]; exists {
		return domain.BacklogItem{}, fmt.Errorf("backlog item %q already exists", item.ID)
	}
	item.CreatedAt = tx.now
	item.UpdatedAt = tx.now
	tx.state.items[item.ID] = item
	tx.record(domain.Change{Entity: domain.EntityBacklogItem, Action: domain.ActionCreate, After: item})
	return item, nil
}

// UpdateBacklogItem mutates a backlog item using the provided mutator.
func (tx *Transaction) UpdateBacklogItem(id string, mutator func(*domain.BacklogItem) error) (domain.BacklogItem, error) {
	current, ok := tx.state.items[id]
	if !ok {
		return domain.BacklogItem{}, domain.ErrNotFound{Entity: domain.EntityBacklogItem, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.BacklogItem{}, err
	}
	if current.SprintID != nil {
		if _, ok := tx.state.sprints[*current.SprintID]; !ok {
			return domain.BacklogItem{}, domain.ErrNotFound{Entity: domain.EntitySprint, ID: *current.SprintID}
		}
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.items[id] = current
	tx.record(domain.Change{Entity: domain.EntityBacklogItem, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteBacklogItem removes an item, cascading to its tasks, acceptance
// criteria, and sprint membership joins.
func (tx *Transaction) DeleteBacklogItem(id string) error {
	current, ok := tx.state.items[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityBacklogItem, ID: id}
	}
	for taskID, task := range tx.state.tasks {
		if task.BacklogItemID == id {
			delete(tx.state.tasks, taskID)
		}
	}
	for criterionID, criterion := range tx.state.criteria {
		if criterion.BacklogItemID == id {
			delete(tx.state.criteria, criterionID)
		}
	}
	for elementID, element := range tx.state.elements {
		if element.BacklogItemID == id {
			delete(tx.state.elements, elementID)
		}
	}
	delete(tx.state.items, id)
	tx.record(domain.Change{Entity: domain.EntityBacklogItem, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateTask stores a new task under an existing backlog item.
func (tx *Transaction) CreateTask(t domain.Task) (domain.Task, error) {
	if _, ok := tx.state.items[t.BacklogItemID]; !ok {
		return domain.Task{}, domain.ErrNotFound{Entity: domain.EntityBacklogItem, ID: t.BacklogItemID}
	}
	if t.ID == "" {
		t.ID = newID()
	}
	if _, exists := tx.state.tasks[t.ID]; exists {
		return domain.Task{}, fmt.Errorf("task %q already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.tasks[t.ID] = cloneTask(t)
	tx.record(domain.Change{Entity: domain.EntityTask, Action: domain.ActionCreate, After: cloneTask(t)})
	return cloneTask(t), nil
}

// UpdateTask mutates a task using the provided mutator.
func (tx *Transaction) UpdateTask(id string, mutator func(*domain.Task) error) (domain.Task, error) {
	current, ok := tx.state.tasks[id]
	if !ok {
		return domain.Task{}, domain.ErrNotFound{Entity: domain.EntityTask, ID: id}
	}
	before := cloneTask(current)
	working := cloneTask(current)
	if err := mutator(&working); err != nil {
		return domain.Task{}, err
	}
	working.ID = id
	working.UpdatedAt = tx.now
	tx.state.tasks[id] = cloneTask(working)
	tx.record(domain.Change{Entity: domain.EntityTask, Action: domain.ActionUpdate, Before: before, After: cloneTask(working)})
	return cloneTask(working), nil
}

// DeleteTask removes a task from its parent's collection.
func (tx *Transaction) DeleteTask(id string) error {
	current, ok := tx.state.tasks[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityTask, ID: id}
	}
	delete(tx.state.tasks, id)
	tx.record(domain.Change{Entity: domain.EntityTask, Action: domain.ActionDelete, Before: cloneTask(current)})
	return nil
}

// CreateAcceptanceCriterion stores a new criterion under an existing item.
func (tx *Transaction) CreateAcceptanceCriterion(c domain.AcceptanceCriterion) (domain.AcceptanceCriterion, error) {
	if _, ok := tx.state.items[c.BacklogItemID]; !ok {
		return domain.AcceptanceCriterion{}, domain.ErrNotFound{Entity: domain.EntityBacklogItem, ID: c.BacklogItemID}
	}
	if c.ID == "" {
		c.ID = newID()
	}
	if _, exists := tx.state.criteria[c.ID]; exists {
		return domain.AcceptanceCriterion{}, fmt.Errorf("acceptance criterion %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.criteria[c.ID] = c
	tx.record(domain.Change{Entity: domain.EntityAcceptanceCriterion, Action: domain.ActionCreate, After: c})
	return c, nil
}

// UpdateAcceptanceCriterion mutates a criterion.
func (tx *Transaction) UpdateAcceptanceCriterion(id string, mutator func(*domain.AcceptanceCriterion) error) (domain.AcceptanceCriterion, error) {
	current, ok := tx.state.criteria[id]
	if !ok {
		return domain.AcceptanceCriterion{}, domain.ErrNotFound{Entity: domain.EntityAcceptanceCriterion, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return domain.AcceptanceCriterion{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.criteria[id] = current
	tx.record(domain.Change{Entity: domain.EntityAcceptanceCriterion, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteAcceptanceCriterion removes a criterion.
func (tx *Transaction) DeleteAcceptanceCriterion(id string) error {
	current, ok := tx.state.criteria[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityAcceptanceCriterion, ID: id}
	}
	delete(tx.state.criteria, id)
	tx.record(domain.Change{Entity: domain.EntityAcceptanceCriterion, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreatePerson stores a new person.
func (tx *Transaction) CreatePerson(p domain.Person) (domain.Person, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if _, exists := tx.state.people[p.ID]; exists {
		return domain.Person{}, fmt.Errorf("person %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.people[p.ID] = p
	tx.record(domain.Change{Entity: domain.EntityPerson, Action: domain.ActionCreate, After: p})
	return p, nil
}

// CreateTeamMember associates a person with a project.
func (tx *Transaction) CreateTeamMember(m domain.TeamMember) (domain.TeamMember, error) {
	if _, ok := tx.state.projects[m.ProjectID]; !ok {
		return domain.TeamMember{}, domain.ErrNotFound{Entity: domain.EntityProject, ID: m.ProjectID}
	}
	if _, ok := tx.state.people[m.PersonID]; !ok {
		return domain.TeamMember{}, domain.ErrNotFound{Entity: domain.EntityPerson, ID: m.PersonID}
	}
	if m.ID == "" {
		m.ID = newID()
	}
	if _, exists := tx.state.members[m.ID]; exists {
		return domain.TeamMember{}, fmt.Errorf("team member %q already exists", m.ID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.members[m.ID] = m
	tx.record(domain.Change{Entity: domain.EntityTeamMember, Action: domain.ActionCreate, After: m})
	return m, nil
}

// DeleteTeamMember removes a project membership.
func (tx *Transaction) DeleteTeamMember(id string) error {
	current, ok := tx.state.members[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityTeamMember, ID: id}
	}
	delete(tx.state.members, id)
	tx.record(domain.Change{Entity: domain.EntityTeamMember, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateSprintElement joins a backlog item to a sprint.
func (tx *Transaction) CreateSprintElement(e domain.SprintElement) (domain.SprintElement, error) {
	if _, ok := tx.state.sprints[e.SprintID]; !ok {
		return domain.SprintElement{}, domain.ErrNotFound{Entity: domain.EntitySprint, ID: e.SprintID}
	}
	if _, ok := tx.state.items[e.BacklogItemID]; !ok {
		return domain.SprintElement{}, domain.ErrNotFound{Entity: domain.EntityBacklogItem, ID: e.BacklogItemID}
	}
	if e.ID == "" {
		e.ID = newID()
	}
	if _, exists := tx.state.elements[e.ID]; exists {
		return domain.SprintElement{}, fmt.Errorf("sprint element %q already exists", e.ID)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.elements[e.ID] = e
	tx.record(domain.Change{Entity: domain.EntitySprintElement, Action: domain.ActionCreate, After: e})
	return e, nil
}

// DeleteSprintElement removes a sprint membership join.
func (tx *Transaction) DeleteSprintElement(id string) error {
	current, ok := tx.state.elements[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntitySprintElement, ID: id}
	}
	delete(tx.state.elements, id)
	tx.record(domain.Change{Entity: domain.EntitySprintElement, Action: domain.ActionDelete, Before: current})
	return nil
}

// FindProject retrieves a project within the transaction.
func (tx *Transaction) FindProject(id string) (domain.Project, bool) {
	p, ok := tx.state.projects[id]
	if !ok {
		return domain.Project{}, false
	}
	return cloneProject(p), true
}

// FindSprint retrieves a sprint within the transaction.
func (tx *Transaction) FindSprint(id string) (domain.Sprint, bool) {
	sp, ok := tx.state.sprints[id]
	return sp, ok
}

// FindBacklogItem retrieves a backlog item within the transaction.
func (tx *Transaction) FindBacklogItem(id string) (domain.BacklogItem, bool) {
	item, ok := tx.state.items[id]
	return item, ok
}

// FindTask retrieves a task within the transaction.
func (tx *Transaction) FindTask(id string) (domain.Task, bool) {
	t, ok := tx.state.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return cloneTask(t), true
}

// FindPerson retrieves a person within the transaction.
func (tx *Transaction) FindPerson(id string) (domain.Person, bool) {
	p, ok := tx.state.people[id]
	return p, ok
}
