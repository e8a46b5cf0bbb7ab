package memory

import "scrumcore/pkg/domain"

// Direct read accessors mirroring the PersistentStore contract. Each takes a
// fresh snapshot under the read lock.

// GetProject retrieves a project by ID.
func (s *Store) GetProject(id string) (domain.Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindProject(id)
}

// GetSprint retrieves a sprint by ID.
func (s *Store) GetSprint(id string) (domain.Sprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindSprint(id)
}

// GetBacklogItem retrieves a backlog item by ID.
func (s *Store) GetBacklogItem(id string) (domain.BacklogItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindBacklogItem(id)
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(id string) (domain.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindTask(id)
}

// GetPerson retrieves a person by ID.
func (s *Store) GetPerson(id string) (domain.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.FindPerson(id)
}

// ListProjects returns all projects.
func (s *Store) ListProjects() []domain.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListProjects()
}

// ListSprints returns all sprints.
func (s *Store) ListSprints() []domain.Sprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListSprints()
}

// ListBacklogItems returns all backlog items.
func (s *Store) ListBacklogItems() []domain.BacklogItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListBacklogItems()
}

// ListTasks returns all tasks.
func (s *Store) ListTasks() []domain.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListTasks()
}

// ListAcceptanceCriteria returns all acceptance criteria.
func (s *Store) ListAcceptanceCriteria() []domain.AcceptanceCriterion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListAcceptanceCriteria()
}

// ListPeople returns all people.
func (s *Store) ListPeople() []domain.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListPeople()
}

// ListTeamMembers returns all project memberships.
func (s *Store) ListTeamMembers() []domain.TeamMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListTeamMembers()
}

// ListSprintElements returns all sprint membership joins.
func (s *Store) ListSprintElements() []domain.SprintElement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListSprintElements()
}
