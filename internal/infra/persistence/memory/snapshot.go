package memory

import "scrumcore/pkg/domain"

// Snapshot is the serializable form of the full store state, used by durable
// backends that persist the state as JSON buckets.
type Snapshot struct {
	Projects []domain.Project             `json:"projects"`
	Sprints  []domain.Sprint              `json:"sprints"`
	Items    []domain.BacklogItem         `json:"backlog_items"`
	Tasks    []domain.Task                `json:"tasks"`
	Criteria []domain.AcceptanceCriterion `json:"acceptance_criteria"`
	People   []domain.Person              `json:"people"`
	Members  []domain.TeamMember          `json:"team_members"`
	Elements []domain.SprintElement       `json:"sprint_elements"`
}

// ExportState captures the current store state as a snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	for _, p := range s.state.projects {
		snap.Projects = append(snap.Projects, cloneProject(p))
	}
	for _, sp := range s.state.sprints {
		snap.Sprints = append(snap.Sprints, sp)
	}
	for _, item := range s.state.items {
		snap.Items = append(snap.Items, item)
	}
	for _, t := range s.state.tasks {
		snap.Tasks = append(snap.Tasks, cloneTask(t))
	}
	for _, c := range s.state.criteria {
		snap.Criteria = append(snap.Criteria, c)
	}
	for _, p := range s.state.people {
		snap.People = append(snap.People, p)
	}
	for _, m := range s.state.members {
		snap.Members = append(snap.Members, m)
	}
	for _, e := range s.state.elements {
		snap.Elements = append(snap.Elements, e)
	}
	return snap
}

// ImportState replaces the store state with the snapshot contents.
func (s *Store) ImportState(snap Snapshot) {
	fresh := newState()
	for _, p := range snap.Projects {
		fresh.projects[p.ID] = cloneProject(p)
	}
	for _, sp := range snap.Sprints {
		fresh.sprints[sp.ID] = sp
	}
	for _, item := range snap.Items {
		fresh.items[item.ID] = item
	}
	for _, t := range snap.Tasks {
		fresh.tasks[t.ID] = cloneTask(t)
	}
	for _, c := range snap.Criteria {
		fresh.criteria[c.ID] = c
	}
	for _, p := range snap.People {
		fresh.people[p.ID] = p
	}
	for _, m := range snap.Members {
		fresh.members[m.ID] = m
	}
	for _, e := range snap.Elements {
		fresh.elements[e.ID] = e
	}
	s.mu.Lock()
	s.state = fresh
	s.mu.Unlock()
}
