package memory

import "scrumcore/pkg/domain"

// view adapts a state snapshot to the read-only domain contracts. It serves
// both rule evaluation and facet derivation.
type view struct {
	state *state
}

var (
	_ domain.TransactionView = view{}
	_ domain.RuleView        = view{}
)

// ListProjects returns all projects in the snapshot.
func (v view) ListProjects() []domain.Project {
	out := make([]domain.Project, 0, len(v.state.projects))
	for _, p := range v.state.projects {
		out = append(out, cloneProject(p))
	}
	return out
}

// ListSprints returns all sprints in the snapshot.
func (v view) ListSprints() []domain.Sprint {
	out := make([]domain.Sprint, 0, len(v.state.sprints))
	for _, sp := range v.state.sprints {
		out = append(out, sp)
	}
	return out
}

// ListBacklogItems returns all backlog items in the snapshot.
func (v view) ListBacklogItems() []domain.BacklogItem {
	out := make([]domain.BacklogItem, 0, len(v.state.items))
	for _, item := range v.state.items {
		out = append(out, item)
	}
	return out
}

// ListTasks returns all tasks in the snapshot.
func (v view) ListTasks() []domain.Task {
	out := make([]domain.Task, 0, len(v.state.tasks))
	for _, t := range v.state.tasks {
		out = append(out, cloneTask(t))
	}
	return out
}

// ListAcceptanceCriteria returns all criteria in the snapshot.
func (v view) ListAcceptanceCriteria() []domain.AcceptanceCriterion {
	out := make([]domain.AcceptanceCriterion, 0, len(v.state.criteria))
	for _, c := range v.state.criteria {
		out = append(out, c)
	}
	return out
}

// ListPeople returns all people in the snapshot.
func (v view) ListPeople() []domain.Person {
	out := make([]domain.Person, 0, len(v.state.people))
	for _, p := range v.state.people {
		out = append(out, p)
	}
	return out
}

// ListTeamMembers returns all project memberships in the snapshot.
func (v view) ListTeamMembers() []domain.TeamMember {
	out := make([]domain.TeamMember, 0, len(v.state.members))
	for _, m := range v.state.members {
		out = append(out, m)
	}
	return out
}

// ListSprintElements returns all sprint membership joins in the snapshot.
func (v view) ListSprintElements() []domain.SprintElement {
	out := make([]domain.SprintElement, 0, len(v.state.elements))
	for _, e := range v.state.elements {
		out = append(out, e)
	}
	return out
}

// FindProject retrieves a project by ID.
func (v view) FindProject(id string) (domain.Project, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return domain.Project{}, false
	}
	return cloneProject(p), true
}

// FindSprint retrieves a sprint by ID.
func (v view) FindSprint(id string) (domain.Sprint, bool) {
	sp, ok := v.state.sprints[id]
	return sp, ok
}

// FindBacklogItem retrieves a backlog item by ID.
func (v view) FindBacklogItem(id string) (domain.BacklogItem, bool) {
	item, ok := v.state.items[id]
	return item, ok
}

// FindTask retrieves a task by ID.
func (v view) FindTask(id string) (domain.Task, bool) {
	t, ok := v.state.tasks[id]
	if !ok {
		return domain.Task{}, false
	}
	return cloneTask(t), true
}

// FindPerson retrieves a person by ID.
func (v view) FindPerson(id string) (domain.Person, bool) {
	p, ok := v.state.people[id]
	return p, ok
}

// TasksForItem returns the item's tasks ordered by position.
func (v view) TasksForItem(itemID string) []domain.Task {
	var out []domain.Task
	for _, t := range v.state.tasks {
		if t.BacklogItemID == itemID {
			out = append(out, cloneTask(t))
		}
	}
	domain.SortTasks(out)
	return out
}

// CriteriaForItem returns the item's acceptance criteria ordered by position.
func (v view) CriteriaForItem(itemID string) []domain.AcceptanceCriterion {
	var out []domain.AcceptanceCriterion
	for _, c := range v.state.criteria {
		if c.BacklogItemID == itemID {
			out = append(out, c)
		}
	}
	domain.SortCriteria(out)
	return out
}

// ItemsForProject returns the project's backlog items ordered by rank.
func (v view) ItemsForProject(projectID string) []domain.BacklogItem {
	var out []domain.BacklogItem
	for _, item := range v.state.items {
		if item.ProjectID == projectID {
			out = append(out, item)
		}
	}
	domain.SortBacklog(out)
	return out
}

// ItemsForSprint returns the items currently planned into the sprint,
// ordered by rank.
func (v view) ItemsForSprint(sprintID string) []domain.BacklogItem {
	var out []domain.BacklogItem
	for _, item := range v.state.items {
		if item.SprintID != nil && *item.SprintID == sprintID {
			out = append(out, item)
		}
	}
	domain.SortBacklog(out)
	return out
}

// IsTeamMember reports whether the person belongs to the project's team.
func (v view) IsTeamMember(projectID, personID string) bool {
	for _, m := range v.state.members {
		if m.ProjectID == projectID && m.PersonID == personID {
			return true
		}
	}
	return false
}
