package domain

import "fmt"

// ErrNotFound is returned when a referenced record is absent.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrForbidden is returned when the acting person lacks team membership on
// the project that owns the mutated record.
type ErrForbidden struct {
	ProjectID string
	PersonID  string
}

func (e ErrForbidden) Error() string {
	return fmt.Sprintf("person %s is not a team member of project %s", e.PersonID, e.ProjectID)
}
