package domain

import (
	"regexp"
	"sort"
	"strings"
)

// DeriveStatus computes the progress facet of a backlog item from a snapshot
// of its tasks. An item is in progress as soon as any task has been claimed
// and still carries hours; it is complete only when it has tasks and every
// one of them is done; otherwise it has not been started.
func DeriveStatus(tasks []Task) Status {
	if len(tasks) == 0 {
		return StatusNotStarted
	}
	allDone := true
	for _, t := range tasks {
		if t.InProgress() {
			return StatusInProgress
		}
		if !t.Complete() {
			allDone = false
		}
	}
	if allDone {
		return StatusComplete
	}
	return StatusNotStarted
}

// DeriveState computes the readiness facet of a backlog item. Checks run in
// order: clarification first, then criteria presence, then the estimate.
func DeriveState(item BacklogItem, criteriaCount int) State {
	switch {
	case item.CannotBeEstimated:
		return StateNeedsClarification
	case criteriaCount == 0:
		return StateNeedsCriteria
	case item.StoryPoints == nil:
		return StateNeedsEstimate
	default:
		return StateReadyToPlan
	}
}

var tagPattern = regexp.MustCompile(`\[(\w+)\]`)

// Tags extracts the unique, lowercased [tag] markers embedded in a backlog
// item definition, preserving first-occurrence order.
func Tags(definition string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range tagPattern.FindAllStringSubmatch(definition, -1) {
		tag := strings.ToLower(m[1])
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// StakeholderName resolves the display stakeholder for an item: the explicit
// override when present, else the originator's name, else empty.
func StakeholderName(item BacklogItem, originator *Person) string {
	if item.Stakeholder != "" {
		return item.Stakeholder
	}
	if originator != nil {
		return originator.Name
	}
	return ""
}

// TotalStoryPoints sums the estimates of the given items. Unestimated items
// contribute nothing.
func TotalStoryPoints(items []BacklogItem) int {
	total := 0
	for _, item := range items {
		if item.StoryPoints != nil {
			total += *item.StoryPoints
		}
	}
	return total
}

// SortTasks orders tasks by position, then ID for stability.
func SortTasks(tasks []Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// SortCriteria orders acceptance criteria by position, then ID.
func SortCriteria(criteria []AcceptanceCriterion) {
	sort.Slice(criteria, func(i, j int) bool {
		if criteria[i].Position != criteria[j].Position {
			return criteria[i].Position < criteria[j].Position
		}
		return criteria[i].ID < criteria[j].ID
	})
}

// SortBacklog orders backlog items by rank position, then ID.
func SortBacklog(items []BacklogItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Position != items[j].Position {
			return items[i].Position < items[j].Position
		}
		return items[i].ID < items[j].ID
	})
}
