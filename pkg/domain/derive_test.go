package domain

import (
	"reflect"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestDeriveStatus(t *testing.T) {
	if got := DeriveStatus(nil); got != StatusNotStarted {
		t.Fatalf("no tasks: got %s", got)
	}
	pending := []Task{{Hours: 4}, {Hours: 2}}
	if got := DeriveStatus(pending); got != StatusNotStarted {
		t.Fatalf("unclaimed tasks: got %s", got)
	}
	claimed := []Task{{Hours: 4, AssigneeIDs: []string{"p1"}}, {Hours: 2}}
	if got := DeriveStatus(claimed); got != StatusInProgress {
		t.Fatalf("claimed task: got %s", got)
	}
	done := []Task{{Hours: 0}, {Hours: 0, AssigneeIDs: []string{"p1"}}}
	if got := DeriveStatus(done); got != StatusComplete {
		t.Fatalf("all done: got %s", got)
	}
	mixed := []Task{{Hours: 0}, {Hours: 3}}
	if got := DeriveStatus(mixed); got != StatusNotStarted {
		t.Fatalf("partially done, unclaimed: got %s", got)
	}
}

func TestDeriveStatusCompletedAssigneeStaysDone(t *testing.T) {
	// A zero-hour task keeps its assignees for attribution; that must not
	// read as active work.
	tasks := []Task{{Hours: 0, AssigneeIDs: []string{"p1", "p2"}}}
	if got := DeriveStatus(tasks); got != StatusComplete {
		t.Fatalf("got %s", got)
	}
}

func TestDeriveStateOrdering(t *testing.T) {
	cases := []struct {
		name     string
		item     BacklogItem
		criteria int
		want     State
	}{
		{"clarification wins over everything", BacklogItem{CannotBeEstimated: true, StoryPoints: intPtr(5)}, 3, StateNeedsClarification},
		{"criteria before estimate", BacklogItem{StoryPoints: intPtr(5)}, 0, StateNeedsCriteria},
		{"estimate missing", BacklogItem{}, 2, StateNeedsEstimate},
		{"ready", BacklogItem{StoryPoints: intPtr(5)}, 2, StateReadyToPlan},
		{"zero estimate is an estimate", BacklogItem{StoryPoints: intPtr(0)}, 1, StateReadyToPlan},
	}
	for _, tc := range cases {
		if got := DeriveState(tc.item, tc.criteria); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestTags(t *testing.T) {
	got := Tags("[API] do the thing [ui] twice [api]")
	want := []string{"api", "ui"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if tags := Tags("no markers here"); tags != nil {
		t.Fatalf("expected no tags, got %v", tags)
	}
}

func TestStakeholderName(t *testing.T) {
	person := &Person{Name: "Dana"}
	if got := StakeholderName(BacklogItem{Stakeholder: "Ops"}, person); got != "Ops" {
		t.Fatalf("override: got %s", got)
	}
	if got := StakeholderName(BacklogItem{}, person); got != "Dana" {
		t.Fatalf("originator fallback: got %s", got)
	}
	if got := StakeholderName(BacklogItem{}, nil); got != "" {
		t.Fatalf("empty fallback: got %q", got)
	}
}

func TestTotalStoryPoints(t *testing.T) {
	items := []BacklogItem{
		{StoryPoints: intPtr(3)},
		{},
		{StoryPoints: intPtr(5)},
	}
	if got := TotalStoryPoints(items); got != 8 {
		t.Fatalf("got %d", got)
	}
}

func TestPartition(t *testing.T) {
	sprint := "s1"
	if got := (BacklogItem{SprintID: &sprint}).Partition(); got != PartitionPlanned {
		t.Fatalf("got %s", got)
	}
	if got := (BacklogItem{}).Partition(); got != PartitionUnplanned {
		t.Fatalf("got %s", got)
	}
}

func TestSortBacklog(t *testing.T) {
	items := []BacklogItem{
		{Base: Base{ID: "b"}, Position: 200},
		{Base: Base{ID: "c"}, Position: 100},
		{Base: Base{ID: "a"}, Position: 200},
	}
	SortBacklog(items)
	if items[0].ID != "c" || items[1].ID != "a" || items[2].ID != "b" {
		t.Fatalf("unexpected order: %v %v %v", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestTaskPredicates(t *testing.T) {
	task := Task{Hours: 2, AssigneeIDs: []string{"p1"}}
	if !task.InProgress() || task.Complete() {
		t.Fatalf("claimed task with hours should be in progress")
	}
	if !task.Assigned("p1") || task.Assigned("p2") {
		t.Fatalf("assignment lookup broken")
	}
	task.Hours = 0
	if task.InProgress() || !task.Complete() {
		t.Fatalf("zero hours means done")
	}
}
