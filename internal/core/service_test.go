package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"scrumcore/internal/broadcast"
	"scrumcore/internal/cache"
	memstore "scrumcore/internal/infra/persistence/memory"
	"scrumcore/internal/rank"
	"scrumcore/internal/search"
	"scrumcore/pkg/domain"
)

type fixture struct {
	service *Service
	store   *memstore.Store
	cache   *cache.Memory
	hub     *broadcast.Hub
	index   *search.Memory

	project Project
	person  Person
	sprint  Sprint
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.NewStore(DefaultRulesEngine())
	stateCache := cache.NewMemory()
	hub := broadcast.NewHub()
	index := search.NewMemory()
	service := NewService(store,
		WithCache(stateCache),
		WithDispatcher(broadcast.NewDispatcher(hub, nil, time.Second)),
		WithIndexer(index),
	)

	ctx := context.Background()
	project, err := service.CreateProject(ctx, Project{Name: "Apollo", IterationLength: 2})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	person, err := service.CreatePerson(ctx, Person{Name: "Dana", Email: "dana@example.com"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if _, err := service.AddTeamMember(ctx, project.ID, person.ID, false); err != nil {
		t.Fatalf("add member: %v", err)
	}
	sprint, err := service.CreateSprint(ctx, Sprint{
		ProjectID: project.ID,
		StartAt:   time.Now().UTC(),
		EndAt:     time.Now().UTC().Add(14 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	return &fixture{service: service, store: store, cache: stateCache, hub: hub, index: index, project: project, person: person, sprint: sprint}
}

func (f *fixture) item(t *testing.T, mutators ...func(*BacklogItem)) BacklogItem {
	t.Helper()
	item := BacklogItem{ProjectID: f.project.ID, Definition: "login flow"}
	for _, m := range mutators {
		m(&item)
	}
	created, err := f.service.CreateBacklogItem(context.Background(), item, rank.Last())
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return created
}

func (f *fixture) task(t *testing.T, itemID string, hours float64) Task {
	t.Helper()
	task, err := f.service.CreateTask(context.Background(), Task{BacklogItemID: itemID, Definition: "build it", Hours: hours})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func recv(t *testing.T, sub *broadcast.Subscription) broadcast.Payload {
	t.Helper()
	select {
	case payload := <-sub.C():
		return payload
	case <-time.After(time.Second):
		t.Fatalf("no broadcast received")
		return broadcast.Payload{}
	}
}

func assertSilent(t *testing.T, sub *broadcast.Subscription) {
	t.Helper()
	select {
	case payload := <-sub.C():
		t.Fatalf("unexpected broadcast: %+v", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClaimTaskBroadcastsAndRecomputesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	planned, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	task := f.task(t, planned.ID, 0)
	sub := f.hub.Subscribe(f.sprint.ID)
	defer sub.Close()

	claimed, payload, err := f.service.ClaimTask(ctx, task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Hours != 1 {
		t.Fatalf("claiming an unstarted task should set one hour, got %v", claimed.Hours)
	}
	if !claimed.Assigned(f.person.ID) {
		t.Fatalf("claimer not assigned")
	}
	if payload.Action != ActionClaim || payload.ItemStatus != StatusInProgress {
		t.Fatalf("payload %+v", payload)
	}
	if want := fmt.Sprintf("Dana claimed task of #%s", item.ID); payload.Notification != want {
		t.Fatalf("notification %q want %q", payload.Notification, want)
	}
	if len(payload.TaskDevs) != 1 || payload.TaskDevs[0] != "Dana" {
		t.Fatalf("devs %v", payload.TaskDevs)
	}

	got := recv(t, sub)
	if got.TaskID != task.ID || got.Action != ActionClaim {
		t.Fatalf("broadcast %+v", got)
	}

	status, err := f.service.ItemStatus(ctx, item.ID)
	if err != nil || status != StatusInProgress {
		t.Fatalf("status after claim: %s %v", status, err)
	}
}

func TestClaimTaskIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	task := f.task(t, item.ID, 4)

	first, _, err := f.service.ClaimTask(ctx, task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	second, _, err := f.service.ClaimTask(ctx, task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("repeat claim: %v", err)
	}
	if len(second.AssigneeIDs) != 1 {
		t.Fatalf("duplicate assignee: %v", second.AssigneeIDs)
	}
	if second.Hours != first.Hours {
		t.Fatalf("repeat claim changed hours: %v -> %v", first.Hours, second.Hours)
	}
}

func TestClaimKeepsExistingHours(t *testing.T) {
	f := newFixture(t)
	item := f.item(t)
	task := f.task(t, item.ID, 6)
	claimed, _, err := f.service.ClaimTask(context.Background(), task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Hours != 6 {
		t.Fatalf("claim overwrote estimate: %v", claimed.Hours)
	}
}

func TestAssignmentRequiresMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	task := f.task(t, item.ID, 2)
	outsider, err := f.service.CreatePerson(ctx, Person{Name: "Mallory"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	_, _, err = f.service.ClaimTask(ctx, task.ID, outsider.ID)
	var forbidden ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRemoveTeamMemberRevokesAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	task := f.task(t, item.ID, 2)
	joiner, err := f.service.CreatePerson(ctx, Person{Name: "Ivy"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	membership, err := f.service.AddTeamMember(ctx, f.project.ID, joiner.ID, false)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, _, err := f.service.ClaimTask(ctx, task.ID, joiner.ID); err != nil {
		t.Fatalf("claim as member: %v", err)
	}
	if err := f.service.RemoveTeamMember(ctx, membership.ID); err != nil {
		t.Fatalf("remove member: %v", err)
	}
	_, _, err = f.service.RenounceTask(ctx, task.ID, joiner.ID)
	var forbidden ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden after removal, got %v", err)
	}
}

func TestRenounceKeepsRemainingAssignees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	task := f.task(t, item.ID, 3)
	bob, err := f.service.CreatePerson(ctx, Person{Name: "Bob"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	if _, err := f.service.AddTeamMember(ctx, f.project.ID, bob.ID, false); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, _, err := f.service.ClaimTask(ctx, task.ID, f.person.ID); err != nil {
		t.Fatalf("claim as %s: %v", f.person.Name, err)
	}
	if _, _, err := f.service.ClaimTask(ctx, task.ID, bob.ID); err != nil {
		t.Fatalf("claim as Bob: %v", err)
	}
	renounced, payload, err := f.service.RenounceTask(ctx, task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("renounce: %v", err)
	}
	if len(renounced.AssigneeIDs) != 1 || renounced.AssigneeIDs[0] != bob.ID {
		t.Fatalf("assignees after renounce: %v", renounced.AssigneeIDs)
	}
	if renounced.Hours != 3 {
		t.Fatalf("hours changed on renounce: %v", renounced.Hours)
	}
	if len(payload.TaskDevs) != 1 || payload.TaskDevs[0] != "Bob" {
		t.Fatalf("task devs: %v", payload.TaskDevs)
	}
}

func TestRenounceLastAssigneeReportsNobody(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	planned, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	task := f.task(t, planned.ID, 0)
	if _, _, err := f.service.ClaimTask(ctx, task.ID, f.person.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	renounced, payload, err := f.service.RenounceTask(ctx, task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("renounce: %v", err)
	}
	if len(renounced.AssigneeIDs) != 0 {
		t.Fatalf("assignees %v", renounced.AssigneeIDs)
	}
	if renounced.Hours != 1 {
		t.Fatalf("renounce touched hours: %v", renounced.Hours)
	}
	if len(payload.TaskDevs) != 1 || payload.TaskDevs[0] != broadcast.NobodyAssigned {
		t.Fatalf("devs %v", payload.TaskDevs)
	}
	if payload.ItemStatus != StatusNotStarted {
		t.Fatalf("status %s", payload.ItemStatus)
	}
}

func TestCompleteTaskZeroesHoursAndCompletesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	task := f.task(t, item.ID, 3)
	if _, _, err := f.service.ClaimTask(ctx, task.ID, f.person.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	completed, payload, err := f.service.CompleteTask(ctx, task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Hours != 0 {
		t.Fatalf("hours %v", completed.Hours)
	}
	if !completed.Assigned(f.person.ID) {
		t.Fatalf("completion dropped attribution")
	}
	if payload.ItemStatus != StatusComplete {
		t.Fatalf("payload status %s", payload.ItemStatus)
	}
	status, err := f.service.ItemStatus(ctx, item.ID)
	if err != nil || status != StatusComplete {
		t.Fatalf("item status %s %v", status, err)
	}
}

func TestDestroyTaskForbiddenForOutsider(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	task := f.task(t, item.ID, 2)
	outsider, err := f.service.CreatePerson(ctx, Person{Name: "Mallory"})
	if err != nil {
		t.Fatalf("create person: %v", err)
	}
	_, err = f.service.DestroyTask(ctx, task.ID, outsider.ID)
	var forbidden ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, ok := f.store.GetTask(task.ID); !ok {
		t.Fatalf("task deleted despite forbidden")
	}
}

func TestDestroyTaskReturnsPayloadWithoutBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	planned, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	task := f.task(t, planned.ID, 2)
	sub := f.hub.Subscribe(f.sprint.ID)
	defer sub.Close()

	payload, err := f.service.DestroyTask(ctx, task.ID, f.person.ID)
	if err != nil {
		t.Fatalf("destroy: %v", err)
	}
	if payload.Action != ActionDestroy || payload.TaskID != task.ID {
		t.Fatalf("payload %+v", payload)
	}
	if _, ok := f.store.GetTask(task.ID); ok {
		t.Fatalf("task still present")
	}
	assertSilent(t, sub)
}

func TestItemStatusServedFromCacheUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	f.task(t, item.ID, 2)

	status, err := f.service.ItemStatus(ctx, item.ID)
	if err != nil || status != StatusNotStarted {
		t.Fatalf("status %s %v", status, err)
	}
	// Poison the cache to prove subsequent reads don't recompute.
	_ = f.cache.Put(ctx, item.ID, FacetStatus, string(StatusComplete), cache.DefaultTTL)
	status, _ = f.service.ItemStatus(ctx, item.ID)
	if status != StatusComplete {
		t.Fatalf("expected cached value, got %s", status)
	}
	// Any task mutation invalidates and the next read recomputes.
	if _, err := f.service.UpdateTask(ctx, mustFirstTask(t, f, item.ID), func(task *Task) error {
		task.Hours = 5
		return nil
	}); err != nil {
		t.Fatalf("update task: %v", err)
	}
	status, _ = f.service.ItemStatus(ctx, item.ID)
	if status != StatusNotStarted {
		t.Fatalf("stale status after invalidation: %s", status)
	}
}

func mustFirstTask(t *testing.T, f *fixture, itemID string) string {
	t.Helper()
	for _, task := range f.store.ListTasks() {
		if task.BacklogItemID == itemID {
			return task.ID
		}
	}
	t.Fatalf("no task for item %s", itemID)
	return ""
}

func TestItemStateCascade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)

	state, err := f.service.ItemState(ctx, item.ID)
	if err != nil || state != StateNeedsCriteria {
		t.Fatalf("state %s %v", state, err)
	}
	criterion, err := f.service.CreateAcceptanceCriterion(ctx, AcceptanceCriterion{BacklogItemID: item.ID, Detail: "works"})
	if err != nil {
		t.Fatalf("create criterion: %v", err)
	}
	state, _ = f.service.ItemState(ctx, item.ID)
	if state != StateNeedsEstimate {
		t.Fatalf("state after criterion: %s", state)
	}
	points := 5
	if _, err := f.service.UpdateBacklogItem(ctx, item.ID, func(it *BacklogItem) error {
		it.StoryPoints = &points
		return nil
	}); err != nil {
		t.Fatalf("estimate: %v", err)
	}
	state, _ = f.service.ItemState(ctx, item.ID)
	if state != StateReadyToPlan {
		t.Fatalf("state after estimate: %s", state)
	}
	if err := f.service.DeleteAcceptanceCriterion(ctx, criterion.ID); err != nil {
		t.Fatalf("delete criterion: %v", err)
	}
	state, _ = f.service.ItemState(ctx, item.ID)
	if state != StateNeedsCriteria {
		t.Fatalf("state after criterion removal: %s", state)
	}
}

func TestEstimateChangeInvalidatesAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	points := 3
	if _, err := f.service.UpdateBacklogItem(ctx, item.ID, func(it *BacklogItem) error {
		it.StoryPoints = &points
		return nil
	}); err != nil {
		t.Fatalf("estimate: %v", err)
	}
	total, err := f.service.ProjectStoryPoints(ctx, f.project.ID)
	if err != nil || total != 3 {
		t.Fatalf("total %d %v", total, err)
	}
	bigger := 8
	if _, err := f.service.UpdateBacklogItem(ctx, item.ID, func(it *BacklogItem) error {
		it.StoryPoints = &bigger
		return nil
	}); err != nil {
		t.Fatalf("re-estimate: %v", err)
	}
	total, _ = f.service.ProjectStoryPoints(ctx, f.project.ID)
	if total != 8 {
		t.Fatalf("stale aggregate: %d", total)
	}
}

func TestSprintStoryPointsFollowPlanning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	points := 5
	item := f.item(t, func(it *BacklogItem) { it.StoryPoints = &points })

	total, err := f.service.SprintStoryPoints(ctx, f.sprint.ID)
	if err != nil || total != 0 {
		t.Fatalf("empty sprint total %d %v", total, err)
	}
	if _, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First()); err != nil {
		t.Fatalf("plan: %v", err)
	}
	total, _ = f.service.SprintStoryPoints(ctx, f.sprint.ID)
	if total != 5 {
		t.Fatalf("planned total %d", total)
	}
	if _, err := f.service.UnplanBacklogItem(ctx, item.ID, rank.First()); err != nil {
		t.Fatalf("unplan: %v", err)
	}
	total, _ = f.service.SprintStoryPoints(ctx, f.sprint.ID)
	if total != 0 {
		t.Fatalf("unplanned total %d", total)
	}
}

func TestCreateBacklogItemRanksAtTarget(t *testing.T) {
	f := newFixture(t)
	first := f.item(t)
	second := f.item(t)
	if first.Position >= second.Position {
		t.Fatalf("append order broken: %d >= %d", first.Position, second.Position)
	}
	head, err := f.service.CreateBacklogItem(context.Background(), BacklogItem{ProjectID: f.project.ID, Definition: "urgent"}, rank.First())
	if err != nil {
		t.Fatalf("create at head: %v", err)
	}
	if head.Position >= first.Position {
		t.Fatalf("head insert not first: %d >= %d", head.Position, first.Position)
	}
}

func TestMoveBacklogItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t)
	b := f.item(t)
	c := f.item(t)

	moved, err := f.service.MoveBacklogItem(ctx, c.ID, rank.First())
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Position >= a.Position {
		t.Fatalf("move to head failed: %d >= %d", moved.Position, a.Position)
	}
	middle, err := f.service.MoveBacklogItem(ctx, moved.ID, rank.At(2))
	if err != nil {
		t.Fatalf("move middle: %v", err)
	}
	if middle.Position <= a.Position || middle.Position >= b.Position {
		t.Fatalf("middle position %d not between %d and %d", middle.Position, a.Position, b.Position)
	}
}

func TestRankRenumberRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.item(t)
	b := f.item(t)
	// Alternating head moves halve the head position each time, exhausting
	// the gap and forcing a renumber pass.
	for i := 0; i < 24; i++ {
		id := a.ID
		if i%2 == 1 {
			id = b.ID
		}
		if _, err := f.service.MoveBacklogItem(ctx, id, rank.First()); err != nil {
			t.Fatalf("head move %d: %v", i, err)
		}
	}
	items := f.store.ListBacklogItems()
	domain.SortBacklog(items)
	seen := map[int64]bool{}
	for _, item := range items {
		if item.Position <= 0 {
			t.Fatalf("non-positive rank %d", item.Position)
		}
		if seen[item.Position] {
			t.Fatalf("duplicate rank %d", item.Position)
		}
		seen[item.Position] = true
	}
}

func TestPlanBacklogItemCreatesMembershipOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	planned, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if planned.SprintID == nil || *planned.SprintID != f.sprint.ID {
		t.Fatalf("sprint reference %+v", planned.SprintID)
	}
	if planned.Partition() != domain.PartitionPlanned {
		t.Fatalf("partition %s", planned.Partition())
	}
	if _, err := f.service.UnplanBacklogItem(ctx, item.ID, rank.First()); err != nil {
		t.Fatalf("unplan: %v", err)
	}
	// The historic join survives unplanning and is not duplicated by re-planning.
	if got := len(f.store.ListSprintElements()); got != 1 {
		t.Fatalf("elements after unplan: %d", got)
	}
	if _, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First()); err != nil {
		t.Fatalf("replan: %v", err)
	}
	if got := len(f.store.ListSprintElements()); got != 1 {
		t.Fatalf("duplicate join after replan: %d", got)
	}
}

func TestPlanRejectsForeignSprint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.service.CreateProject(ctx, Project{Name: "Zeus"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	foreignSprint, err := f.service.CreateSprint(ctx, Sprint{ProjectID: other.ID})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	item := f.item(t)
	if _, err := f.service.PlanBacklogItem(ctx, item.ID, foreignSprint.ID, rank.First()); err == nil {
		t.Fatalf("cross-project planning allowed")
	}
}

func TestUpdateBacklogItemRejectsSprintChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t)
	_, err := f.service.UpdateBacklogItem(ctx, item.ID, func(it *BacklogItem) error {
		it.SprintID = &f.sprint.ID
		return nil
	})
	if err == nil {
		t.Fatalf("sprint change via update allowed")
	}
	got, _ := f.store.GetBacklogItem(item.ID)
	if got.SprintID != nil {
		t.Fatalf("rejected update persisted")
	}
}

func TestDeleteSprintReturnsItemsToBacklogTail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	backlogItem := f.item(t)
	plannedItem := f.item(t)
	if _, err := f.service.PlanBacklogItem(ctx, plannedItem.ID, f.sprint.ID, rank.First()); err != nil {
		t.Fatalf("plan: %v", err)
	}
	if err := f.service.DeleteSprint(ctx, f.sprint.ID); err != nil {
		t.Fatalf("delete sprint: %v", err)
	}
	if _, ok := f.store.GetSprint(f.sprint.ID); ok {
		t.Fatalf("sprint survived")
	}
	displaced, _ := f.store.GetBacklogItem(plannedItem.ID)
	if displaced.SprintID != nil {
		t.Fatalf("item still planned")
	}
	remaining, _ := f.store.GetBacklogItem(backlogItem.ID)
	if displaced.Position <= remaining.Position {
		t.Fatalf("displaced item not at tail: %d <= %d", displaced.Position, remaining.Position)
	}
}

func TestCopyBacklogItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	points := 8
	item := f.item(t, func(it *BacklogItem) {
		it.Definition = "checkout"
		it.Description = "full flow"
		it.StoryPoints = &points
	})
	if _, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First()); err != nil {
		t.Fatalf("plan: %v", err)
	}
	task := f.task(t, item.ID, 4)
	if _, _, err := f.service.ClaimTask(ctx, task.ID, f.person.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.service.CreateAcceptanceCriterion(ctx, AcceptanceCriterion{BacklogItemID: item.ID, Detail: "pays"}); err != nil {
		t.Fatalf("criterion: %v", err)
	}

	copied, err := f.service.CopyBacklogItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if copied.ID == item.ID {
		t.Fatalf("copy reused id")
	}
	if copied.Definition != "checkout" || copied.StoryPoints == nil || *copied.StoryPoints != 8 {
		t.Fatalf("copy fields %+v", copied)
	}
	if copied.SprintID != nil || copied.Partition() != domain.PartitionUnplanned {
		t.Fatalf("copy should land unplanned: %+v", copied)
	}
	var copiedTasks []Task
	for _, tk := range f.store.ListTasks() {
		if tk.BacklogItemID == copied.ID {
			copiedTasks = append(copiedTasks, tk)
		}
	}
	if len(copiedTasks) != 1 {
		t.Fatalf("copied tasks %d", len(copiedTasks))
	}
	if copiedTasks[0].Hours != 4 {
		t.Fatalf("copied task hours %v", copiedTasks[0].Hours)
	}
	if len(copiedTasks[0].AssigneeIDs) != 0 {
		t.Fatalf("copied task kept assignees: %v", copiedTasks[0].AssigneeIDs)
	}
	criteria := 0
	for _, c := range f.store.ListAcceptanceCriteria() {
		if c.BacklogItemID == copied.ID {
			criteria++
		}
	}
	if criteria != 1 {
		t.Fatalf("copied criteria %d", criteria)
	}
}

func TestDeleteBacklogItemRemovesSearchDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(t, func(it *BacklogItem) { it.Definition = "[api] payment hooks" })
	if got := f.index.Search(ctx, "payment"); len(got) != 1 {
		t.Fatalf("indexed docs %v", got)
	}
	if err := f.service.DeleteBacklogItem(ctx, item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.index.Search(ctx, "payment"); got != nil {
		t.Fatalf("document survived deletion: %v", got)
	}
}

func TestValidationRulesBlockCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.service.CreateBacklogItem(ctx, BacklogItem{ProjectID: f.project.ID}, rank.Last()); err == nil {
		t.Fatalf("item without definition accepted")
	}
	points := -1
	if _, err := f.service.CreateBacklogItem(ctx, BacklogItem{ProjectID: f.project.ID, Definition: "x", StoryPoints: &points}, rank.Last()); err == nil {
		t.Fatalf("negative estimate accepted")
	}
	if _, err := f.service.CreateProject(ctx, Project{Name: "apollo"}); err == nil {
		t.Fatalf("duplicate project name accepted")
	}
}

func TestAverageVelocity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	velocity, err := f.service.AverageVelocity(ctx, f.project.ID)
	if err != nil || velocity != nil {
		t.Fatalf("velocity without history: %v %v", velocity, err)
	}

	points := 5
	item := f.item(t, func(it *BacklogItem) { it.StoryPoints = &points })
	if _, err := f.service.PlanBacklogItem(ctx, item.ID, f.sprint.ID, rank.First()); err != nil {
		t.Fatalf("plan: %v", err)
	}
	task := f.task(t, item.ID, 2)
	if _, _, err := f.service.ClaimTask(ctx, task.ID, f.person.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, _, err := f.service.CompleteTask(ctx, task.ID, f.person.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Finish the sprint.
	if _, err := f.service.UpdateSprint(ctx, f.sprint.ID, func(sp *Sprint) error {
		sp.StartAt = time.Now().UTC().Add(-21 * 24 * time.Hour)
		sp.EndAt = time.Now().UTC().Add(-7 * 24 * time.Hour)
		return nil
	}); err != nil {
		t.Fatalf("finish sprint: %v", err)
	}
	velocity, err = f.service.AverageVelocity(ctx, f.project.ID)
	if err != nil || velocity == nil {
		t.Fatalf("velocity: %v %v", velocity, err)
	}
	if *velocity != 5 {
		t.Fatalf("velocity %v", *velocity)
	}
}

func TestBacklogRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	points := 3
	item := f.item(t, func(it *BacklogItem) {
		it.Definition = "login"
		it.Stakeholder = "Support"
		it.StoryPoints = &points
	})
	if _, err := f.service.CreateAcceptanceCriterion(ctx, AcceptanceCriterion{BacklogItemID: item.ID, Detail: "ok"}); err != nil {
		t.Fatalf("criterion: %v", err)
	}
	rows, err := f.service.BacklogRows(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows %d", len(rows))
	}
	row := rows[0]
	if row.Definition != "login" || row.Stakeholder != "Support" {
		t.Fatalf("row %+v", row)
	}
	if row.Status != string(StatusNotStarted) || row.State != string(StateReadyToPlan) {
		t.Fatalf("derived columns %+v", row)
	}
	if _, err := f.service.BacklogRows(ctx, "missing"); err == nil {
		t.Fatalf("missing project accepted")
	}
}

func TestDeleteProjectDropsAggregateCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	points := 4
	f.item(t, func(it *BacklogItem) { it.StoryPoints = &points })
	if total, _ := f.service.ProjectStoryPoints(ctx, f.project.ID); total != 4 {
		t.Fatalf("total before delete")
	}
	if err := f.service.DeleteProject(ctx, f.project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if _, err := f.service.ProjectStoryPoints(ctx, f.project.ID); err == nil {
		t.Fatalf("deleted project still served")
	}
}

func TestSearchDocumentCarriesTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(t, func(it *BacklogItem) { it.Definition = "[API] [Billing] invoice totals" })
	if got := f.index.Search(ctx, "billing"); len(got) != 1 {
		t.Fatalf("tag search %v", got)
	}
}

func TestProjectNameUniquenessIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.CreateProject(ctx, Project{Name: strings.ToUpper(f.project.Name)})
	if err == nil {
		t.Fatalf("case-variant duplicate accepted")
	}
}
