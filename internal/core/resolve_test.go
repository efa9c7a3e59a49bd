package core

import (
	"testing"

	"github.com/zenyard/zy/pkg/models"
)

func TestResolveUnresolvedReferenceRendersNotFound(t *testing.T) {
	task := models.Task{ID: "TASK-00001", BlockedBy: []string{"TASK-999"}}

	res := Resolve(task, []models.Task{task})

	if len(res.Blocking) != 1 {
		t.Fatalf("expected 1 blocking ref, got %d", len(res.Blocking))
	}
	ref := res.Blocking[0]
	if ref.Ref != "TASK-999" {
		t.Fatalf("expected raw ref preserved, got %q", ref.Ref)
	}
	if ref.Resolved() {
		t.Fatal("expected reference to be unresolved")
	}
	// Unresolved references never mark the task blocked.
	if res.Blocked() {
		t.Fatal("unresolved reference must not set the blocked badge")
	}
}

func TestResolveBlockedBadge(t *testing.T) {
	blocker := models.Task{ID: "TASK-00002", Status: models.StatusInProgress}
	task := models.Task{ID: "TASK-00001", BlockedBy: []string{"TASK-00002"}}
	all := []models.Task{task, blocker}

	res := Resolve(task, all)
	if !res.Blocked() {
		t.Fatal("expected blocked badge while blocker is in-progress")
	}

	// Done and archived blockers no longer block.
	for _, status := range []models.TaskStatus{models.StatusDone, models.StatusArchived} {
		blocker.Status = status
		res = Resolve(task, []models.Task{task, blocker})
		if res.Blocked() {
			t.Fatalf("blocker in %s must not set the blocked badge", status)
		}
	}
}

func TestResolveParentAndSubtasks(t *testing.T) {
	parent := models.Task{ID: "TASK-00001", Title: "epic"}
	sub1 := models.Task{ID: "TASK-00002", ParentTaskID: "TASK-00001", Order: 2}
	sub2 := models.Task{ID: "TASK-00003", ParentTaskID: "TASK-00001", Order: 1}
	all := []models.Task{parent, sub1, sub2}

	res := Resolve(sub1, all)
	if res.Parent == nil || res.Parent.ID != "TASK-00001" {
		t.Fatalf("expected parent TASK-00001, got %v", res.Parent)
	}

	res = Resolve(parent, all)
	if len(res.Subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(res.Subtasks))
	}
	// Subtasks come back in (Order, ID) sequence.
	if res.Subtasks[0].ID != "TASK-00003" || res.Subtasks[1].ID != "TASK-00002" {
		t.Fatalf("expected subtasks sorted by order, got %s, %s", res.Subtasks[0].ID, res.Subtasks[1].ID)
	}
}

func TestResolveDanglingParent(t *testing.T) {
	task := models.Task{ID: "TASK-00001", ParentTaskID: "TASK-00099"}

	res := Resolve(task, []models.Task{task})
	if res.Parent != nil {
		t.Fatalf("expected nil parent for dangling reference, got %v", res.Parent)
	}
}
