package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/internal/storage"
	"github.com/zenyard/zy/pkg/models"
)

// fakeStore is an in-memory Store whose UpdateTask behaviour is scripted
// per call.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]models.Task

	// updateErr, when set, is returned by the next UpdateTask calls.
	updateErr error
	// reorderErr, when set, is returned by ReorderTasks.
	reorderErr error

	updateCalls  []models.TaskPatch
	reorderCalls [][]models.OrderAssignment
}

func newFakeStore(tasks ...models.Task) *fakeStore {
	s := &fakeStore{tasks: make(map[string]models.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeStore) ListTasks(_ context.Context, _ string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) UpdateTask(_ context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls = append(s.updateCalls, patch)
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	patch.ApplyTo(&t)
	s.tasks[id] = t
	return &t, nil
}

func (s *fakeStore) ReorderTasks(_ context.Context, assignments []models.OrderAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reorderCalls = append(s.reorderCalls, assignments)
	if s.reorderErr != nil {
		return s.reorderErr
	}
	for _, a := range assignments {
		t, ok := s.tasks[a.ID]
		if !ok {
			return storage.ErrNotFound
		}
		t.Order = a.Order
		s.tasks[a.ID] = t
	}
	return nil
}

func strPtr(s string) *string { return &s }

func priorityPtr(p models.Priority) *models.Priority { return &p }

func seededReconciler(t *testing.T, store *fakeStore) *Reconciler {
	t.Helper()
	rec := New(store, nil)
	if err := rec.LoadProject(context.Background(), "demo"); err != nil {
		t.Fatalf("LoadProject failed: %v", err)
	}
	return rec
}

func TestStageAppliesOptimistically(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	id, err := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("new")})
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	// The cache reflects the edit before any store call.
	task, _ := rec.Task("TASK-00001")
	if task.Title != "new" {
		t.Fatalf("expected optimistic title, got %q", task.Title)
	}
	if state, _ := rec.MutationState(id); state != models.MutationPending {
		t.Fatalf("expected pending state, got %q", state)
	}
	if len(store.updateCalls) != 0 {
		t.Fatal("Stage must not contact the store")
	}
}

func TestStageRejectsInvalidPatchWithoutTouchingCache(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	_, err := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("  ")})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *core.ValidationError, got %v", err)
	}

	task, _ := rec.Task("TASK-00001")
	if task.Title != "old" {
		t.Fatalf("invalid patch corrupted the cache: %q", task.Title)
	}
}

func TestCommitConfirmsAndAdoptsServerVersion(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	id, _ := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("new")})
	if err := rec.Commit(context.Background(), id); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if state, _ := rec.MutationState(id); state != models.MutationConfirmed {
		t.Fatalf("expected confirmed state, got %q", state)
	}
	task, _ := rec.Task("TASK-00001")
	if task.Title != "new" {
		t.Fatalf("expected committed title, got %q", task.Title)
	}
}

func TestConfirmReappliesNewerPendingPatches(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	// M1 edits the title, M2 edits it again before M1 confirms.
	m1, _ := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("first")})
	_, _ = rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("second")})

	if err := rec.Commit(context.Background(), m1); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// The server echoed "first", but M2's newer optimistic value stays on top.
	task, _ := rec.Task("TASK-00001")
	if task.Title != "second" {
		t.Fatalf("server response clobbered a newer pending edit: %q", task.Title)
	}
}

func TestConflictRollsBackOnlyOwnFields(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	// M1 touches the title, M2 touches the priority. M1 is rejected.
	m1, _ := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("new")})
	m2, _ := rec.Stage("TASK-00001", models.TaskPatch{Priority: priorityPtr(models.PriorityHigh)})

	store.updateErr = storage.ErrConflict
	err := rec.Commit(context.Background(), m1)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}
	if conflict.TaskID != "TASK-00001" {
		t.Fatalf("conflict names wrong task: %q", conflict.TaskID)
	}

	task, _ := rec.Task("TASK-00001")
	if task.Title != "old" {
		t.Fatalf("expected title rolled back, got %q", task.Title)
	}
	if task.Priority != models.PriorityHigh {
		t.Fatalf("rollback clobbered M2's priority: %q", task.Priority)
	}
	if state, _ := rec.MutationState(m1); state != models.MutationRolledBack {
		t.Fatalf("expected rolled_back state, got %q", state)
	}
	if state, _ := rec.MutationState(m2); state != models.MutationPending {
		t.Fatalf("M2 must stay pending, got %q", state)
	}
}

func TestRollbackSkipsFieldsClaimedByNewerMutation(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	// M1 and M2 both touch the title. M1's rejection must not revert the
	// title under M2.
	m1, _ := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("first")})
	_, _ = rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("second")})

	store.updateErr = storage.ErrConflict
	if err := rec.Commit(context.Background(), m1); err == nil {
		t.Fatal("expected conflict error")
	}

	task, _ := rec.Task("TASK-00001")
	if task.Title != "second" {
		t.Fatalf("rollback reverted past a newer mutation: %q", task.Title)
	}
}

func TestNetworkErrorKeepsMutationPending(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	id, _ := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("new")})

	store.updateErr = &storage.NetworkError{Op: "update", Err: fmt.Errorf("connection refused")}
	err := rec.Commit(context.Background(), id)
	var netErr *storage.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *storage.NetworkError, got %v", err)
	}

	// Optimistic state survives a transport failure.
	if state, _ := rec.MutationState(id); state != models.MutationPending {
		t.Fatalf("expected pending state after network error, got %q", state)
	}
	task, _ := rec.Task("TASK-00001")
	if task.Title != "new" {
		t.Fatalf("optimistic value lost after network error: %q", task.Title)
	}

	// Retry succeeds once the store is reachable again.
	store.updateErr = nil
	if err := rec.Retry(context.Background(), id); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if state, _ := rec.MutationState(id); state != models.MutationConfirmed {
		t.Fatalf("expected confirmed after retry, got %q", state)
	}
}

func TestAbandonRevertsPendingMutation(t *testing.T) {
	store := newFakeStore(models.Task{ID: "TASK-00001", Title: "old", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	id, _ := rec.Stage("TASK-00001", models.TaskPatch{Title: strPtr("new")})
	if err := rec.Abandon(id); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}

	task, _ := rec.Task("TASK-00001")
	if task.Title != "old" {
		t.Fatalf("expected title reverted, got %q", task.Title)
	}
	if state, _ := rec.MutationState(id); state != models.MutationRolledBack {
		t.Fatalf("expected rolled_back state, got %q", state)
	}

	// A settled mutation cannot be abandoned again.
	if err := rec.Abandon(id); err == nil {
		t.Fatal("expected error abandoning a settled mutation")
	}
}

func TestApplyMoveCommitsPatchAndRipplesAtomically(t *testing.T) {
	store := newFakeStore(
		models.Task{ID: "A", Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1},
		models.Task{ID: "B", Title: "b", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 2},
		models.Task{ID: "X", Title: "x", Status: models.StatusInProgress, Priority: models.PriorityLow, Order: 1},
	)
	rec := seededReconciler(t, store)

	status := models.StatusInProgress
	order := int64(1)
	mv := core.Mutation{
		TaskID: "A",
		Patch:  models.TaskPatch{Status: &status, Order: &order},
		Ripples: []models.OrderAssignment{
			{ID: "B", Order: 1},
			{ID: "X", Order: 2},
		},
	}

	if err := rec.ApplyMove(context.Background(), mv); err != nil {
		t.Fatalf("ApplyMove failed: %v", err)
	}

	// The moved task's status and order went to the store in one patch.
	if len(store.updateCalls) != 1 {
		t.Fatalf("expected 1 UpdateTask call, got %d", len(store.updateCalls))
	}
	patch := store.updateCalls[0]
	if patch.Status == nil || patch.Order == nil {
		t.Fatalf("moved task's status and order must travel together, got %+v", patch)
	}

	// Ripples went as a single renumber.
	if len(store.reorderCalls) != 1 || len(store.reorderCalls[0]) != 2 {
		t.Fatalf("expected one ReorderTasks call with 2 assignments, got %v", store.reorderCalls)
	}

	a, _ := rec.Task("A")
	if a.Status != models.StatusInProgress || a.Order != 1 {
		t.Fatalf("moved task cache state wrong: %+v", a)
	}
	b, _ := rec.Task("B")
	if b.Order != 1 {
		t.Fatalf("ripple not applied to cache: %+v", b)
	}
}

func TestApplyMoveConflictRetractsRipples(t *testing.T) {
	store := newFakeStore(
		models.Task{ID: "A", Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1},
		models.Task{ID: "B", Title: "b", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 2},
	)
	rec := seededReconciler(t, store)

	status := models.StatusInProgress
	order := int64(1)
	mv := core.Mutation{
		TaskID:  "A",
		Patch:   models.TaskPatch{Status: &status, Order: &order},
		Ripples: []models.OrderAssignment{{ID: "B", Order: 1}},
	}

	store.updateErr = storage.ErrConflict
	err := rec.ApplyMove(context.Background(), mv)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *ConflictError, got %v", err)
	}

	// Both halves revert: A keeps todo/1 and B keeps order 2.
	a, _ := rec.Task("A")
	if a.Status != models.StatusTodo || a.Order != 1 {
		t.Fatalf("moved task not rolled back: %+v", a)
	}
	b, _ := rec.Task("B")
	if b.Order != 2 {
		t.Fatalf("ripple not rolled back: %+v", b)
	}
	if len(store.reorderCalls) != 0 {
		t.Fatal("ripples must not reach the store after the move conflicts")
	}
}

func TestApplyMoveNetworkErrorLeavesEverythingPending(t *testing.T) {
	store := newFakeStore(
		models.Task{ID: "A", Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1},
		models.Task{ID: "B", Title: "b", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 2},
	)
	rec := seededReconciler(t, store)

	status := models.StatusInProgress
	order := int64(1)
	mv := core.Mutation{
		TaskID:  "A",
		Patch:   models.TaskPatch{Status: &status, Order: &order},
		Ripples: []models.OrderAssignment{{ID: "B", Order: 1}},
	}

	store.updateErr = &storage.NetworkError{Op: "update", Err: fmt.Errorf("timeout")}
	err := rec.ApplyMove(context.Background(), mv)
	var netErr *storage.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *storage.NetworkError, got %v", err)
	}

	// Optimistic board state stays visible while the sync is retriable.
	a, _ := rec.Task("A")
	if a.Status != models.StatusInProgress {
		t.Fatalf("optimistic move lost after network error: %+v", a)
	}
	b, _ := rec.Task("B")
	if b.Order != 1 {
		t.Fatalf("optimistic ripple lost after network error: %+v", b)
	}
}

func TestApplyMoveNoopSkipsStore(t *testing.T) {
	store := newFakeStore(models.Task{ID: "A", Title: "a", Status: models.StatusTodo, Priority: models.PriorityLow, Order: 1})
	rec := seededReconciler(t, store)

	if err := rec.ApplyMove(context.Background(), core.Mutation{TaskID: "A"}); err != nil {
		t.Fatalf("ApplyMove failed: %v", err)
	}
	if len(store.updateCalls) != 0 || len(store.reorderCalls) != 0 {
		t.Fatal("no-op move must not contact the store")
	}
}
