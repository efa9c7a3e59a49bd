// Package reconcile is the sync layer between the local task cache and the
// external store. Mutations apply to the cache optimistically and are
// confirmed or rolled back when the store responds; rollback is scoped to
// the fields a mutation touched and never reverts past a newer mutation on
// the same field. The cache is owned by the Reconciler — callers read
// snapshots and submit intents, they never write it directly.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/internal/storage"
	"github.com/zenyard/zy/pkg/models"
)

// Store is the subset of storage.TaskStore the reconciler needs.
// Defining it here keeps the package testable with in-memory fakes.
type Store interface {
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	ReorderTasks(ctx context.Context, assignments []models.OrderAssignment) error
}

// EventLogger receives sync lifecycle events. It may be nil.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Mutation is one in-flight optimistic change, keyed by (taskID, fieldSet)
// and sequenced by submission order so out-of-order store responses stay
// safe to apply.
type Mutation struct {
	ID     string
	TaskID string
	Fields models.FieldSet
	State  models.MutationState

	patch models.TaskPatch
	prev  models.TaskPatch
	seq   uint64
}

// Reconciler owns the read-through task cache and the per-mutation state
// machine Pending -> {Confirmed, RolledBack}.
type Reconciler struct {
	mu      sync.Mutex
	store   Store
	events  EventLogger
	tasks   map[string]models.Task
	muts    map[string]*Mutation
	nextSeq uint64
}

// New creates a Reconciler over the given store. events may be nil.
func New(store Store, events EventLogger) *Reconciler {
	return &Reconciler{
		store:  store,
		events: events,
		tasks:  make(map[string]models.Task),
		muts:   make(map[string]*Mutation),
	}
}

// LoadProject fills the cache from the store. Any in-flight mutation
// records are dropped; the store is the source of truth.
func (r *Reconciler) LoadProject(ctx context.Context, projectID string) error {
	tasks, err := r.store.ListTasks(ctx, projectID)
	if err != nil {
		return fmt.Errorf("loading project %s: %w", projectID, err)
	}
	r.Seed(tasks)
	return nil
}

// Seed replaces the cache contents with the given tasks.
func (r *Reconciler) Seed(tasks []models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	r.muts = make(map[string]*Mutation)
}

// Snapshot returns a copy of all cached tasks sorted by (Status, Order, ID).
func (r *Reconciler) Snapshot() []models.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := make([]models.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Status != tasks[j].Status {
			return tasks[i].Status < tasks[j].Status
		}
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// Task returns the cached task with the given ID.
func (r *Reconciler) Task(id string) (models.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	return t, ok
}

// MutationState returns the state of a staged mutation.
func (r *Reconciler) MutationState(id string) (models.MutationState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.muts[id]
	if !ok {
		return "", false
	}
	return m.State, true
}

// Stage validates the patch, snapshots the pre-mutation values of the
// touched fields, applies the patch to the cache optimistically, and
// records a pending mutation. The returned ID is used to Commit, Retry, or
// Abandon the mutation.
func (r *Reconciler) Stage(taskID string, patch models.TaskPatch) (string, error) {
	if err := core.ValidatePatch(patch); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[taskID]
	if !ok {
		return "", fmt.Errorf("staging mutation: %w", storage.ErrNotFound)
	}

	fields := patch.Fields()
	r.nextSeq++
	m := &Mutation{
		ID:     uuid.NewString(),
		TaskID: taskID,
		Fields: fields,
		State:  models.MutationPending,
		patch:  patch,
		prev:   models.Extract(task, fields),
		seq:    r.nextSeq,
	}
	r.muts[m.ID] = m

	patch.ApplyTo(&task)
	r.tasks[taskID] = task

	return m.ID, nil
}

// Commit issues a pending mutation to the store. On success the mutation
// is confirmed and the server's version of the task overwrites the cache
// (with newer pending patches re-applied on top). A store rejection rolls
// the mutation back field-by-field and returns a *ConflictError. A network
// failure leaves the mutation pending for Retry or Abandon.
func (r *Reconciler) Commit(ctx context.Context, mutationID string) error {
	r.mu.Lock()
	m, ok := r.muts[mutationID]
	if !ok || m.State != models.MutationPending {
		r.mu.Unlock()
		return fmt.Errorf("committing mutation %s: not pending", mutationID)
	}
	taskID, patch := m.TaskID, m.patch
	r.mu.Unlock()

	serverTask, err := r.store.UpdateTask(ctx, taskID, patch)
	if err != nil {
		return r.resolveFailure(m, err)
	}

	r.confirm(m, serverTask)
	return nil
}

// Retry re-issues a mutation that stayed pending after a network failure.
func (r *Reconciler) Retry(ctx context.Context, mutationID string) error {
	return r.Commit(ctx, mutationID)
}

// Abandon rolls back a still-pending mutation without contacting the
// store, reverting only fields no newer mutation has touched.
func (r *Reconciler) Abandon(mutationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.muts[mutationID]
	if !ok || m.State != models.MutationPending {
		return fmt.Errorf("abandoning mutation %s: not pending", mutationID)
	}
	r.rollbackLocked(m)
	return nil
}

// ApplyMove stages and commits a full move mutation: the moved task's
// {status, order} patch plus the order-only ripples for displaced
// neighbours, all optimistic up front. Ripples go to the store as one
// atomic renumber.
func (r *Reconciler) ApplyMove(ctx context.Context, mv core.Mutation) error {
	if mv.IsNoop() {
		return nil
	}

	movedID, err := r.Stage(mv.TaskID, mv.Patch)
	if err != nil {
		return err
	}

	rippleIDs := make([]string, 0, len(mv.Ripples))
	for _, a := range mv.Ripples {
		order := a.Order
		id, err := r.Stage(a.ID, models.TaskPatch{Order: &order})
		if err != nil {
			// A ripple target missing from the cache means our view is
			// stale; abandon what was staged and report the conflict.
			_ = r.Abandon(movedID)
			for _, rid := range rippleIDs {
				_ = r.Abandon(rid)
			}
			return &ConflictError{TaskID: a.ID, Err: err}
		}
		rippleIDs = append(rippleIDs, id)
	}

	if err := r.Commit(ctx, movedID); err != nil {
		// The moved task failed: a conflict has already rolled its fields
		// back, so retract the staged ripples too. After a network error
		// everything stays pending for a retry.
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			for _, rid := range rippleIDs {
				_ = r.Abandon(rid)
			}
		}
		return err
	}

	if len(mv.Ripples) > 0 {
		if err := r.store.ReorderTasks(ctx, mv.Ripples); err != nil {
			for _, rid := range rippleIDs {
				r.mu.Lock()
				m := r.muts[rid]
				r.mu.Unlock()
				if resolveErr := r.resolveFailure(m, err); resolveErr != nil {
					err = resolveErr
				}
			}
			return err
		}
		for _, rid := range rippleIDs {
			r.mu.Lock()
			m := r.muts[rid]
			r.mu.Unlock()
			r.confirm(m, nil)
		}
	}

	return nil
}

// resolveFailure classifies a store error: rejections roll the mutation
// back and surface a ConflictError, transient failures keep it pending.
func (r *Reconciler) resolveFailure(m *Mutation, err error) error {
	var netErr *storage.NetworkError
	if errors.As(err, &netErr) {
		// Optimistic state remains until confirmed, retried, or abandoned.
		return err
	}

	r.mu.Lock()
	r.rollbackLocked(m)
	r.mu.Unlock()

	r.logEvent("sync.rolled_back", map[string]any{
		"task_id": m.TaskID,
		"fields":  m.Fields.Key(),
		"reason":  err.Error(),
	})
	return &ConflictError{TaskID: m.TaskID, Err: err}
}

// confirm marks the mutation confirmed. When the store returned its own
// version of the task it overwrites the cache, and the patches of any
// newer still-pending mutations on that task are re-applied on top so the
// server never clobbers a later optimistic value.
func (r *Reconciler) confirm(m *Mutation, serverTask *models.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m.State = models.MutationConfirmed

	if serverTask != nil {
		task := *serverTask
		for _, newer := range r.mutationsForTaskLocked(m.TaskID, m.seq) {
			if newer.State == models.MutationPending {
				newer.patch.ApplyTo(&task)
			}
		}
		r.tasks[m.TaskID] = task
	}
}

// rollbackLocked reverts the mutation's fields to their pre-mutation
// values, skipping any field a newer pending or confirmed mutation on the
// same task has touched. Rollback is field-scoped, never a whole-object
// snapshot revert.
func (r *Reconciler) rollbackLocked(m *Mutation) {
	m.State = models.MutationRolledBack

	superseded := models.NewFieldSet()
	for _, newer := range r.mutationsForTaskLocked(m.TaskID, m.seq) {
		if newer.State == models.MutationRolledBack {
			continue
		}
		for f := range newer.Fields {
			superseded[f] = struct{}{}
		}
	}

	task, ok := r.tasks[m.TaskID]
	if !ok {
		return
	}
	revert := models.NewFieldSet()
	for f := range m.Fields {
		if !superseded.Has(f) {
			revert[f] = struct{}{}
		}
	}
	// prev holds pre-mutation values for all of m.Fields; narrow the revert
	// to the fields nothing newer has claimed.
	prevTask := task
	m.prev.ApplyTo(&prevTask)
	models.Extract(prevTask, revert).ApplyTo(&task)
	r.tasks[m.TaskID] = task
}

// mutationsForTaskLocked returns mutations on taskID newer than afterSeq,
// ordered by sequence.
func (r *Reconciler) mutationsForTaskLocked(taskID string, afterSeq uint64) []*Mutation {
	var result []*Mutation
	for _, m := range r.muts {
		if m.TaskID == taskID && m.seq > afterSeq {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

func (r *Reconciler) logEvent(eventType string, data map[string]any) {
	if r.events != nil {
		_ = r.events.LogEvent(eventType, data)
	}
}
