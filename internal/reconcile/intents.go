package reconcile

import (
	"context"
	"fmt"

	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/internal/storage"
	"github.com/zenyard/zy/pkg/models"
)

// Dispatcher is the intent-dispatch boundary: it turns user intents (add,
// move, reorder, edit, archive, restore) into validated mutations, applies
// them through a Reconciler, and emits board events. Engine validation
// errors surface here synchronously and never reach the store or corrupt
// the cache. The active project is always passed explicitly; the engines
// never read it from ambient state.
type Dispatcher struct {
	store  storage.TaskStore
	events EventLogger
}

// NewDispatcher creates a Dispatcher over the given store. events may be nil.
func NewDispatcher(store storage.TaskStore, events EventLogger) *Dispatcher {
	return &Dispatcher{store: store, events: events}
}

// Store exposes the underlying task store for read-only calls.
func (d *Dispatcher) Store() storage.TaskStore {
	return d.store
}

// AddTask validates the draft and creates the task, which enters the todo
// column at the end.
func (d *Dispatcher) AddTask(ctx context.Context, projectID string, draft models.TaskDraft) (*models.Task, error) {
	draft.Tags = core.NormalizeStringSet(draft.Tags)
	draft.BlockedBy = core.NormalizeStringSet(draft.BlockedBy)
	if err := core.ValidateDraft(draft); err != nil {
		return nil, err
	}

	if draft.ParentTaskID != "" {
		parent, err := d.store.GetTask(ctx, draft.ParentTaskID)
		if err != nil {
			return nil, fmt.Errorf("adding task: resolving parent: %w", err)
		}
		if parent.ParentTaskID != "" {
			return nil, &core.ValidationError{Problems: []core.FieldProblem{{
				Field:   "parent_task_id",
				Message: fmt.Sprintf("task %s is itself a subtask of %s; subtasks cannot nest", parent.ID, parent.ParentTaskID),
			}}}
		}
	}

	task, err := d.store.CreateTask(ctx, projectID, draft)
	if err != nil {
		return nil, err
	}
	d.logEvent("task.created", map[string]any{"task_id": task.ID, "project": projectID})
	return task, nil
}

// EditTask applies a partial field update to a task.
func (d *Dispatcher) EditTask(ctx context.Context, projectID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	patch.Tags = normalizeIfSet(patch.Tags)
	patch.BlockedBy = normalizeIfSet(patch.BlockedBy)

	rec, task, err := d.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	if patch.ParentTaskID != nil && *patch.ParentTaskID != "" {
		candidate := task
		candidate.ParentTaskID = *patch.ParentTaskID
		if parent, ok := rec.Task(*patch.ParentTaskID); ok {
			if err := core.ValidateParent(candidate, &parent); err != nil {
				return nil, err
			}
		}
	}

	id, err := rec.Stage(taskID, patch)
	if err != nil {
		return nil, err
	}
	if err := rec.Commit(ctx, id); err != nil {
		return nil, err
	}
	d.logEvent("task.edited", map[string]any{"task_id": taskID, "fields": patch.Fields().Key()})

	updated, _ := rec.Task(taskID)
	return &updated, nil
}

// MoveTask moves a task to the target status column, appended at the end.
func (d *Dispatcher) MoveTask(ctx context.Context, projectID, taskID string, target models.TaskStatus) (*models.Task, error) {
	rec, task, err := d.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	groups := core.GroupByStatus(rec.Snapshot())
	mv, err := core.Move(task, target, groups[target])
	if err != nil {
		return nil, err
	}
	return d.applyMove(ctx, rec, task, mv, "task.moved", map[string]any{
		"task_id":     taskID,
		"from_status": string(task.Status),
		"to_status":   string(target),
	})
}

// MoveTaskAt moves a task to the target status column at the given
// zero-based index (drag-to-position). A same-column move is a reorder.
func (d *Dispatcher) MoveTaskAt(ctx context.Context, projectID, taskID string, target models.TaskStatus, index int) (*models.Task, error) {
	rec, task, err := d.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	groups := core.GroupByStatus(rec.Snapshot())
	mv, err := core.MoveAt(task, target, index, groups[task.Status], groups[target])
	if err != nil {
		return nil, err
	}

	eventType := "task.moved"
	data := map[string]any{
		"task_id":     taskID,
		"from_status": string(task.Status),
		"to_status":   string(target),
		"index":       index,
	}
	if target == task.Status {
		eventType = "task.reordered"
		data = map[string]any{"task_id": taskID, "index": index}
	}
	return d.applyMove(ctx, rec, task, mv, eventType, data)
}

// ReorderTask moves a task to a new index within its current column.
func (d *Dispatcher) ReorderTask(ctx context.Context, projectID, taskID string, index int) (*models.Task, error) {
	rec, task, err := d.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	groups := core.GroupByStatus(rec.Snapshot())
	mv, err := core.MoveAt(task, task.Status, index, groups[task.Status], groups[task.Status])
	if err != nil {
		return nil, err
	}
	return d.applyMove(ctx, rec, task, mv, "task.reordered", map[string]any{
		"task_id": taskID,
		"index":   index,
	})
}

// ArchiveTask soft-deletes a task: a move to the archived column.
func (d *Dispatcher) ArchiveTask(ctx context.Context, projectID, taskID string) (*models.Task, error) {
	rec, task, err := d.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	groups := core.GroupByStatus(rec.Snapshot())
	mv, err := core.Archive(task, groups[models.StatusArchived])
	if err != nil {
		return nil, err
	}
	return d.applyMove(ctx, rec, task, mv, "task.archived", map[string]any{
		"task_id":     taskID,
		"from_status": string(task.Status),
	})
}

// RestoreTask brings an archived task back to an explicitly named column.
// An empty target fails with *core.MissingTargetStatusError.
func (d *Dispatcher) RestoreTask(ctx context.Context, projectID, taskID string, target models.TaskStatus) (*models.Task, error) {
	rec, task, err := d.load(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}

	groups := core.GroupByStatus(rec.Snapshot())
	mv, err := core.Restore(task, target, groups[target])
	if err != nil {
		return nil, err
	}
	return d.applyMove(ctx, rec, task, mv, "task.restored", map[string]any{
		"task_id":   taskID,
		"to_status": string(target),
	})
}

// DeleteTask permanently removes an archived task.
func (d *Dispatcher) DeleteTask(ctx context.Context, taskID string) error {
	if err := d.store.DeleteTask(ctx, taskID, false); err != nil {
		return err
	}
	d.logEvent("task.deleted", map[string]any{"task_id": taskID})
	return nil
}

// load seeds a fresh reconciler with the project's tasks and returns the
// addressed task.
func (d *Dispatcher) load(ctx context.Context, projectID, taskID string) (*Reconciler, models.Task, error) {
	rec := New(d.store, d.events)
	if err := rec.LoadProject(ctx, projectID); err != nil {
		return nil, models.Task{}, err
	}
	task, ok := rec.Task(taskID)
	if !ok {
		return nil, models.Task{}, fmt.Errorf("task %s: %w", taskID, storage.ErrNotFound)
	}
	return rec, task, nil
}

func (d *Dispatcher) applyMove(ctx context.Context, rec *Reconciler, task models.Task, mv core.Mutation, eventType string, data map[string]any) (*models.Task, error) {
	if mv.IsNoop() {
		return &task, nil
	}
	if err := rec.ApplyMove(ctx, mv); err != nil {
		return nil, err
	}
	d.logEvent(eventType, data)
	updated, _ := rec.Task(task.ID)
	return &updated, nil
}

func (d *Dispatcher) logEvent(eventType string, data map[string]any) {
	if d.events != nil {
		_ = d.events.LogEvent(eventType, data)
	}
}

// normalizeIfSet normalizes a slice patch field, preserving the
// nil-means-untouched convention (an empty non-nil slice clears the set).
func normalizeIfSet(values []string) []string {
	if values == nil {
		return nil
	}
	normalized := core.NormalizeStringSet(values)
	if normalized == nil {
		return []string{}
	}
	return normalized
}
