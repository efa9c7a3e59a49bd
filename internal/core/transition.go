package core

import (
	"fmt"

	"github.com/zenyard/zy/pkg/models"
)

// ErrArchivedSource is returned by Move when the task being moved is
// archived. Leaving the archive is an explicit restore, never a plain move.
var ErrArchivedSource = fmt.Errorf("task is archived; restore it with an explicit target status")

// Mutation is the validated state change derived from a move or reorder
// intent. Patch carries the moved task's own changes ({status, order}
// together for a column move, so the store can apply them atomically);
// Ripples carries order-only renumber assignments for the neighbours
// displaced in the affected groups.
type Mutation struct {
	TaskID  string
	Patch   models.TaskPatch
	Ripples []models.OrderAssignment
}

// IsNoop reports whether the mutation changes nothing.
func (m Mutation) IsNoop() bool {
	return m.Patch.IsEmpty() && len(m.Ripples) == 0
}

// Move computes the mutation for moving task to the end of the target
// status column. targetGroup is the current (Order, ID)-sorted contents of
// that column, excluding the task itself. Moving a task to its current
// status is a no-op. Moving out of the archived column is refused; use
// Restore. Unresolved blocked-by references never reject a move — blocking
// is advisory metadata only.
func Move(task models.Task, target models.TaskStatus, targetGroup []models.Task) (Mutation, error) {
	if !models.IsValidStatus(target) {
		return Mutation{}, &ValidationError{Problems: []FieldProblem{{
			Field:   "status",
			Message: fmt.Sprintf("%q is not one of: todo, in-progress, review, done, archived", target),
		}}}
	}
	if target == task.Status {
		return Mutation{TaskID: task.ID}, nil
	}
	if task.Status == models.StatusArchived {
		return Mutation{}, fmt.Errorf("moving task %s: %w", task.ID, ErrArchivedSource)
	}

	status := target
	order := AppendOrder(targetGroup)
	return Mutation{
		TaskID: task.ID,
		Patch:  models.TaskPatch{Status: &status, Order: &order},
	}, nil
}

// MoveAt computes the mutation for a drag-to-position move: task goes to
// the target status column at the given zero-based index. sourceGroup and
// targetGroup are the (Order, ID)-sorted contents of the two columns; for
// a same-column move both are the same group and the index placement
// delegates to Reorder. A cross-column move renumbers the source group
// (gap closed) and the target group (task spliced in at index).
func MoveAt(task models.Task, target models.TaskStatus, index int, sourceGroup, targetGroup []models.Task) (Mutation, error) {
	if !models.IsValidStatus(target) {
		return Mutation{}, &ValidationError{Problems: []FieldProblem{{
			Field:   "status",
			Message: fmt.Sprintf("%q is not one of: todo, in-progress, review, done, archived", target),
		}}}
	}

	if target == task.Status {
		assignments, err := Reorder(sourceGroup, task.ID, index)
		if err != nil {
			return Mutation{}, fmt.Errorf("moving task %s within %s: %w", task.ID, target, err)
		}
		return splitMoved(task.ID, nil, assignments), nil
	}

	if task.Status == models.StatusArchived {
		return Mutation{}, fmt.Errorf("moving task %s: %w", task.ID, ErrArchivedSource)
	}

	status := target
	ripples := RemoveAndRenumber(sourceGroup, task.ID)
	assignments := InsertAt(targetGroup, task.ID, index)
	m := splitMoved(task.ID, &status, append(ripples, assignments...))
	return m, nil
}

// Archive computes the mutation that soft-deletes a task: a move to the
// archived column, reachable from any status. archivedGroup is the current
// contents of the archive.
func Archive(task models.Task, archivedGroup []models.Task) (Mutation, error) {
	if task.Status == models.StatusArchived {
		return Mutation{TaskID: task.ID}, nil
	}
	status := models.StatusArchived
	order := AppendOrder(archivedGroup)
	return Mutation{
		TaskID: task.ID,
		Patch:  models.TaskPatch{Status: &status, Order: &order},
	}, nil
}

// Restore computes the mutation that brings an archived task back to a
// concrete non-archived column, appended at its end. A restore without a
// target status fails with *MissingTargetStatusError: the archive is only
// reversible towards an explicitly named destination.
func Restore(task models.Task, target models.TaskStatus, targetGroup []models.Task) (Mutation, error) {
	if task.Status != models.StatusArchived {
		return Mutation{}, fmt.Errorf("restoring task %s: task is not archived (status: %s)", task.ID, task.Status)
	}
	if target == "" {
		return Mutation{}, &MissingTargetStatusError{TaskID: task.ID}
	}
	if target == models.StatusArchived || !models.IsValidStatus(target) {
		return Mutation{}, &ValidationError{Problems: []FieldProblem{{
			Field:   "status",
			Message: fmt.Sprintf("restore target %q must be one of: todo, in-progress, review, done", target),
		}}}
	}

	status := target
	order := AppendOrder(targetGroup)
	return Mutation{
		TaskID: task.ID,
		Patch:  models.TaskPatch{Status: &status, Order: &order},
	}, nil
}

// splitMoved folds the moved task's own order assignment (and optional
// status change) into Patch, leaving the neighbours' assignments in Ripples.
func splitMoved(taskID string, status *models.TaskStatus, assignments []models.OrderAssignment) Mutation {
	m := Mutation{TaskID: taskID}
	for _, a := range assignments {
		if a.ID == taskID {
			order := a.Order
			m.Patch.Order = &order
			continue
		}
		m.Ripples = append(m.Ripples, a)
	}
	if status != nil {
		m.Patch.Status = status
	}
	return m
}
