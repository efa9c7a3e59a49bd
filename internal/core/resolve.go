package core

import "github.com/zenyard/zy/pkg/models"

// BlockingRef is one resolved blocked-by entry. Task is nil when the raw
// reference matches no known task; such entries render as "not found"
// rather than being dropped or raising an error.
type BlockingRef struct {
	Ref  string
	Task *models.Task
}

// Resolved reports whether the reference matched a known task.
func (r BlockingRef) Resolved() bool {
	return r.Task != nil
}

// Resolution is the display-oriented view of a task's relationships.
type Resolution struct {
	Blocking []BlockingRef
	Parent   *models.Task
	Subtasks []models.Task
}

// Blocked reports whether any blocking reference resolves to a task that
// is not yet done or archived. This only drives the "blocked" badge; it
// never gates a status move.
func (r Resolution) Blocked() bool {
	for _, ref := range r.Blocking {
		if ref.Task == nil {
			continue
		}
		if ref.Task.Status != models.StatusDone && ref.Task.Status != models.StatusArchived {
			return true
		}
	}
	return false
}

// Resolve maps a task's blocked-by references and its parent/subtask links
// against all known tasks. It is pure and recomputed on demand; boards are
// hundreds of tasks, not millions, so there is nothing worth caching.
// The hierarchy is exactly two levels, so subtasks are never recursed into.
func Resolve(task models.Task, all []models.Task) Resolution {
	byID := make(map[string]*models.Task, len(all))
	for i := range all {
		byID[all[i].ID] = &all[i]
	}

	res := Resolution{}

	for _, ref := range task.BlockedBy {
		res.Blocking = append(res.Blocking, BlockingRef{Ref: ref, Task: byID[ref]})
	}

	if task.ParentTaskID != "" {
		res.Parent = byID[task.ParentTaskID]
	}

	for _, t := range all {
		if t.ParentTaskID == task.ID {
			res.Subtasks = append(res.Subtasks, t)
		}
	}
	SortGroup(res.Subtasks)

	return res
}
