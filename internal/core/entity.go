// Package core contains the pure board engines: task validation, status
// transitions, column ordering, dependency and hierarchy resolution, board
// grouping and filtering, and configuration. All engine functions are
// synchronous and side-effect free; the reconcile package is the only place
// that performs I/O against the task store.
package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zenyard/zy/pkg/models"
)

// NormalizeStringSet collapses a loose list of strings into a canonical set:
// trimmed, deduplicated, empties dropped, sorted ascending. Tags and
// blocked-by references are normalized with this once at the system boundary
// and carried as plain []string everywhere else.
func NormalizeStringSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ValidateTask checks a complete task record: non-empty title and
// well-formed status/priority enums. It returns a *ValidationError listing
// every problem found, or nil when the task is valid.
func ValidateTask(t models.Task) error {
	var problems []FieldProblem

	if strings.TrimSpace(t.Title) == "" {
		problems = append(problems, FieldProblem{Field: "title", Message: "must not be empty"})
	}
	if !models.IsValidStatus(t.Status) {
		problems = append(problems, FieldProblem{
			Field:   "status",
			Message: fmt.Sprintf("%q is not one of: todo, in-progress, review, done, archived", t.Status),
		})
	}
	if !models.IsValidPriority(t.Priority) {
		problems = append(problems, FieldProblem{
			Field:   "priority",
			Message: fmt.Sprintf("%q is not one of: low, medium, high", t.Priority),
		})
	}
	if t.ParentTaskID != "" && t.ParentTaskID == t.ID {
		problems = append(problems, FieldProblem{Field: "parent_task_id", Message: "task cannot be its own parent"})
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateDraft checks the caller-supplied fields of a new task. Priority
// may be empty (the store applies the configured default).
func ValidateDraft(d models.TaskDraft) error {
	var problems []FieldProblem

	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, FieldProblem{Field: "title", Message: "must not be empty"})
	}
	if d.Priority != "" && !models.IsValidPriority(d.Priority) {
		problems = append(problems, FieldProblem{
			Field:   "priority",
			Message: fmt.Sprintf("%q is not one of: low, medium, high", d.Priority),
		})
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidatePatch checks the fields a partial update touches. Untouched
// fields are not inspected.
func ValidatePatch(p models.TaskPatch) error {
	var problems []FieldProblem

	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		problems = append(problems, FieldProblem{Field: "title", Message: "must not be empty"})
	}
	if p.Status != nil && !models.IsValidStatus(*p.Status) {
		problems = append(problems, FieldProblem{
			Field:   "status",
			Message: fmt.Sprintf("%q is not one of: todo, in-progress, review, done, archived", *p.Status),
		})
	}
	if p.Priority != nil && !models.IsValidPriority(*p.Priority) {
		problems = append(problems, FieldProblem{
			Field:   "priority",
			Message: fmt.Sprintf("%q is not one of: low, medium, high", *p.Priority),
		})
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidateParent enforces the two-level hierarchy bound: a task's parent
// must itself be top-level. parent is the task referenced by
// task.ParentTaskID, or nil when the reference does not resolve (unresolved
// parents are a display state, not an error).
func ValidateParent(task models.Task, parent *models.Task) error {
	if task.ParentTaskID == "" || parent == nil {
		return nil
	}
	if parent.ParentTaskID != "" {
		return &ValidationError{Problems: []FieldProblem{{
			Field:   "parent_task_id",
			Message: fmt.Sprintf("task %s is itself a subtask of %s; subtasks cannot nest", parent.ID, parent.ParentTaskID),
		}}}
	}
	return nil
}
