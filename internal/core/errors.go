package core

import (
	"fmt"
	"strings"
)

// FieldProblem describes a single invalid field on a task.
type FieldProblem struct {
	Field   string
	Message string
}

// ValidationError reports malformed task fields on create or edit. It is
// always raised synchronously at the intent-dispatch boundary, before
// anything reaches the store or the local cache.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return "task validation failed: " + strings.Join(msgs, "; ")
}

// MissingTargetStatusError is returned when restoring an archived task
// without naming the non-archived destination column.
type MissingTargetStatusError struct {
	TaskID string
}

func (e *MissingTargetStatusError) Error() string {
	return fmt.Sprintf("restoring task %s: a target status is required", e.TaskID)
}
