package reconcile

import "fmt"

// ConflictError reports that the store rejected a mutation, for example
// because the task was deleted or changed concurrently. The optimistic
// local state has already been rolled back when this error surfaces; it is
// shown as a non-blocking notification, never a crash.
type ConflictError struct {
	TaskID string
	Err    error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task %s: rejected by store: %v", e.TaskID, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}
