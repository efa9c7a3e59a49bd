// Package storage provides the TaskStore contract and its two
// implementations: the bundled SQLite store and a thin JSON-over-HTTP
// client for a remote board API. The store is the single source of truth
// for task state and wins all conflicts with the local cache.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/zenyard/zy/pkg/models"
)

// Sentinel errors mapped onto the sync layer's error taxonomy.
var (
	// ErrNotFound is returned when the referenced task does not exist,
	// including the task-deleted-concurrently case.
	ErrNotFound = errors.New("task not found")
	// ErrConflict is returned when the store rejects a mutation because of
	// a concurrent change.
	ErrConflict = errors.New("task modified concurrently")
	// ErrNotArchived is returned when a hard delete targets a task that is
	// not in the archived column. Permanent removal is only legal from there.
	ErrNotArchived = errors.New("task is not archived")
)

// NetworkError wraps a transient transport failure talking to the store.
// The sync layer keeps the optimistic state and offers a retry instead of
// rolling back.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// TaskStore is the external task-store contract. Every mutating call is
// atomic from the caller's point of view: UpdateTask applies {status, order}
// together in one write, and ReorderTasks renumbers a whole group in a
// single transaction so duplicate orders never survive a completed write.
type TaskStore interface {
	ListTasks(ctx context.Context, projectID string) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, projectID string, draft models.TaskDraft) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	ReorderTasks(ctx context.Context, assignments []models.OrderAssignment) error
	// DeleteTask soft-deletes (archives) when archive is true; otherwise it
	// permanently removes the task, which is only legal from the archived
	// column.
	DeleteTask(ctx context.Context, id string, archive bool) error
	SearchTasks(ctx context.Context, projectID, query string) ([]models.Task, error)
}
