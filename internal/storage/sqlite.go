package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/zenyard/zy/pkg/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             TEXT PRIMARY KEY,
	project_id     TEXT NOT NULL,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	priority       TEXT NOT NULL,
	sort_order     INTEGER NOT NULL,
	tags           TEXT NOT NULL DEFAULT '[]',
	assignee       TEXT NOT NULL DEFAULT '',
	milestone      TEXT NOT NULL DEFAULT '',
	parent_task_id TEXT NOT NULL DEFAULT '',
	blocked_by     TEXT NOT NULL DEFAULT '[]',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_project_status ON tasks (project_id, status, sort_order);

CREATE TABLE IF NOT EXISTS task_counters (
	project_id TEXT PRIMARY KEY,
	counter    INTEGER NOT NULL
);
`

// taskRow is the sqlx row shape for the tasks table. tags and blocked_by
// are JSON text columns normalized through the wire helpers on load.
type taskRow struct {
	ID           string `db:"id"`
	ProjectID    string `db:"project_id"`
	Title        string `db:"title"`
	Description  string `db:"description"`
	Status       string `db:"status"`
	Priority     string `db:"priority"`
	SortOrder    int64  `db:"sort_order"`
	Tags         string `db:"tags"`
	Assignee     string `db:"assignee"`
	Milestone    string `db:"milestone"`
	ParentTaskID string `db:"parent_task_id"`
	BlockedBy    string `db:"blocked_by"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

// SQLiteStore implements TaskStore on a local SQLite database. IDs are
// store-assigned as {prefix}-{counter} with a per-project counter row,
// matching the TASK-00042 reference format used by blocked-by entries.
type SQLiteStore struct {
	db       *sqlx.DB
	prefix   string
	padWidth int
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. prefix and padWidth control ID formatting; empty prefix
// defaults to TASK and padWidth 0 means no zero-padding.
func NewSQLiteStore(path, prefix string, padWidth int) (*SQLiteStore, error) {
	if prefix == "" {
		prefix = "TASK"
	}

	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening task database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing task schema: %w", err)
	}

	return &SQLiteStore{db: db, prefix: prefix, padWidth: padWidth}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM tasks WHERE project_id = ?
		ORDER BY status, sort_order, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for %s: %w", projectID, err)
	}
	return rowsToTasks(rows), nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM tasks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	task := rowToTask(row)
	return &task, nil
}

// CreateTask assigns the next task ID for the project, places the task at
// the end of the todo column, and stamps both timestamps. Everything runs
// in one transaction so counter bumps never leak without a row.
func (s *SQLiteStore) CreateTask(ctx context.Context, projectID string, draft models.TaskDraft) (*models.Task, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id, err := s.nextID(ctx, tx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	var maxOrder sql.NullInt64
	err = tx.GetContext(ctx, &maxOrder, `
		SELECT MAX(sort_order) FROM tasks
		WHERE project_id = ? AND status = ?`, projectID, string(models.StatusTodo))
	if err != nil {
		return nil, fmt.Errorf("creating task: finding column end: %w", err)
	}

	task := models.Task{
		ID:           id,
		ProjectID:    projectID,
		Title:        draft.Title,
		Description:  draft.Description,
		Status:       models.StatusTodo,
		Priority:     draft.Priority,
		Order:        maxOrder.Int64 + 1,
		Tags:         draft.Tags,
		Assignee:     draft.Assignee,
		Milestone:    draft.Milestone,
		ParentTaskID: draft.ParentTaskID,
		BlockedBy:    draft.BlockedBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if task.Priority == "" {
		task.Priority = models.PriorityMedium
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, title, description, status, priority,
			sort_order, tags, assignee, milestone, parent_task_id, blocked_by,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.ProjectID, task.Title, task.Description,
		string(task.Status), string(task.Priority), task.Order,
		EncodeStringSet(task.Tags), task.Assignee, task.Milestone,
		task.ParentTaskID, EncodeStringSet(task.BlockedBy),
		formatTime(task.CreatedAt), formatTime(task.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("creating task: inserting row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	return &task, nil
}

// UpdateTask applies only the patched columns in a single UPDATE, so a
// {status, order} move lands atomically. The updated task is read back and
// returned as the store's authoritative version.
func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	sets, args := patchColumns(patch)
	if len(sets) == 0 {
		return s.GetTask(ctx, id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now().UTC()), id)

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("updating task %s: %w", id, ErrNotFound)
	}

	return s.GetTask(ctx, id)
}

// ReorderTasks applies all order assignments inside one transaction: the
// renumber of a group is atomic, so a partial write can never leave two
// tasks sharing an order value.
func (s *SQLiteStore) ReorderTasks(ctx context.Context, assignments []models.OrderAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("reordering tasks: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now().UTC())
	for _, a := range assignments {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET sort_order = ?, updated_at = ? WHERE id = ?`,
			a.Order, now, a.ID)
		if err != nil {
			return fmt.Errorf("reordering task %s: %w", a.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reordering task %s: %w", a.ID, err)
		}
		if affected == 0 {
			return fmt.Errorf("reordering task %s: %w", a.ID, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("reordering tasks: %w", err)
	}
	return nil
}

// DeleteTask soft-deletes by moving the task to the end of the archived
// column, or hard-deletes an already archived task. Hard deletion from any
// other column returns ErrNotArchived.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string, archive bool) error {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}

	if archive {
		var maxOrder sql.NullInt64
		err = s.db.GetContext(ctx, &maxOrder, `
			SELECT MAX(sort_order) FROM tasks
			WHERE project_id = ? AND status = ?`, task.ProjectID, string(models.StatusArchived))
		if err != nil {
			return fmt.Errorf("archiving task %s: %w", id, err)
		}
		_, err = s.db.ExecContext(ctx, `
			UPDATE tasks SET status = ?, sort_order = ?, updated_at = ? WHERE id = ?`,
			string(models.StatusArchived), maxOrder.Int64+1,
			formatTime(time.Now().UTC()), id)
		if err != nil {
			return fmt.Errorf("archiving task %s: %w", id, err)
		}
		return nil
	}

	if task.Status != models.StatusArchived {
		return fmt.Errorf("deleting task %s: %w", id, ErrNotArchived)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// SearchTasks does a case-insensitive substring match over title,
// description, and the serialized tag set.
func (s *SQLiteStore) SearchTasks(ctx context.Context, projectID, query string) ([]models.Task, error) {
	like := "%" + strings.ToLower(query) + "%"
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM tasks
		WHERE project_id = ?
		  AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(tags) LIKE ?)
		ORDER BY status, sort_order, id`, projectID, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("searching tasks for %q: %w", query, err)
	}
	return rowsToTasks(rows), nil
}

// nextID bumps the per-project counter and formats the new task ID.
func (s *SQLiteStore) nextID(ctx context.Context, tx *sqlx.Tx, projectID string) (string, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO task_counters (project_id, counter) VALUES (?, 1)
		ON CONFLICT(project_id) DO UPDATE SET counter = counter + 1`, projectID)
	if err != nil {
		return "", fmt.Errorf("bumping task counter: %w", err)
	}

	var counter int
	if err := tx.GetContext(ctx, &counter, `
		SELECT counter FROM task_counters WHERE project_id = ?`, projectID); err != nil {
		return "", fmt.Errorf("reading task counter: %w", err)
	}

	if s.padWidth > 0 {
		return fmt.Sprintf("%s-%0*d", s.prefix, s.padWidth, counter), nil
	}
	return fmt.Sprintf("%s-%d", s.prefix, counter), nil
}

// patchColumns translates a TaskPatch into SET clauses and arguments.
func patchColumns(patch models.TaskPatch) ([]string, []any) {
	var sets []string
	var args []any

	if patch.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Order != nil {
		sets = append(sets, "sort_order = ?")
		args = append(args, *patch.Order)
	}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.Tags != nil {
		sets = append(sets, "tags = ?")
		args = append(args, EncodeStringSet(patch.Tags))
	}
	if patch.Assignee != nil {
		sets = append(sets, "assignee = ?")
		args = append(args, *patch.Assignee)
	}
	if patch.Milestone != nil {
		sets = append(sets, "milestone = ?")
		args = append(args, *patch.Milestone)
	}
	if patch.ParentTaskID != nil {
		sets = append(sets, "parent_task_id = ?")
		args = append(args, *patch.ParentTaskID)
	}
	if patch.BlockedBy != nil {
		sets = append(sets, "blocked_by = ?")
		args = append(args, EncodeStringSet(patch.BlockedBy))
	}

	return sets, args
}

func rowToTask(row taskRow) models.Task {
	created, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	updated, _ := time.Parse(time.RFC3339Nano, row.UpdatedAt)
	return models.Task{
		ID:           row.ID,
		ProjectID:    row.ProjectID,
		Title:        row.Title,
		Description:  row.Description,
		Status:       models.TaskStatus(row.Status),
		Priority:     models.Priority(row.Priority),
		Order:        row.SortOrder,
		Tags:         DecodeStringSet(row.Tags),
		Assignee:     row.Assignee,
		Milestone:    row.Milestone,
		ParentTaskID: row.ParentTaskID,
		BlockedBy:    DecodeStringSet(row.BlockedBy),
		CreatedAt:    created,
		UpdatedAt:    updated,
	}
}

func rowsToTasks(rows []taskRow) []models.Task {
	tasks := make([]models.Task, len(rows))
	for i, row := range rows {
		tasks[i] = rowToTask(row)
	}
	return tasks
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
