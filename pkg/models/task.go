package models

import "time"

// TaskStatus represents the board column a task currently sits in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusArchived   TaskStatus = "archived"
)

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task represents a single card on the board, identified by a stable
// store-assigned ID of the form TASK-00042. Order is the sort key within
// the task's status column; ties are broken by ID ascending, so sorting
// by (Order, ID) always reproduces the visible sequence.
type Task struct {
	ID           string     `yaml:"id" json:"id" db:"id"`
	ProjectID    string     `yaml:"project" json:"project_id" db:"project_id"`
	Title        string     `yaml:"title" json:"title" db:"title"`
	Description  string     `yaml:"description,omitempty" json:"description,omitempty" db:"description"`
	Status       TaskStatus `yaml:"status" json:"status" db:"status"`
	Priority     Priority   `yaml:"priority" json:"priority" db:"priority"`
	Order        int64      `yaml:"order" json:"order" db:"sort_order"`
	Tags         []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	Assignee     string     `yaml:"assignee,omitempty" json:"assignee,omitempty" db:"assignee"`
	Milestone    string     `yaml:"milestone,omitempty" json:"milestone,omitempty" db:"milestone"`
	ParentTaskID string     `yaml:"parent,omitempty" json:"parent_task_id,omitempty" db:"parent_task_id"`
	BlockedBy    []string   `yaml:"blocked_by,omitempty" json:"blocked_by,omitempty"`
	CreatedAt    time.Time  `yaml:"created" json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `yaml:"updated" json:"updated_at" db:"updated_at"`
}

// TaskDraft holds the caller-supplied fields for a new task. The store
// assigns ID, status (todo), order (end of the todo column), and timestamps.
type TaskDraft struct {
	Title        string
	Description  string
	Priority     Priority
	Tags         []string
	Assignee     string
	Milestone    string
	ParentTaskID string
	BlockedBy    []string
}

// ValidStatuses returns the closed set of task statuses in lifecycle order.
func ValidStatuses() []TaskStatus {
	return []TaskStatus{StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusArchived}
}

// ValidPriorities returns the closed set of priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh}
}

// IsValidStatus reports whether s is a member of the closed status enum.
func IsValidStatus(s TaskStatus) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusArchived:
		return true
	}
	return false
}

// IsValidPriority reports whether p is a member of the closed priority enum.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// OrderAssignment records a new order value for a single task, produced by
// the ordering engine and applied by the store as part of a renumber.
type OrderAssignment struct {
	ID    string `json:"id"`
	Order int64  `json:"order"`
}
