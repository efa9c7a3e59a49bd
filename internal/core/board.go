package core

import (
	"strings"

	"github.com/zenyard/zy/pkg/models"
)

// ColumnOrder is the fixed left-to-right column sequence of the board.
// The archive is kept off the board and shown on demand.
var ColumnOrder = []models.TaskStatus{
	models.StatusTodo,
	models.StatusInProgress,
	models.StatusReview,
	models.StatusDone,
}

// GroupByStatus partitions tasks into status groups, each sorted by
// (Order, ID) so the map values are the columns exactly as displayed.
func GroupByStatus(tasks []models.Task) map[models.TaskStatus][]models.Task {
	groups := make(map[models.TaskStatus][]models.Task)
	for _, t := range tasks {
		groups[t.Status] = append(groups[t.Status], t)
	}
	for status := range groups {
		SortGroup(groups[status])
	}
	return groups
}

// BoardFilter specifies criteria for filtering board tasks.
// All specified fields use AND logic: a task must match every criterion.
type BoardFilter struct {
	Statuses   []models.TaskStatus
	Priorities []models.Priority
	Assignee   string
	Milestone  string
	Tags       []string
	// Query is a case-insensitive substring match against title,
	// description, and tags — the client-side search box behaviour.
	Query string
}

// FilterTasks returns the tasks matching every criterion of the filter,
// preserving input order.
func FilterTasks(tasks []models.Task, filter BoardFilter) []models.Task {
	var result []models.Task
	for _, t := range tasks {
		if matchesBoardFilter(t, filter) {
			result = append(result, t)
		}
	}
	return result
}

func matchesBoardFilter(t models.Task, filter BoardFilter) bool {
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
		return false
	}
	if filter.Assignee != "" && t.Assignee != filter.Assignee {
		return false
	}
	if filter.Milestone != "" && t.Milestone != filter.Milestone {
		return false
	}
	if len(filter.Tags) > 0 && !hasAllTags(t.Tags, filter.Tags) {
		return false
	}
	if filter.Query != "" && !matchesQuery(t, filter.Query) {
		return false
	}
	return true
}

func matchesQuery(t models.Task, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func containsStatus(haystack []models.TaskStatus, needle models.TaskStatus) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsPriority(haystack []models.Priority, needle models.Priority) bool {
	for _, p := range haystack {
		if p == needle {
			return true
		}
	}
	return false
}

func hasAllTags(taskTags []string, requiredTags []string) bool {
	tagSet := make(map[string]struct{}, len(taskTags))
	for _, t := range taskTags {
		tagSet[t] = struct{}{}
	}
	for _, req := range requiredTags {
		if _, found := tagSet[req]; !found {
			return false
		}
	}
	return true
}
