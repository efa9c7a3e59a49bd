package core

import (
	"fmt"
	"sort"

	"github.com/zenyard/zy/pkg/models"
)

// Order values within a column are renumbered to successive integers
// starting at 1 on every reorder, and the store applies a renumber
// atomically per group, so duplicate orders cannot survive a completed
// write. (Order, ID) is the permanent sort key; ID breaks any tie a
// partial legacy write may have left behind.
const firstOrder int64 = 1

// SortGroup sorts tasks in place by (Order, ID) ascending.
func SortGroup(tasks []models.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].Order != tasks[j].Order {
			return tasks[i].Order < tasks[j].Order
		}
		return tasks[i].ID < tasks[j].ID
	})
}

// AppendOrder returns the order value for a task appended to the end of
// the given status group: max existing order + 1, or 1 for an empty group.
func AppendOrder(group []models.Task) int64 {
	max := firstOrder - 1
	for _, t := range group {
		if t.Order > max {
			max = t.Order
		}
	}
	return max + 1
}

// Reorder moves movedID to newIndex within its status group and renumbers
// the resulting sequence with successive integers. group must contain
// movedID and be ordered as displayed (callers sort with SortGroup first).
// newIndex is clamped to [0, len(group)-1]. Only assignments whose order
// value actually changes are returned; moving a task to its current index,
// or the only task in a group, yields an empty list.
func Reorder(group []models.Task, movedID string, newIndex int) ([]models.OrderAssignment, error) {
	oldIndex := indexOf(group, movedID)
	if oldIndex < 0 {
		return nil, fmt.Errorf("reordering: task %s is not in the group", movedID)
	}

	newIndex = clampIndex(newIndex, len(group))
	if newIndex == oldIndex {
		return nil, nil
	}

	sequence := spliceIDs(group, movedID, newIndex)
	return renumber(group, sequence), nil
}

// RemoveAndRenumber is the source-group half of a cross-column move: it
// drops removedID from the group's sequence and closes the gap.
func RemoveAndRenumber(group []models.Task, removedID string) []models.OrderAssignment {
	sequence := make([]string, 0, len(group))
	for _, t := range group {
		if t.ID == removedID {
			continue
		}
		sequence = append(sequence, t.ID)
	}
	return renumber(group, sequence)
}

// InsertAt is the destination-group half of a cross-column move: it splices
// taskID into the group's sequence at index (clamped to [0, len(group)])
// and renumbers. The returned assignments include the inserted task.
func InsertAt(group []models.Task, taskID string, index int) []models.OrderAssignment {
	if index < 0 {
		index = 0
	}
	if index > len(group) {
		index = len(group)
	}

	sequence := make([]string, 0, len(group)+1)
	for _, t := range group {
		sequence = append(sequence, t.ID)
	}
	sequence = append(sequence[:index], append([]string{taskID}, sequence[index:]...)...)

	// The inserted task has no prior order in this group, so renumber always
	// emits an assignment for it.
	return renumber(group, sequence)
}

// renumber assigns successive orders 1..n to sequence and returns only the
// assignments that differ from the task's previous order in group.
func renumber(group []models.Task, sequence []string) []models.OrderAssignment {
	previous := make(map[string]int64, len(group))
	for _, t := range group {
		previous[t.ID] = t.Order
	}

	var assignments []models.OrderAssignment
	for i, id := range sequence {
		order := firstOrder + int64(i)
		if prev, known := previous[id]; known && prev == order {
			continue
		}
		assignments = append(assignments, models.OrderAssignment{ID: id, Order: order})
	}
	return assignments
}

func spliceIDs(group []models.Task, movedID string, newIndex int) []string {
	withoutMoved := make([]string, 0, len(group)-1)
	for _, t := range group {
		if t.ID == movedID {
			continue
		}
		withoutMoved = append(withoutMoved, t.ID)
	}
	return append(withoutMoved[:newIndex], append([]string{movedID}, withoutMoved[newIndex:]...)...)
}

func indexOf(group []models.Task, id string) int {
	for i, t := range group {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func clampIndex(index, length int) int {
	if index < 0 {
		return 0
	}
	if index > length-1 {
		return length - 1
	}
	return index
}
