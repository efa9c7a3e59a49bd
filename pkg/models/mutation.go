package models

import (
	"sort"
	"strings"
)

// Field identifies a single mutable task field.
type Field string

const (
	FieldStatus       Field = "status"
	FieldOrder        Field = "order"
	FieldTitle        Field = "title"
	FieldDescription  Field = "description"
	FieldPriority     Field = "priority"
	FieldTags         Field = "tags"
	FieldAssignee     Field = "assignee"
	FieldMilestone    Field = "milestone"
	FieldParentTaskID Field = "parent_task_id"
	FieldBlockedBy    Field = "blocked_by"
)

// FieldSet is a set of task fields touched by a mutation.
type FieldSet map[Field]struct{}

// NewFieldSet builds a FieldSet from the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	fs := make(FieldSet, len(fields))
	for _, f := range fields {
		fs[f] = struct{}{}
	}
	return fs
}

// Has reports whether the set contains f.
func (fs FieldSet) Has(f Field) bool {
	_, ok := fs[f]
	return ok
}

// Intersects reports whether the two sets share any field.
func (fs FieldSet) Intersects(other FieldSet) bool {
	for f := range fs {
		if other.Has(f) {
			return true
		}
	}
	return false
}

// Key returns a stable string representation of the set, usable as part of
// a map key for tracking in-flight mutations by (taskID, fieldSet).
func (fs FieldSet) Key() string {
	names := make([]string, 0, len(fs))
	for f := range fs {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// TaskPatch is a partial update to a task. Nil pointers mean "leave the
// field untouched". For the slice fields a nil slice means untouched and an
// empty non-nil slice clears the set.
type TaskPatch struct {
	Status       *TaskStatus
	Order        *int64
	Title        *string
	Description  *string
	Priority     *Priority
	Tags         []string
	Assignee     *string
	Milestone    *string
	ParentTaskID *string
	BlockedBy    []string
}

// Fields derives the set of fields this patch touches.
func (p TaskPatch) Fields() FieldSet {
	fs := make(FieldSet)
	if p.Status != nil {
		fs[FieldStatus] = struct{}{}
	}
	if p.Order != nil {
		fs[FieldOrder] = struct{}{}
	}
	if p.Title != nil {
		fs[FieldTitle] = struct{}{}
	}
	if p.Description != nil {
		fs[FieldDescription] = struct{}{}
	}
	if p.Priority != nil {
		fs[FieldPriority] = struct{}{}
	}
	if p.Tags != nil {
		fs[FieldTags] = struct{}{}
	}
	if p.Assignee != nil {
		fs[FieldAssignee] = struct{}{}
	}
	if p.Milestone != nil {
		fs[FieldMilestone] = struct{}{}
	}
	if p.ParentTaskID != nil {
		fs[FieldParentTaskID] = struct{}{}
	}
	if p.BlockedBy != nil {
		fs[FieldBlockedBy] = struct{}{}
	}
	return fs
}

// IsEmpty reports whether the patch touches no fields.
func (p TaskPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// ApplyTo copies the patch's set fields onto the task.
func (p TaskPatch) ApplyTo(t *Task) {
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Order != nil {
		t.Order = *p.Order
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Tags != nil {
		t.Tags = append([]string(nil), p.Tags...)
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.Milestone != nil {
		t.Milestone = *p.Milestone
	}
	if p.ParentTaskID != nil {
		t.ParentTaskID = *p.ParentTaskID
	}
	if p.BlockedBy != nil {
		t.BlockedBy = append([]string(nil), p.BlockedBy...)
	}
}

// Extract builds a patch capturing the task's current values for the given
// fields. The reconciler uses it to snapshot pre-mutation state for rollback.
func Extract(t Task, fields FieldSet) TaskPatch {
	var p TaskPatch
	if fields.Has(FieldStatus) {
		s := t.Status
		p.Status = &s
	}
	if fields.Has(FieldOrder) {
		o := t.Order
		p.Order = &o
	}
	if fields.Has(FieldTitle) {
		v := t.Title
		p.Title = &v
	}
	if fields.Has(FieldDescription) {
		v := t.Description
		p.Description = &v
	}
	if fields.Has(FieldPriority) {
		v := t.Priority
		p.Priority = &v
	}
	if fields.Has(FieldTags) {
		p.Tags = append([]string{}, t.Tags...)
	}
	if fields.Has(FieldAssignee) {
		v := t.Assignee
		p.Assignee = &v
	}
	if fields.Has(FieldMilestone) {
		v := t.Milestone
		p.Milestone = &v
	}
	if fields.Has(FieldParentTaskID) {
		v := t.ParentTaskID
		p.ParentTaskID = &v
	}
	if fields.Has(FieldBlockedBy) {
		p.BlockedBy = append([]string{}, t.BlockedBy...)
	}
	return p
}

// MutationState is the lifecycle state of an in-flight mutation.
type MutationState string

const (
	MutationPending    MutationState = "pending"
	MutationConfirmed  MutationState = "confirmed"
	MutationRolledBack MutationState = "rolled_back"
)
