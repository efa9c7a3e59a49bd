package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/zenyard/zy/pkg/models"
)

// RemoteStore implements TaskStore against a board server's JSON API.
// Responses are decoded with gjson so the loose tag/blocked_by shapes older
// servers emit (arrays or JSON-encoded strings) normalize at this boundary.
// Status codes map onto the sync layer's taxonomy: 404 is ErrNotFound,
// 409 is ErrConflict, and transport failures or 5xx become *NetworkError.
type RemoteStore struct {
	baseURL string
	client  *http.Client
}

// NewRemoteStore creates a RemoteStore for the API at baseURL.
func NewRemoteStore(baseURL string) *RemoteStore {
	return &RemoteStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (r *RemoteStore) ListTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	body, err := r.do(ctx, http.MethodGet,
		fmt.Sprintf("/projects/%s/tasks", url.PathEscape(projectID)), nil)
	if err != nil {
		return nil, fmt.Errorf("listing tasks for %s: %w", projectID, err)
	}
	return decodeTaskList(body), nil
}

func (r *RemoteStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	body, err := r.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("getting task %s: %w", id, err)
	}
	task := decodeTask(gjson.ParseBytes(body))
	return &task, nil
}

func (r *RemoteStore) CreateTask(ctx context.Context, projectID string, draft models.TaskDraft) (*models.Task, error) {
	payload := map[string]any{
		"title":          draft.Title,
		"description":    draft.Description,
		"priority":       string(draft.Priority),
		"tags":           emptyIfNil(draft.Tags),
		"assignee":       draft.Assignee,
		"milestone":      draft.Milestone,
		"parent_task_id": draft.ParentTaskID,
		"blocked_by":     emptyIfNil(draft.BlockedBy),
	}
	body, err := r.do(ctx, http.MethodPost,
		fmt.Sprintf("/projects/%s/tasks", url.PathEscape(projectID)), payload)
	if err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	task := decodeTask(gjson.ParseBytes(body))
	return &task, nil
}

func (r *RemoteStore) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	body, err := r.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(id), patchPayload(patch))
	if err != nil {
		return nil, fmt.Errorf("updating task %s: %w", id, err)
	}
	task := decodeTask(gjson.ParseBytes(body))
	return &task, nil
}

func (r *RemoteStore) ReorderTasks(ctx context.Context, assignments []models.OrderAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	payload := map[string]any{"assignments": assignments}
	if _, err := r.do(ctx, http.MethodPost, "/tasks/reorder", payload); err != nil {
		return fmt.Errorf("reordering tasks: %w", err)
	}
	return nil
}

func (r *RemoteStore) DeleteTask(ctx context.Context, id string, archive bool) error {
	path := fmt.Sprintf("/tasks/%s?archive=%t", url.PathEscape(id), archive)
	if _, err := r.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

func (r *RemoteStore) SearchTasks(ctx context.Context, projectID, query string) ([]models.Task, error) {
	path := fmt.Sprintf("/projects/%s/tasks/search?q=%s",
		url.PathEscape(projectID), url.QueryEscape(query))
	body, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("searching tasks for %q: %w", query, err)
	}
	return decodeTaskList(body), nil
}

// do issues one request and maps the response status onto the store error
// taxonomy. payload is JSON-encoded when non-nil.
func (r *RemoteStore) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrConflict
	case resp.StatusCode >= 500:
		return nil, &NetworkError{
			Op:  method + " " + path,
			Err: fmt.Errorf("server returned %s", resp.Status),
		}
	default:
		return nil, fmt.Errorf("server returned %s: %s", resp.Status, firstLine(body))
	}
}

// patchPayload serializes only the fields the patch touches.
func patchPayload(patch models.TaskPatch) map[string]any {
	payload := make(map[string]any)
	if patch.Status != nil {
		payload["status"] = string(*patch.Status)
	}
	if patch.Order != nil {
		payload["order"] = *patch.Order
	}
	if patch.Title != nil {
		payload["title"] = *patch.Title
	}
	if patch.Description != nil {
		payload["description"] = *patch.Description
	}
	if patch.Priority != nil {
		payload["priority"] = string(*patch.Priority)
	}
	if patch.Tags != nil {
		payload["tags"] = emptyIfNil(patch.Tags)
	}
	if patch.Assignee != nil {
		payload["assignee"] = *patch.Assignee
	}
	if patch.Milestone != nil {
		payload["milestone"] = *patch.Milestone
	}
	if patch.ParentTaskID != nil {
		payload["parent_task_id"] = *patch.ParentTaskID
	}
	if patch.BlockedBy != nil {
		payload["blocked_by"] = emptyIfNil(patch.BlockedBy)
	}
	return payload
}

// decodeTask maps one task object; tags and blocked_by go through the same
// loose-shape normalization as the SQLite store.
func decodeTask(value gjson.Result) models.Task {
	created, _ := time.Parse(time.RFC3339Nano, value.Get("created_at").String())
	updated, _ := time.Parse(time.RFC3339Nano, value.Get("updated_at").String())
	return models.Task{
		ID:           value.Get("id").String(),
		ProjectID:    value.Get("project_id").String(),
		Title:        value.Get("title").String(),
		Description:  value.Get("description").String(),
		Status:       models.TaskStatus(value.Get("status").String()),
		Priority:     models.Priority(value.Get("priority").String()),
		Order:        value.Get("order").Int(),
		Tags:         DecodeStringSet(value.Get("tags").Raw),
		Assignee:     value.Get("assignee").String(),
		Milestone:    value.Get("milestone").String(),
		ParentTaskID: value.Get("parent_task_id").String(),
		BlockedBy:    DecodeStringSet(value.Get("blocked_by").Raw),
		CreatedAt:    created,
		UpdatedAt:    updated,
	}
}

func decodeTaskList(body []byte) []models.Task {
	items := gjson.GetBytes(body, "tasks")
	if !items.Exists() {
		items = gjson.ParseBytes(body)
	}
	var tasks []models.Task
	for _, item := range items.Array() {
		tasks = append(tasks, decodeTask(item))
	}
	return tasks
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func firstLine(body []byte) string {
	for i, b := range body {
		if b == '\n' {
			return string(body[:i])
		}
	}
	return string(body)
}
