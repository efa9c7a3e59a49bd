// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the task board as MCP tools for AI coding assistants.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/internal/observability"
	"github.com/zenyard/zy/internal/reconcile"
	"github.com/zenyard/zy/pkg/models"
)

// Server wraps the board services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	dispatcher  *reconcile.Dispatcher
	project     string
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server. project is the default project for
// tools that omit one. metricsCalc and alertEngine may be nil if
// observability is disabled.
func NewServer(dispatcher *reconcile.Dispatcher, project string, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		dispatcher:  dispatcher,
		project:     project,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "zy", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listTasksInput struct {
	Project string `json:"project,omitempty" jsonschema:"project to list; defaults to the active project"`
	Status  string `json:"status,omitempty" jsonschema:"filter tasks by status (todo, in-progress, review, done, archived)"`
}

type taskOutput struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	Priority     string   `json:"priority"`
	Order        int64    `json:"order"`
	Tags         []string `json:"tags,omitempty"`
	Assignee     string   `json:"assignee,omitempty"`
	Milestone    string   `json:"milestone,omitempty"`
	ParentTaskID string   `json:"parent_task_id,omitempty"`
	BlockedBy    []string `json:"blocked_by,omitempty"`
	Blocked      bool     `json:"blocked,omitempty"`
	Created      string   `json:"created"`
	Updated      string   `json:"updated"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type getTaskInput struct {
	TaskID  string `json:"task_id" jsonschema:"required,the unique task identifier (e.g. TASK-00042)"`
	Project string `json:"project,omitempty" jsonschema:"project the task belongs to; defaults to the active project"`
}

type blockingRefOutput struct {
	Ref      string `json:"ref"`
	Resolved bool   `json:"resolved"`
	Title    string `json:"title,omitempty"`
	Status   string `json:"status,omitempty"`
}

type getTaskOutput struct {
	Task     taskOutput          `json:"task"`
	Blocking []blockingRefOutput `json:"blocking,omitempty"`
	Parent   *taskOutput         `json:"parent,omitempty"`
	Subtasks []taskOutput        `json:"subtasks,omitempty"`
}

type createTaskInput struct {
	Title     string   `json:"title" jsonschema:"required,the task title"`
	Project   string   `json:"project,omitempty" jsonschema:"project to create the task in; defaults to the active project"`
	Desc      string   `json:"description,omitempty"`
	Priority  string   `json:"priority,omitempty" jsonschema:"low, medium, or high"`
	Tags      []string `json:"tags,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Milestone string   `json:"milestone,omitempty"`
	Parent    string   `json:"parent_task_id,omitempty"`
	BlockedBy []string `json:"blocked_by,omitempty"`
}

type moveTaskInput struct {
	TaskID  string `json:"task_id" jsonschema:"required,the unique task identifier"`
	Status  string `json:"status" jsonschema:"required,the target column (todo, in-progress, review, done)"`
	Index   *int   `json:"index,omitempty" jsonschema:"zero-based position within the target column; omitted means append to the end"`
	Project string `json:"project,omitempty"`
}

type archiveTaskInput struct {
	TaskID  string `json:"task_id" jsonschema:"required,the unique task identifier"`
	Project string `json:"project,omitempty"`
}

type restoreTaskInput struct {
	TaskID  string `json:"task_id" jsonschema:"required,the unique task identifier"`
	Status  string `json:"status" jsonschema:"required,the non-archived column to restore into"`
	Project string `json:"project,omitempty"`
}

type searchTasksInput struct {
	Query   string `json:"query" jsonschema:"required,substring matched against title, description, and tags"`
	Project string `json:"project,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	TasksCreated  int            `json:"tasks_created"`
	TasksMoved    int            `json:"tasks_moved"`
	TasksArchived int            `json:"tasks_archived"`
	TasksRestored int            `json:"tasks_restored"`
	Reorders      int            `json:"reorders"`
	SyncRollbacks int            `json:"sync_rollbacks"`
	MovesInto     map[string]int `json:"moves_into"`
	EventCount    int            `json:"event_count"`
	OldestEvent   string         `json:"oldest_event,omitempty"`
	NewestEvent   string         `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List board tasks with an optional status filter, sorted by column and position.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_task",
		Description: "Get task details by ID, including resolved blocking references, parent, and subtasks.",
	}, s.handleGetTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a new task. It enters the todo column at the end.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "move_task",
		Description: "Move a task to another column, optionally at a specific position. Blocked-by references never prevent a move.",
	}, s.handleMoveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "archive_task",
		Description: "Archive a task (soft delete). Archived tasks can be restored later.",
	}, s.handleArchiveTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "restore_task",
		Description: "Restore an archived task into an explicitly named column.",
	}, s.handleRestoreTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "search_tasks",
		Description: "Search tasks by substring across title, description, and tags.",
	}, s.handleSearchTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get board flow metrics from the event log: creates, moves, reorders, archives, and sync rollbacks.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active board alerts (stale tasks, long reviews, WIP limit, rollback rate).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	tasks, err := s.dispatcher.Store().ListTasks(ctx, s.projectOr(input.Project))
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), listTasksOutput{}, nil
	}

	if input.Status != "" {
		tasks = core.FilterTasks(tasks, core.BoardFilter{
			Statuses: []models.TaskStatus{models.TaskStatus(input.Status)},
		})
	}

	all := tasks
	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t, core.Resolve(t, all))
	}
	return nil, out, nil
}

func (s *Server) handleGetTask(ctx context.Context, _ *gomcp.CallToolRequest, input getTaskInput) (*gomcp.CallToolResult, getTaskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), getTaskOutput{}, nil
	}

	all, err := s.dispatcher.Store().ListTasks(ctx, s.projectOr(input.Project))
	if err != nil {
		return errorResult(fmt.Sprintf("listing tasks: %s", err)), getTaskOutput{}, nil
	}

	var task *models.Task
	for i := range all {
		if all[i].ID == input.TaskID {
			task = &all[i]
			break
		}
	}
	if task == nil {
		return errorResult(fmt.Sprintf("task %s not found", input.TaskID)), getTaskOutput{}, nil
	}

	res := core.Resolve(*task, all)
	out := getTaskOutput{Task: taskToOutput(*task, res)}
	for _, ref := range res.Blocking {
		bro := blockingRefOutput{Ref: ref.Ref, Resolved: ref.Resolved()}
		if ref.Task != nil {
			bro.Title = ref.Task.Title
			bro.Status = string(ref.Task.Status)
		}
		out.Blocking = append(out.Blocking, bro)
	}
	if res.Parent != nil {
		parent := taskToOutput(*res.Parent, core.Resolution{})
		out.Parent = &parent
	}
	for _, sub := range res.Subtasks {
		out.Subtasks = append(out.Subtasks, taskToOutput(sub, core.Resolution{}))
	}
	return nil, out, nil
}

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	task, err := s.dispatcher.AddTask(ctx, s.projectOr(input.Project), models.TaskDraft{
		Title:        input.Title,
		Description:  input.Desc,
		Priority:     models.Priority(input.Priority),
		Tags:         input.Tags,
		Assignee:     input.Assignee,
		Milestone:    input.Milestone,
		ParentTaskID: input.Parent,
		BlockedBy:    input.BlockedBy,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("creating task: %s", err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*task, core.Resolution{}), nil
}

func (s *Server) handleMoveTask(ctx context.Context, _ *gomcp.CallToolRequest, input moveTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	if input.Status == "" {
		return errorResult("status is required"), taskOutput{}, nil
	}

	project := s.projectOr(input.Project)
	target := models.TaskStatus(input.Status)

	var task *models.Task
	var err error
	if input.Index != nil {
		task, err = s.dispatcher.MoveTaskAt(ctx, project, input.TaskID, target, *input.Index)
	} else {
		task, err = s.dispatcher.MoveTask(ctx, project, input.TaskID, target)
	}
	if err != nil {
		return errorResult(fmt.Sprintf("moving task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*task, core.Resolution{}), nil
}

func (s *Server) handleArchiveTask(ctx context.Context, _ *gomcp.CallToolRequest, input archiveTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	task, err := s.dispatcher.ArchiveTask(ctx, s.projectOr(input.Project), input.TaskID)
	if err != nil {
		return errorResult(fmt.Sprintf("archiving task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*task, core.Resolution{}), nil
}

func (s *Server) handleRestoreTask(ctx context.Context, _ *gomcp.CallToolRequest, input restoreTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	if input.TaskID == "" {
		return errorResult("task_id is required"), taskOutput{}, nil
	}
	task, err := s.dispatcher.RestoreTask(ctx, s.projectOr(input.Project), input.TaskID, models.TaskStatus(input.Status))
	if err != nil {
		return errorResult(fmt.Sprintf("restoring task %s: %s", input.TaskID, err)), taskOutput{}, nil
	}
	return nil, taskToOutput(*task, core.Resolution{}), nil
}

func (s *Server) handleSearchTasks(ctx context.Context, _ *gomcp.CallToolRequest, input searchTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	if input.Query == "" {
		return errorResult("query is required"), listTasksOutput{}, nil
	}
	tasks, err := s.dispatcher.Store().SearchTasks(ctx, s.projectOr(input.Project), input.Query)
	if err != nil {
		return errorResult(fmt.Sprintf("searching tasks: %s", err)), listTasksOutput{}, nil
	}
	out := listTasksOutput{
		Tasks: make([]taskOutput, len(tasks)),
		Count: len(tasks),
	}
	for i, t := range tasks {
		out.Tasks[i] = taskToOutput(t, core.Resolution{})
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		TasksCreated:  metrics.TasksCreated,
		TasksMoved:    metrics.TasksMoved,
		TasksArchived: metrics.TasksArchived,
		TasksRestored: metrics.TasksRestored,
		Reorders:      metrics.Reorders,
		SyncRollbacks: metrics.SyncRollbacks,
		MovesInto:     metrics.MovesInto,
		EventCount:    metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func (s *Server) projectOr(project string) string {
	if project != "" {
		return project
	}
	return s.project
}

func taskToOutput(t models.Task, res core.Resolution) taskOutput {
	return taskOutput{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		Priority:     string(t.Priority),
		Order:        t.Order,
		Tags:         t.Tags,
		Assignee:     t.Assignee,
		Milestone:    t.Milestone,
		ParentTaskID: t.ParentTaskID,
		BlockedBy:    t.BlockedBy,
		Blocked:      res.Blocked(),
		Created:      t.CreatedAt.Format(time.RFC3339),
		Updated:      t.UpdatedAt.Format(time.RFC3339),
	}
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{MovesInto: make(map[string]int)}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or "24h"
// into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
