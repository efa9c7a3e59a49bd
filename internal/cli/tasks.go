package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/pkg/models"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage board tasks (add, list, edit, move, search, delete)",
	Long: `Unified task management commands for the active project.

Add new tasks, list or browse the board, edit task fields, move tasks
between columns, restore archived tasks, search, and delete.`,
}

// --- tasks add ---

var (
	taskAddDesc      string
	taskAddPriority  string
	taskAddTags      []string
	taskAddAssignee  string
	taskAddMilestone string
	taskAddParent    string
	taskAddBlockedBy []string
)

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a new task to the board",
	Long: `Add a new task with the given title. New tasks enter the todo column
at the end. Use flags to set description, priority, tags, assignee,
milestone, a parent task, or blocked-by references.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		task, err := Dispatcher.AddTask(cmd.Context(), Project, models.TaskDraft{
			Title:        args[0],
			Description:  taskAddDesc,
			Priority:     models.Priority(taskAddPriority),
			Tags:         taskAddTags,
			Assignee:     taskAddAssignee,
			Milestone:    taskAddMilestone,
			ParentTaskID: taskAddParent,
			BlockedBy:    taskAddBlockedBy,
		})
		if err != nil {
			return fmt.Errorf("adding task: %w", err)
		}

		fmt.Printf("Added task %s\n", task.ID)
		fmt.Printf("  Title:    %s\n", task.Title)
		fmt.Printf("  Status:   %s\n", task.Status)
		fmt.Printf("  Priority: %s\n", task.Priority)
		if task.ParentTaskID != "" {
			fmt.Printf("  Parent:   %s\n", task.ParentTaskID)
		}
		return nil
	},
}

// --- tasks list ---

var (
	taskListStatus    string
	taskListPriority  string
	taskListAssignee  string
	taskListMilestone string
	taskListTags      []string
	taskListKanban    bool
	taskListJSON      bool
	taskListArchived  bool
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks on the board",
	Long: `List the project's tasks sorted by column and position.

Use --kanban to render the board as columns, --status/--priority/
--assignee/--milestone/--tags to filter, and --archived to include
archived tasks in the flat listing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		tasks, err := Dispatcher.Store().ListTasks(cmd.Context(), Project)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		filter := core.BoardFilter{
			Assignee:  taskListAssignee,
			Milestone: taskListMilestone,
			Tags:      taskListTags,
		}
		if taskListStatus != "" {
			filter.Statuses = []models.TaskStatus{models.TaskStatus(taskListStatus)}
		}
		if taskListPriority != "" {
			filter.Priorities = []models.Priority{models.Priority(taskListPriority)}
		}
		filtered := core.FilterTasks(tasks, filter)

		if taskListKanban {
			fmt.Println(renderKanban(filtered, tasks))
			return nil
		}

		// Hide archived tasks from the flat listing unless asked for,
		// mirroring the board view. An explicit --status archived wins.
		if !taskListArchived && taskListStatus == "" {
			visible := filtered[:0]
			for _, t := range filtered {
				if t.Status != models.StatusArchived {
					visible = append(visible, t)
				}
			}
			filtered = visible
		}

		if taskListJSON {
			data, err := json.MarshalIndent(filtered, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting tasks as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(filtered) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		printTaskTable(filtered, tasks)
		return nil
	},
}

// printTaskTable prints a flat listing grouped by status. all is the full
// task set, used to resolve blocked-by references for the badge.
func printTaskTable(tasks, all []models.Task) {
	groups := core.GroupByStatus(tasks)
	for _, status := range append(core.ColumnOrder, models.StatusArchived) {
		group, ok := groups[status]
		if !ok || len(group) == 0 {
			continue
		}
		fmt.Printf("%s (%d)\n", status, len(group))
		for _, t := range group {
			badge := ""
			if core.Resolve(t, all).Blocked() {
				badge = " [blocked]"
			}
			fmt.Printf("  %-12s %-8s %s%s\n", t.ID, t.Priority, t.Title, badge)
		}
		fmt.Println()
	}
}

// --- tasks show ---

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show full task details",
	Long: `Show all fields of a task, including resolved blocked-by references,
the parent task, and subtasks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		all, err := Dispatcher.Store().ListTasks(cmd.Context(), Project)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		var task *models.Task
		for i := range all {
			if all[i].ID == args[0] {
				task = &all[i]
				break
			}
		}
		if task == nil {
			return fmt.Errorf("task %s not found", args[0])
		}

		res := core.Resolve(*task, all)

		fmt.Printf("%s  %s\n", task.ID, task.Title)
		fmt.Printf("  Status:    %s (position %d)\n", task.Status, task.Order)
		fmt.Printf("  Priority:  %s\n", task.Priority)
		if task.Description != "" {
			fmt.Printf("  Desc:      %s\n", task.Description)
		}
		if len(task.Tags) > 0 {
			fmt.Printf("  Tags:      %s\n", strings.Join(task.Tags, ", "))
		}
		if task.Assignee != "" {
			fmt.Printf("  Assignee:  %s\n", task.Assignee)
		}
		if task.Milestone != "" {
			fmt.Printf("  Milestone: %s\n", task.Milestone)
		}
		if res.Parent != nil {
			fmt.Printf("  Parent:    %s (%s)\n", res.Parent.ID, res.Parent.Title)
		} else if task.ParentTaskID != "" {
			fmt.Printf("  Parent:    %s (unresolved)\n", task.ParentTaskID)
		}
		for _, ref := range res.Blocking {
			if ref.Resolved() {
				fmt.Printf("  Blocked by %s (%s, %s)\n", ref.Ref, ref.Task.Title, ref.Task.Status)
			} else {
				fmt.Printf("  Blocked by %s (unresolved)\n", ref.Ref)
			}
		}
		if len(res.Subtasks) > 0 {
			fmt.Println("  Subtasks:")
			for _, sub := range res.Subtasks {
				fmt.Printf("    %-12s %-12s %s\n", sub.ID, sub.Status, sub.Title)
			}
		}
		fmt.Printf("  Created:   %s\n", task.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("  Updated:   %s\n", task.UpdatedAt.Format("2006-01-02 15:04"))
		return nil
	},
}

// --- tasks edit ---

var (
	taskEditTitle     string
	taskEditDesc      string
	taskEditPriority  string
	taskEditTags      []string
	taskEditAssignee  string
	taskEditMilestone string
	taskEditParent    string
	taskEditBlockedBy []string
	taskEditClear     []string
)

var taskEditCmd = &cobra.Command{
	Use:   "edit <task-id>",
	Short: "Edit task fields",
	Long: `Edit one or more fields of a task. Only the flags you pass change;
everything else is left untouched.

Use --clear to empty an optional field, e.g. --clear tags,parent:

  zy tasks edit TASK-00042 --title "New title" --priority high
  zy tasks edit TASK-00042 --clear assignee,milestone`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		patch, err := buildEditPatch(cmd)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return fmt.Errorf("no fields to edit (pass at least one flag)")
		}

		task, err := Dispatcher.EditTask(cmd.Context(), Project, args[0], patch)
		if err != nil {
			return fmt.Errorf("editing task %s: %w", args[0], err)
		}

		fmt.Printf("Updated task %s\n", task.ID)
		return nil
	},
}

// buildEditPatch converts edit flags into a TaskPatch. Flags must be checked
// with Changed so an explicit empty value is distinguishable from "not set".
func buildEditPatch(cmd *cobra.Command) (models.TaskPatch, error) {
	var patch models.TaskPatch

	if cmd.Flags().Changed("title") {
		patch.Title = &taskEditTitle
	}
	if cmd.Flags().Changed("desc") {
		patch.Description = &taskEditDesc
	}
	if cmd.Flags().Changed("priority") {
		p := models.Priority(taskEditPriority)
		patch.Priority = &p
	}
	if cmd.Flags().Changed("tags") {
		patch.Tags = taskEditTags
		if patch.Tags == nil {
			patch.Tags = []string{}
		}
	}
	if cmd.Flags().Changed("assignee") {
		patch.Assignee = &taskEditAssignee
	}
	if cmd.Flags().Changed("milestone") {
		patch.Milestone = &taskEditMilestone
	}
	if cmd.Flags().Changed("parent") {
		patch.ParentTaskID = &taskEditParent
	}
	if cmd.Flags().Changed("blocked-by") {
		patch.BlockedBy = taskEditBlockedBy
		if patch.BlockedBy == nil {
			patch.BlockedBy = []string{}
		}
	}

	empty := ""
	for _, field := range taskEditClear {
		switch strings.TrimSpace(field) {
		case "desc", "description":
			patch.Description = &empty
		case "tags":
			patch.Tags = []string{}
		case "assignee":
			patch.Assignee = &empty
		case "milestone":
			patch.Milestone = &empty
		case "parent":
			patch.ParentTaskID = &empty
		case "blocked-by":
			patch.BlockedBy = []string{}
		default:
			return models.TaskPatch{}, fmt.Errorf("cannot clear field %q (clearable: desc, tags, assignee, milestone, parent, blocked-by)", field)
		}
	}

	return patch, nil
}

// --- tasks move ---

var taskMoveIndex int

var taskMoveCmd = &cobra.Command{
	Use:   "move <task-id> <status>",
	Short: "Move a task to another column",
	Long: `Move a task to the given column. Without --at the task lands at the
end of the column; with --at it is inserted at the given zero-based
position and the column is renumbered.

Blocked-by references never prevent a move; the board only shows a badge.

  zy tasks move TASK-00042 in-progress
  zy tasks move TASK-00042 review --at 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		taskID := args[0]
		target := models.TaskStatus(args[1])

		var task *models.Task
		var err error
		if cmd.Flags().Changed("at") {
			task, err = Dispatcher.MoveTaskAt(cmd.Context(), Project, taskID, target, taskMoveIndex)
		} else {
			task, err = Dispatcher.MoveTask(cmd.Context(), Project, taskID, target)
		}
		if err != nil {
			return fmt.Errorf("moving task %s: %w", taskID, err)
		}

		fmt.Printf("Moved %s to %s (position %d)\n", task.ID, task.Status, task.Order)
		return nil
	},
}

// --- tasks reorder ---

var taskReorderCmd = &cobra.Command{
	Use:   "reorder <task-id> <index>",
	Short: "Move a task to a new position within its column",
	Long: `Move a task to the given zero-based position within its current
column. Out-of-range positions clamp to the nearest end.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		var index int
		if _, err := fmt.Sscanf(args[1], "%d", &index); err != nil {
			return fmt.Errorf("invalid position %q: %w", args[1], err)
		}

		task, err := Dispatcher.ReorderTask(cmd.Context(), Project, args[0], index)
		if err != nil {
			return fmt.Errorf("reordering task %s: %w", args[0], err)
		}

		fmt.Printf("Moved %s to position %d in %s\n", task.ID, task.Order, task.Status)
		return nil
	},
}

// --- tasks restore ---

var taskRestoreCmd = &cobra.Command{
	Use:   "restore <task-id> <status>",
	Short: "Restore an archived task",
	Long: `Restore an archived task into the named column. The target column is
required; there is no implicit "previous status".

  zy tasks restore TASK-00042 todo`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		task, err := Dispatcher.RestoreTask(cmd.Context(), Project, args[0], models.TaskStatus(args[1]))
		if err != nil {
			return fmt.Errorf("restoring task %s: %w", args[0], err)
		}

		fmt.Printf("Restored %s to %s (position %d)\n", task.ID, task.Status, task.Order)
		return nil
	},
}

// --- tasks search ---

var taskSearchJSON bool

var taskSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search tasks by substring",
	Long:  `Search the project's tasks by case-insensitive substring across title, description, and tags.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		tasks, err := Dispatcher.Store().SearchTasks(cmd.Context(), Project, args[0])
		if err != nil {
			return fmt.Errorf("searching tasks: %w", err)
		}

		if taskSearchJSON {
			data, err := json.MarshalIndent(tasks, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting tasks as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(tasks) == 0 {
			fmt.Println("No matching tasks.")
			return nil
		}

		for _, t := range tasks {
			fmt.Printf("  %-12s %-12s %-8s %s\n", t.ID, t.Status, t.Priority, t.Title)
		}
		return nil
	},
}

// --- tasks delete ---

var taskDeleteHard bool

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Archive a task, or permanently delete an archived one",
	Long: `Delete a task. By default this archives it, keeping it restorable
with "zy tasks restore".

Use --hard to permanently remove a task from the store. Hard deletion
only works on tasks that are already archived; this keeps a single
reversible step between the board and permanent loss.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		if taskDeleteHard {
			if err := Dispatcher.DeleteTask(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting task %s: %w", args[0], err)
			}
			fmt.Printf("Permanently deleted %s\n", args[0])
			return nil
		}

		task, err := Dispatcher.ArchiveTask(cmd.Context(), Project, args[0])
		if err != nil {
			return fmt.Errorf("archiving task %s: %w", args[0], err)
		}
		fmt.Printf("Archived %s (restore with: zy tasks restore %s <status>)\n", task.ID, task.ID)
		return nil
	},
}

func init() {
	// tasks add flags
	taskAddCmd.Flags().StringVar(&taskAddDesc, "desc", "", "Task description")
	taskAddCmd.Flags().StringVar(&taskAddPriority, "priority", "", "Task priority (low, medium, high)")
	taskAddCmd.Flags().StringSliceVar(&taskAddTags, "tags", nil, "Comma-separated tags")
	taskAddCmd.Flags().StringVar(&taskAddAssignee, "assignee", "", "Task assignee (e.g. @username)")
	taskAddCmd.Flags().StringVar(&taskAddMilestone, "milestone", "", "Milestone the task belongs to")
	taskAddCmd.Flags().StringVar(&taskAddParent, "parent", "", "Parent task ID (parents cannot themselves be subtasks)")
	taskAddCmd.Flags().StringSliceVar(&taskAddBlockedBy, "blocked-by", nil, "Comma-separated task IDs this task is blocked by")
	_ = taskAddCmd.RegisterFlagCompletionFunc("priority", completePriorities)
	_ = taskAddCmd.RegisterFlagCompletionFunc("parent", completeTaskIDFlag)

	// tasks list flags
	taskListCmd.Flags().BoolVar(&taskListKanban, "kanban", false, "Render the board as kanban columns")
	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "Filter by status (todo, in-progress, review, done, archived)")
	taskListCmd.Flags().StringVar(&taskListPriority, "priority", "", "Filter by priority (low, medium, high)")
	taskListCmd.Flags().StringVar(&taskListAssignee, "assignee", "", "Filter by assignee")
	taskListCmd.Flags().StringVar(&taskListMilestone, "milestone", "", "Filter by milestone")
	taskListCmd.Flags().StringSliceVar(&taskListTags, "tags", nil, "Filter by tags (task must carry all)")
	taskListCmd.Flags().BoolVar(&taskListJSON, "json", false, "Output tasks as JSON")
	taskListCmd.Flags().BoolVar(&taskListArchived, "archived", false, "Include archived tasks in the listing")
	_ = taskListCmd.RegisterFlagCompletionFunc("status", completeStatuses)
	_ = taskListCmd.RegisterFlagCompletionFunc("priority", completePriorities)

	// tasks show completions
	taskShowCmd.ValidArgsFunction = completeTaskIDs()

	// tasks edit flags
	taskEditCmd.Flags().StringVar(&taskEditTitle, "title", "", "New title")
	taskEditCmd.Flags().StringVar(&taskEditDesc, "desc", "", "New description")
	taskEditCmd.Flags().StringVar(&taskEditPriority, "priority", "", "New priority (low, medium, high)")
	taskEditCmd.Flags().StringSliceVar(&taskEditTags, "tags", nil, "Replace tags (comma-separated)")
	taskEditCmd.Flags().StringVar(&taskEditAssignee, "assignee", "", "New assignee")
	taskEditCmd.Flags().StringVar(&taskEditMilestone, "milestone", "", "New milestone")
	taskEditCmd.Flags().StringVar(&taskEditParent, "parent", "", "New parent task ID")
	taskEditCmd.Flags().StringSliceVar(&taskEditBlockedBy, "blocked-by", nil, "Replace blocked-by references (comma-separated)")
	taskEditCmd.Flags().StringSliceVar(&taskEditClear, "clear", nil, "Fields to clear (desc, tags, assignee, milestone, parent, blocked-by)")
	taskEditCmd.ValidArgsFunction = completeTaskIDs()
	_ = taskEditCmd.RegisterFlagCompletionFunc("priority", completePriorities)
	_ = taskEditCmd.RegisterFlagCompletionFunc("parent", completeTaskIDFlag)

	// tasks move flags and completions
	taskMoveCmd.Flags().IntVar(&taskMoveIndex, "at", 0, "Zero-based position in the target column (default: append to end)")
	taskMoveCmd.ValidArgsFunction = completeMoveArgs

	// tasks reorder completions
	taskReorderCmd.ValidArgsFunction = completeTaskIDs(models.StatusArchived)

	// tasks restore completions
	taskRestoreCmd.ValidArgsFunction = completeRestoreArgs

	// tasks search flags
	taskSearchCmd.Flags().BoolVar(&taskSearchJSON, "json", false, "Output matches as JSON")

	// tasks delete flags and completions
	taskDeleteCmd.Flags().BoolVar(&taskDeleteHard, "hard", false, "Permanently delete (only valid for archived tasks)")
	taskDeleteCmd.ValidArgsFunction = completeTaskIDs()

	// Register all subcommands
	tasksCmd.AddCommand(taskAddCmd)
	tasksCmd.AddCommand(taskListCmd)
	tasksCmd.AddCommand(taskShowCmd)
	tasksCmd.AddCommand(taskEditCmd)
	tasksCmd.AddCommand(taskMoveCmd)
	tasksCmd.AddCommand(taskReorderCmd)
	tasksCmd.AddCommand(taskRestoreCmd)
	tasksCmd.AddCommand(taskSearchCmd)
	tasksCmd.AddCommand(taskDeleteCmd)

	rootCmd.AddCommand(tasksCmd)
}
