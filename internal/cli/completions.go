package cli

import (
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/zenyard/zy/pkg/models"
)

// completionTimeout bounds store calls made during shell completion so a
// slow remote store cannot hang the shell.
const completionTimeout = 2 * time.Second

// completeTaskIDs returns a completion function that lists task IDs,
// optionally filtered to exclude certain statuses.
func completeTaskIDs(excludeStatuses ...models.TaskStatus) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return taskIDCompletions(toComplete, excludeStatuses...)
	}
}

// completeTaskIDFlag completes a flag value with task IDs.
func completeTaskIDFlag(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return taskIDCompletions(toComplete)
}

func taskIDCompletions(toComplete string, excludeStatuses ...models.TaskStatus) ([]string, cobra.ShellCompDirective) {
	if Dispatcher == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	tasks, err := Dispatcher.Store().ListTasks(ctx, Project)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	exclude := make(map[models.TaskStatus]bool)
	for _, s := range excludeStatuses {
		exclude[s] = true
	}

	var ids []string
	for _, task := range tasks {
		if exclude[task.Status] {
			continue
		}
		if toComplete == "" || strings.HasPrefix(task.ID, toComplete) {
			// Include status and title as description for better UX.
			ids = append(ids, task.ID+"\t"+string(task.Status)+": "+task.Title)
		}
	}

	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeStatuses returns completion values for task statuses.
func completeStatuses(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"todo\tQueued for future work",
		"in-progress\tActively being worked on",
		"review\tIn review",
		"done\tCompleted",
		"archived\tArchived (off the board)",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeBoardStatuses completes the non-archived columns only.
func completeBoardStatuses(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"todo\tQueued for future work",
		"in-progress\tActively being worked on",
		"review\tIn review",
		"done\tCompleted",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completePriorities returns completion values for priorities.
func completePriorities(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"high\tUrgent",
		"medium\tNormal",
		"low\tWhen time allows",
	}, cobra.ShellCompDirectiveNoFileComp
}

// completeMoveArgs completes "tasks move <task-id> <status>".
func completeMoveArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return taskIDCompletions(toComplete, models.StatusArchived)
	case 1:
		return completeBoardStatuses(cmd, args, toComplete)
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// completeRestoreArgs completes "tasks restore <task-id> <status>": only
// archived tasks for the first argument, only board columns for the second.
func completeRestoreArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	switch len(args) {
	case 0:
		return archivedTaskIDCompletions(toComplete)
	case 1:
		return completeBoardStatuses(cmd, args, toComplete)
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func archivedTaskIDCompletions(toComplete string) ([]string, cobra.ShellCompDirective) {
	if Dispatcher == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	ctx, cancel := context.WithTimeout(context.Background(), completionTimeout)
	defer cancel()

	tasks, err := Dispatcher.Store().ListTasks(ctx, Project)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, task := range tasks {
		if task.Status != models.StatusArchived {
			continue
		}
		if toComplete == "" || strings.HasPrefix(task.ID, toComplete) {
			ids = append(ids, task.ID+"\t"+task.Title)
		}
	}

	return ids, cobra.ShellCompDirectiveNoFileComp
}
