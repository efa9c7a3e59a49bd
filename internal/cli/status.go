package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zenyard/zy/internal/core"
	"github.com/zenyard/zy/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show task counts per board column",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		tasks, err := Dispatcher.Store().ListTasks(cmd.Context(), Project)
		if err != nil {
			return fmt.Errorf("listing tasks: %w", err)
		}

		groups := core.GroupByStatus(tasks)

		fmt.Printf("Project %s\n\n", Project)
		total := 0
		for _, status := range append(core.ColumnOrder, models.StatusArchived) {
			count := len(groups[status])
			total += count
			fmt.Printf("  %-14s %d\n", string(status)+":", count)
		}
		fmt.Printf("\n  Total: %d\n", total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
