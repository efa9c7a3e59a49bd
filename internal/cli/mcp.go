package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	zymcp "github.com/zenyard/zy/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the zy MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zy MCP server on stdio",
	Long: `Start the zy MCP server on stdio transport.

The server exposes the task board as MCP tools that AI coding assistants
can call: list_tasks, get_task, create_task, move_task, archive_task,
restore_task, search_tasks, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Dispatcher == nil {
			return fmt.Errorf("task dispatcher not initialized")
		}

		srv := zymcp.NewServer(Dispatcher, Project, MetricsCalc, AlertEngine, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
