package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
	Long: `Commands for the active project selection.

Every task belongs to exactly one project; all task commands operate on
the active project recorded in .zyconfig.`,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Project == "" {
			fmt.Println("No active project (run: zy projects use <name>)")
			return nil
		}
		fmt.Printf("Active project: %s\n", Project)
		return nil
	},
}

var projectsUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the active project",
	Long: `Switch the active project and persist the choice to .zyconfig.
Subsequent task commands operate on the new project.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ConfigMgr == nil || Cfg == nil {
			return fmt.Errorf("configuration not initialized")
		}

		Cfg.ActiveProject = args[0]
		if err := ConfigMgr.SaveConfig(Cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		Project = args[0]

		fmt.Printf("Active project set to %s\n", args[0])
		return nil
	},
}

func init() {
	projectsCmd.AddCommand(projectsShowCmd)
	projectsCmd.AddCommand(projectsUseCmd)
	rootCmd.AddCommand(projectsCmd)
}
