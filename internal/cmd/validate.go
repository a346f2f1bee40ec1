package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/redgreen/internal/backlog"
)

var validateCmd = &cobra.Command{
	Use:   "validate [backlog file]",
	Short: "Validate the backlog and configuration",
	Long: `Validate parses the backlog file and reports every problem it finds:
duplicate or missing story IDs, empty footprints, unknown dependencies,
and dependency cycles. The effective configuration is validated too.

The backlog path defaults to workflow.backlog_path from the
configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	path := cfg.Workflow.BacklogPath
	if len(args) > 0 {
		path = args[0]
	}

	bl, err := backlog.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Backlog %s is valid: %d stories, %d points total\n",
		path, len(bl.Stories), bl.TotalPoints())
	for _, story := range bl.Stories {
		deps := ""
		if story.HasDependencies() {
			deps = "  depends on " + strings.Join(story.DependsOn, ", ")
		}
		fmt.Printf("  %-12s p%-3d %2dpt  %s%s\n",
			story.ID, story.Priority, story.Points, story.Title, deps)
	}
	return nil
}
