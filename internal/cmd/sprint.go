package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the active sprint",
	Long: `Pause moves the checkpointed sprint to SPRINT_PAUSED. A running
engine picks the paused state up on its next restore; cycles already
in flight drain, but no new ones start until the sprint resumes.`,
	RunE: runPause,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused sprint",
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runPause(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := mutateCheckpoint(cmd, cfg, pauseWorkflow); err != nil {
		return err
	}
	fmt.Printf("Workflow %q paused.\n", cfg.Workflow.ID)
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := mutateCheckpoint(cmd, cfg, resumeWorkflow); err != nil {
		return err
	}
	fmt.Printf("Workflow %q resumed.\n", cfg.Workflow.ID)
	return nil
}
