package cmd

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last checkpointed state",
	Long: `Status reads the workflow's checkpoint and prints the sprint state,
every cycle in it, held footprint locks, and the worker pool shape.
It never touches a running engine: the output is as fresh as the last
checkpoint save.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	snap, err := st.LoadCheckpoint(cmd.Context(), cfg.Workflow.ID)
	if errors.Is(err, errors.ErrNoCheckpoint) {
		fmt.Printf("No checkpoint found for workflow %q. Run 'redgreen run' first.\n", cfg.Workflow.ID)
		return nil
	}
	if err != nil {
		return err
	}

	printStatus(snap)
	return nil
}

func printStatus(snap store.Snapshot) {
	fmt.Printf("Workflow:  %s\n", snap.WorkflowID)
	fmt.Printf("State:     %s\n", snap.Workflow.State)
	fmt.Printf("Saved at:  %s\n", snap.SavedAt.Format("2006-01-02 15:04:05"))

	if sprint := snap.Workflow.Sprint; sprint != nil {
		fmt.Printf("Sprint:    #%d (%d stories, %d points)\n",
			sprint.Number, len(sprint.StoryIDs), sprint.CapacityPoints)
	}
	if n := len(snap.Workflow.Archive); n > 0 {
		fmt.Printf("Archived:  %d sprint(s)\n", n)
	}

	if len(snap.Cycles) > 0 {
		fmt.Println("\nCycles:")
		fmt.Printf("  %-12s %-12s %-8s %s\n", "STORY", "PHASE", "STRIKES", "NOTES")
		for _, cs := range snap.Cycles {
			fmt.Printf("  %-12s %-12s %-8s %s\n",
				cs.StoryID, cs.Phase, fmt.Sprintf("%d/%d", cs.Strikes, cs.MaxStrikes), cycleNotes(cs))
		}
	}

	if len(snap.Completed) > 0 {
		fmt.Println("\nCompleted:")
		for _, cs := range snap.Completed {
			note := ""
			if cs.ReviewFlag {
				note = "  (flagged for review)"
			}
			fmt.Printf("  %-12s %s%s\n", cs.StoryID, cs.Phase, note)
		}
	}

	if len(snap.Locks) > 0 {
		fmt.Println("\nLocks:")
		for _, l := range snap.Locks {
			fmt.Printf("  %-30s %-10s held by %s\n", l.Resource, l.Mode, strings.Join(l.Holders, ", "))
		}
	}

	if len(snap.PoolShape) > 0 {
		fmt.Println("\nPool:")
		for _, capability := range slices.Sorted(maps.Keys(snap.PoolShape)) {
			fmt.Printf("  %-10s %d worker(s)\n", capability, snap.PoolShape[capability])
		}
	}
}

// cycleNotes summarizes the non-phase flags of a cycle in one column.
func cycleNotes(cs cycle.Snapshot) string {
	var notes []string
	if cs.Cancelling {
		notes = append(notes, "cancelling")
	}
	if cs.Phase == cycle.PhaseBlocked {
		notes = append(notes, fmt.Sprintf("blocked in %s: %s", cs.PriorPhase, cs.BlockReason))
	}
	if cs.ReviewFlag {
		notes = append(notes, "review with "+strings.Join(cs.ReviewWith, ", "))
	}
	return strings.Join(notes, "; ")
}
