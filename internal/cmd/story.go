package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/redgreen/internal/backlog"
	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/cycle"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/store"
	"github.com/Iron-Ham/redgreen/internal/workflow"
)

var startCmd = &cobra.Command{
	Use:   "start <story>",
	Short: "Queue a TDD cycle for a story",
	Long: `Start records a new cycle for the story in the checkpoint. The cycle
begins in the design phase; the next 'redgreen run' picks it up,
acquires its footprint locks, and dispatches it.

The sprint must be active and the story part of it.`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <story>",
	Short: "Cancel a story's running cycle",
	Long: `Cancel marks the story's cycle as cancelling in the checkpoint. The
next 'redgreen run' finalizes it: locks are released and the worker is
returned, but any phase already in flight finishes first.`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <story>",
	Short: "Return a blocked cycle to work",
	Long: `Unblock resets a blocked cycle's strike counter and returns it to the
phase it was interrupted in. Use it after resolving whatever made the
phase fail repeatedly.`,
	Args: cobra.ExactArgs(1),
	RunE: runUnblock,
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(unblockCmd)
}

// mutateCheckpoint loads the workflow's checkpoint, applies fn, and
// saves the result. The engine reads the mutation on its next restore.
func mutateCheckpoint(cmd *cobra.Command, cfg *config.Config, fn func(*store.Snapshot) error) error {
	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	snap, err := st.LoadCheckpoint(cmd.Context(), cfg.Workflow.ID)
	if err != nil {
		return err
	}
	if err := fn(&snap); err != nil {
		return err
	}
	snap.SavedAt = time.Now()
	return st.SaveCheckpoint(cmd.Context(), cfg.Workflow.ID, snap)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	bl, err := backlog.Load(cfg.Workflow.BacklogPath)
	if err != nil {
		return err
	}
	story, ok := bl.ByID(args[0])
	if !ok {
		return errors.NewNotFoundError("story", args[0])
	}

	err = mutateCheckpoint(cmd, cfg, func(snap *store.Snapshot) error {
		return queueCycle(snap, story, cfg.Coordinator.MaxStrikes)
	})
	if err != nil {
		return err
	}
	fmt.Printf("Queued cycle for %s. It starts on the next 'redgreen run'.\n", story.ID)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	err = mutateCheckpoint(cmd, cfg, func(snap *store.Snapshot) error {
		return cancelCycle(snap, args[0])
	})
	if err != nil {
		return err
	}
	fmt.Printf("Cycle for %s marked cancelling.\n", args[0])
	return nil
}

func runUnblock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	err = mutateCheckpoint(cmd, cfg, func(snap *store.Snapshot) error {
		return unblockCycle(snap, args[0])
	})
	if err != nil {
		return err
	}
	fmt.Printf("Cycle for %s unblocked.\n", args[0])
	return nil
}

// queueCycle appends a fresh design-phase cycle for the story to the
// snapshot and registers it with the workflow.
func queueCycle(snap *store.Snapshot, story backlog.Story, maxStrikes int) error {
	if !snap.Workflow.State.CyclesMayRun() {
		return errors.NewTransitionError("cycles require an active sprint", errors.ErrIllegalTransition).
			WithState(string(snap.Workflow.State))
	}
	if !snap.Workflow.Sprint.Contains(story.ID) {
		return errors.NewNotFoundError("sprint story", story.ID)
	}
	for _, cs := range snap.Cycles {
		if cs.StoryID == story.ID {
			return errors.NewCycleError("cycle already registered", errors.ErrCycleExists).
				WithStoryID(story.ID)
		}
	}

	c := cycle.New(story.ID, story.Footprint,
		cycle.WithMaxStrikes(maxStrikes),
		cycle.WithCapabilityOverrides(story.CapabilityOverrides()),
	)
	snap.Cycles = append(snap.Cycles, c.Snapshot())
	if snap.Workflow.ActiveCycles == nil {
		snap.Workflow.ActiveCycles = make(map[string]string)
	}
	snap.Workflow.ActiveCycles[story.ID] = c.ID()
	return nil
}

// cancelCycle flags the story's cycle as cancelling. The engine
// finalizes it on the next run.
func cancelCycle(snap *store.Snapshot, storyID string) error {
	cs, err := findCycle(snap, storyID)
	if err != nil {
		return err
	}
	cs.Cancelling = true
	return nil
}

// unblockCycle resumes a blocked cycle in its prior phase with a reset
// strike counter, through the same transition logic the engine uses.
func unblockCycle(snap *store.Snapshot, storyID string) error {
	cs, err := findCycle(snap, storyID)
	if err != nil {
		return err
	}
	c := cycle.FromSnapshot(*cs)
	if err := c.Unblock(); err != nil {
		return err
	}
	*cs = c.Snapshot()
	return nil
}

// findCycle returns a pointer into the snapshot's cycle list.
func findCycle(snap *store.Snapshot, storyID string) (*cycle.Snapshot, error) {
	for i := range snap.Cycles {
		if snap.Cycles[i].StoryID == storyID {
			return &snap.Cycles[i], nil
		}
	}
	return nil, errors.NewCycleError("no cycle registered", errors.ErrCycleNotFound).
		WithStoryID(storyID)
}

// pauseWorkflow and resumeWorkflow run the sprint transition through
// the state machine so an illegal pause or resume is rejected the same
// way the engine rejects it.
func pauseWorkflow(snap *store.Snapshot) error {
	wf := workflow.FromSnapshot(snap.Workflow)
	if err := wf.PauseSprint(); err != nil {
		return err
	}
	snap.Workflow = wf.Snapshot()
	return nil
}

func resumeWorkflow(snap *store.Snapshot) error {
	wf := workflow.FromSnapshot(snap.Workflow)
	if err := wf.ResumeSprint(); err != nil {
		return err
	}
	snap.Workflow = wf.Snapshot()
	return nil
}
