package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/redgreen/internal/agent"
	"github.com/Iron-Ham/redgreen/internal/backlog"
	"github.com/Iron-Ham/redgreen/internal/coordinator"
	"github.com/Iron-Ham/redgreen/internal/errors"
	"github.com/Iron-Ham/redgreen/internal/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the coordination engine",
	Long: `Run loads the backlog and drives the coordinator loop until
interrupted.

If a checkpoint exists for the configured workflow, the run resumes
from it: restored cycles continue in the phase they were checkpointed
in. Otherwise the backlog is groomed, a sprint is planned up to the
capacity budget, and work starts fresh.

SIGINT and SIGTERM pause the sprint, drain in-flight phases, and write
a final checkpoint before exiting.`,
	RunE: runRun,
}

var runCapacity int

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runCapacity, "capacity", 0, "Sprint capacity in story points (0 uses workflow.capacity_points)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runDir, err := resolveRunDir(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLoggerWithRotation(runDir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		})
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = log.Close() }()
	}

	bl, err := backlog.Load(cfg.Workflow.BacklogPath)
	if err != nil {
		return err
	}

	st, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	backend, err := agent.NewFromConfig(cfg.Agent)
	if err != nil {
		return err
	}

	engine := coordinator.New(cfg, st, backend, coordinator.WithLogger(log))
	engine.LoadStories(bl.Stories)

	switch err := engine.Restore(cmd.Context()); {
	case err == nil:
		fmt.Printf("Resumed workflow %q from checkpoint (state: %s)\n",
			cfg.Workflow.ID, engine.Workflow().State())
	case errors.Is(err, errors.ErrNoCheckpoint):
		if err := engine.GroomBacklog(); err != nil {
			return err
		}
		if err := engine.PlanSprint(runCapacity); err != nil {
			return err
		}
		if err := engine.StartSprint(); err != nil {
			return err
		}
		sprint, _ := engine.Workflow().CurrentSprint()
		fmt.Printf("Started sprint %d with %d stories\n", sprint.Number, len(sprint.StoryIDs))
	default:
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Pause before cancelling so the final checkpoint records a paused
	// sprint that a later run can resume.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, draining in-flight work...")
		if err := engine.PauseAll(); err != nil {
			log.Warn("pause on shutdown failed", "error", err.Error())
		}
		cancel()
	}()

	if err := engine.Run(ctx); err != nil {
		return err
	}

	fmt.Printf("Stopped. Checkpoint saved (state: %s)\n", engine.Workflow().State())
	return nil
}
