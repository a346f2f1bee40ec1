package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/redgreen/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify Redgreen configuration",
	Long: `View or modify Redgreen configuration.

Without arguments, displays the current configuration.
Use subcommands to create a config file or locate the active one.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/redgreen/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("workflow:")
	fmt.Printf("  id: %s\n", cfg.Workflow.ID)
	fmt.Printf("  backlog_path: %s\n", cfg.Workflow.BacklogPath)
	fmt.Printf("  capacity_points: %d\n", cfg.Workflow.CapacityPoints)

	fmt.Println("conflict:")
	fmt.Printf("  overlap_weight: %g\n", cfg.Conflict.OverlapWeight)
	fmt.Printf("  dependency_weight: %g\n", cfg.Conflict.DependencyWeight)
	fmt.Printf("  history_weight: %g\n", cfg.Conflict.HistoryWeight)
	fmt.Printf("  decay_half_life_minutes: %d\n", cfg.Conflict.DecayHalfLifeMinutes)
	fmt.Printf("  soft_threshold: %g\n", cfg.Conflict.SoftThreshold)
	fmt.Printf("  hard_threshold: %g\n", cfg.Conflict.HardThreshold)
	fmt.Printf("  watch_enabled: %v\n", cfg.Conflict.WatchEnabled)

	fmt.Println("locks:")
	fmt.Printf("  lease_ttl_seconds: %d\n", cfg.Locks.LeaseTTLSeconds)
	fmt.Printf("  heartbeat_seconds: %d\n", cfg.Locks.HeartbeatSeconds)

	fmt.Println("pool:")
	fmt.Printf("  min_workers: %d\n", cfg.Pool.MinWorkers)
	fmt.Printf("  max_workers: %d\n", cfg.Pool.MaxWorkers)
	fmt.Printf("  high_watermark: %g\n", cfg.Pool.HighWatermark)
	fmt.Printf("  low_watermark: %g\n", cfg.Pool.LowWatermark)
	fmt.Printf("  evaluation_window_seconds: %d\n", cfg.Pool.EvaluationWindowSeconds)
	fmt.Printf("  cooldown_seconds: %d\n", cfg.Pool.CooldownSeconds)
	fmt.Println("  capabilities:")
	for _, capability := range config.ValidCapabilities() {
		if count, ok := cfg.Pool.Capabilities[capability]; ok {
			fmt.Printf("    %s: %d\n", capability, count)
		}
	}

	fmt.Println("coordinator:")
	fmt.Printf("  max_parallel_cycles: %d\n", cfg.Coordinator.MaxParallelCycles)
	fmt.Printf("  phase_timeout_minutes: %d\n", cfg.Coordinator.PhaseTimeoutMinutes)
	fmt.Printf("  max_strikes: %d\n", cfg.Coordinator.MaxStrikes)
	fmt.Printf("  tick_ms: %d\n", cfg.Coordinator.TickMs)
	fmt.Printf("  schedule_soft_conflicts: %v\n", cfg.Coordinator.ScheduleSoftConflicts)

	fmt.Println("persistence:")
	fmt.Printf("  backend: %s\n", cfg.Persistence.Backend)
	if cfg.Persistence.Path != "" {
		fmt.Printf("  path: %s\n", cfg.Persistence.Path)
	}

	fmt.Println("agent:")
	fmt.Printf("  backend: %s\n", cfg.Agent.Backend)
	fmt.Printf("  binary: %s\n", cfg.Agent.Binary)
	if len(cfg.Agent.Flags) > 0 {
		fmt.Printf("  flags: %s\n", strings.Join(cfg.Agent.Flags, " "))
	}

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Printf("  max_backups: %d\n", cfg.Logging.MaxBackups)

	fmt.Println("paths:")
	if cfg.Paths.RunDir != "" {
		fmt.Printf("  run_dir: %s\n", cfg.Paths.RunDir)
	} else {
		fmt.Printf("  run_dir: .redgreen (default)\n")
	}

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Redgreen Configuration
# See: https://github.com/Iron-Ham/redgreen

# Workflow and sprint planning
workflow:
  # Workflow identifier used in checkpoints and logs
  id: default
  # Path to the backlog file
  backlog_path: backlog.yaml
  # Story point budget per sprint
  capacity_points: 20

# Conflict detection between candidate cycles
conflict:
  # Scoring weights: overlap is the strongest signal
  overlap_weight: 0.75
  dependency_weight: 0.35
  history_weight: 0.15
  # Prior conflicts halve in weight every this many minutes
  decay_half_life_minutes: 60
  # Score thresholds for Soft and Hard classification
  soft_threshold: 0.35
  hard_threshold: 0.7
  # Watch the filesystem for writes outside declared footprints
  watch_enabled: false

# Footprint lock leases
locks:
  lease_ttl_seconds: 90
  heartbeat_seconds: 30

# Worker pool sizing per capability
pool:
  min_workers: 1
  max_workers: 8
  high_watermark: 0.8
  low_watermark: 0.3
  evaluation_window_seconds: 60
  cooldown_seconds: 120
  capabilities:
    design: 1
    test: 2
    code: 2
    refactor: 1
    analyze: 1

# Scheduling loop
coordinator:
  # Maximum concurrently active cycles
  max_parallel_cycles: 3
  # Phase deadline; a timeout counts as a strike (0 disables)
  phase_timeout_minutes: 10
  # Consecutive failures before a cycle is blocked
  max_strikes: 3
  tick_ms: 100
  # Run Soft-conflicting cycles concurrently, flagged for review
  schedule_soft_conflicts: true

# Checkpoint storage: file or sqlite
persistence:
  backend: file

# Agent backend that executes phase work
agent:
  backend: claude
  binary: claude

# Engine logging
logging:
  enabled: true
  level: info
  max_size_mb: 10
  max_backups: 3
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	fmt.Println("Edit this file to customize Redgreen's behavior.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Println("\nSearch paths:")
	fmt.Printf("  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Printf("  2. $HOME/.config/redgreen/config.yaml\n")
	fmt.Printf("  3. ./config.yaml (current directory)\n")
	fmt.Println("\nEnvironment variables: REDGREEN_* (e.g., REDGREEN_COORDINATOR_MAX_PARALLEL_CYCLES)")

	return nil
}
