package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Redgreen configuration
type Config struct {
	Workflow    WorkflowConfig    `mapstructure:"workflow"`
	Conflict    ConflictConfig    `mapstructure:"conflict"`
	Locks       LockConfig        `mapstructure:"locks"`
	Pool        PoolConfig        `mapstructure:"pool"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Paths       PathsConfig       `mapstructure:"paths"`
}

// WorkflowConfig controls sprint planning behavior
type WorkflowConfig struct {
	// ID identifies the workflow instance in checkpoints and logs (default: "default")
	ID string `mapstructure:"id"`
	// BacklogPath is the path to the backlog YAML file (default: "backlog.yaml")
	BacklogPath string `mapstructure:"backlog_path"`
	// CapacityPoints is the story point budget for a sprint. Stories are
	// selected by priority until the budget is exhausted (default: 20)
	CapacityPoints int `mapstructure:"capacity_points"`
}

// ConflictConfig controls conflict detection scoring.
// The three weights are combined into a single score per candidate pairing;
// the thresholds split scores into None, Soft, and Hard classifications.
type ConflictConfig struct {
	// OverlapWeight is the coefficient for footprint set intersection,
	// the strongest conflict signal. Identical footprints alone must land
	// at or above hard_threshold (default: 0.75)
	OverlapWeight float64 `mapstructure:"overlap_weight"`
	// DependencyWeight is the coefficient for declared dependency edges
	// between stories (default: 0.35)
	DependencyWeight float64 `mapstructure:"dependency_weight"`
	// HistoryWeight is the coefficient for recency-weighted prior conflicts
	// between the same pairing (default: 0.15)
	HistoryWeight float64 `mapstructure:"history_weight"`
	// DecayHalfLifeMinutes is the half-life for prior-conflict recency decay.
	// A conflict this many minutes old contributes half its original weight
	// (default: 60)
	DecayHalfLifeMinutes int `mapstructure:"decay_half_life_minutes"`
	// SoftThreshold is the score at or above which a pairing is classified
	// Soft (default: 0.35)
	SoftThreshold float64 `mapstructure:"soft_threshold"`
	// HardThreshold is the score at or above which a pairing is classified
	// Hard and must not be scheduled (default: 0.7)
	HardThreshold float64 `mapstructure:"hard_threshold"`
	// WatchEnabled enables the filesystem observer that reports file accesses
	// outside a story's declared footprint (default: false)
	WatchEnabled bool `mapstructure:"watch_enabled"`
	// WatchDir is the directory tree the observer watches. Empty means the
	// current working directory (default: "")
	WatchDir string `mapstructure:"watch_dir"`
}

// LockConfig controls resource lock leases
type LockConfig struct {
	// LeaseTTLSeconds is how long a lock lease lives without renewal before
	// it is reclaimed (default: 90, three heartbeat intervals)
	LeaseTTLSeconds int `mapstructure:"lease_ttl_seconds"`
	// HeartbeatSeconds is how often active cycles renew their leases
	// (default: 30)
	HeartbeatSeconds int `mapstructure:"heartbeat_seconds"`
}

// PoolConfig controls agent pool sizing
type PoolConfig struct {
	// MinWorkers is the lower bound on workers per capability (default: 1)
	MinWorkers int `mapstructure:"min_workers"`
	// MaxWorkers is the upper bound on workers per capability (default: 8)
	MaxWorkers int `mapstructure:"max_workers"`
	// HighWatermark is the utilization ratio above which the pool scales up
	// (default: 0.8)
	HighWatermark float64 `mapstructure:"high_watermark"`
	// LowWatermark is the utilization ratio below which the pool scales down,
	// at most one worker at a time (default: 0.3)
	LowWatermark float64 `mapstructure:"low_watermark"`
	// EvaluationWindowSeconds is how long utilization must stay beyond a
	// watermark before the pool resizes (default: 60)
	EvaluationWindowSeconds int `mapstructure:"evaluation_window_seconds"`
	// CooldownSeconds is the minimum time between consecutive resizes of the
	// same capability segment (default: 120)
	CooldownSeconds int `mapstructure:"cooldown_seconds"`
	// Capabilities is the initial worker count per capability type.
	// Keys must be valid capability names (default: design:1, test:2, code:2,
	// refactor:1, analyze:1)
	Capabilities map[string]int `mapstructure:"capabilities"`
}

// CoordinatorConfig controls the scheduling loop
type CoordinatorConfig struct {
	// MaxParallelCycles is the maximum number of concurrently active TDD
	// cycles (default: 3)
	MaxParallelCycles int `mapstructure:"max_parallel_cycles"`
	// PhaseTimeoutMinutes is the deadline for a single phase execution.
	// A timeout counts as a failure toward the strike limit (0 = disabled)
	PhaseTimeoutMinutes int `mapstructure:"phase_timeout_minutes"`
	// MaxStrikes is the number of consecutive failures before a cycle enters
	// BLOCKED (default: 3)
	MaxStrikes int `mapstructure:"max_strikes"`
	// TickMs is the scheduling loop interval in milliseconds (default: 100)
	TickMs int `mapstructure:"tick_ms"`
	// ScheduleSoftConflicts allows Soft-classified pairings to run
	// concurrently, flagged for review at sprint end (default: true)
	ScheduleSoftConflicts bool `mapstructure:"schedule_soft_conflicts"`
}

// PersistenceConfig controls checkpoint storage
type PersistenceConfig struct {
	// Backend selects the checkpoint store: "file" or "sqlite" (default: "file")
	Backend string `mapstructure:"backend"`
	// Path overrides the checkpoint location. Empty means the default path
	// inside the run directory (default: "")
	Path string `mapstructure:"path"`
}

// AgentConfig controls the agent backend that executes phases
type AgentConfig struct {
	// Backend selects the agent implementation: "claude" or "mock"
	// (default: "claude")
	Backend string `mapstructure:"backend"`
	// Binary is the agent CLI binary to invoke (default: "claude")
	Binary string `mapstructure:"binary"`
	// Flags are extra arguments passed to every agent invocation
	Flags []string `mapstructure:"flags"`
}

// LoggingConfig controls engine logging behavior
type LoggingConfig struct {
	// Enabled controls whether engine logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls where Redgreen stores run data
type PathsConfig struct {
	// RunDir is the directory where checkpoints, logs, and sprint archives
	// are written. If empty, defaults to ".redgreen" relative to the project
	// root. Can be an absolute path to store run data outside the project.
	// Supports ~ for home directory expansion.
	RunDir string `mapstructure:"run_dir"`
}

// ResolveRunDir returns the resolved run directory path.
// If RunDir is empty, it returns the default path relative to baseDir.
// If RunDir starts with ~, it expands to the user's home directory.
// If RunDir is a relative path, it's resolved relative to baseDir.
func (p *PathsConfig) ResolveRunDir(baseDir string) string {
	if p.RunDir == "" {
		return filepath.Join(baseDir, ".redgreen")
	}

	path := p.RunDir

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	// If relative path, resolve relative to baseDir
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Workflow: WorkflowConfig{
			ID:             "default",
			BacklogPath:    "backlog.yaml",
			CapacityPoints: 20,
		},
		Conflict: ConflictConfig{
			OverlapWeight:        0.75,
			DependencyWeight:     0.35,
			HistoryWeight:        0.15,
			DecayHalfLifeMinutes: 60,
			SoftThreshold:        0.35,
			HardThreshold:        0.7,
			WatchEnabled:         false,
			WatchDir:             "",
		},
		Locks: LockConfig{
			LeaseTTLSeconds:  90, // Three heartbeat intervals
			HeartbeatSeconds: 30,
		},
		Pool: PoolConfig{
			MinWorkers:              1,
			MaxWorkers:              8,
			HighWatermark:           0.8,
			LowWatermark:            0.3,
			EvaluationWindowSeconds: 60,
			CooldownSeconds:         120,
			Capabilities: map[string]int{
				"design":   1,
				"test":     2,
				"code":     2,
				"refactor": 1,
				"analyze":  1,
			},
		},
		Coordinator: CoordinatorConfig{
			MaxParallelCycles:     3,
			PhaseTimeoutMinutes:   10,
			MaxStrikes:            3,
			TickMs:                100,
			ScheduleSoftConflicts: true,
		},
		Persistence: PersistenceConfig{
			Backend: "file",
			Path:    "", // Empty means use default inside run_dir
		},
		Agent: AgentConfig{
			Backend: "claude",
			Binary:  "claude",
			Flags:   []string{},
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Paths: PathsConfig{
			RunDir: "", // Empty means use default: .redgreen
		},
	}
}

// DecayHalfLife returns the conflict history decay half-life as a time.Duration
func (c *ConflictConfig) DecayHalfLife() time.Duration {
	return time.Duration(c.DecayHalfLifeMinutes) * time.Minute
}

// LeaseTTL returns the lock lease TTL as a time.Duration
func (c *LockConfig) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

// HeartbeatInterval returns the lease renewal interval as a time.Duration
func (c *LockConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSeconds) * time.Second
}

// EvaluationWindow returns the utilization evaluation window as a time.Duration
func (c *PoolConfig) EvaluationWindow() time.Duration {
	return time.Duration(c.EvaluationWindowSeconds) * time.Second
}

// Cooldown returns the resize cooldown as a time.Duration
func (c *PoolConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// PhaseTimeout returns the phase deadline as a time.Duration (0 means disabled)
func (c *CoordinatorConfig) PhaseTimeout() time.Duration {
	return time.Duration(c.PhaseTimeoutMinutes) * time.Minute
}

// Tick returns the scheduling loop interval as a time.Duration
func (c *CoordinatorConfig) Tick() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Workflow defaults
	viper.SetDefault("workflow.id", defaults.Workflow.ID)
	viper.SetDefault("workflow.backlog_path", defaults.Workflow.BacklogPath)
	viper.SetDefault("workflow.capacity_points", defaults.Workflow.CapacityPoints)

	// Conflict defaults
	viper.SetDefault("conflict.overlap_weight", defaults.Conflict.OverlapWeight)
	viper.SetDefault("conflict.dependency_weight", defaults.Conflict.DependencyWeight)
	viper.SetDefault("conflict.history_weight", defaults.Conflict.HistoryWeight)
	viper.SetDefault("conflict.decay_half_life_minutes", defaults.Conflict.DecayHalfLifeMinutes)
	viper.SetDefault("conflict.soft_threshold", defaults.Conflict.SoftThreshold)
	viper.SetDefault("conflict.hard_threshold", defaults.Conflict.HardThreshold)
	viper.SetDefault("conflict.watch_enabled", defaults.Conflict.WatchEnabled)
	viper.SetDefault("conflict.watch_dir", defaults.Conflict.WatchDir)

	// Lock defaults
	viper.SetDefault("locks.lease_ttl_seconds", defaults.Locks.LeaseTTLSeconds)
	viper.SetDefault("locks.heartbeat_seconds", defaults.Locks.HeartbeatSeconds)

	// Pool defaults
	viper.SetDefault("pool.min_workers", defaults.Pool.MinWorkers)
	viper.SetDefault("pool.max_workers", defaults.Pool.MaxWorkers)
	viper.SetDefault("pool.high_watermark", defaults.Pool.HighWatermark)
	viper.SetDefault("pool.low_watermark", defaults.Pool.LowWatermark)
	viper.SetDefault("pool.evaluation_window_seconds", defaults.Pool.EvaluationWindowSeconds)
	viper.SetDefault("pool.cooldown_seconds", defaults.Pool.CooldownSeconds)
	viper.SetDefault("pool.capabilities", defaults.Pool.Capabilities)

	// Coordinator defaults
	viper.SetDefault("coordinator.max_parallel_cycles", defaults.Coordinator.MaxParallelCycles)
	viper.SetDefault("coordinator.phase_timeout_minutes", defaults.Coordinator.PhaseTimeoutMinutes)
	viper.SetDefault("coordinator.max_strikes", defaults.Coordinator.MaxStrikes)
	viper.SetDefault("coordinator.tick_ms", defaults.Coordinator.TickMs)
	viper.SetDefault("coordinator.schedule_soft_conflicts", defaults.Coordinator.ScheduleSoftConflicts)

	// Persistence defaults
	viper.SetDefault("persistence.backend", defaults.Persistence.Backend)
	viper.SetDefault("persistence.path", defaults.Persistence.Path)

	// Agent defaults
	viper.SetDefault("agent.backend", defaults.Agent.Backend)
	viper.SetDefault("agent.binary", defaults.Agent.Binary)
	viper.SetDefault("agent.flags", defaults.Agent.Flags)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Paths defaults
	viper.SetDefault("paths.run_dir", defaults.Paths.RunDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "redgreen")
	}
	// Fall back to ~/.config/redgreen
	home, err := os.UserHomeDir()
	if err != nil {
		return ".redgreen"
	}
	return filepath.Join(home, ".config", "redgreen")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidCapabilities returns the list of valid worker capability names.
// These values must match the pool package's capability types (defined
// separately to avoid circular import).
func ValidCapabilities() []string {
	return []string{"design", "test", "code", "refactor", "analyze"}
}

// IsValidCapability checks if the given capability name is valid
func IsValidCapability(capability string) bool {
	for _, valid := range ValidCapabilities() {
		if capability == valid {
			return true
		}
	}
	return false
}
