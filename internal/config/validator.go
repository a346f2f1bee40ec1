package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "pool.max_workers")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidPersistenceBackends returns the list of valid checkpoint backends
func ValidPersistenceBackends() []string {
	return []string{"file", "sqlite"}
}

// ValidAgentBackends returns the list of valid agent backends
func ValidAgentBackends() []string {
	return []string{"claude", "mock"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Workflow config
	errors = append(errors, c.validateWorkflow()...)

	// Validate Conflict config
	errors = append(errors, c.validateConflict()...)

	// Validate Lock config
	errors = append(errors, c.validateLocks()...)

	// Validate Pool config
	errors = append(errors, c.validatePool()...)

	// Validate Coordinator config
	errors = append(errors, c.validateCoordinator()...)

	// Validate Persistence config
	errors = append(errors, c.validatePersistence()...)

	// Validate Agent config
	errors = append(errors, c.validateAgent()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	// Validate Paths config
	errors = append(errors, c.validatePaths()...)

	return errors
}

// validateWorkflow validates the WorkflowConfig
func (c *Config) validateWorkflow() []ValidationError {
	var errors []ValidationError

	if c.Workflow.ID == "" {
		errors = append(errors, ValidationError{
			Field:   "workflow.id",
			Value:   c.Workflow.ID,
			Message: "cannot be empty",
		})
	}

	if c.Workflow.BacklogPath == "" {
		errors = append(errors, ValidationError{
			Field:   "workflow.backlog_path",
			Value:   c.Workflow.BacklogPath,
			Message: "cannot be empty",
		})
	}

	if c.Workflow.CapacityPoints < 1 {
		errors = append(errors, ValidationError{
			Field:   "workflow.capacity_points",
			Value:   c.Workflow.CapacityPoints,
			Message: "must be at least 1",
		})
	}

	return errors
}

// validateConflict validates the ConflictConfig
func (c *Config) validateConflict() []ValidationError {
	var errors []ValidationError

	// Weights must be non-negative
	if c.Conflict.OverlapWeight < 0 {
		errors = append(errors, ValidationError{
			Field:   "conflict.overlap_weight",
			Value:   c.Conflict.OverlapWeight,
			Message: "must be non-negative",
		})
	}
	if c.Conflict.DependencyWeight < 0 {
		errors = append(errors, ValidationError{
			Field:   "conflict.dependency_weight",
			Value:   c.Conflict.DependencyWeight,
			Message: "must be non-negative",
		})
	}
	if c.Conflict.HistoryWeight < 0 {
		errors = append(errors, ValidationError{
			Field:   "conflict.history_weight",
			Value:   c.Conflict.HistoryWeight,
			Message: "must be non-negative",
		})
	}

	// At least one factor must contribute to the score
	totalWeight := c.Conflict.OverlapWeight + c.Conflict.DependencyWeight + c.Conflict.HistoryWeight
	if totalWeight <= 0 {
		errors = append(errors, ValidationError{
			Field:   "conflict.overlap_weight",
			Value:   totalWeight,
			Message: "weights must sum to a positive value",
		})
	}

	if c.Conflict.DecayHalfLifeMinutes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "conflict.decay_half_life_minutes",
			Value:   c.Conflict.DecayHalfLifeMinutes,
			Message: "must be positive",
		})
	}

	// Thresholds split the score range into None / Soft / Hard
	if c.Conflict.SoftThreshold < 0 || c.Conflict.SoftThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "conflict.soft_threshold",
			Value:   c.Conflict.SoftThreshold,
			Message: "must be between 0 and 1",
		})
	}
	if c.Conflict.HardThreshold < 0 || c.Conflict.HardThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "conflict.hard_threshold",
			Value:   c.Conflict.HardThreshold,
			Message: "must be between 0 and 1",
		})
	}
	if c.Conflict.SoftThreshold >= c.Conflict.HardThreshold {
		errors = append(errors, ValidationError{
			Field:   "conflict.soft_threshold",
			Value:   c.Conflict.SoftThreshold,
			Message: fmt.Sprintf("must be less than hard_threshold (%v)", c.Conflict.HardThreshold),
		})
	}

	// Validate watch directory if specified
	if c.Conflict.WatchDir != "" {
		if strings.ContainsRune(c.Conflict.WatchDir, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "conflict.watch_dir",
				Value:   c.Conflict.WatchDir,
				Message: "path contains invalid null character",
			})
		}
	}

	return errors
}

// validateLocks validates the LockConfig
func (c *Config) validateLocks() []ValidationError {
	var errors []ValidationError

	if c.Locks.HeartbeatSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "locks.heartbeat_seconds",
			Value:   c.Locks.HeartbeatSeconds,
			Message: "must be positive",
		})
	}

	if c.Locks.LeaseTTLSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "locks.lease_ttl_seconds",
			Value:   c.Locks.LeaseTTLSeconds,
			Message: "must be positive",
		})
	}

	// A lease that expires before two heartbeats can fire will flap under
	// normal scheduling jitter
	if c.Locks.HeartbeatSeconds > 0 && c.Locks.LeaseTTLSeconds < 2*c.Locks.HeartbeatSeconds {
		errors = append(errors, ValidationError{
			Field:   "locks.lease_ttl_seconds",
			Value:   c.Locks.LeaseTTLSeconds,
			Message: fmt.Sprintf("must be at least twice heartbeat_seconds (%d)", c.Locks.HeartbeatSeconds),
		})
	}

	return errors
}

// validatePool validates the PoolConfig
func (c *Config) validatePool() []ValidationError {
	var errors []ValidationError

	const maxWorkersLimit = 64

	if c.Pool.MinWorkers < 1 {
		errors = append(errors, ValidationError{
			Field:   "pool.min_workers",
			Value:   c.Pool.MinWorkers,
			Message: "must be at least 1",
		})
	}
	if c.Pool.MaxWorkers < c.Pool.MinWorkers {
		errors = append(errors, ValidationError{
			Field:   "pool.max_workers",
			Value:   c.Pool.MaxWorkers,
			Message: fmt.Sprintf("must be at least min_workers (%d)", c.Pool.MinWorkers),
		})
	}
	if c.Pool.MaxWorkers > maxWorkersLimit {
		errors = append(errors, ValidationError{
			Field:   "pool.max_workers",
			Value:   c.Pool.MaxWorkers,
			Message: fmt.Sprintf("exceeds maximum of %d", maxWorkersLimit),
		})
	}

	// Watermarks are utilization ratios
	if c.Pool.HighWatermark <= 0 || c.Pool.HighWatermark > 1 {
		errors = append(errors, ValidationError{
			Field:   "pool.high_watermark",
			Value:   c.Pool.HighWatermark,
			Message: "must be between 0 (exclusive) and 1",
		})
	}
	if c.Pool.LowWatermark < 0 || c.Pool.LowWatermark > 1 {
		errors = append(errors, ValidationError{
			Field:   "pool.low_watermark",
			Value:   c.Pool.LowWatermark,
			Message: "must be between 0 and 1",
		})
	}
	if c.Pool.LowWatermark >= c.Pool.HighWatermark {
		errors = append(errors, ValidationError{
			Field:   "pool.low_watermark",
			Value:   c.Pool.LowWatermark,
			Message: fmt.Sprintf("must be less than high_watermark (%v)", c.Pool.HighWatermark),
		})
	}

	if c.Pool.EvaluationWindowSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "pool.evaluation_window_seconds",
			Value:   c.Pool.EvaluationWindowSeconds,
			Message: "must be positive",
		})
	}
	if c.Pool.CooldownSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "pool.cooldown_seconds",
			Value:   c.Pool.CooldownSeconds,
			Message: "must be non-negative",
		})
	}

	// Validate the capability mix
	for name, count := range c.Pool.Capabilities {
		if !IsValidCapability(name) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("pool.capabilities.%s", name),
				Value:   name,
				Message: fmt.Sprintf("unknown capability; must be one of: %s", strings.Join(ValidCapabilities(), ", ")),
			})
		}
		if count < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("pool.capabilities.%s", name),
				Value:   count,
				Message: "worker count must be non-negative",
			})
		}
		if count > c.Pool.MaxWorkers {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("pool.capabilities.%s", name),
				Value:   count,
				Message: fmt.Sprintf("worker count exceeds max_workers (%d)", c.Pool.MaxWorkers),
			})
		}
	}

	return errors
}

// validateCoordinator validates the CoordinatorConfig
func (c *Config) validateCoordinator() []ValidationError {
	var errors []ValidationError

	const minMaxParallel = 1
	const maxMaxParallel = 20

	if c.Coordinator.MaxParallelCycles < minMaxParallel {
		errors = append(errors, ValidationError{
			Field:   "coordinator.max_parallel_cycles",
			Value:   c.Coordinator.MaxParallelCycles,
			Message: fmt.Sprintf("must be at least %d", minMaxParallel),
		})
	}
	if c.Coordinator.MaxParallelCycles > maxMaxParallel {
		errors = append(errors, ValidationError{
			Field:   "coordinator.max_parallel_cycles",
			Value:   c.Coordinator.MaxParallelCycles,
			Message: fmt.Sprintf("exceeds maximum of %d", maxMaxParallel),
		})
	}

	// Timeout of 0 means disabled, which is valid; negative is invalid
	if c.Coordinator.PhaseTimeoutMinutes < 0 {
		errors = append(errors, ValidationError{
			Field:   "coordinator.phase_timeout_minutes",
			Value:   c.Coordinator.PhaseTimeoutMinutes,
			Message: "must be non-negative (0 disables timeout)",
		})
	}

	if c.Coordinator.MaxStrikes < 1 {
		errors = append(errors, ValidationError{
			Field:   "coordinator.max_strikes",
			Value:   c.Coordinator.MaxStrikes,
			Message: "must be at least 1",
		})
	}

	// Tick interval bounds
	const minTick = 10   // 10ms minimum
	const maxTick = 5000 // 5 seconds maximum

	if c.Coordinator.TickMs < minTick {
		errors = append(errors, ValidationError{
			Field:   "coordinator.tick_ms",
			Value:   c.Coordinator.TickMs,
			Message: fmt.Sprintf("must be at least %dms", minTick),
		})
	}
	if c.Coordinator.TickMs > maxTick {
		errors = append(errors, ValidationError{
			Field:   "coordinator.tick_ms",
			Value:   c.Coordinator.TickMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxTick),
		})
	}

	return errors
}

// validatePersistence validates the PersistenceConfig
func (c *Config) validatePersistence() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidPersistenceBackends(), c.Persistence.Backend) {
		errors = append(errors, ValidationError{
			Field:   "persistence.backend",
			Value:   c.Persistence.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPersistenceBackends(), ", ")),
		})
	}

	if c.Persistence.Path != "" {
		path := c.Persistence.Path

		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "persistence.path",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "persistence.path",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}

// validateAgent validates the AgentConfig
func (c *Config) validateAgent() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidAgentBackends(), c.Agent.Backend) {
		errors = append(errors, ValidationError{
			Field:   "agent.backend",
			Value:   c.Agent.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidAgentBackends(), ", ")),
		})
	}

	// The claude backend shells out to a binary
	if c.Agent.Backend == "claude" && c.Agent.Binary == "" {
		errors = append(errors, ValidationError{
			Field:   "agent.binary",
			Value:   c.Agent.Binary,
			Message: "cannot be empty when agent.backend is 'claude'",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	// RunDir validation - if set, check for invalid characters
	if c.Paths.RunDir != "" {
		path := c.Paths.RunDir

		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "paths.run_dir",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "paths.run_dir",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}
