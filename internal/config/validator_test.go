package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	errs := cfg.Validate()
	if len(errs) != 0 {
		t.Errorf("Default config should be valid, got %d errors: %v", len(errs), errs)
	}
}

func TestConfig_Validate_Workflow(t *testing.T) {
	t.Run("empty id", func(t *testing.T) {
		cfg := Default()
		cfg.Workflow.ID = ""
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "workflow.id" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for empty workflow id")
		}
	})

	t.Run("empty backlog path", func(t *testing.T) {
		cfg := Default()
		cfg.Workflow.BacklogPath = ""
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "workflow.backlog_path" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for empty backlog path")
		}
	})

	t.Run("capacity points must be at least one", func(t *testing.T) {
		for _, points := range []int{0, -5} {
			cfg := Default()
			cfg.Workflow.CapacityPoints = points
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == "workflow.capacity_points" {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for capacity_points=%d", points)
			}
		}
	})

	t.Run("capacity of one is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Workflow.CapacityPoints = 1
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "workflow.capacity_points" {
				t.Errorf("capacity_points=1 should be valid: %v", err)
			}
		}
	})
}

func TestConfig_Validate_Conflict(t *testing.T) {
	t.Run("negative weights", func(t *testing.T) {
		tests := []struct {
			name  string
			field string
			set   func(*Config)
		}{
			{"overlap", "conflict.overlap_weight", func(c *Config) { c.Conflict.OverlapWeight = -0.1 }},
			{"dependency", "conflict.dependency_weight", func(c *Config) { c.Conflict.DependencyWeight = -0.1 }},
			{"history", "conflict.history_weight", func(c *Config) { c.Conflict.HistoryWeight = -0.1 }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := Default()
				tt.set(cfg)
				errs := cfg.Validate()

				found := false
				for _, err := range errs {
					if err.Field == tt.field {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("expected error for negative %s weight", tt.name)
				}
			})
		}
	})

	t.Run("all-zero weights", func(t *testing.T) {
		cfg := Default()
		cfg.Conflict.OverlapWeight = 0
		cfg.Conflict.DependencyWeight = 0
		cfg.Conflict.HistoryWeight = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "conflict.overlap_weight" && strings.Contains(err.Message, "sum") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for weights summing to zero")
		}
	})

	t.Run("zero decay half life", func(t *testing.T) {
		cfg := Default()
		cfg.Conflict.DecayHalfLifeMinutes = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "conflict.decay_half_life_minutes" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for zero decay half life")
		}
	})

	t.Run("soft threshold out of range", func(t *testing.T) {
		for _, threshold := range []float64{-0.1, 1.5} {
			cfg := Default()
			cfg.Conflict.SoftThreshold = threshold
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == "conflict.soft_threshold" {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for soft_threshold=%v", threshold)
			}
		}
	})

	t.Run("hard threshold out of range", func(t *testing.T) {
		for _, threshold := range []float64{-0.1, 1.5} {
			cfg := Default()
			cfg.Conflict.HardThreshold = threshold
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == "conflict.hard_threshold" {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for hard_threshold=%v", threshold)
			}
		}
	})

	t.Run("soft must stay below hard", func(t *testing.T) {
		cfg := Default()
		cfg.Conflict.SoftThreshold = 0.8
		cfg.Conflict.HardThreshold = 0.7
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "conflict.soft_threshold" && strings.Contains(err.Message, "hard_threshold") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for soft threshold above hard threshold")
		}
	})

	t.Run("equal thresholds are invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Conflict.SoftThreshold = 0.5
		cfg.Conflict.HardThreshold = 0.5
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "conflict.soft_threshold" && strings.Contains(err.Message, "hard_threshold") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for equal thresholds")
		}
	})

	t.Run("watch dir with null byte is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Conflict.WatchDir = "/path/with\x00null"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "conflict.watch_dir" && strings.Contains(err.Message, "null") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for watch dir with null byte")
		}
	})

	t.Run("empty watch dir is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Conflict.WatchDir = ""
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "conflict.watch_dir" {
				t.Errorf("empty watch_dir should be valid: %v", err)
			}
		}
	})
}

func TestConfig_Validate_Locks(t *testing.T) {
	t.Run("heartbeat must be positive", func(t *testing.T) {
		for _, heartbeat := range []int{0, -10} {
			cfg := Default()
			cfg.Locks.HeartbeatSeconds = heartbeat
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == "locks.heartbeat_seconds" {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for heartbeat_seconds=%d", heartbeat)
			}
		}
	})

	t.Run("lease TTL must be positive", func(t *testing.T) {
		cfg := Default()
		cfg.Locks.LeaseTTLSeconds = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "locks.lease_ttl_seconds" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for zero lease TTL")
		}
	})

	t.Run("lease TTL relative to heartbeat", func(t *testing.T) {
		tests := []struct {
			name      string
			lease     int
			heartbeat int
			hasError  bool
		}{
			{"three intervals", 90, 30, false},
			{"exactly twice", 60, 30, false},
			{"just under twice", 59, 30, true},
			{"equal to heartbeat", 30, 30, true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := Default()
				cfg.Locks.LeaseTTLSeconds = tt.lease
				cfg.Locks.HeartbeatSeconds = tt.heartbeat
				errs := cfg.Validate()

				found := false
				for _, err := range errs {
					if err.Field == "locks.lease_ttl_seconds" && strings.Contains(err.Message, "twice") {
						found = true
						break
					}
				}
				if found != tt.hasError {
					t.Errorf("lease=%d heartbeat=%d: found error=%v, want %v", tt.lease, tt.heartbeat, found, tt.hasError)
				}
			})
		}
	})
}

func TestConfig_Validate_Pool(t *testing.T) {
	t.Run("min workers must be at least one", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.MinWorkers = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.min_workers" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for zero min workers")
		}
	})

	t.Run("max workers below min", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.MinWorkers = 4
		cfg.Pool.MaxWorkers = 2
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.max_workers" && strings.Contains(err.Message, "min_workers") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for max workers below min")
		}
	})

	t.Run("max workers too large", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.MaxWorkers = 100
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.max_workers" && strings.Contains(err.Message, "exceeds maximum") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for excessive max workers")
		}
	})

	t.Run("high watermark bounds", func(t *testing.T) {
		for _, watermark := range []float64{0, -0.5, 1.1} {
			cfg := Default()
			cfg.Pool.HighWatermark = watermark
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == "pool.high_watermark" {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("expected error for high_watermark=%v", watermark)
			}
		}
	})

	t.Run("full high watermark is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.HighWatermark = 1.0
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "pool.high_watermark" {
				t.Errorf("high_watermark=1.0 should be valid: %v", err)
			}
		}
	})

	t.Run("negative low watermark", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.LowWatermark = -0.1
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.low_watermark" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for negative low watermark")
		}
	})

	t.Run("low watermark must stay below high", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.LowWatermark = 0.9
		cfg.Pool.HighWatermark = 0.8
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.low_watermark" && strings.Contains(err.Message, "high_watermark") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for low watermark above high")
		}
	})

	t.Run("evaluation window must be positive", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.EvaluationWindowSeconds = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.evaluation_window_seconds" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for zero evaluation window")
		}
	})

	t.Run("negative cooldown", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.CooldownSeconds = -1
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.cooldown_seconds" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for negative cooldown")
		}
	})

	t.Run("zero cooldown is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.CooldownSeconds = 0
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "pool.cooldown_seconds" {
				t.Errorf("zero cooldown should be valid: %v", err)
			}
		}
	})

	t.Run("unknown capability", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.Capabilities["juggle"] = 1
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.capabilities.juggle" && strings.Contains(err.Message, "unknown capability") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for unknown capability")
		}
	})

	t.Run("negative capability count", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.Capabilities["design"] = -1
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.capabilities.design" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for negative capability count")
		}
	})

	t.Run("capability count exceeding max workers", func(t *testing.T) {
		cfg := Default()
		cfg.Pool.MaxWorkers = 4
		cfg.Pool.Capabilities["code"] = 10
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "pool.capabilities.code" && strings.Contains(err.Message, "max_workers") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for capability count above max workers")
		}
	})
}

func TestConfig_Validate_Coordinator(t *testing.T) {
	t.Run("max parallel cycles too small", func(t *testing.T) {
		cfg := Default()
		cfg.Coordinator.MaxParallelCycles = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "coordinator.max_parallel_cycles" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for zero max parallel cycles")
		}
	})

	t.Run("max parallel cycles too large", func(t *testing.T) {
		cfg := Default()
		cfg.Coordinator.MaxParallelCycles = 25
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "coordinator.max_parallel_cycles" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for excessive max parallel cycles")
		}
	})

	t.Run("negative phase timeout", func(t *testing.T) {
		cfg := Default()
		cfg.Coordinator.PhaseTimeoutMinutes = -1
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "coordinator.phase_timeout_minutes" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for negative phase timeout")
		}
	})

	t.Run("zero phase timeout is valid (disabled)", func(t *testing.T) {
		cfg := Default()
		cfg.Coordinator.PhaseTimeoutMinutes = 0
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "coordinator.phase_timeout_minutes" {
				t.Errorf("zero phase timeout should be valid: %v", err)
			}
		}
	})

	t.Run("max strikes must be at least one", func(t *testing.T) {
		cfg := Default()
		cfg.Coordinator.MaxStrikes = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "coordinator.max_strikes" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for zero max strikes")
		}
	})

	t.Run("tick bounds", func(t *testing.T) {
		tests := []struct {
			tickMs      int
			expectError bool
		}{
			{5, true},     // too small
			{6000, true},  // too large
			{10, false},   // lower boundary
			{5000, false}, // upper boundary
			{100, false},  // default
		}

		for _, tt := range tests {
			cfg := Default()
			cfg.Coordinator.TickMs = tt.tickMs
			errs := cfg.Validate()

			found := false
			for _, err := range errs {
				if err.Field == "coordinator.tick_ms" {
					found = true
					break
				}
			}
			if found != tt.expectError {
				t.Errorf("tick_ms=%d: found error=%v, want %v", tt.tickMs, found, tt.expectError)
			}
		}
	})
}

func TestConfig_Validate_Persistence(t *testing.T) {
	t.Run("valid backends", func(t *testing.T) {
		for _, backend := range []string{"file", "sqlite"} {
			cfg := Default()
			cfg.Persistence.Backend = backend
			errs := cfg.Validate()

			for _, err := range errs {
				if err.Field == "persistence.backend" {
					t.Errorf("backend %q should be valid, got error: %v", backend, err)
				}
			}
		}
	})

	t.Run("invalid backend", func(t *testing.T) {
		cfg := Default()
		cfg.Persistence.Backend = "postgres"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "persistence.backend" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for unknown backend")
		}
	})

	t.Run("case sensitive backend", func(t *testing.T) {
		cfg := Default()
		cfg.Persistence.Backend = "SQLITE"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "persistence.backend" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for uppercase backend name")
		}
	})

	t.Run("empty path is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Persistence.Path = ""
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "persistence.path" {
				t.Errorf("empty path should be valid: %v", err)
			}
		}
	})

	t.Run("path with null byte is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Persistence.Path = "/state/with\x00null"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "persistence.path" && strings.Contains(err.Message, "null") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for path with null byte")
		}
	})

	t.Run("excessively long path is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Persistence.Path = "/" + strings.Repeat("a", 5000)
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "persistence.path" && strings.Contains(err.Message, "length") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for excessively long path")
		}
	})
}

func TestConfig_Validate_Agent(t *testing.T) {
	t.Run("valid backends", func(t *testing.T) {
		for _, backend := range []string{"claude", "mock"} {
			cfg := Default()
			cfg.Agent.Backend = backend
			errs := cfg.Validate()

			for _, err := range errs {
				if err.Field == "agent.backend" {
					t.Errorf("backend %q should be valid, got error: %v", backend, err)
				}
			}
		}
	})

	t.Run("invalid backend", func(t *testing.T) {
		cfg := Default()
		cfg.Agent.Backend = "unknown"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "agent.backend" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for unknown agent backend")
		}
	})

	t.Run("claude backend requires binary", func(t *testing.T) {
		cfg := Default()
		cfg.Agent.Backend = "claude"
		cfg.Agent.Binary = ""
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "agent.binary" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for empty binary with claude backend")
		}
	})

	t.Run("mock backend does not require binary", func(t *testing.T) {
		cfg := Default()
		cfg.Agent.Backend = "mock"
		cfg.Agent.Binary = ""
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "agent.binary" {
				t.Errorf("mock backend should not require binary: %v", err)
			}
		}
	})
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", ""} {
			cfg := Default()
			cfg.Logging.Level = level
			errs := cfg.Validate()

			for _, err := range errs {
				if err.Field == "logging.level" {
					t.Errorf("level %q should be valid, got error: %v", level, err)
				}
			}
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "invalid"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "logging.level" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for invalid log level")
		}
	})

	t.Run("case sensitive log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "INFO"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "logging.level" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for uppercase log level")
		}
	})

	t.Run("max size must be positive", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 0
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "logging.max_size_mb" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for zero max size")
		}
	})

	t.Run("max size too large", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxSizeMB = 2000
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "logging.max_size_mb" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for excessive max size")
		}
	})

	t.Run("negative max backups", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = -1
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "logging.max_backups" {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for negative max backups")
		}
	})

	t.Run("zero max backups is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = 0
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "logging.max_backups" {
				t.Errorf("zero max backups should be valid: %v", err)
			}
		}
	})
}

func TestConfig_Validate_Paths(t *testing.T) {
	t.Run("empty run dir is valid", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.RunDir = ""
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "paths.run_dir" {
				t.Errorf("empty run_dir should be valid: %v", err)
			}
		}
	})

	t.Run("valid absolute path", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.RunDir = "/var/lib/redgreen"
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "paths.run_dir" {
				t.Errorf("absolute path should be valid: %v", err)
			}
		}
	})

	t.Run("valid relative path", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.RunDir = "run-state"
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "paths.run_dir" {
				t.Errorf("relative path should be valid: %v", err)
			}
		}
	})

	t.Run("valid tilde path", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.RunDir = "~/redgreen-runs"
		errs := cfg.Validate()

		for _, err := range errs {
			if err.Field == "paths.run_dir" {
				t.Errorf("tilde path should be valid: %v", err)
			}
		}
	})

	t.Run("path with null byte is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.RunDir = "/path/with\x00null"
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "paths.run_dir" && strings.Contains(err.Message, "null") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for path with null byte")
		}
	})

	t.Run("excessively long path is invalid", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.RunDir = "/" + strings.Repeat("a", 5000)
		errs := cfg.Validate()

		found := false
		for _, err := range errs {
			if err.Field == "paths.run_dir" && strings.Contains(err.Message, "length") {
				found = true
				break
			}
		}
		if !found {
			t.Error("expected error for excessively long path")
		}
	})
}

func TestValidLogLevels(t *testing.T) {
	levels := ValidLogLevels()
	expected := []string{"debug", "info", "warn", "error"}

	if len(levels) != len(expected) {
		t.Errorf("ValidLogLevels() length = %d, want %d", len(levels), len(expected))
	}

	for i, level := range expected {
		if levels[i] != level {
			t.Errorf("ValidLogLevels()[%d] = %q, want %q", i, levels[i], level)
		}
	}
}

func TestValidPersistenceBackends(t *testing.T) {
	backends := ValidPersistenceBackends()
	expected := []string{"file", "sqlite"}

	if len(backends) != len(expected) {
		t.Errorf("ValidPersistenceBackends() length = %d, want %d", len(backends), len(expected))
	}

	for i, backend := range expected {
		if backends[i] != backend {
			t.Errorf("ValidPersistenceBackends()[%d] = %q, want %q", i, backends[i], backend)
		}
	}
}

func TestValidAgentBackends(t *testing.T) {
	backends := ValidAgentBackends()
	expected := []string{"claude", "mock"}

	if len(backends) != len(expected) {
		t.Errorf("ValidAgentBackends() length = %d, want %d", len(backends), len(expected))
	}

	for i, backend := range expected {
		t.Run(backend, func(t *testing.T) {
			if backends[i] != backend {
				t.Errorf("ValidAgentBackends()[%d] = %q, want %q", i, backends[i], backend)
			}
		})
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	// Set multiple invalid values
	cfg.Workflow.ID = ""
	cfg.Pool.MinWorkers = 0
	cfg.Logging.Level = "invalid"
	cfg.Coordinator.MaxStrikes = 0

	errs := cfg.Validate()
	if len(errs) < 4 {
		t.Errorf("expected at least 4 errors, got %d: %v", len(errs), errs)
	}
}
