// Package logging provides structured logging for Redgreen runs.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// context propagation support for debugging and post-hoc analysis. It is
// designed to help troubleshoot concurrent TDD cycles by providing
// structured, filterable logs that can be analyzed after a run.
//
// # Features
//
//   - JSON-formatted structured logging via slog
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - Context propagation (workflow ID, story ID, worker ID, phase)
//   - Log rotation with configurable size limits
//   - Log aggregation and filtering utilities
//   - Export to JSON, text, or CSV formats
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses Go's slog internally which is designed for concurrent access. The
// [RotatingWriter] type uses a mutex to protect file operations during
// rotation. Child loggers created via With* methods share the underlying
// writer safely.
//
// # Basic Usage
//
// Create a logger for a run directory:
//
//	logger, err := logging.NewLogger("/path/to/run", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Debug("detailed info", "key", "value")
//	logger.Info("cycle advanced", "duration_ms", 150)
//	logger.Warn("lease near expiry", "ttl_ms", 100)
//	logger.Error("checkpoint save failed", "error", err.Error())
//
// # Context Propagation
//
// Create child loggers with persistent context attributes:
//
//	wfLogger := logger.WithWorkflow("proj-1")
//	storyLogger := wfLogger.WithStory("AUTH-12")
//	phaseLogger := storyLogger.WithPhase("TEST_RED")
//
//	// All logs from phaseLogger include workflow_id, story_id, and phase
//	phaseLogger.Info("tests written", "count", 4)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"tests written","workflow_id":"proj-1","story_id":"AUTH-12","phase":"TEST_RED","count":4}
//
// # Log Rotation
//
// For long-running workflows, use log rotation to prevent unbounded growth:
//
//	config := logging.RotationConfig{
//	    MaxSizeMB:  10, // Rotate when file exceeds 10MB
//	    MaxBackups: 3,  // Keep 3 backup files
//	}
//
//	logger, err := logging.NewLoggerWithRotation("/path/to/run", "INFO", config)
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
// Rotated files are named: engine.log.1, engine.log.2, etc., where .1 is the
// most recent backup.
//
// # Testing
//
// For testing, use [NopLogger] to discard all log output:
//
//	func TestSomething(t *testing.T) {
//	    logger := logging.NopLogger()
//	    // Use logger in tests without creating files
//	}
//
// # Log Aggregation and Filtering
//
// Read and analyze logs after a run:
//
//	entries, err := logging.AggregateLogs("/path/to/run")
//	if err != nil {
//	    return err
//	}
//
//	filter := logging.LogFilter{
//	    Level:     "WARN",          // Minimum level
//	    StoryID:   "AUTH-12",       // Specific story
//	    Phase:     "CODE_GREEN",    // Specific phase
//	    StartTime: time.Now().Add(-1 * time.Hour),
//	}
//	filtered := logging.FilterLogs(entries, filter)
//
//	logging.ExportLogEntries(filtered, "errors.json", "json")
//	logging.ExportLogEntries(filtered, "errors.txt", "text")
//	logging.ExportLogEntries(filtered, "errors.csv", "csv")
//
// # Log Levels
//
// The package defines four log levels:
//
//   - [LevelDebug]: Detailed information for debugging
//   - [LevelInfo]: General operational information (default)
//   - [LevelWarn]: Warning conditions that may need attention
//   - [LevelError]: Error conditions that affect functionality
//
// Use [ValidLevels] to get the list of valid level strings, and [ParseLevel]
// to normalize user-provided level strings.
//
// # Configuration
//
// The logging system is typically configured via Redgreen's config file:
//
//	logging:
//	  level: info
//	  max_size_mb: 10
//	  max_backups: 3
package logging
