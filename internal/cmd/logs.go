package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/redgreen/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View engine logs",
	Long: `View and filter the engine log of the current run directory.

Examples:
  # Show last 50 lines
  redgreen logs

  # Show everything at warn or above
  redgreen logs --level warn -n 0

  # Follow logs in real-time
  redgreen logs -f

  # Logs for one story from the last hour
  redgreen logs --story AUTH-1 --since 1h

  # Search for specific patterns
  redgreen logs --grep "lease|timeout"`,
	RunE: runLogs,
}

var (
	logsTail   int
	logsFollow bool
	logsLevel  string
	logsSince  string
	logsStory  string
	logsPhase  string
	logsGrep   string
	logsExport string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsStory, "story", "", "Filter by story ID")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Filter by cycle phase")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter logs matching pattern (regex)")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "Export filtered logs to a file (.json/.csv/.txt)")
}

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// levelColor returns the ANSI color code for a log level
func levelColor(level string) string {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return colorGray
	case logging.LevelInfo:
		return colorBlue
	case logging.LevelWarn:
		return colorYellow
	case logging.LevelError:
		return colorRed
	default:
		return colorReset
	}
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry logging.LogEntry) string {
	var sb strings.Builder

	// Timestamp
	sb.WriteString(colorGray)
	sb.WriteString("[")
	sb.WriteString(entry.Timestamp.Format("15:04:05.000"))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Level with color
	sb.WriteString(" ")
	sb.WriteString(levelColor(entry.Level))
	sb.WriteString("[")
	sb.WriteString(strings.ToUpper(entry.Level))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	// Message
	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	// Context fields (story_id, worker_id, phase)
	for _, field := range []struct{ key, value string }{
		{"story_id", entry.StoryID},
		{"worker_id", entry.WorkerID},
		{"phase", entry.Phase},
	} {
		if field.value == "" {
			continue
		}
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(field.key)
		sb.WriteString("=")
		sb.WriteString(field.value)
		sb.WriteString(colorReset)
	}

	// Extra attributes
	for key, value := range entry.Attrs {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(colorReset)
		sb.WriteString(fmt.Sprintf("%v", value))
	}

	return sb.String()
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	runDir, err := resolveRunDir(cfg)
	if err != nil {
		return err
	}

	logPath := filepath.Join(runDir, logging.LogFileName)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Printf("No logs found for workflow %q\n", cfg.Workflow.ID)
		fmt.Println("Logs are stored at:", logPath)
		return nil
	}

	filter := logging.LogFilter{
		StoryID: logsStory,
		Phase:   logsPhase,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}

	var grepRegex *regexp.Regexp
	if logsGrep != "" {
		grepRegex, err = regexp.Compile(logsGrep)
		if err != nil {
			return fmt.Errorf("invalid grep pattern: %w", err)
		}
	}

	if logsFollow {
		return followLogs(logPath, filter, grepRegex)
	}
	return displayLogs(runDir, filter, grepRegex)
}

// displayLogs aggregates the run's log file and prints the filtered
// entries, newest last.
func displayLogs(runDir string, filter logging.LogFilter, grepRegex *regexp.Regexp) error {
	entries, err := logging.AggregateLogs(runDir)
	if err != nil {
		return err
	}

	entries = logging.FilterLogs(entries, filter)
	if grepRegex != nil {
		entries = grepEntries(entries, grepRegex)
	}

	if logsExport != "" {
		format := strings.TrimPrefix(filepath.Ext(logsExport), ".")
		if err := logging.ExportLogEntries(entries, logsExport, format); err != nil {
			return err
		}
		fmt.Printf("Exported %d entries to %s\n", len(entries), logsExport)
		return nil
	}

	// Apply tail limit
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	for _, entry := range entries {
		fmt.Println(formatLogEntry(entry))
	}
	if len(entries) == 0 {
		fmt.Println("No matching log entries found.")
	}
	return nil
}

// followLogs implements tail -f behavior for the engine log.
func followLogs(logPath string, filter logging.LogFilter, grepRegex *regexp.Regexp) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Printf("Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// No new data, wait briefly and try again
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry logging.LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// If we can't parse as JSON, display raw line
			fmt.Println(line)
			continue
		}

		if matched := logging.FilterLogs([]logging.LogEntry{entry}, filter); len(matched) == 0 {
			continue
		}
		if grepRegex != nil && len(grepEntries([]logging.LogEntry{entry}, grepRegex)) == 0 {
			continue
		}

		fmt.Println(formatLogEntry(entry))
	}
}

// grepEntries keeps entries whose message or attributes match the
// pattern.
func grepEntries(entries []logging.LogEntry, re *regexp.Regexp) []logging.LogEntry {
	var matched []logging.LogEntry
	for _, entry := range entries {
		searchText := entry.Message
		for _, v := range entry.Attrs {
			searchText += " " + fmt.Sprintf("%v", v)
		}
		if re.MatchString(searchText) {
			matched = append(matched, entry)
		}
	}
	return matched
}
