package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/redgreen/internal/config"
	"github.com/Iron-Ham/redgreen/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "redgreen",
	Short: "Parallel TDD coordination engine",
	Long: `Redgreen runs multiple test-driven development cycles in parallel
against a single backlog. A sprint-level state machine decides when
cycles may run; a coordinator schedules them across a capability-typed
agent pool, detects footprint conflicts, and checkpoints every state
change so a crashed run resumes where it stopped.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/redgreen/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/redgreen")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("REDGREEN")
	// Replace dots with underscores for nested keys in env vars
	// e.g., REDGREEN_COORDINATOR_MAX_PARALLEL_CYCLES for coordinator.max_parallel_cycles
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// loadConfig unmarshals and validates the effective configuration.
func loadConfig() (*config.Config, error) {
	return config.Load()
}

// resolveRunDir resolves the run directory relative to the working
// directory.
func resolveRunDir(cfg *config.Config) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return cfg.Paths.ResolveRunDir(cwd), nil
}

// openStore builds the configured checkpoint store. Callers own Close.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	runDir, err := resolveRunDir(cfg)
	if err != nil {
		return nil, err
	}
	return store.NewFromConfig(ctx, cfg.Persistence, runDir)
}
