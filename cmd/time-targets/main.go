package main

import (
	"fmt"
	"os"

	"Mansoor88-6/time-targets-agent/internal/config"
	"Mansoor88-6/time-targets-agent/internal/logger"

	"github.com/spf13/cobra"
)

var (
	// Used for flags.
	configPath string

	rootCmd = &cobra.Command{
		Use:   "time-targets",
		Short: "Track progress towards per-project time targets.",
		Long: `time-targets keeps a local cache of your time-tracking profile, projects and reports,
and computes how far each project is from its time target for the current period.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/local.yaml", "Path to configuration file")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newTargetCmd())
	rootCmd.AddCommand(newPeriodCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnvironment reads the configuration and builds the logger every command shares
func loadEnvironment() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
