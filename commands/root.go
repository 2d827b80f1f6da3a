package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/penwyp/go-ha-timeline/internal/config"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/util"
	"github.com/spf13/cobra"
)

var (
	// Logging related
	debug bool

	// Configuration file
	configPath string

	// Output related
	outputFormat string
	width        int
	expand       bool
	color        bool

	// Card overrides
	hours     float64
	limit     int
	overrides = func(*model.CardConfig) error { return nil }

	rootCmd = &cobra.Command{
		Use:   "ha-timeline [flags]",
		Short: "Home Assistant state history timeline",
		Long: `ha-timeline shows the recent state changes of Home Assistant entities as a timeline.

The timeline is described by the card section of the configuration file. Without a
subcommand the current timeline is printed once.

Examples:
  ha-timeline                                  # Print the timeline once
  ha-timeline --config ./timeline.yaml         # Use another configuration file
  ha-timeline --output json                    # Print the timeline as JSON
  ha-timeline --hours 6 --limit 20             # Override the card window and limit
  ha-timeline watch                            # Follow the timeline live in the terminal
  ha-timeline serve                            # Serve the timeline over HTTP`,
		SilenceUsage: true,
		RunE:         runShow,
	}
)

const (
	defaultConfigFile = "~/.ha-timeline/config.yaml"
	defaultLogFile    = "~/.ha-timeline/logs/app.log"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigFile,
		"Configuration file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")

	// Card overrides
	rootCmd.PersistentFlags().Float64Var(&hours, "hours", 0,
		"Hours of history to show (overrides the card)")
	rootCmd.PersistentFlags().IntVar(&limit, "limit", 0,
		"Maximum number of events (overrides the card)")

	// Output configuration
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "text",
		"Output format (text, json, csv)")
	rootCmd.Flags().StringVar(&outputFormat, "format", "",
		"Alias for --output")
	rootCmd.Flags().IntVar(&width, "width", 0,
		"Output width in columns (0 = terminal width)")
	rootCmd.Flags().BoolVarP(&expand, "expand", "e", false,
		"Show events hidden by a collapsed overflow")
	rootCmd.Flags().BoolVar(&color, "color", false,
		"Colorize text output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration file, applies the command line
// overrides and sets up logging and the time zone.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(expandPath(configPath))
	if err != nil {
		return nil, err
	}

	overrides = cardOverrides(cmd)
	if err := overrides(cfg.Card); err != nil {
		return nil, err
	}

	if err := initRuntime(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cardOverrides returns a function applying --hours and --limit to a card.
// Reloaded cards go through it too.
func cardOverrides(cmd *cobra.Command) func(card *model.CardConfig) error {
	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}
	setHours, setLimit := changed("hours"), changed("limit")
	return func(card *model.CardConfig) error {
		if !setHours && !setLimit {
			return nil
		}
		if setHours {
			card.Hours = hours
		}
		if setLimit {
			card.Limit = limit
		}
		return card.Validate()
	}
}

func initRuntime(cfg *config.Config) error {
	logLevel := cfg.Log.Level
	if debug {
		logLevel = "debug"
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = defaultLogFile
	}
	logFile = expandPath(logFile)
	if err := ensureDir(filepath.Dir(logFile)); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := util.InitLogger(util.LoggerConfig{
		Level:   logLevel,
		File:    logFile,
		Format:  util.LogFormat(cfg.Log.Format),
		Console: debug,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if err := util.InitializeTimeProvider(cfg.Timezone); err != nil {
		return fmt.Errorf("failed to initialize timezone: %w", err)
	}
	return nil
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
