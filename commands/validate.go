package commands

import (
	"fmt"

	"github.com/penwyp/go-ha-timeline/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	Long:  `Loads and validates the configuration file without contacting Home Assistant.`,
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := expandPath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := cardOverrides(cmd)(cfg.Card); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s is valid\n", path)
	fmt.Fprintf(out, "  home assistant: %s\n", cfg.HomeAssistant.URL)
	fmt.Fprintf(out, "  entities:       %d\n", len(cfg.Card.Entities))
	fmt.Fprintf(out, "  window:         %gh, %d events\n", cfg.Card.Hours, cfg.Card.Limit)
	if cfg.Card.Language != "" {
		fmt.Fprintf(out, "  language:       %s\n", cfg.Card.Language)
	}
	return nil
}
