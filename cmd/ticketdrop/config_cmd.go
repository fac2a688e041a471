package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ticketdrop/ticketdrop/internal/config"
	"github.com/ticketdrop/ticketdrop/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Inspect configuration",
	Long: `Configuration is read from .ticketdrop/config.yaml (searched upward
from the working directory), then ~/.config/ticketdrop/config.yaml.
Every key can be overridden with TICKETDROP_<KEY>, e.g.
TICKETDROP_EXTRACT_MODEL. Provider keys also honour ANTHROPIC_API_KEY,
OPENAI_API_KEY, LINEAR_CLIENT_ID and LINEAR_CLIENT_SECRET.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings (secrets masked)",
	Run: func(cmd *cobra.Command, args []string) {
		settings := config.Settings()
		if jsonOutput {
			outputJSON(map[string]interface{}{
				"file":     config.ConfigFileUsed(),
				"settings": settings,
			})
			return
		}

		file := config.ConfigFileUsed()
		if file == "" {
			file = "(none)"
		}
		fmt.Printf("%s %s\n\n", ui.RenderHeader("config file"), ui.RenderMuted(file))
		for _, s := range settings {
			value := s.Value
			if value == "" {
				value = ui.RenderMuted("(unset)")
			}
			fmt.Printf("%-24s %s\n", s.Key, value)
		}
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the effective settings",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Validate(); err != nil {
			fail(err, "config")
		}
		if jsonOutput {
			outputJSON(map[string]bool{"valid": true})
			return
		}
		fmt.Println(ui.RenderPass(ui.IconPass + " configuration is valid"))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
