package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ticketdrop/ticketdrop/internal/importer"
	"github.com/ticketdrop/ticketdrop/internal/ui"
)

var (
	importDrafts string
	importToken  string
	importYes    bool
)

var importCmd = &cobra.Command{
	Use:     "import",
	GroupID: "flow",
	Short:   "Create issue drafts in Linear",
	Long: `Create every draft in a drafts file in the first team of the Linear
account the access token belongs to. Drafts are created one at a time, in
order; a failed draft is reported and the rest still go ahead.

Running the same import twice creates the issues twice.`,
	Example: `  ticketdrop import --drafts drafts.json --token $LINEAR_ACCESS_TOKEN
  ticketdrop extract "..." --json | ticketdrop import --yes`,
	Run: func(cmd *cobra.Command, args []string) {
		token := strings.TrimSpace(importToken)
		if token == "" {
			token = strings.TrimSpace(os.Getenv("LINEAR_ACCESS_TOKEN"))
		}
		if token == "" {
			FatalErrorWithHint("no Linear access token", "Pass --token, set LINEAR_ACCESS_TOKEN, or run 'ticketdrop auth url'")
		}

		drafts, err := openDrafts(importDrafts)
		if err != nil {
			fail(err, "drafts")
		}
		if drafts.Len() == 0 {
			fail(errors.New("no issues to import"), "drafts")
		}

		if !importYes && !jsonOutput {
			fmt.Print(ui.RenderDrafts(drafts, ui.TerminalWidth(80)))
			if !ui.IsTerminal(os.Stdin) {
				FatalErrorWithHint("refusing to import without confirmation", "Pass --yes when stdin is not a terminal")
			}
			ok := true
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Create %d issues in Linear?", drafts.Len())).
				Affirmative("Create").
				Negative("Cancel").
				Value(&ok).
				Run()
			if err != nil || !ok {
				fmt.Println(ui.RenderMuted("Import cancelled."))
				return
			}
		}

		var observers []importer.Observer
		if !jsonOutput {
			observers = append(observers, printImportEvent)
		}

		summary, err := newImporter().ImportAll(cmd.Context(), token, drafts, observers...)
		if err != nil {
			fail(err, "team")
		}
		if jsonOutput {
			outputJSON(summary)
		} else {
			fmt.Println(ui.RenderSummary(summary))
		}
		if summary.Err() != nil {
			os.Exit(1)
		}
	},
}

// printImportEvent prints each result as it arrives.
func printImportEvent(ev importer.Event) {
	switch ev.Kind {
	case importer.EventTeam:
		fmt.Printf("Importing into %s\n", ui.RenderAccent(ev.Team.Name))
	case importer.EventResult:
		fmt.Println(ui.RenderResult(*ev.Result))
	}
}

func init() {
	importCmd.Flags().StringVarP(&importDrafts, "drafts", "d", "-", "Drafts JSON file (- for stdin)")
	importCmd.Flags().StringVar(&importToken, "token", "", "Linear OAuth access token (default: $LINEAR_ACCESS_TOKEN)")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(importCmd)
}
