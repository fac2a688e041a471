package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ticketdrop/ticketdrop/internal/debug"
	"github.com/ticketdrop/ticketdrop/internal/ui"
)

var (
	extractFile string
	extractOut  string
)

var extractCmd = &cobra.Command{
	Use:     "extract [text...]",
	GroupID: "flow",
	Short:   "Extract issue drafts from text",
	Long: `Send text to the model and print the issues it finds.

Text comes from the arguments, --file, or stdin. Use --out (or --json) to
produce a drafts file that 'ticketdrop import' accepts.`,
	Example: `  ticketdrop extract "Fix login bug on mobile. Write API docs."
  pbpaste | ticketdrop extract --out drafts.json`,
	Run: func(cmd *cobra.Command, args []string) {
		text, err := readInput(args, extractFile, os.Stdin)
		if err != nil {
			fail(err, "input")
		}

		client, err := newExtractor()
		if err != nil {
			FatalErrorWithHint(err.Error(), "Set ANTHROPIC_API_KEY or anthropic.api-key in .ticketdrop/config.yaml")
		}

		done := debug.Timed("extract")
		drafts, err := client.Extract(cmd.Context(), text)
		done()
		if err != nil {
			fail(err, "extract")
		}

		if extractOut != "" {
			f, err := os.Create(extractOut) // #nosec G304 - user supplied output path
			if err != nil {
				fail(err, "output")
			}
			defer f.Close()
			if err := writeJSON(f, drafts); err != nil {
				fail(err, "output")
			}
			debug.PrintNormal("Wrote %d issues to %s\n", drafts.Len(), extractOut)
			return
		}

		if jsonOutput {
			outputJSON(drafts)
			return
		}
		if drafts.Len() == 0 {
			fmt.Println(ui.RenderMuted("No issues found in the text."))
			return
		}
		fmt.Print(ui.RenderDrafts(drafts, ui.TerminalWidth(80)))
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Read text from file (- for stdin)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Write drafts as JSON to this file")
	rootCmd.AddCommand(extractCmd)
}
