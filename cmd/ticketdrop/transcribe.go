package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ticketdrop/ticketdrop/internal/transcribe"
)

var transcribeExtract bool

var transcribeCmd = &cobra.Command{
	Use:     "transcribe <audio-file>",
	GroupID: "flow",
	Short:   "Transcribe a voice note",
	Long: `Transcribe a short recording (at most 25MB and about a minute long).

With --extract the transcription is sent straight on to issue extraction.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]
		info, err := os.Stat(path)
		if err != nil {
			fail(err, "input")
		}
		if err := transcribe.Validate(info.Size()); err != nil {
			fail(err, "input")
		}
		audio, err := os.ReadFile(path) // #nosec G304 - user supplied audio file
		if err != nil {
			fail(err, "input")
		}

		client, err := newTranscriber()
		if err != nil {
			FatalErrorWithHint(err.Error(), "Set OPENAI_API_KEY or openai.api-key in .ticketdrop/config.yaml")
		}
		text, err := client.Transcribe(cmd.Context(), filepath.Base(path), audio)
		if err != nil {
			fail(errors.New(transcribe.FriendlyMessage(err)), "transcribe")
		}

		if !transcribeExtract {
			if jsonOutput {
				outputJSON(map[string]string{"transcription": text})
			} else {
				fmt.Println(text)
			}
			return
		}

		extractCmd.SetContext(cmd.Context())
		extractCmd.Run(extractCmd, []string{text})
	},
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeExtract, "extract", false, "Extract issues from the transcription")
	rootCmd.AddCommand(transcribeCmd)
}
