package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ticketdrop/ticketdrop/internal/config"
	"github.com/ticketdrop/ticketdrop/internal/flow"
)

var (
	authCode  string
	authState string
)

var authCmd = &cobra.Command{
	Use:     "auth",
	GroupID: "setup",
	Short:   "Connect to Linear without the interactive flow",
}

var authURLCmd = &cobra.Command{
	Use:   "url",
	Short: "Print a Linear consent URL",
	Long: `Print a Linear consent URL and remember its verification state.

After approving, Linear redirects to the configured redirect URI with "code"
and "state" query parameters; pass both to 'ticketdrop auth exchange'.`,
	Run: func(cmd *cobra.Command, args []string) {
		c := newAuthController()
		url, err := c.BeginAuth()
		if err != nil {
			fail(err, "state")
		}
		if jsonOutput {
			outputJSON(map[string]string{"url": url})
			return
		}
		fmt.Println(url)
	},
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange",
	Short: "Trade an authorization code for an access token",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAuthController()
		if err := c.HandleCallback(cmd.Context(), authCode, authState); err != nil {
			if errors.Is(err, flow.ErrStateMismatch) {
				FatalErrorWithHint(flow.MsgStateMismatch, "Run 'ticketdrop auth url' again and use the newest link")
			}
			fail(err, "exchange")
		}
		if jsonOutput {
			outputJSON(map[string]string{"access_token": c.AccessToken()})
			return
		}
		fmt.Println(c.AccessToken())
	},
}

// newAuthController builds a controller whose nonce lives in the state file,
// so `auth url` and `auth exchange` can run as separate processes.
func newAuthController() *flow.Controller {
	path, err := config.StatePath()
	if err != nil {
		fail(err, "state")
	}
	return flow.New(flow.Options{
		Gateway:  newGateway(),
		Nonces:   &flow.FileNonceStore{Path: path},
		Notifier: &terminalNotifier{out: os.Stderr, quiet: true},
	})
}

func init() {
	authExchangeCmd.Flags().StringVar(&authCode, "code", "", "Authorization code from the redirect")
	authExchangeCmd.Flags().StringVar(&authState, "state", "", "State from the redirect")
	_ = authExchangeCmd.MarkFlagRequired("code")
	_ = authExchangeCmd.MarkFlagRequired("state")

	authCmd.AddCommand(authURLCmd, authExchangeCmd)
	rootCmd.AddCommand(authCmd)
}
