package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ticketdrop/ticketdrop/internal/debug"
	"github.com/ticketdrop/ticketdrop/internal/flow"
	"github.com/ticketdrop/ticketdrop/internal/ui"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "flow",
	Short:   "Connect, extract, review and import interactively",
	Long: `Walk through the whole flow in the terminal:

  1. Connect   open the printed link and approve access in Linear
  2. Prepare   paste your notes; the model turns them into issue drafts
  3. Import    review, edit or delete drafts, then create them in Linear

The OAuth redirect is received by a short-lived listener on the host and path
of linear.redirect-uri (default http://localhost:3000/callback).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.IsTerminal(os.Stdin) {
			return errors.New("run needs an interactive terminal; use extract and import for scripts")
		}
		extractor, err := newExtractor()
		if err != nil {
			FatalErrorWithHint(err.Error(), "Set ANTHROPIC_API_KEY or anthropic.api-key in .ticketdrop/config.yaml")
		}

		gateway := newGateway()
		c := flow.New(flow.Options{
			Gateway:   gateway,
			Extractor: extractor,
			Importer:  newImporter(),
			Notifier:  &terminalNotifier{out: os.Stderr, quiet: quietFlag},
		})

		if err := connect(cmd.Context(), c, gateway.RedirectURI()); err != nil {
			return err
		}
		return review(cmd.Context(), c)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// connect runs the Connect step: it serves the redirect URI locally, prints
// the consent link and waits until a callback succeeds or ctx is done.
func connect(ctx context.Context, c *flow.Controller, redirectURI string) error {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid redirect URI %q", redirectURI)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	listener, err := net.Listen("tcp", u.Host)
	if err != nil {
		return fmt.Errorf("listen for OAuth callback on %s: %w", u.Host, err)
	}

	connected := make(chan struct{}, 1)
	mux := http.NewServeMux()
	mux.Handle(path, newCallbackHandler(c, connected))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	authURL, err := c.BeginAuth()
	if err != nil {
		_ = listener.Close()
		return err
	}
	fmt.Printf("%s\n\n  %s\n\n", ui.RenderHeader("connect to linear"), authURL)
	debug.PrintNormal("Waiting for the redirect on %s ...\n", redirectURI)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-connected:
		case <-gctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if !c.Connected() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.New("authorization did not complete")
	}
	return nil
}

// newCallbackHandler completes the handshake from the provider redirect.
// A bad state leaves the flow in Connect so the user can retry the link.
func newCallbackHandler(c *flow.Controller, connected chan<- struct{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		if reason := q.Get("error"); reason != "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintf(w, "Linear authorization was not granted: %s\n", reason)
			return
		}

		err := c.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
		switch {
		case err == nil:
			fmt.Fprintln(w, "Connected to Linear. You can close this tab and return to the terminal.")
			select {
			case connected <- struct{}{}:
			default:
			}
		case errors.Is(err, flow.ErrStateMismatch):
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprintln(w, flow.MsgStateMismatch)
		case errors.Is(err, flow.ErrWrongState):
			w.WriteHeader(http.StatusConflict)
			fmt.Fprintln(w, "Already connected.")
		case errors.Is(err, flow.ErrExchangeInProgress):
			w.WriteHeader(http.StatusConflict)
			fmt.Fprintln(w, "Authorization is already being completed.")
		default:
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprintln(w, flow.MsgExchangeFailed)
		}
	})
}

// review drives the Prepare and Import steps until the user quits.
func review(ctx context.Context, c *flow.Controller) error {
	width := ui.TerminalWidth(80)
	for ctx.Err() == nil {
		if c.State() == flow.Prepare {
			text, err := promptText()
			if err != nil {
				return quitOnAbort(err)
			}
			// Failures are reported by the notifier and leave the drafts as they were.
			_, _ = c.Extract(ctx, text)
			continue
		}

		drafts := c.Drafts()
		fmt.Printf("\n%s\n%s\n", ui.RenderHeader("issues"), ui.RenderDrafts(drafts, width))

		action, err := promptAction(drafts.Len())
		if err != nil {
			return quitOnAbort(err)
		}
		switch action {
		case actionImport:
			_, _ = c.Import(ctx)
		case actionEdit:
			i, err := promptIndex(drafts, "Edit which issue?")
			if err != nil {
				return quitOnAbort(err)
			}
			d, err := promptDraft(drafts.Issues[i])
			if err != nil {
				return quitOnAbort(err)
			}
			c.Edit(i, d.Title, d.Description)
		case actionDelete:
			i, err := promptIndex(drafts, "Delete which issue?")
			if err != nil {
				return quitOnAbort(err)
			}
			c.Delete(i)
		case actionAdd:
			d, err := promptDraft(emptyDraft)
			if err != nil {
				return quitOnAbort(err)
			}
			_ = c.Add(d)
		case actionExtract:
			text, err := promptText()
			if err != nil {
				return quitOnAbort(err)
			}
			_, _ = c.Extract(ctx, text)
		case actionQuit:
			return nil
		}
	}
	return ctx.Err()
}

func quitOnAbort(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	return err
}
