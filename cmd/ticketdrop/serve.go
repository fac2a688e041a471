package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ticketdrop/ticketdrop/internal/config"
	"github.com/ticketdrop/ticketdrop/internal/log"
	"github.com/ticketdrop/ticketdrop/internal/telemetry"
	uiserver "github.com/ticketdrop/ticketdrop/internal/ui"
	uiapi "github.com/ticketdrop/ticketdrop/internal/ui/api"
)

var (
	serveListenAddr  string
	serveAllowRemote bool
	serveAuthToken   string
	serveTLSSelfSign bool
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "flow",
	Short:   "Serve the HTTP API for the browser front end",
	Long: `Start the HTTP API: OAuth token exchange, extraction, streaming import
and speech-to-text.

The server binds to a loopback interface by default. Binding anywhere else
needs --allow-remote and puts every route behind a bearer token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListenAddr, "listen", "", "Address to bind to (host:port, default serve.addr)")
	serveCmd.Flags().BoolVar(&serveAllowRemote, "allow-remote", false, "Permit binding to non-loopback addresses (requires auth token)")
	serveCmd.Flags().StringVar(&serveAuthToken, "auth-token", "", "Use the provided auth token instead of generating one")
	serveCmd.Flags().BoolVar(&serveTLSSelfSign, "tls-self-signed", false, "Serve https with a throwaway self-signed certificate")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	ctx := cmd.Context()

	listenAddr := strings.TrimSpace(serveListenAddr)
	if listenAddr == "" {
		listenAddr = config.GetString(config.KeyServeAddr)
	}
	allowRemote := serveAllowRemote || config.GetBool(config.KeyServeAllowRemote)

	requireRemoteAuth, err := uiserver.DetermineAccess(listenAddr, allowRemote)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(serveAuthToken)
	if token == "" {
		token = strings.TrimSpace(config.GetString(config.KeyServeAuthToken))
	}
	requireAuth := requireRemoteAuth || token != ""
	if requireAuth && token == "" {
		token, err = generateAuthToken()
		if err != nil {
			return fmt.Errorf("generate auth token: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Auth token: %s\n", token)
	}

	deps := buildAPIDependencies(requireAuth)
	handler, err := uiserver.NewHandler(uiserver.HandlerConfig{
		RequireAuth: requireAuth,
		AuthToken:   token,
		Register: func(mux *http.ServeMux) {
			uiapi.Register(mux, deps)
		},
		Wrap: func(h http.Handler) http.Handler {
			return telemetry.InstrumentHandler(uiapi.WithRequestLogging(h))
		},
	})
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddr, err)
	}
	scheme := "http"
	if serveTLSSelfSign {
		host, _, _ := net.SplitHostPort(listenAddr)
		tlsConfig, err := uiserver.SelfSignedTLSConfig([]string{host}, 0)
		if err != nil {
			_ = listener.Close()
			return fmt.Errorf("generate self-signed certificate: %w", err)
		}
		listener = tls.NewListener(listener, tlsConfig)
		scheme = "https"
	}

	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ticketdrop API listening on %s://%s\n", scheme, listener.Addr())
	log.Info(ctx, map[string]interface{}{"addr": listener.Addr().String(), "auth": requireAuth}, "server started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if deps.Limiter != nil {
		g.Go(func() error {
			sweepLimiter(gctx, deps.Limiter, config.GetDuration(config.KeyRateLimitWindow))
			return nil
		})
	}

	err = g.Wait()
	log.Info(context.Background(), nil, "server stopped")
	return err
}

// buildAPIDependencies wires whichever upstreams are configured. A missing
// API key disables just the endpoint that needs it. Bearer tokens only name
// a caller once the server itself checks them.
func buildAPIDependencies(verifiedBearer bool) uiapi.Dependencies {
	gateway := newGateway()
	deps := uiapi.Dependencies{
		AuthURL:   gateway,
		Tokens:    gateway,
		Importer:  newImporter(),
		Limiter:   newLimiter(),
		CallerKey: uiapi.RemoteAddrCaller,
	}
	if verifiedBearer {
		deps.CallerKey = uiapi.BearerCaller
	}

	if extractor, err := newExtractor(); err != nil {
		WarnError("extraction disabled: %v", err)
	} else {
		deps.Extractor = extractor
	}

	if transcriber, err := newTranscriber(); err != nil {
		WarnError("speech-to-text disabled: %v", err)
	} else {
		deps.Transcriber = transcriber
	}
	return deps
}

type sweeper interface {
	Cleanup() int
}

// sweepLimiter drops expired rate-limit windows until ctx is done.
func sweepLimiter(ctx context.Context, l sweeper, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(); n > 0 {
				log.Debug(ctx, map[string]interface{}{"removed": n}, "rate limit entries expired")
			}
		}
	}
}

func generateAuthToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
