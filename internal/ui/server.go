// Package ui holds the local HTTP server shell and the terminal rendering
// used by the ticketdrop CLI.
package ui

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// DetermineAccess inspects the requested listen address and returns whether
// authentication is required (i.e., binding to a non-loopback/unspecified host).
// It rejects remote bindings unless allowRemote is explicitly enabled.
func DetermineAccess(listenAddr string, allowRemote bool) (bool, error) {
	host, _, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return false, fmt.Errorf("invalid listen address %q: %w", listenAddr, err)
	}
	if host == "" {
		host = "0.0.0.0"
	}

	if isLoopbackHost(host) {
		return false, nil
	}
	if !allowRemote {
		return false, fmt.Errorf("refusing remote bind to %q without --allow-remote", host)
	}
	return true, nil
}

// HandlerConfig captures the inputs required to build the server handler.
type HandlerConfig struct {
	RequireAuth bool
	AuthToken   string
	// Register mounts the application routes.
	Register func(*http.ServeMux)
	// Wrap, when set, decorates the finished handler (logging, tracing).
	Wrap func(http.Handler) http.Handler
}

// NewHandler builds the server handler. /healthz is always mounted and, like
// every other route, sits behind the bearer check when auth is required.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if cfg.RequireAuth && strings.TrimSpace(cfg.AuthToken) == "" {
		return nil, errors.New("auth token required when authentication is enabled")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	if cfg.Register != nil {
		cfg.Register(mux)
	}

	var h http.Handler = mux
	if cfg.RequireAuth {
		h = requireBearer(mux, strings.TrimSpace(cfg.AuthToken))
	}
	if cfg.Wrap != nil {
		h = cfg.Wrap(h)
	}
	return h, nil
}

func requireBearer(next http.Handler, token string) http.Handler {
	expected := []byte("Bearer " + token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actual := strings.TrimSpace(r.Header.Get("Authorization"))
		if subtle.ConstantTimeCompare([]byte(actual), expected) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ticketdrop"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	enc := json.NewEncoder(w)
	enc.Encode(map[string]string{"status": "ok"}) // nolint:errchkjson
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
