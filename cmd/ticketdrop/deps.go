package main

import (
	"net/http"
	"time"

	"github.com/ticketdrop/ticketdrop/internal/config"
	"github.com/ticketdrop/ticketdrop/internal/extract"
	"github.com/ticketdrop/ticketdrop/internal/importer"
	"github.com/ticketdrop/ticketdrop/internal/oauth"
	"github.com/ticketdrop/ticketdrop/internal/ratelimit"
	"github.com/ticketdrop/ticketdrop/internal/telemetry"
	"github.com/ticketdrop/ticketdrop/internal/transcribe"
)

// upstreamClient returns an HTTP client for an upstream API, traced under name.
func upstreamClient(name string) *http.Client {
	timeout := config.GetDuration(config.KeyHTTPTimeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: telemetry.WrapTransport(name, http.DefaultTransport),
	}
}

func newGateway() *oauth.Gateway {
	g := oauth.NewGateway(oauth.Config{
		ClientID:     config.GetString(config.KeyLinearClientID),
		ClientSecret: config.GetString(config.KeyLinearClientSecret),
		RedirectURI:  config.GetString(config.KeyLinearRedirectURI),
		Scopes:       config.GetStringSlice(config.KeyLinearScopes),
		AuthURL:      config.GetString(config.KeyLinearAuthURL),
		TokenURL:     config.GetString(config.KeyLinearTokenURL),
	})
	g.HTTPClient = upstreamClient("linear-oauth")
	return g
}

func newExtractor() (*extract.Client, error) {
	return extract.NewClient(extract.Options{
		APIKey:    config.GetString(config.KeyAnthropicAPIKey),
		Model:     config.GetString(config.KeyExtractModel),
		MaxTokens: int64(config.GetInt(config.KeyExtractMaxTokens)),
	})
}

func newImporter() *importer.Orchestrator {
	return importer.New(importer.LinearRemote(
		config.GetString(config.KeyLinearGraphQLURL),
		upstreamClient("linear"),
	))
}

func newTranscriber() (*transcribe.Client, error) {
	return transcribe.NewClient(transcribe.Options{
		APIKey:     config.GetString(config.KeyOpenAIAPIKey),
		Model:      config.GetString(config.KeyTranscribeModel),
		URL:        config.GetString(config.KeyTranscribeURL),
		MaxRetries: config.GetInt(config.KeyTranscribeRetries),
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	})
}

func newLimiter() *ratelimit.Window {
	return ratelimit.NewWindow(
		config.GetInt(config.KeyRateLimitRequests),
		config.GetDuration(config.KeyRateLimitWindow),
	)
}
