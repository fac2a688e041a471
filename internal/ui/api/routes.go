// Package api implements the JSON and SSE endpoints behind ticketdrop serve.
package api

import (
	"net/http"

	"github.com/ticketdrop/ticketdrop/internal/ratelimit"
)

// Dependencies are the collaborators the endpoints call. Nil members make the
// matching endpoint answer 503.
type Dependencies struct {
	AuthURL     AuthURLBuilder
	Tokens      TokenExchanger
	Extractor   Extractor
	Importer    Importer
	Transcriber Transcriber
	Limiter     *ratelimit.Window
	// CallerKey picks the speech rate-limit identity; nil keys by client
	// address.
	CallerKey CallerKey
}

// Register mounts every API route on mux.
func Register(mux *http.ServeMux, deps Dependencies) {
	mux.Handle("/api/linear/auth-url", NewAuthURLHandler(deps.AuthURL))
	mux.Handle("/api/linear/token", NewTokenHandler(deps.Tokens))
	mux.Handle("/api/chat", NewChatHandler(deps.Extractor))
	mux.Handle("/api/import", NewImportHandler(deps.Importer))
	mux.Handle("/api/speech-to-text", NewSpeechHandler(deps.Transcriber, deps.Limiter, deps.CallerKey))
}
