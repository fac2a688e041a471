package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ticketdrop/ticketdrop/internal/log"
	"github.com/ticketdrop/ticketdrop/internal/oauth"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

// AuthURLBuilder builds the provider consent URL for a verification state.
type AuthURLBuilder interface {
	AuthCodeURL(state string) string
}

// TokenExchanger trades an authorization code for an access token.
type TokenExchanger interface {
	Exchange(ctx context.Context, code, redirectURI string) (*oauth.TokenResponse, error)
}

type authURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// NewAuthURLHandler returns a fresh consent URL together with the nonce the
// client must keep and compare against the state it is redirected back with.
func NewAuthURLHandler(builder AuthURLBuilder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		if builder == nil {
			WriteServiceUnavailable(w, "authorization unavailable", "Linear OAuth is not configured.")
			return
		}
		state := oauth.NewVerificationState()
		writeJSON(w, http.StatusOK, authURLResponse{URL: builder.AuthCodeURL(state), State: state})
	})
}

type tokenRequest struct {
	RefreshToken string `json:"refreshToken"`
	RedirectURI  string `json:"redirectURI"`
}

// NewTokenHandler exchanges the authorization code server side so the client
// secret never leaves this process. The provider's JSON is passed through
// as is; a body without access_token is still a 200 and the client decides.
func NewTokenHandler(exchanger TokenExchanger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if exchanger == nil {
			WriteServiceUnavailable(w, "token exchange unavailable", "Linear OAuth is not configured.")
			return
		}

		defer r.Body.Close() // nolint:errcheck

		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "Request is missing body", err.Error())
			return
		}

		tok, err := exchanger.Exchange(r.Context(), req.RefreshToken, req.RedirectURI)
		if err != nil {
			var vErr *types.ValidationError
			if errors.As(err, &vErr) {
				WriteJSONError(w, http.StatusBadRequest, vErr.Message, "")
				return
			}
			log.Error(r.Context(), map[string]interface{}{"err": err.Error()}, "token exchange failed")
			WriteJSONError(w, statusFromError(err, http.StatusInternalServerError), "Failed to exchange token", err.Error())
			return
		}

		log.LogAPIRequest(r.Context(), "/api/linear/token", map[string]interface{}{"has_access_token": tok.HasAccessToken()})

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		raw := tok.Raw
		if len(strings.TrimSpace(string(raw))) == 0 {
			raw = []byte("{}")
		}
		_, _ = w.Write(raw)
	})
}
