// Package oauth exchanges Linear authorization codes for access tokens and
// builds the consent URL that starts the handshake.
//
// The client secret only ever lives in the process that owns the Gateway; the
// browser (or CLI) only sees the authorization code and the resulting token.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

const (
	// DefaultAuthURL is Linear's OAuth consent page.
	DefaultAuthURL = "https://linear.app/oauth/authorize"

	// DefaultTokenURL is Linear's OAuth token endpoint.
	DefaultTokenURL = "https://api.linear.app/oauth/token"

	// StatePrefix marks verification nonces issued by this application.
	StatePrefix = "linear-"

	defaultTimeout = 30 * time.Second
)

// DefaultScopes are requested when the config does not override them.
var DefaultScopes = []string{"admin", "write"}

// Config holds the OAuth application registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
}

// Gateway performs the server side of the authorization code grant.
type Gateway struct {
	cfg        oauth2.Config
	HTTPClient *http.Client
}

// NewGateway returns a gateway for the given registration, filling in Linear
// defaults for empty endpoints and scopes.
func NewGateway(cfg Config) *Gateway {
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &Gateway{
		cfg: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			// Linear expects a comma separated scope list; oauth2 joins with spaces.
			Scopes: []string{strings.Join(scopes, ",")},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// RedirectURI returns the registered callback URI.
func (g *Gateway) RedirectURI() string {
	return g.cfg.RedirectURL
}

// AuthCodeURL returns the consent URL for the given verification state.
func (g *Gateway) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// NewVerificationState returns a fresh single-use nonce.
func NewVerificationState() string {
	return StatePrefix + uuid.NewString()
}

// TokenResponse is the provider's token payload. Raw keeps the body exactly as
// received so it can be passed through to callers untouched.
type TokenResponse struct {
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
	Scope       string `json:"scope,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// HasAccessToken reports whether the provider actually issued a token.
// A response without one is a failed exchange even though it is not an error.
func (t *TokenResponse) HasAccessToken() bool {
	return t != nil && strings.TrimSpace(t.AccessToken) != ""
}

// OAuth2Token converts the response for use with golang.org/x/oauth2 clients.
func (t *TokenResponse) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{AccessToken: t.AccessToken, TokenType: t.TokenType}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// Exchange trades an authorization code for an access token.
func (g *Gateway) Exchange(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	if strings.TrimSpace(code) == "" || strings.TrimSpace(redirectURI) == "" {
		return nil, &types.ValidationError{Message: "Missing token or redirect URI"}
	}

	form := url.Values{
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return nil, &types.GatewayError{Op: "token exchange", Err: errors.Wrap(err, "request failed")}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &types.GatewayError{Op: "token exchange", StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to read response")}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &types.GatewayError{
			Op:         "token exchange",
			StatusCode: resp.StatusCode,
			Message:    upstreamMessage(body),
		}
	}

	tok := &TokenResponse{Raw: json.RawMessage(body)}
	if err := json.Unmarshal(body, tok); err != nil {
		return nil, &types.GatewayError{
			Op:         "token exchange",
			StatusCode: resp.StatusCode,
			Err:        errors.Wrapf(err, "failed to parse response (body: %s)", truncate(body, 200)),
		}
	}
	return tok, nil
}

// upstreamMessage pulls a human readable message out of an OAuth error body.
func upstreamMessage(body []byte) string {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Message          string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.ErrorDescription != "":
			return payload.ErrorDescription
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		}
	}
	return fmt.Sprintf("unexpected response: %s", truncate(body, 200))
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
