// Package flow drives one user session through the three import steps:
// connect a Linear account, prepare drafts from text, and import them.
//
// The controller owns the session's credential and draft store. Every user
// action returns an error and emits a notification; a failed action never
// changes the step.
package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ticketdrop/ticketdrop/internal/drafts"
	"github.com/ticketdrop/ticketdrop/internal/importer"
	"github.com/ticketdrop/ticketdrop/internal/oauth"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

// State is the current step of the session.
type State int

const (
	Connect State = iota
	Prepare
	Import
)

func (s State) String() string {
	switch s {
	case Connect:
		return "Connect"
	case Prepare:
		return "Prepare"
	case Import:
		return "Import"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// User-facing messages.
const (
	MsgStateMismatch   = "Linear auth returned an invalid code. Please try again."
	MsgExchangeFailed  = "Failed to exchange token"
	MsgNoText          = "No text to process"
	MsgParseFailed     = "Failed to parse response"
	MsgNoIssues        = "No actionable issues found in the text"
	MsgMissingToken    = "Missing access token. Please authenticate with Linear first."
	MsgNothingToImport = "There are no issues to import"
)

var (
	// ErrStateMismatch is returned when the callback state does not match the
	// pending verification nonce.
	ErrStateMismatch = errors.New("verification state mismatch")

	// ErrNoAccessToken is returned when the provider answered without a token.
	ErrNoAccessToken = errors.New("token response has no access_token")

	// ErrWrongState is returned for actions not available in the current step.
	ErrWrongState = errors.New("action not available in the current step")

	// ErrExchangeInProgress is returned for a callback that arrives while
	// another one is being exchanged.
	ErrExchangeInProgress = errors.New("authorization exchange already in progress")
)

// TokenExchanger is the part of the OAuth gateway the controller uses.
type TokenExchanger interface {
	AuthCodeURL(state string) string
	RedirectURI() string
	Exchange(ctx context.Context, code, redirectURI string) (*oauth.TokenResponse, error)
}

// Extractor turns text into drafts.
type Extractor interface {
	Extract(ctx context.Context, text string) (types.IssueDraftCollection, error)
}

// Importer creates drafts remotely.
type Importer interface {
	ImportAll(ctx context.Context, accessToken string, snapshot types.IssueDraftCollection, observers ...importer.Observer) (*types.ImportSummary, error)
}

// Options wires the controller to its collaborators.
type Options struct {
	Gateway   TokenExchanger
	Extractor Extractor
	Importer  Importer
	Nonces    NonceStore // defaults to a MemoryNonceStore
	Notifier  Notifier   // defaults to discarding notifications
}

// Controller is the session state machine. It is safe for use from several
// goroutines, e.g. a CLI loop and an HTTP callback handler.
type Controller struct {
	opts Options

	mu         sync.Mutex
	state      State
	exchanging bool
	credential string
	store      *drafts.Store
}

// New creates a controller in the Connect step.
func New(opts Options) *Controller {
	if opts.Nonces == nil {
		opts.Nonces = &MemoryNonceStore{}
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	return &Controller{opts: opts, store: drafts.New(types.IssueDraftCollection{})}
}

// State returns the current step.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the session holds a credential.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential != ""
}

// AccessToken returns the session credential, or "" before Connect completes.
func (c *Controller) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

// BeginAuth issues a fresh verification nonce, remembers it and returns the
// consent URL to send the user to.
func (c *Controller) BeginAuth() (string, error) {
	nonce := oauth.NewVerificationState()
	if err := c.opts.Nonces.Save(nonce); err != nil {
		c.opts.Notifier.Error("Could not start Linear authorization")
		return "", fmt.Errorf("failed to store verification state: %w", err)
	}
	return c.opts.Gateway.AuthCodeURL(nonce), nil
}

// HandleCallback completes the handshake with the code and state the
// provider redirected back with. On success the nonce is consumed, the access
// token is kept for the session and the flow moves to Prepare. Only one
// callback is exchanged at a time.
func (c *Controller) HandleCallback(ctx context.Context, code, state string) error {
	c.mu.Lock()
	switch {
	case c.state != Connect:
		c.mu.Unlock()
		return ErrWrongState
	case c.exchanging:
		c.mu.Unlock()
		return ErrExchangeInProgress
	}
	c.exchanging = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.exchanging = false
		c.mu.Unlock()
	}()

	pending, err := c.opts.Nonces.Load()
	if err != nil {
		c.opts.Notifier.Error(MsgExchangeFailed)
		return fmt.Errorf("failed to load verification state: %w", err)
	}
	if !strings.HasPrefix(state, oauth.StatePrefix) || pending == "" || state != pending {
		c.opts.Notifier.Warn(MsgStateMismatch)
		return ErrStateMismatch
	}

	tok, err := c.opts.Gateway.Exchange(ctx, code, c.opts.Gateway.RedirectURI())
	if err != nil {
		c.opts.Notifier.Error(MsgExchangeFailed)
		return err
	}
	if !tok.HasAccessToken() {
		c.opts.Notifier.Error(MsgExchangeFailed)
		return ErrNoAccessToken
	}

	// The nonce is single use even if clearing it fails.
	_ = c.opts.Nonces.Clear()

	c.mu.Lock()
	c.credential = tok.AccessToken
	c.state = Prepare
	c.mu.Unlock()

	c.opts.Notifier.Success("Connected to Linear")
	return nil
}

// Extract replaces the drafts with those found in text. On any failure the
// existing drafts are left untouched. The flow moves to Import as soon as the
// store holds at least one draft.
func (c *Controller) Extract(ctx context.Context, text string) (types.IssueDraftCollection, error) {
	if c.State() == Connect {
		c.opts.Notifier.Error(MsgMissingToken)
		return types.IssueDraftCollection{}, ErrWrongState
	}
	if strings.TrimSpace(text) == "" {
		c.opts.Notifier.Error(MsgNoText)
		return types.IssueDraftCollection{}, &types.ValidationError{Field: "text", Message: MsgNoText}
	}

	got, err := c.opts.Extractor.Extract(ctx, text)
	if err != nil {
		var schemaErr *types.SchemaValidationError
		if errors.As(err, &schemaErr) {
			c.opts.Notifier.Error(MsgParseFailed)
		} else {
			c.opts.Notifier.Error(fmt.Sprintf("Failed to create issues: %v", err))
		}
		return types.IssueDraftCollection{}, err
	}

	c.mu.Lock()
	c.store.Replace(got)
	if c.store.Len() > 0 {
		c.state = Import
	}
	c.mu.Unlock()

	if got.Len() == 0 {
		c.opts.Notifier.Info(MsgNoIssues)
	} else {
		c.opts.Notifier.Success(fmt.Sprintf("Prepared %d issues", got.Len()))
	}
	return got.Clone(), nil
}

// Drafts returns a copy of the current drafts.
func (c *Controller) Drafts() types.IssueDraftCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// Edit replaces the draft at index; out-of-range indices are ignored.
func (c *Controller) Edit(index int, title, description string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Edit(index, title, description)
}

// Delete removes the draft at index; later drafts shift down by one.
func (c *Controller) Delete(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(index)
}

// Add appends a draft written by hand. Like Extract it advances the flow to
// Import once there is something to import.
func (c *Controller) Add(d types.IssueDraft) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Connect {
		return ErrWrongState
	}
	c.store.Add(d)
	c.state = Import
	return nil
}

// Import creates the current drafts in Linear. The drafts are snapshotted
// when Import is called; edits made while it runs do not affect it. Each
// outcome is reported through the notifier as it happens, and observers
// receive the raw events. The step stays Import so the user may import again.
func (c *Controller) Import(ctx context.Context, observers ...importer.Observer) (*types.ImportSummary, error) {
	c.mu.Lock()
	state, credential, snapshot := c.state, c.credential, c.store.Snapshot()
	c.mu.Unlock()

	if credential == "" {
		c.opts.Notifier.Error(MsgMissingToken)
		return nil, ErrWrongState
	}
	if state != Import || snapshot.Len() == 0 {
		c.opts.Notifier.Error(MsgNothingToImport)
		return nil, ErrWrongState
	}

	notify := func(ev importer.Event) {
		if ev.Kind != importer.EventResult {
			return
		}
		if ev.Result.OK() {
			c.opts.Notifier.Success(ev.Result.Message())
		} else {
			c.opts.Notifier.Error(ev.Result.Message())
		}
	}

	summary, err := c.opts.Importer.ImportAll(ctx, credential, snapshot, append([]importer.Observer{notify}, observers...)...)
	if err != nil {
		var teamErr *types.TeamResolutionFailure
		if errors.As(err, &teamErr) {
			c.opts.Notifier.Error("Unable to resolve a Linear team for this account.")
		} else {
			c.opts.Notifier.Error("An unexpected error occurred while creating issues.")
		}
		return nil, err
	}

	if summary.Failed == 0 {
		c.opts.Notifier.Success(summary.Message())
	} else {
		c.opts.Notifier.Warn(summary.Message())
	}
	return summary, summary.Err()
}
