package flow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ticketdrop/ticketdrop/internal/extract"
	"github.com/ticketdrop/ticketdrop/internal/importer"
	"github.com/ticketdrop/ticketdrop/internal/oauth"
	"github.com/ticketdrop/ticketdrop/internal/testutil/upstreamtest"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

type note struct {
	kind string
	msg  string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (r *recordingNotifier) add(kind, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{kind, msg})
}

func (r *recordingNotifier) Info(msg string)    { r.add("info", msg) }
func (r *recordingNotifier) Success(msg string) { r.add("success", msg) }
func (r *recordingNotifier) Warn(msg string)    { r.add("warn", msg) }
func (r *recordingNotifier) Error(msg string)   { r.add("error", msg) }

func (r *recordingNotifier) of(kind string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.notes {
		if n.kind == kind {
			out = append(out, n.msg)
		}
	}
	return out
}

type ControllerSuite struct {
	suite.Suite

	tokenSrv   *httptest.Server
	tokenBody  string
	tokenCalls int

	linear    *upstreamtest.Linear
	anthropic *upstreamtest.Anthropic
	notes     *recordingNotifier
	nonces    NonceStore
	ctrl      *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.T().Setenv("ANTHROPIC_API_KEY", "")

	s.tokenBody = `{"access_token":"lin_oauth_123","token_type":"Bearer","expires_in":315705599,"scope":"admin,write"}`
	s.tokenCalls = 0
	s.tokenSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s.tokenBody))
	}))
	s.T().Cleanup(s.tokenSrv.Close)

	s.linear = upstreamtest.NewLinear(s.T())
	s.anthropic = upstreamtest.NewAnthropic(s.T(),
		types.IssueDraft{Title: "Fix login bug on mobile", Description: "Users can sign in on mobile without errors."},
		types.IssueDraft{Title: "Write API docs", Description: "Document all public endpoints with examples."},
	)

	extractor, err := extract.NewClient(extract.Options{APIKey: "sk-test", BaseURL: s.anthropic.BaseURL()})
	s.Require().NoError(err)

	s.notes = &recordingNotifier{}
	s.nonces = &FileNonceStore{Path: filepath.Join(s.T().TempDir(), "state.yaml")}
	s.ctrl = New(Options{
		Gateway: oauth.NewGateway(oauth.Config{
			ClientID:     "client",
			ClientSecret: "secret",
			RedirectURI:  "http://localhost:3000/callback",
			TokenURL:     s.tokenSrv.URL,
		}),
		Extractor: extractor,
		Importer:  importer.New(importer.LinearRemote(s.linear.URL, s.linear.Client())),
		Nonces:    s.nonces,
		Notifier:  s.notes,
	})
}

// connect runs the handshake and returns the issued state.
func (s *ControllerSuite) connect() string {
	authURL, err := s.ctrl.BeginAuth()
	s.Require().NoError(err)
	u, err := url.Parse(authURL)
	s.Require().NoError(err)
	state := u.Query().Get("state")
	s.Require().NoError(s.ctrl.HandleCallback(context.Background(), "auth-code", state))
	return state
}

func (s *ControllerSuite) TestInitialState() {
	s.Equal(Connect, s.ctrl.State())
	s.False(s.ctrl.Connected())
	s.Equal("Connect", Connect.String())
	s.Equal("Import", Import.String())
}

func (s *ControllerSuite) TestBeginAuthPersistsNonce() {
	authURL, err := s.ctrl.BeginAuth()
	s.Require().NoError(err)

	stored, err := s.nonces.Load()
	s.Require().NoError(err)
	s.Contains(stored, oauth.StatePrefix)

	u, err := url.Parse(authURL)
	s.Require().NoError(err)
	s.Equal(stored, u.Query().Get("state"))
	s.Equal("client", u.Query().Get("client_id"))
}

func (s *ControllerSuite) TestCallbackSucceeds() {
	s.connect()

	s.Equal(Prepare, s.ctrl.State())
	s.True(s.ctrl.Connected())
	stored, _ := s.nonces.Load()
	s.Empty(stored, "nonce must be consumed")
	s.Equal([]string{"Connected to Linear"}, s.notes.of("success"))
}

func (s *ControllerSuite) TestCallbackStateMismatch() {
	_, err := s.ctrl.BeginAuth()
	s.Require().NoError(err)

	for _, state := range []string{"linear-someone-else", "attacker", ""} {
		err = s.ctrl.HandleCallback(context.Background(), "auth-code", state)
		s.ErrorIs(err, ErrStateMismatch, "state %q", state)
	}

	s.Equal(Connect, s.ctrl.State())
	s.Equal(0, s.tokenCalls, "no exchange on mismatch")
	s.Len(s.notes.of("warn"), 3)
	s.Equal(MsgStateMismatch, s.notes.of("warn")[0])
}

func (s *ControllerSuite) TestCallbackWithoutPendingNonce() {
	err := s.ctrl.HandleCallback(context.Background(), "auth-code", "linear-1234")
	s.ErrorIs(err, ErrStateMismatch)
	s.Equal(Connect, s.ctrl.State())
}

func (s *ControllerSuite) TestCallbackMissingAccessToken() {
	s.tokenBody = `{"error":"invalid_grant"}`
	authURL, err := s.ctrl.BeginAuth()
	s.Require().NoError(err)
	u, _ := url.Parse(authURL)

	err = s.ctrl.HandleCallback(context.Background(), "auth-code", u.Query().Get("state"))
	s.ErrorIs(err, ErrNoAccessToken)
	s.Equal(Connect, s.ctrl.State())
	s.Equal([]string{MsgExchangeFailed}, s.notes.of("error"))
}

func (s *ControllerSuite) TestExtractRequiresConnection() {
	_, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile.")
	s.ErrorIs(err, ErrWrongState)
	s.Equal(0, s.anthropic.Calls())
}

func (s *ControllerSuite) TestExtractMovesToImport() {
	s.connect()

	got, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile. Write API docs.")
	s.Require().NoError(err)
	s.Equal(2, got.Len())
	s.Equal(Import, s.ctrl.State())
	s.Equal(2, s.ctrl.Drafts().Len())
}

func (s *ControllerSuite) TestExtractEmptyResultStaysInPrepare() {
	s.connect()
	s.anthropic.Respond()

	got, err := s.ctrl.Extract(context.Background(), "Thanks everyone!")
	s.Require().NoError(err)
	s.Equal(0, got.Len())
	s.Equal(Prepare, s.ctrl.State())
	s.Equal([]string{MsgNoIssues}, s.notes.of("info"))
}

func (s *ControllerSuite) TestExtractBlankText() {
	s.connect()
	_, err := s.ctrl.Extract(context.Background(), "  ")
	var vErr *types.ValidationError
	s.True(errors.As(err, &vErr))
	s.Equal(0, s.anthropic.Calls())
}

func (s *ControllerSuite) TestSchemaFailureLeavesDraftsUnchanged() {
	s.connect()
	_, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile. Write API docs.")
	s.Require().NoError(err)
	before := s.ctrl.Drafts()

	s.anthropic.RespondRaw(`{"issues":[{"title":"No description here"}]}`)
	_, err = s.ctrl.Extract(context.Background(), "Something else entirely.")

	var schemaErr *types.SchemaValidationError
	s.Require().True(errors.As(err, &schemaErr))
	s.Equal(before, s.ctrl.Drafts())
	s.Equal(Import, s.ctrl.State())
	s.Contains(s.notes.of("error"), MsgParseFailed)
}

func (s *ControllerSuite) TestModelFailureLeavesDraftsUnchanged() {
	s.connect()
	s.anthropic.Fail(http.StatusInternalServerError)

	_, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile.")
	var exErr *types.ExtractionError
	s.True(errors.As(err, &exErr))
	s.Equal(0, s.ctrl.Drafts().Len())
	s.Equal(Prepare, s.ctrl.State())
}

func (s *ControllerSuite) TestEndToEndImport() {
	s.connect()
	_, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile. Write API docs.")
	s.Require().NoError(err)

	var events []importer.EventKind
	summary, err := s.ctrl.Import(context.Background(), func(ev importer.Event) { events = append(events, ev.Kind) })
	s.Require().NoError(err)

	s.Require().Len(summary.Results, 2)
	s.Equal(types.ImportCreated, summary.Results[0].Status)
	s.Equal(types.ImportCreated, summary.Results[1].Status)
	s.Equal("Fix login bug on mobile", summary.Results[0].Title)
	s.Equal("Write API docs", summary.Results[1].Title)

	creates := s.linear.Creates()
	s.Require().Len(creates, 2)
	s.Equal("Bearer lin_oauth_123", creates[0].Auth)

	s.Equal([]importer.EventKind{importer.EventTeam, importer.EventResult, importer.EventResult, importer.EventComplete}, events)
	s.Equal([]string{
		"Connected to Linear",
		"Prepared 2 issues",
		"Created ENG-101: Fix login bug on mobile",
		"Created ENG-102: Write API docs",
		"All 2 issues have been imported to Linear",
	}, s.notes.of("success"))
	s.Equal(Import, s.ctrl.State())
}

func (s *ControllerSuite) TestImportAfterEdits() {
	s.connect()
	_, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile. Write API docs.")
	s.Require().NoError(err)

	s.True(s.ctrl.Delete(0))
	s.True(s.ctrl.Edit(0, "Write REST API docs", "Cover every endpoint."))
	s.False(s.ctrl.Edit(5, "x", "y"))
	s.Require().NoError(s.ctrl.Add(types.IssueDraft{Title: "Add dark mode", Description: "Offer a dark theme."}))

	summary, err := s.ctrl.Import(context.Background())
	s.Require().NoError(err)
	s.Equal(2, summary.Created)

	creates := s.linear.Creates()
	s.Equal("Write REST API docs", creates[0].Title)
	s.Equal("Add dark mode", creates[1].Title)
}

func (s *ControllerSuite) TestImportPartialFailure() {
	s.connect()
	_, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile. Write API docs.")
	s.Require().NoError(err)
	s.linear.FailTitle("Fix login bug on mobile", "rejected")

	summary, err := s.ctrl.Import(context.Background())
	var partial *types.PartialImportFailure
	s.Require().True(errors.As(err, &partial))
	s.Equal(1, summary.Created)
	s.Contains(s.notes.of("error"), "Failed to create issue: Fix login bug on mobile")
	s.Contains(s.notes.of("warn"), "Imported 1 of 2 issues to Linear")
}

func (s *ControllerSuite) TestImportTeamFailure() {
	s.connect()
	_, err := s.ctrl.Extract(context.Background(), "Fix login bug on mobile. Write API docs.")
	s.Require().NoError(err)
	s.linear.NoTeam()

	summary, err := s.ctrl.Import(context.Background())
	s.Nil(summary)
	var teamErr *types.TeamResolutionFailure
	s.True(errors.As(err, &teamErr))
	s.Empty(s.linear.Creates())
	s.Contains(s.notes.of("error"), "Unable to resolve a Linear team for this account.")
}

func (s *ControllerSuite) TestImportRequiresDrafts() {
	_, err := s.ctrl.Import(context.Background())
	s.ErrorIs(err, ErrWrongState)

	s.connect()
	_, err = s.ctrl.Import(context.Background())
	s.ErrorIs(err, ErrWrongState)
	s.Contains(s.notes.of("error"), MsgNothingToImport)
}

func TestMemoryNonceStore(t *testing.T) {
	var s MemoryNonceStore
	if got, _ := s.Load(); got != "" {
		t.Fatalf("Load() = %q, want empty", got)
	}
	_ = s.Save("linear-1")
	_ = s.Save("linear-2")
	if got, _ := s.Load(); got != "linear-2" {
		t.Errorf("Load() = %q, want %q", got, "linear-2")
	}
	_ = s.Clear()
	if got, _ := s.Load(); got != "" {
		t.Errorf("Load() after Clear = %q, want empty", got)
	}
}

func TestConcurrentCallbacksExchangeOnce(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(entered)
		}
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	}))
	defer srv.Close()

	nonces := &MemoryNonceStore{}
	ctrl := New(Options{
		Gateway: oauth.NewGateway(oauth.Config{ClientID: "id", ClientSecret: "shh", RedirectURI: "http://localhost/cb", TokenURL: srv.URL}),
		Nonces:  nonces,
	})
	_, _ = ctrl.BeginAuth()
	state, _ := nonces.Load()

	first := make(chan error, 1)
	go func() { first <- ctrl.HandleCallback(context.Background(), "the-code", state) }()
	<-entered

	if err := ctrl.HandleCallback(context.Background(), "the-code", state); !errors.Is(err, ErrExchangeInProgress) {
		t.Errorf("second HandleCallback() error = %v, want %v", err, ErrExchangeInProgress)
	}
	close(release)

	if err := <-first; err != nil {
		t.Fatalf("first HandleCallback() error = %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token exchanges = %d, want 1", got)
	}
	if err := ctrl.HandleCallback(context.Background(), "the-code", state); !errors.Is(err, ErrWrongState) {
		t.Errorf("late HandleCallback() error = %v, want %v", err, ErrWrongState)
	}
	if ctrl.AccessToken() != "tok" {
		t.Errorf("AccessToken() = %q, want %q", ctrl.AccessToken(), "tok")
	}
}

func TestTokenRequestCarriesSecret(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	}))
	defer srv.Close()

	nonces := &MemoryNonceStore{}
	ctrl := New(Options{
		Gateway: oauth.NewGateway(oauth.Config{ClientID: "id", ClientSecret: "shh", RedirectURI: "http://localhost/cb", TokenURL: srv.URL}),
		Nonces:  nonces,
	})
	_, _ = ctrl.BeginAuth()
	state, _ := nonces.Load()

	if err := ctrl.HandleCallback(context.Background(), "the-code", state); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if form.Get("client_secret") != "shh" || form.Get("code") != "the-code" || form.Get("redirect_uri") != "http://localhost/cb" {
		t.Errorf("token form = %v", form)
	}
}
