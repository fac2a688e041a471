// Package upstreamtest provides in-process stand-ins for the Linear GraphQL API
// and the Anthropic Messages API.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    lin := upstreamtest.NewLinear(t)
//	    lin.FailTitle("Write API docs", "title rejected")
//	    // point a linear.Client at lin.URL ...
//	}
package upstreamtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ticketdrop/ticketdrop/internal/linear"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

// CreateCall records one issueCreate mutation received by the stub.
type CreateCall struct {
	TeamID      string
	Title       string
	Description string
	Auth        string
}

// Linear is a fake Linear GraphQL endpoint. The zero configuration serves one
// team ("Engineering") and accepts every create with a non-blank title.
type Linear struct {
	*httptest.Server

	mu         sync.Mutex
	team       *linear.Team
	teamStatus int
	failTitles map[string]string
	creates    []CreateCall
	teamCalls  int
	seq        int
}

// NewLinear starts a fake Linear API that is closed when the test ends.
func NewLinear(t testing.TB) *Linear {
	t.Helper()
	l := &Linear{
		team:       &linear.Team{ID: "team-eng", Name: "Engineering"},
		failTitles: make(map[string]string),
	}
	l.Server = httptest.NewServer(http.HandlerFunc(l.serve))
	t.Cleanup(l.Close)
	return l
}

// NoTeam makes the viewer query return an empty team list.
func (l *Linear) NoTeam() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.team = nil
}

// TeamStatus makes the viewer query fail with the given HTTP status.
func (l *Linear) TeamStatus(status int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.teamStatus = status
}

// FailTitle makes creates with this title return a GraphQL error.
func (l *Linear) FailTitle(title, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failTitles[title] = message
}

// Creates returns every create call received so far, in arrival order.
func (l *Linear) Creates() []CreateCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CreateCall(nil), l.creates...)
}

// TeamCalls returns how many viewer team queries were received.
func (l *Linear) TeamCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.teamCalls
}

func (l *Linear) serve(w http.ResponseWriter, r *http.Request) {
	var req linear.GraphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.Contains(req.Query, "issueCreate"):
		input, _ := req.Variables["input"].(map[string]interface{})
		call := CreateCall{
			TeamID:      fmt.Sprint(input["teamId"]),
			Title:       fmt.Sprint(input["title"]),
			Description: fmt.Sprint(input["description"]),
			Auth:        r.Header.Get("Authorization"),
		}
		l.creates = append(l.creates, call)
		if strings.TrimSpace(call.Title) == "" {
			writeJSON(w, map[string]interface{}{"errors": []map[string]string{{"message": "Argument Validation Error: title should not be empty"}}})
			return
		}
		if msg, ok := l.failTitles[call.Title]; ok {
			writeJSON(w, map[string]interface{}{"errors": []map[string]string{{"message": msg}}})
			return
		}
		l.seq++
		identifier := fmt.Sprintf("ENG-%d", 100+l.seq)
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"issueCreate": map[string]interface{}{
					"success": true,
					"issue": linear.Issue{
						ID:         fmt.Sprintf("issue-%d", l.seq),
						Identifier: identifier,
						Title:      call.Title,
						URL:        "https://linear.app/acme/issue/" + identifier,
					},
				},
			},
		})
	case strings.Contains(req.Query, "viewer"):
		l.teamCalls++
		if l.teamStatus != 0 {
			w.WriteHeader(l.teamStatus)
			_, _ = io.WriteString(w, `{"errors":[{"message":"upstream unavailable"}]}`)
			return
		}
		nodes := []linear.Team{}
		if l.team != nil {
			nodes = append(nodes, *l.team)
		}
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{
				"viewer": map[string]interface{}{
					"teams": map[string]interface{}{"nodes": nodes},
				},
			},
		})
	default:
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"errors":[{"message":"unknown operation"}]}`)
	}
}

// Anthropic is a fake Messages API that answers every request with a
// record_issues tool call carrying the configured drafts.
type Anthropic struct {
	*httptest.Server

	mu     sync.Mutex
	status int
	input  string
	calls  int
}

// NewAnthropic starts a fake Messages API returning drafts.
func NewAnthropic(t testing.TB, drafts ...types.IssueDraft) *Anthropic {
	t.Helper()
	a := &Anthropic{status: http.StatusOK}
	a.Respond(drafts...)
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.Close)
	return a
}

// BaseURL is the value to pass as the client base URL.
func (a *Anthropic) BaseURL() string {
	return a.URL + "/"
}

// Respond replaces the drafts returned by subsequent calls.
func (a *Anthropic) Respond(drafts ...types.IssueDraft) {
	if drafts == nil {
		drafts = []types.IssueDraft{}
	}
	b, _ := json.Marshal(types.IssueDraftCollection{Issues: drafts})
	a.RespondRaw(string(b))
}

// RespondRaw sets the raw tool input returned by subsequent calls.
func (a *Anthropic) RespondRaw(input string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input = input
	a.status = http.StatusOK
}

// Fail makes subsequent calls return the given HTTP status.
func (a *Anthropic) Fail(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
}

// Calls returns how many requests were received.
func (a *Anthropic) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *Anthropic) serve(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++

	w.Header().Set("Content-Type", "application/json")
	if a.status != http.StatusOK {
		w.WriteHeader(a.status)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"api_error","message":"stub failure"}}`)
		return
	}
	_, _ = fmt.Fprintf(w, `{
		"id": "msg_stub",
		"type": "message",
		"role": "assistant",
		"model": "claude-haiku-4-5",
		"content": [{"type": "tool_use", "id": "toolu_stub", "name": "record_issues", "input": %s}],
		"stop_reason": "tool_use",
		"stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 10}
	}`, a.input)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	_ = json.NewEncoder(w).Encode(v)
}
