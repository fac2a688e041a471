package extract

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

// fakeMessagesAPI serves /v1/messages, answering with a tool_use block whose
// input is the given JSON. It records the last request body.
type fakeMessagesAPI struct {
	*httptest.Server
	status int
	input  string
	body   map[string]interface{}
	calls  int
}

func newFakeMessagesAPI(t *testing.T, status int, input string) *fakeMessagesAPI {
	t.Helper()
	f := &fakeMessagesAPI{status: status, input: input}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls++
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &f.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.status)
		if f.status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "tool_use", "id": "toolu_01", "name": "record_issues", "input": ` + f.input + `}],
			"stop_reason": "tool_use",
			"stop_sequence": null,
			"usage": {"input_tokens": 120, "output_tokens": 48}
		}`))
	}))
	t.Cleanup(f.Close)
	return f
}

func newTestClient(t *testing.T, api *fakeMessagesAPI) *Client {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	c, err := NewClient(Options{APIKey: "sk-test", BaseURL: api.URL + "/"})
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewClient(Options{})
	if !errors.Is(err, errAPIKeyRequired) {
		t.Fatalf("NewClient() error = %v, want errAPIKeyRequired", err)
	}
}

func TestNewClientPrefersEnvKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	c, err := NewClient(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, c.Model())
}

func TestExtractTwoIssues(t *testing.T) {
	api := newFakeMessagesAPI(t, http.StatusOK, `{"issues":[
		{"title":"Fix login bug on mobile","description":"Users can log in on mobile devices without errors."},
		{"title":"Write API docs","description":"Document every public endpoint with request and response examples."}
	]}`)

	got, err := newTestClient(t, api).Extract(context.Background(), "Fix login bug on mobile. Write API docs.")
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	for _, d := range got.Issues {
		assert.NotEmpty(t, d.Title)
		assert.NotEmpty(t, d.Description)
		assert.LessOrEqual(t, d.TitleWords(), types.MaxTitleWords)
	}
	assert.Equal(t, []string{"Fix login bug on mobile", "Write API docs"}, got.Titles())

	// The request forces the record tool and carries the policy prompt.
	toolChoice, _ := api.body["tool_choice"].(map[string]interface{})
	assert.Equal(t, "tool", toolChoice["type"])
	assert.Equal(t, toolName, toolChoice["name"])
	assert.Contains(t, mustJSON(t, api.body["messages"]), "Fix login bug on mobile. Write API docs.")
	assert.Contains(t, mustJSON(t, api.body["system"]), "senior product manager")
}

func TestExtractEmptyResultIsValid(t *testing.T) {
	api := newFakeMessagesAPI(t, http.StatusOK, `{"issues":[]}`)

	got, err := newTestClient(t, api).Extract(context.Background(), "Thanks everyone for a great week!")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.NotNil(t, got.Issues)
}

func TestExtractRejectsMalformedPayload(t *testing.T) {
	api := newFakeMessagesAPI(t, http.StatusOK, `{"issues":[{"title":"Only a title"}]}`)

	_, err := newTestClient(t, api).Extract(context.Background(), "something")
	var schemaErr *types.SchemaValidationError
	require.True(t, errors.As(err, &schemaErr), "got %v", err)
	assert.NotEmpty(t, schemaErr.Violations)
}

func TestExtractModelErrorIsNotRetried(t *testing.T) {
	api := newFakeMessagesAPI(t, http.StatusServiceUnavailable, "")

	_, err := newTestClient(t, api).Extract(context.Background(), "something")
	var exErr *types.ExtractionError
	require.True(t, errors.As(err, &exErr), "got %v", err)
	assert.Equal(t, 1, api.calls)
}

func TestExtractRejectsBlankInput(t *testing.T) {
	api := newFakeMessagesAPI(t, http.StatusOK, `{"issues":[]}`)

	_, err := newTestClient(t, api).Extract(context.Background(), "   ")
	var vErr *types.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, 0, api.calls)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
