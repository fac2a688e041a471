package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdrop/ticketdrop/internal/types"
)

type stubExtractor struct {
	text   string
	drafts types.IssueDraftCollection
	err    error
}

func (s *stubExtractor) Extract(_ context.Context, text string) (types.IssueDraftCollection, error) {
	s.text = text
	return s.drafts, s.err
}

func postChat(t *testing.T, ex Extractor, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	NewChatHandler(ex).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body)))
	return rec
}

func TestChatHandlerReturnsIssues(t *testing.T) {
	ex := &stubExtractor{drafts: types.NewCollection(
		types.IssueDraft{Title: "Fix mobile login", Description: "Login fails on mobile."},
		types.IssueDraft{Title: "Write API docs", Description: "Document the API."},
	)}

	rec := postChat(t, ex, `{"text":"Fix login bug on mobile. Write API docs."}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Fix login bug on mobile. Write API docs.", ex.text)

	var got types.IssueDraftCollection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Fix mobile login", "Write API docs"}, got.Titles())
}

func TestChatHandlerEmptyResultIsOK(t *testing.T) {
	rec := postChat(t, &stubExtractor{drafts: types.NewCollection()}, `{"text":"hello there"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"issues":[]`)
}

func TestChatHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{name: "bad json", body: `{`, status: http.StatusBadRequest, msg: "Invalid request body"},
		{name: "blank text", body: `{"text":"   "}`, status: http.StatusBadRequest, msg: "No text to process"},
		{
			name:   "schema mismatch",
			body:   `{"text":"x"}`,
			err:    &types.SchemaValidationError{Violations: []string{"issues.0: description is required"}},
			status: http.StatusBadGateway,
			msg:    "Failed to parse response",
		},
		{
			name:   "upstream failure",
			body:   `{"text":"x"}`,
			err:    &types.ExtractionError{Err: errors.New("overloaded")},
			status: http.StatusInternalServerError,
			msg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, &stubExtractor{err: tt.err}, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var body jsonErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if body.Error != tt.msg {
				t.Errorf("error = %q, want %q", body.Error, tt.msg)
			}
		})
	}
}

func TestChatHandlerSchemaDetails(t *testing.T) {
	rec := postChat(t, &stubExtractor{err: &types.SchemaValidationError{Violations: []string{"a", "b"}}}, `{"text":"x"}`)
	var body jsonErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a; b", body.Details)
}

func TestChatHandlerUnconfigured(t *testing.T) {
	rec := postChat(t, nil, `{"text":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
