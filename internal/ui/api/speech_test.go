package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketdrop/ticketdrop/internal/ratelimit"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

type stubTranscriber struct {
	calls int
	text  string
	err   error
}

func (s *stubTranscriber) Transcribe(context.Context, string, []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

func speechRequest(t *testing.T, bearer string, audio []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if audio != nil {
		fw, err := mw.CreateFormFile("audio", "note.webm")
		require.NoError(t, err)
		_, err = fw.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, speechEndpoint, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return req
}

func TestSpeechHandlerTranscribes(t *testing.T) {
	tr := &stubTranscriber{text: "Fix login bug on mobile."}
	limiter := ratelimit.NewWindow(10, time.Minute)

	rec := httptest.NewRecorder()
	NewSpeechHandler(tr, limiter, nil).ServeHTTP(rec, speechRequest(t, "user-token", bytes.Repeat([]byte{1}, 4096)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body transcriptionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Fix login bug on mobile.", body.Transcription)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestSpeechHandlerRequiresBearer(t *testing.T) {
	tr := &stubTranscriber{}
	rec := httptest.NewRecorder()
	NewSpeechHandler(tr, nil, nil).ServeHTTP(rec, speechRequest(t, "", []byte{1, 2, 3}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, tr.calls)
}

func TestSpeechHandlerMissingFile(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSpeechHandler(&stubTranscriber{}, nil, nil).ServeHTTP(rec, speechRequest(t, "tok", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body jsonErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "No audio file provided", body.Error)
}

func TestSpeechHandlerRateLimitsPerVerifiedBearer(t *testing.T) {
	tr := &stubTranscriber{text: "ok"}
	limiter := ratelimit.NewWindow(2, time.Minute)
	h := NewSpeechHandler(tr, limiter, BearerCaller)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, speechRequest(t, "alice", []byte{1}))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, speechRequest(t, "alice", []byte{1}))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, 2, tr.calls)

	// A different caller has its own window.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, speechRequest(t, "bob", []byte{1}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSpeechHandlerRotatedBearersShareAddressWindow(t *testing.T) {
	tr := &stubTranscriber{text: "ok"}
	h := NewSpeechHandler(tr, ratelimit.NewWindow(1, time.Minute), nil)

	var codes []int
	for _, bearer := range []string{"a", "a", "b", "c", "d"} {
		req := speechRequest(t, bearer, []byte{1})
		req.RemoteAddr = "198.51.100.4:40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 429, 429, 429, 429}, codes)
	assert.Equal(t, 1, tr.calls)

	// Another address gets its own window.
	req := speechRequest(t, "e", []byte{1})
	req.RemoteAddr = "198.51.100.5:40000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRemoteAddrCaller(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "[2001:db8::1]:8080"
	assert.Equal(t, "2001:db8::1", RemoteAddrCaller(req))

	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", RemoteAddrCaller(req))
}

func TestSpeechHandlerUpstreamStatus(t *testing.T) {
	tr := &stubTranscriber{err: &types.GatewayError{Op: "transcribe", StatusCode: http.StatusTooManyRequests, Message: "rate limit reached"}}
	rec := httptest.NewRecorder()
	NewSpeechHandler(tr, nil, nil).ServeHTTP(rec, speechRequest(t, "tok", []byte{1}))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCallerID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Empty(t, callerID(req))

	req.Header.Set("Authorization", "Bearer ")
	assert.Empty(t, callerID(req))

	req.Header.Set("Authorization", "bearer abc")
	id := callerID(req)
	assert.Len(t, id, 16)
	assert.NotContains(t, id, "abc")

	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, id, callerID(req))
}
