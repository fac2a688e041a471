package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/ticketdrop/ticketdrop/internal/log"
	"github.com/ticketdrop/ticketdrop/internal/ratelimit"
	"github.com/ticketdrop/ticketdrop/internal/transcribe"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

const speechEndpoint = "/api/speech-to-text"

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

type transcriptionResponse struct {
	Transcription string `json:"transcription"`
}

// CallerKey returns the identity a request is rate limited under, or "" when
// the caller cannot be identified.
type CallerKey func(r *http.Request) string

// RemoteAddrCaller identifies callers by client address.
func RemoteAddrCaller(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// BearerCaller identifies callers by a hash of their bearer token. Only use it
// when the server has already checked that token.
func BearerCaller(r *http.Request) string {
	return callerID(r)
}

// NewSpeechHandler transcribes an uploaded "audio" form file. Requests must
// carry a bearer token and are limited per caller as chosen by key; a nil key
// uses RemoteAddrCaller.
func NewSpeechHandler(t Transcriber, limiter *ratelimit.Window, key CallerKey) http.Handler {
	if key == nil {
		key = RemoteAddrCaller
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}

		userID := key(r)
		if callerID(r) == "" || userID == "" {
			WriteJSONError(w, http.StatusUnauthorized, "Unauthorized", "")
			return
		}
		if t == nil {
			WriteServiceUnavailable(w, "transcription unavailable", "No transcription API key is configured.")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, transcribe.MaxFileSize+(1<<20))
		file, header, err := r.FormFile("audio")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteJSONError(w, http.StatusBadRequest, transcribe.FriendlyMessage(transcribe.Validate(transcribe.MaxFileSize+1)), "")
				return
			}
			WriteJSONError(w, http.StatusBadRequest, "No audio file provided", "")
			return
		}
		defer file.Close() // nolint:errcheck

		limitKey := ratelimit.Key(userID, speechEndpoint)
		if limiter != nil {
			if limiter.IsLimited(limitKey) {
				log.LogAPIRequest(r.Context(), speechEndpoint, map[string]interface{}{"rate_limited": true})
				limiter.Status(limitKey).SetHeaders(w.Header())
				WriteJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", "")
				return
			}
			limiter.RecordAttempt(limitKey)
		}

		if err := transcribe.Validate(header.Size); err != nil {
			WriteJSONError(w, http.StatusBadRequest, transcribe.FriendlyMessage(err), "")
			return
		}

		audio, err := io.ReadAll(file)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "No audio file provided", err.Error())
			return
		}

		text, err := t.Transcribe(r.Context(), header.Filename, audio)
		if err != nil {
			var vErr *types.ValidationError
			status := statusFromError(err, http.StatusInternalServerError)
			if errors.As(err, &vErr) {
				status = http.StatusBadRequest
			}
			log.Error(r.Context(), map[string]interface{}{"err": err.Error(), "status": status}, "transcription failed")
			WriteJSONError(w, status, transcribe.FriendlyMessage(err), "")
			return
		}

		log.LogAPIRequest(r.Context(), speechEndpoint, map[string]interface{}{
			"audio_duration_ms": transcribe.EstimateDuration(int64(len(audio))).Milliseconds(),
			"transcribed_chars": len(text),
			"rate_limited":      false,
		})
		if limiter != nil {
			limiter.Status(limitKey).SetHeaders(w.Header())
		}
		writeJSON(w, http.StatusOK, transcriptionResponse{Transcription: text})
	})
}

// callerID derives a stable identity from the bearer token without keeping
// the token itself.
func callerID(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	token := strings.TrimSpace(auth[len(prefix):])
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
