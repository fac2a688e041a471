package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ticketdrop/ticketdrop/internal/log"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

// Extractor turns free-form text into issue drafts.
type Extractor interface {
	Extract(ctx context.Context, text string) (types.IssueDraftCollection, error)
}

type chatRequest struct {
	Text string `json:"text"`
}

// NewChatHandler extracts issue drafts from the posted text.
func NewChatHandler(extractor Extractor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if extractor == nil {
			WriteServiceUnavailable(w, "extraction unavailable", "No model API key is configured.")
			return
		}

		defer r.Body.Close() // nolint:errcheck

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			WriteJSONError(w, http.StatusBadRequest, "No text to process", "")
			return
		}

		drafts, err := extractor.Extract(r.Context(), req.Text)
		if err != nil {
			fields := map[string]interface{}{"err": err.Error()}
			var schemaErr *types.SchemaValidationError
			var vErr *types.ValidationError
			switch {
			case errors.As(err, &vErr):
				WriteJSONError(w, http.StatusBadRequest, vErr.Message, "")
			case errors.As(err, &schemaErr):
				log.Warn(r.Context(), fields, "extraction did not match schema")
				WriteJSONError(w, http.StatusBadGateway, "Failed to parse response", strings.Join(schemaErr.Violations, "; "))
			default:
				log.Error(r.Context(), fields, "extraction failed")
				WriteJSONError(w, http.StatusInternalServerError, "Internal server error", "")
			}
			return
		}

		log.LogAPIRequest(r.Context(), "/api/chat", map[string]interface{}{
			"input_chars": len(req.Text),
			"issues":      drafts.Len(),
		})
		writeJSON(w, http.StatusOK, drafts)
	})
}
