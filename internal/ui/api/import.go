package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ticketdrop/ticketdrop/internal/importer"
	"github.com/ticketdrop/ticketdrop/internal/log"
	"github.com/ticketdrop/ticketdrop/internal/types"
)

// Importer creates issue drafts in Linear.
type Importer interface {
	ImportAll(ctx context.Context, accessToken string, snapshot types.IssueDraftCollection, observers ...importer.Observer) (*types.ImportSummary, error)
}

type importRequest struct {
	AccessToken string             `json:"accessToken"`
	Issues      []types.IssueDraft `json:"issues"`
}

type resultEvent struct {
	Index int `json:"index"`
	types.ImportResult
	Message string `json:"message"`
}

type completeEvent struct {
	Created int    `json:"created"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// NewImportHandler imports the posted drafts and streams progress as
// Server-Sent Events: one "team" event, one "result" per draft in order, and
// a final "complete" summary. If no team can be resolved a single "error"
// event is sent and nothing is created. Drafts are sent as posted; one the
// remote rejects becomes a failed result and the rest still go through.
func NewImportHandler(imp Importer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if imp == nil {
			WriteServiceUnavailable(w, "import unavailable", "Import is not configured.")
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteJSONError(w, http.StatusInternalServerError, "streaming unsupported", "")
			return
		}

		defer r.Body.Close() // nolint:errcheck

		var req importRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
			return
		}
		if strings.TrimSpace(req.AccessToken) == "" {
			WriteJSONError(w, http.StatusUnauthorized, "Missing access token. Please authenticate with Linear first.", "")
			return
		}
		if len(req.Issues) == 0 {
			WriteJSONError(w, http.StatusBadRequest, "There are no issues to import", "")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		// Only the dispatcher goroutine writes while ImportAll runs, and it is
		// drained before ImportAll returns.
		stream := func(ev importer.Event) {
			var err error
			switch ev.Kind {
			case importer.EventTeam:
				err = writeSSEEvent(w, string(ev.Kind), ev.Team)
			case importer.EventResult:
				err = writeSSEEvent(w, string(ev.Kind), resultEvent{Index: ev.Index, ImportResult: *ev.Result, Message: ev.Result.Message()})
			case importer.EventComplete:
				err = writeSSEEvent(w, string(ev.Kind), completeEvent{
					Created: ev.Summary.Created,
					Failed:  ev.Summary.Failed,
					Total:   ev.Summary.Total,
					Message: ev.Summary.Message(),
				})
			case importer.EventError:
				err = writeSSEEvent(w, string(ev.Kind), errorEvent{Error: ev.Err.Error()})
			}
			if err == nil {
				flusher.Flush()
			}
		}

		summary, err := imp.ImportAll(r.Context(), req.AccessToken, types.NewCollection(req.Issues...), stream)
		fields := map[string]interface{}{"total": len(req.Issues)}
		if err != nil {
			fields["err"] = err.Error()
			log.Warn(r.Context(), fields, "import aborted")
			return
		}
		fields["created"] = summary.Created
		fields["failed"] = summary.Failed
		log.LogAPIRequest(r.Context(), "/api/import", fields)
	})
}

func writeSSEEvent(w http.ResponseWriter, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
