package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ticketdrop/ticketdrop/internal/log"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type loggingWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *loggingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// WithRequestLogging assigns each request an id, echoes it in the response
// and logs method, path, status and duration once the handler returns.
func WithRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := log.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)

		lw := &loggingWriter{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(lw, r.WithContext(ctx))

		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error(ctx, fields, "request failed")
		case status >= 400:
			log.Warn(ctx, fields, "request rejected")
		default:
			log.Info(ctx, fields, "request served")
		}
	})
}
