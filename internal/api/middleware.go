package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tablewright/tablewright/internal/validation"
)

// jsonResponse writes a JSON response.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("writing json response", "error", err)
	}
}

// errorResponse writes an error JSON response.
func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets the websocket upgrade reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestLogger is middleware that logs HTTP requests.
func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) broadcastValidation(v *validation.Result) {
	if s.hub == nil || v == nil {
		return
	}
	for _, t := range v.Tables {
		if t.RowCountCheck != nil {
			s.hub.BroadcastValidationCheck(t.Name, "row_count", t.RowCountCheck.Match)
		}
		if t.AggregateCheck != nil {
			s.hub.BroadcastValidationCheck(t.Name, "aggregate", t.AggregateCheck.Match)
		}
	}
}
