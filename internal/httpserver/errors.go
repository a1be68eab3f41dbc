package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skillcoder/sandboxd/internal/logic/instance"
)

type errorResponse struct {
	Error string `json:"error"`
}

type notFound interface {
	IsNotFound()
}

type accessDenied interface {
	IsAccessDenied()
}

// statusFor maps the logic layer's error taxonomy onto HTTP codes. NotFound
// and AccessDenied stay distinct; anything unclassified is an internal error.
func statusFor(err error) int {
	var notFoundTarget notFound
	if errors.As(err, &notFoundTarget) {
		return http.StatusNotFound
	}

	var accessDeniedTarget accessDenied
	if errors.As(err, &accessDeniedTarget) {
		return http.StatusForbidden
	}

	if errors.Is(err, instance.ErrUsageNotReady) {
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"reason", err,
		)
		writeError(w, status, "internal error")

		return
	}

	writeError(w, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode response", "reason", err)
	}
}
