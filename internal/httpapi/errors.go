package httpapi

import (
	"errors"
	"net/http"

	"github.com/example/disputedesk/internal/core/issue"
	"github.com/example/disputedesk/internal/ctxutil"
)

type errorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// statusFor maps workflow errors to HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, issue.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, issue.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, issue.ErrValidation):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, issue.ErrConcurrencyConflict):
		return http.StatusConflict, "concurrency_conflict"
	case errors.Is(err, issue.ErrAlreadyClaimed):
		return http.StatusConflict, "already_claimed"
	case errors.Is(err, issue.ErrClosed):
		return http.StatusConflict, "issue_closed"
	case errors.Is(err, issue.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *API) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", ctxutil.RequestIDFromContext(r.Context()),
			"error", err,
		)
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{
		Error:     msg,
		Kind:      kind,
		Retryable: issue.IsRetryable(err),
		RequestID: ctxutil.RequestIDFromContext(r.Context()),
	})
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}
