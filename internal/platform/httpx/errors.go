package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stonecrest/backoffice/internal/shared"
)

// ErrorResponder maps domain errors to HTTP responses.
type ErrorResponder struct {
	Logger *slog.Logger
	// Verbose exposes internal error detail; disabled in production.
	Verbose bool
}

// Respond writes the failure envelope for err.
func (e ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := shared.AsValidation(err); ok {
		Fail(w, http.StatusBadRequest, "Validation failed", verr.Fields)
		return
	}
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, shared.ErrConflict):
		// domain conflicts surface as 400 to match the public API contract
		Fail(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, shared.ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, "Authentication required", nil)
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, "Insufficient permissions", nil)
	default:
		if e.Logger != nil {
			e.Logger.Error("request failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
		}
		env := Envelope{Success: false, Message: "Internal server error"}
		if errors.Is(err, shared.ErrUnavailable) {
			env.Message = "Service temporarily unavailable, please retry"
		}
		if e.Verbose {
			env.Detail = err.Error()
		}
		JSON(w, http.StatusInternalServerError, env)
	}
}
