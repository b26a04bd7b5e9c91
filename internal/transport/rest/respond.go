package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"glossary-review/internal/domain"
)

// maxBodyBytes bounds JSON request bodies and uploads.
const maxBodyBytes = 32 << 20

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: msg})
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", slog.String("error", err.Error()))
	}
	writeError(w, status, errorMessage(err))
}

// errorMessage returns the field message of a single validation error, or
// the error text.
func errorMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) && len(verr.Errors) == 1 {
		return verr.Errors[0].Message
	}
	return err.Error()
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNoConfig),
		errors.Is(err, domain.ErrNoProviders):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRunning):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}
