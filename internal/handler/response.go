package handler

// Every error response has the same shape:
//
//	{"error": "not_found", "message": "profile not found with id abc123"}
//
// so the web client can branch on "error" and show "message".

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/auth"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/guard"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable error type, e.g. "not_found"
	Message string `json:"message"` // human-readable description
}

// writeJSON sets headers and status before encoding; once the body starts,
// header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to a status code and the error envelope.
// Messages of unknown errors are never sent to the client.
//
// ERRORS.IS VS ERRORS.AS:
// errors.Is(err, target) walks the wrap chain comparing each error with
// target; it answers "is this a not-found?". errors.As(err, &ptr) walks the
// same chain looking for a type and, when found, stores it in ptr; it
// answers "give me the *AppError so I can read its Message". Both see
// through fmt.Errorf("...: %w") layers added by services.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guard.ErrBusy):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "share_in_progress",
			Message: "A share link is already being generated, please wait.",
		})
		return
	case errors.Is(err, backend.ErrUnavailable):
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "upstream_error",
			Message: "The data service is unavailable, please try again.",
		})
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUpstream):
			status = http.StatusBadGateway
			errorType = "upstream_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON object from the request body into dst.
//
// http.MaxBytesReader stops reading after maxBodyBytes and makes the decoder
// fail with *http.MaxBytesError, so an oversized body costs at most 1 MiB
// of reading before the 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", "request body is too large")
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is empty")
		default:
			return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
		}
	}
	return nil
}

// identity returns the caller set by auth.RequireAuth. Handlers mounted
// outside that middleware answer 401.
func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
	}
	return id, ok
}
