// Package service holds the business rules of the health record.
//
// Services sit between the HTTP handlers and the data backend. They take
// plain values (a user ID, a form struct), never HTTP types, and return
// apperror values that the handlers translate to status codes. The backend
// is injected as backend.Client / backend.Storage so tests can swap in a
// fake.
//
// READS DEGRADE, WRITES FAIL:
// A chart or a share snapshot built on partial data is still useful, so a
// failed read there is logged and replaced by an empty list. A failed write
// is returned to the caller; the user has to know it did not happen.
//
// ERROR TRANSLATION:
// Backends speak backend.Err*; handlers speak apperror. backendError sits in
// between:
//
//	backend.ErrUnauthorized → apperror.Unauthorized (401)
//	backend.ErrUnavailable  → apperror.Upstream (502)
//	*apperror.AppError      → unchanged
//	anything else           → wrapped, ends up as a 500
package service

import (
	"errors"
	"fmt"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
)

// backendError turns a backend failure into a domain error. action reads
// like "loading vitals" and is used for the wrapped message.
func backendError(action string, err error) error {
	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, backend.ErrUnauthorized):
		return apperror.Unauthorized("your session was rejected by the data service, please sign in again")
	case errors.Is(err, backend.ErrUnavailable):
		return apperror.Upstream(fmt.Sprintf("%s failed, please try again", action), err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}
