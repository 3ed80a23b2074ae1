package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/medhistory/internal/model"
	"github.com/sakif/medhistory/internal/service"
)

// ProfileHandler serves the caller's own profile. Every route behind it
// requires a valid token; the user ID always comes from the token, never
// from the request body.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleGet returns the caller's profile. A user who has never saved one
// gets a default built from the token's email and name.
//
// HTTP: GET /api/profile
//
// RESPONSE FORMAT:
//
//	{"id": "...", "email": "a@b.c", "name": "Asha", "age": 34, "gender": "F", ...}
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.Get(r.Context(), id.UserID, id.Email, id.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate replaces the editable profile fields and returns the saved
// profile.
//
// HTTP: PUT /api/profile
//
// REQUEST BODY:
//
//	{"name": "Asha", "age": 34, "gender": "F", "blood_group": "O+",
//	 "emergency_contact": "...", "allergies": "..."}
//
// A malformed body answers 400. Name is required.
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var u model.ProfileUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		h.logger.Warn("invalid profile body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	p, err := h.profiles.Update(r.Context(), id.UserID, id.Email, u)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
