package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/medhistory/internal/service"
)

// ShareHandler serves share-snapshot generation.
type ShareHandler struct {
	profiles *service.ProfileService
	share    *service.ShareService
	logger   *slog.Logger
}

// NewShareHandler creates a ShareHandler.
func NewShareHandler(profiles *service.ProfileService, share *service.ShareService, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{profiles: profiles, share: share, logger: logger}
}

// HandleCreate snapshots the caller's current profile and medical history
// and returns the access code a doctor types in to read it.
//
// HTTP: POST /api/share
//
// RESPONSE FORMAT (201 Created):
//
//	{"code": "K7QX2M", "key": "shares/K7QX2M", "url": "...",
//	 "expiresAt": "2024-03-02T10:00:00Z"}
//
// While one snapshot is being generated, further requests by the same
// user get 409 Conflict.
func (h *ShareHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.Get(r.Context(), id.UserID, id.Email, id.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.share.Generate(r.Context(), id.UserID, *profile)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
