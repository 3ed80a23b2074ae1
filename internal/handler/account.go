package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/sakif/medhistory/internal/export"
	"github.com/sakif/medhistory/internal/service"
)

// AccountHandler serves whole-account operations.
type AccountHandler struct {
	account *service.AccountService
	logger  *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(account *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{account: account, logger: logger}
}

// HandleEmergencyLink returns the public URL of the caller's emergency card.
//
// HTTP: GET /api/emergency-link
//
// RESPONSE FORMAT:
//
//	{"url": "https://.../emergency.html?id=<user id>"}
func (h *AccountHandler) HandleEmergencyLink(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": h.account.EmergencyLink(id.UserID)})
}

// HandleExport returns the caller's whole history as a spreadsheet.
//
// HTTP: GET /api/export.xlsx
//
// Content-Disposition is attachment, so browsers save the file instead of
// trying to display it.
func (h *AccountHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	data, err := h.account.Export(r.Context(), id.UserID, id.Email, id.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	// dated so repeated exports do not overwrite each other in Downloads
	name := "medical-history-" + time.Now().UTC().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleDelete removes every row the caller owns.
//
// HTTP: DELETE /api/account
//
// RESPONSE: 204 No Content. The identity provider account itself is not
// touched; signing in again starts from an empty profile.
func (h *AccountHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if err := h.account.Delete(r.Context(), id.UserID); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("account deleted", slog.String("user_id", id.UserID))
	w.WriteHeader(http.StatusNoContent)
}
