package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/medhistory/internal/model"
	"github.com/sakif/medhistory/internal/service"
)

// RecordHandler serves the caller's medical records.
type RecordHandler struct {
	records *service.RecordService
	logger  *slog.Logger
}

// NewRecordHandler creates a RecordHandler.
func NewRecordHandler(records *service.RecordService, logger *slog.Logger) *RecordHandler {
	return &RecordHandler{records: records, logger: logger}
}

// HandleList returns the caller's records for one body part, split by
// priority.
//
// HTTP: GET /api/records?bodyPart=Head
//
// RESPONSE FORMAT:
//
//	{"high": [ {...}, ... ], "low": [ {...}, ... ]}
//
// Both arrays are always present, even when empty, so the client never
// has to check for null.
func (h *RecordHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	groups, err := h.records.List(r.Context(), id.UserID, r.URL.Query().Get("bodyPart"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// HandleCreate stores a new record for the caller.
//
// HTTP: POST /api/records
//
// REQUEST BODY:
//
//	{"priority": "high", "date": "2024-03-01", "diagnosis": "...",
//	 "treatment": "...", "doctor": "...", "notes": "...", "body_part": "Head"}
//
// RESPONSE: 201 Created with the stored record, including its new id.
func (h *RecordHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var in model.MedicalRecord
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid record body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	rec, err := h.records.Create(r.Context(), id.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}
