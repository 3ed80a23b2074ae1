package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/model"
	"github.com/sakif/medhistory/internal/service"
	"github.com/sakif/medhistory/internal/trend"
)

// VitalsHandler serves vitals readings and everything derived from them:
// the sugar trend chart in three encodings and the insights report.
type VitalsHandler struct {
	vitals   *service.VitalsService
	trend    *service.TrendService
	insights *service.InsightService
	logger   *slog.Logger
}

// NewVitalsHandler creates a VitalsHandler.
func NewVitalsHandler(vitals *service.VitalsService, trends *service.TrendService, insights *service.InsightService, logger *slog.Logger) *VitalsHandler {
	return &VitalsHandler{vitals: vitals, trend: trends, insights: insights, logger: logger}
}

// HandleList returns the caller's readings, newest first.
//
// HTTP: GET /api/vitals?limit=20
//
// limit is optional; 0 or absent means every reading.
//
// RESPONSE FORMAT:
//
//	[ {"id": "...", "date": "2024-03-01", "bp": "120/80", "sugar": 110, "temperature": 36.8}, ... ]
func (h *VitalsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, apperror.ValidationFailed("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	readings, err := h.vitals.List(r.Context(), id.UserID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

// HandleCreate stores a new reading. The stored chart is invalidated in the
// background so the next trend request draws the new point.
//
// HTTP: POST /api/vitals
//
// REQUEST BODY:
//
//	{"date": "2024-03-01", "bp": "120/80", "sugar": "110", "temperature": "36.8"}
//
// sugar and temperature accept numbers or numeric strings.
func (h *VitalsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var in model.VitalsReading
	if err := decodeJSON(w, r, &in); err != nil {
		h.logger.Warn("invalid vitals body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	v, err := h.vitals.Create(r.Context(), id.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// viewport reads ?width, ?height and ?dpr. Missing values take defaults.
func viewport(r *http.Request) (trend.Viewport, error) {
	var vp trend.Viewport
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"width", &vp.Width},
		{"height", &vp.Height},
		{"dpr", &vp.DPR},
	} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return trend.Viewport{}, apperror.ValidationFailed(p.name, p.name+" must be a positive number")
		}
		*p.dst = v
	}
	return service.NormalizeViewport(vp), nil
}

// HandleTrend returns the chart as a display list a browser replays onto
// a canvas, plus the layout it was drawn from.
//
// HTTP: GET /api/vitals/trend?width=600&height=240&dpr=2
//
// RESPONSE FORMAT:
//
//	{"geometry": {"width": 600, "baseline": 210, "points": [...], ...},
//	 "displayList": [ {"op": "fillRect", ...}, ... ]}
func (h *VitalsHandler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	vp, err := viewport(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.trend.Display(r.Context(), id.UserID, vp))
}

// HandleTrendPNG returns the chart rasterized at width*dpr by height*dpr.
//
// HTTP: GET /api/vitals/trend.png?width=600&height=240&dpr=2
func (h *VitalsHandler) HandleTrendPNG(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	vp, err := viewport(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.trend.WritePNG(r.Context(), &buf, id.UserID, vp); err != nil {
		h.logger.Error("rendering trend png failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeImage(w, "image/png", buf.Bytes())
}

// HandleTrendSVG returns the chart as a standalone SVG document.
//
// HTTP: GET /api/vitals/trend.svg?width=600&height=240
func (h *VitalsHandler) HandleTrendSVG(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	vp, err := viewport(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.trend.WriteSVG(r.Context(), &buf, id.UserID, vp); err != nil {
		h.logger.Error("rendering trend svg failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeImage(w, "image/svg+xml", buf.Bytes())
}

// writeImage sends a rendered chart. Charts change on every new reading,
// so they are never cached.
func writeImage(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleInsights returns the health-score report for the caller.
//
// HTTP: GET /api/insights
//
// A failed read still answers 200 with an error status inside the report,
// so the dashboard can show a message instead of a broken card.
func (h *VitalsHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.insights.Report(r.Context(), id.UserID))
}
