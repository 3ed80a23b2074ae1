package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend"
	"github.com/sakif/medhistory/internal/guard"
)

// These tests call the helpers directly with httptest.NewRecorder, which
// captures everything a handler wrote.

func TestWriteError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
		message   string
	}{
		{"validation", apperror.ValidationFailed("date", "bad date"), http.StatusBadRequest, "validation_error", "bad date"},
		{"wrapped not found", fmt.Errorf("loading: %w", apperror.NotFound("profile", "u1")), http.StatusNotFound, "not_found", "profile not found with id u1"},
		{"conflict", apperror.Conflict("share snapshot", "shares/AAAAAA"), http.StatusConflict, "conflict", ""},
		{"unauthorized", apperror.Unauthorized("sign in"), http.StatusUnauthorized, "unauthorized", "sign in"},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden, "forbidden", "no"},
		{"upstream", apperror.Upstream("try again", errors.New("dial tcp")), http.StatusBadGateway, "upstream_error", "try again"},
		{"raw backend outage", fmt.Errorf("x: %w", backend.ErrUnavailable), http.StatusBadGateway, "upstream_error", ""},
		{"share busy", guard.ErrBusy, http.StatusConflict, "share_in_progress", ""},
		{"unknown", errors.New("sql: secret table layout"), http.StatusInternalServerError, "internal_error", "An internal error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.errorType, body.Error)
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
			assert.NotContains(t, body.Message, "sql")
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"object", `{"date":"2024-01-01"}`, true},
		{"empty", ``, false},
		{"truncated", `{"date":`, false},
		{"too large", `{"notes":"` + strings.Repeat("a", maxBodyBytes) + `"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst map[string]any
			err := decodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}

func TestIdentity_Missing(t *testing.T) {
	rec := httptest.NewRecorder()
	_, ok := identity(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
