package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/medhistory/internal/apperror"
	"github.com/sakif/medhistory/internal/backend/sqlite"
)

// ObjectReader reads stored objects back. Only the embedded backend
// implements it; the hosted backend serves its own public URLs.
type ObjectReader interface {
	Object(ctx context.Context, bucket, key string) (*sqlite.Object, error)
}

// StorageHandler serves uploaded files for the embedded backend.
type StorageHandler struct {
	objects ObjectReader
	logger  *slog.Logger
}

// NewStorageHandler creates a StorageHandler.
func NewStorageHandler(objects ObjectReader, logger *slog.Logger) *StorageHandler {
	return &StorageHandler{objects: objects, logger: logger}
}

// HandleObject returns one stored object, the public URL of an upload in
// the embedded backend.
//
// HTTP: GET /storage/{bucket}/{key...}
//
// The key may contain slashes (shares/K7QX2M), so the route ends in a chi
// wildcard instead of a single parameter.
func (h *StorageHandler) HandleObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	// chi matches on the raw path when the request carried escapes
	var err error
	if r.URL.RawPath != "" {
		bucket, _ = url.PathUnescape(bucket)
		key, err = url.PathUnescape(key)
	}
	if err != nil || bucket == "" || key == "" {
		writeError(w, apperror.ValidationFailed("key", "bucket and key are required"))
		return
	}

	obj, err := h.objects.Object(r.Context(), bucket, key)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			h.logger.Error("reading object failed",
				slog.String("bucket", bucket),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, err)
		return
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.CacheControl != "" {
		w.Header().Set("Cache-Control", "max-age="+obj.CacheControl)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(obj.Data)
}

// HandleHealth reports that the process is up.
//
// HTTP: GET /healthz
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
