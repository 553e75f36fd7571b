package server

import (
	"io"
	"net/http"
	"strings"

	"gpxvault/logger"
	"gpxvault/storage"
)

// StaticHandler serves stored objects (originals, thumbnails, maps)
// straight from MinIO.
func (h *APIHandler) StaticHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/static/")
	if key == "" || strings.Contains(key, "..") {
		respondError(w, http.StatusBadRequest, "invalid object path")
		return
	}

	obj, err := h.store.Get(r.Context(), key)
	if err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	defer obj.Close()

	w.Header().Set("Content-Type", objectContentType(key))
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if _, err := io.Copy(w, obj); err != nil {
		logger.Warn("failed to serve object", logger.String("key", key), logger.ErrorField(err))
	}
}

func objectContentType(key string) string {
	switch {
	case strings.HasPrefix(key, storage.PrefixThumbnail):
		return "image/png"
	case strings.HasPrefix(key, storage.PrefixMap):
		return "text/html; charset=utf-8"
	case strings.HasPrefix(key, storage.PrefixGPX):
		return "application/gpx+xml"
	default:
		return "application/octet-stream"
	}
}
