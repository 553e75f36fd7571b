package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gpxvault/core/gpx"
	"gpxvault/core/ingest"
	"gpxvault/core/track"
	"gpxvault/logger"
	"gpxvault/model"
	"gpxvault/repository"
)

// maxUploadSize bounds a single upload request. GPX files are text; 50 MB
// covers even multi-day recordings with room for a bulk batch.
const maxUploadSize = 50 << 20

// RouteView is the route representation returned by the API. Object keys
// stay internal; clients get stable URLs instead.
type RouteView struct {
	*model.Route
	DistanceMiles float64 `json:"distanceMiles"`
	GPXURL        string  `json:"gpxUrl,omitempty"`
	ThumbnailURL  string  `json:"thumbnailUrl,omitempty"`
	MapURL        string  `json:"mapUrl,omitempty"`
	ShareURL      string  `json:"shareUrl,omitempty"`
}

func newRouteView(route *model.Route) *RouteView {
	v := &RouteView{Route: route, DistanceMiles: route.DistanceMiles()}
	if route.GPXKey != "" {
		v.GPXURL = "/static/" + route.GPXKey
	}
	if route.ThumbnailKey != "" {
		v.ThumbnailURL = "/static/" + route.ThumbnailKey
	}
	if route.MapKey != "" {
		v.MapURL = "/static/" + route.MapKey
	}
	if route.ShareToken != "" {
		v.ShareURL = "/api/share/" + route.ShareToken
	}
	return v
}

func newRouteViews(routes []*model.Route) []*RouteView {
	views := make([]*RouteView, 0, len(routes))
	for _, route := range routes {
		views = append(views, newRouteView(route))
	}
	return views
}

// UploadRouteHandler ingests a single uploaded track file.
func (h *APIHandler) UploadRouteHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	route, err := h.ingestSvc.Ingest(r.Context(), ingest.Upload{
		Filename: header.Filename,
		Name:     r.FormValue("name"),
		Tags:     model.SplitTagNames(r.FormValue("tags")),
		Data:     data,
	})
	if err != nil {
		if isBadUpload(err) {
			logger.Warn("upload rejected", logger.String("filename", header.Filename), logger.ErrorField(err))
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		logger.Error("upload failed", logger.String("filename", header.Filename), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to store route")
		return
	}

	respondJSON(w, http.StatusCreated, newRouteView(route))
}

// isBadUpload reports whether an ingestion error is the uploader's fault
// (bad file) rather than a storage or database failure.
func isBadUpload(err error) bool {
	return errors.Is(err, gpx.ErrUnsupportedFormat) ||
		errors.Is(err, gpx.ErrMalformedTrack) ||
		errors.Is(err, track.ErrEmptyTrack)
}

// BulkUploadHandler ingests several files in one request. A bad file does
// not abort the batch; the summary reports each outcome.
func (h *APIHandler) BulkUploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "files field is required")
		return
	}

	tags := model.SplitTagNames(r.FormValue("tags"))
	uploads := make([]ingest.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			uploads = append(uploads, ingest.Upload{Filename: header.Filename})
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			uploads = append(uploads, ingest.Upload{Filename: header.Filename})
			continue
		}
		uploads = append(uploads, ingest.Upload{Filename: header.Filename, Tags: tags, Data: data})
	}

	summary := h.ingestSvc.IngestAll(r.Context(), uploads)
	status := http.StatusCreated
	if summary.Succeeded == 0 {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, summary)
}

// ListRoutesHandler lists routes, newest first, optionally filtered by tag
// and a name search.
func (h *APIHandler) ListRoutesHandler(w http.ResponseWriter, r *http.Request) {
	filter := repository.RouteFilter{
		Tag:    r.URL.Query().Get("tag"),
		Search: r.URL.Query().Get("search"),
	}

	routes, err := h.routeRepo.List(r.Context(), filter)
	if err != nil {
		logger.Error("failed to list routes", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to list routes")
		return
	}

	respondJSON(w, http.StatusOK, newRouteViews(routes))
}

// GetRouteHandler returns one route by ID.
func (h *APIHandler) GetRouteHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := h.routeFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newRouteView(route))
}

// DeleteRouteHandler removes a route and its stored objects.
func (h *APIHandler) DeleteRouteHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := h.routeFromRequest(w, r)
	if !ok {
		return
	}

	for _, key := range []string{route.GPXKey, route.ThumbnailKey, route.MapKey} {
		if err := h.store.Remove(r.Context(), key); err != nil {
			logger.Warn("failed to remove object", logger.String("key", key), logger.ErrorField(err))
		}
	}

	if err := h.routeRepo.Delete(r.Context(), route.ID); err != nil {
		logger.Error("failed to delete route", logger.Uint("routeID", route.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to delete route")
		return
	}

	logger.Info("route deleted", logger.Uint("routeID", route.ID))
	respondJSON(w, http.StatusNoContent, nil)
}

// ShareHandler serves a route by its share token without authentication.
// Unknown and revoked tokens both read as not found.
func (h *APIHandler) ShareHandler(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	route, err := h.routeRepo.GetByShareToken(r.Context(), token)
	if err != nil {
		logger.Error("failed to resolve share token", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if route == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}

	respondJSON(w, http.StatusOK, newRouteView(route))
}

// routeFromRequest loads the route named by the {id} path variable and
// writes the error response itself when it cannot.
func (h *APIHandler) routeFromRequest(w http.ResponseWriter, r *http.Request) (*model.Route, bool) {
	idStr := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid route id")
		return nil, false
	}

	route, err := h.routeRepo.GetByID(r.Context(), uint(id))
	if err != nil {
		logger.Error("failed to load route", logger.String("id", idStr), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if route == nil {
		respondError(w, http.StatusNotFound, "route not found")
		return nil, false
	}
	return route, true
}
