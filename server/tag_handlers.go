package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"gpxvault/logger"
)

// ListTagsHandler returns every known tag.
func (h *APIHandler) ListTagsHandler(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tagRepo.List(r.Context())
	if err != nil {
		logger.Error("failed to list tags", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	respondJSON(w, http.StatusOK, tags)
}

// AddRouteTagsHandler attaches tags to a route, creating unknown ones.
func (h *APIHandler) AddRouteTagsHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := h.routeFromRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tags) == 0 {
		respondError(w, http.StatusBadRequest, "tags are required")
		return
	}

	if err := h.routeRepo.AddTags(r.Context(), route.ID, req.Tags); err != nil {
		logger.Error("failed to add tags", logger.Uint("routeID", route.ID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to add tags")
		return
	}

	updated, err := h.routeRepo.GetByID(r.Context(), route.ID)
	if err != nil || updated == nil {
		respondError(w, http.StatusInternalServerError, "failed to reload route")
		return
	}
	respondJSON(w, http.StatusOK, newRouteView(updated))
}

// RemoveRouteTagHandler detaches one tag from a route.
func (h *APIHandler) RemoveRouteTagHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := h.routeFromRequest(w, r)
	if !ok {
		return
	}

	tagIDStr := mux.Vars(r)["tagID"]
	tagID, err := strconv.ParseUint(tagIDStr, 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid tag id")
		return
	}

	if err := h.routeRepo.RemoveTag(r.Context(), route.ID, uint(tagID)); err != nil {
		logger.Error("failed to remove tag",
			logger.Uint("routeID", route.ID),
			logger.Uint("tagID", uint(tagID)),
			logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to remove tag")
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
