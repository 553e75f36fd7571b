package server

import (
	"net/http"

	"gpxvault/cache"
	"gpxvault/logger"
)

// RouteStatusHandler reports the processing state of one route. The cache
// carries fresh worker updates; the database record is the fallback.
func (h *APIHandler) RouteStatusHandler(w http.ResponseWriter, r *http.Request) {
	route, ok := h.routeFromRequest(w, r)
	if !ok {
		return
	}

	if h.status != nil {
		cached, err := h.status.Get(r.Context(), route.ID)
		if err != nil {
			logger.Warn("status cache lookup failed", logger.Uint("routeID", route.ID), logger.ErrorField(err))
		}
		if cached != nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	respondJSON(w, http.StatusOK, cache.RouteStatus{
		RouteID:   route.ID,
		Status:    route.Status,
		UpdatedAt: route.UpdatedAt,
	})
}
