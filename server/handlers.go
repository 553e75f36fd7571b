package server

import (
	"encoding/json"
	"net/http"

	"gpxvault/cache"
	"gpxvault/config"
	"gpxvault/core/ingest"
	"gpxvault/logger"
	"gpxvault/repository"
)

// APIHandler carries the dependencies shared by all HTTP handlers.
type APIHandler struct {
	routeRepo repository.RouteRepository
	tagRepo   repository.TagRepository
	store     ingest.ObjectStore
	ingestSvc *ingest.Service
	status    *cache.StatusCache
	cfg       *config.Config
}

func NewAPIHandler(
	routeRepo repository.RouteRepository,
	tagRepo repository.TagRepository,
	store ingest.ObjectStore,
	ingestSvc *ingest.Service,
	status *cache.StatusCache,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		routeRepo: routeRepo,
		tagRepo:   tagRepo,
		store:     store,
		ingestSvc: ingestSvc,
		status:    status,
		cfg:       cfg,
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
