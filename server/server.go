package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"gpxvault/cache"
	"gpxvault/config"
	"gpxvault/core/geocode"
	"gpxvault/core/ingest"
	"gpxvault/core/render"
	"gpxvault/db"
	"gpxvault/logger"
	"gpxvault/repository"
	"gpxvault/storage"
)

// Start wires every component and runs the HTTP server until SIGINT or
// SIGTERM.
func Start() {
	cfg := config.Load()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := db.Connect(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("failed to migrate database", logger.ErrorField(err))
	}

	if err := db.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to redis", logger.ErrorField(err))
	}
	defer db.CloseRedis()

	store, err := storage.NewStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize object storage", logger.ErrorField(err))
	}

	routeRepo := repository.NewRouteRepository(db.DB)
	tagRepo := repository.NewTagRepository(db.DB)

	statusCache := cache.NewStatusCache(db.RedisClient)
	geocoder := geocode.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderTimeout, cache.NewGeocodeCache(db.RedisClient))
	renderer := render.Select(cfg.TileServerURL, cfg.ThumbWidth, cfg.ThumbHeight)

	queue := ingest.NewRedisQueue(db.RedisClient)
	ingestSvc := ingest.NewService(routeRepo, store, queue, statusCache)

	worker := ingest.NewWorker(routeRepo, store, queue, renderer, geocoder, statusCache)
	worker.Start()
	defer worker.Stop()

	var watcher *ingest.Watcher
	if cfg.WatchDir != "" {
		ensureDirExists(cfg.WatchDir)
		watcher = ingest.NewWatcher(cfg.WatchDir, ingestSvc)
		if err := watcher.Start(); err != nil {
			logger.Fatal("failed to start drop directory watcher", logger.ErrorField(err))
		}
		defer watcher.Stop()
	}

	apiHandler := NewAPIHandler(routeRepo, tagRepo, store, ingestSvc, statusCache, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/auth/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/routes", apiHandler.AuthMiddleware(apiHandler.ListRoutesHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/routes", apiHandler.AuthMiddleware(apiHandler.UploadRouteHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/routes/bulk", apiHandler.AuthMiddleware(apiHandler.BulkUploadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/routes/{id}", apiHandler.AuthMiddleware(apiHandler.GetRouteHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/routes/{id}", apiHandler.AuthMiddleware(apiHandler.DeleteRouteHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/routes/{id}/tags", apiHandler.AuthMiddleware(apiHandler.AddRouteTagsHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/routes/{id}/tags/{tagID}", apiHandler.AuthMiddleware(apiHandler.RemoveRouteTagHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/routes/{id}/status", apiHandler.AuthMiddleware(apiHandler.RouteStatusHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/tags", apiHandler.AuthMiddleware(apiHandler.ListTagsHandler)).Methods(http.MethodGet)

	router.HandleFunc("/ws/routes/{id}/status", apiHandler.StatusStreamHandler).Methods(http.MethodGet)

	// Public endpoints: shared routes and the stored artifacts they link.
	router.HandleFunc("/api/share/{token}", apiHandler.ShareHandler).Methods(http.MethodGet)
	router.PathPrefix("/static/").HandlerFunc(apiHandler.StaticHandler).Methods(http.MethodGet)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func ensureDirExists(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("creating directory", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			logger.Fatal("failed to create directory", logger.String("path", path), logger.ErrorField(err))
		}
	} else if err != nil {
		logger.Fatal("failed to check directory", logger.String("path", path), logger.ErrorField(err))
	}
}
