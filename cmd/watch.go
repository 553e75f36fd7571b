package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gpxvault/cache"
	"gpxvault/config"
	"gpxvault/core/geocode"
	"gpxvault/core/ingest"
	"gpxvault/core/render"
	"gpxvault/db"
	"gpxvault/repository"
	"gpxvault/storage"
)

var watchDir string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest track files dropped into a directory",
	Long: `Watch a directory and ingest every GPX file that appears in it, with the
full processing pipeline but without the HTTP server.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		dir := cfg.WatchDir
		if watchDir != "" {
			dir = watchDir
		}
		if dir == "" {
			log.Fatal("No watch directory configured; set WATCH_DIR or pass --dir")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create watch directory: %v", err)
		}

		if err := db.Connect(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer db.CloseRedis()

		store, err := storage.NewStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}

		routeRepo := repository.NewRouteRepository(db.DB)
		statusCache := cache.NewStatusCache(db.RedisClient)
		geocoder := geocode.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderTimeout, cache.NewGeocodeCache(db.RedisClient))
		renderer := render.Select(cfg.TileServerURL, cfg.ThumbWidth, cfg.ThumbHeight)

		queue := ingest.NewRedisQueue(db.RedisClient)
		svc := ingest.NewService(routeRepo, store, queue, statusCache)

		worker := ingest.NewWorker(routeRepo, store, queue, renderer, geocoder, statusCache)
		worker.Start()
		defer worker.Stop()

		watcher := ingest.NewWatcher(dir, svc)
		if err := watcher.Start(); err != nil {
			log.Fatalf("Failed to start watcher: %v", err)
		}
		defer watcher.Stop()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (overrides WATCH_DIR)")
	rootCmd.AddCommand(watchCmd)
}
