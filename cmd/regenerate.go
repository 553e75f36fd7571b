package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"gpxvault/cache"
	"gpxvault/config"
	"gpxvault/core/geocode"
	"gpxvault/core/ingest"
	"gpxvault/core/render"
	"gpxvault/db"
	"gpxvault/model"
	"gpxvault/repository"
	"gpxvault/storage"
)

var (
	regenAll     bool
	regenForce   bool
	regenDryRun  bool
	regenRouteID uint
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Regenerate thumbnails and interactive maps",
	Long: `Re-run artifact generation for stored routes. By default only routes
without a thumbnail are processed; --force re-renders everything,
--route-id limits the run to one route.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		ctx := context.Background()

		if err := db.Connect(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		store, err := storage.NewStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}

		// Redis is optional here: without it geocoding just skips its cache.
		var geocodeCache geocode.Cache
		if err := db.ConnectRedis(cfg); err == nil {
			defer db.CloseRedis()
			geocodeCache = cache.NewGeocodeCache(db.RedisClient)
		} else {
			log.Printf("Redis unavailable, geocoding without cache: %v", err)
		}

		routeRepo := repository.NewRouteRepository(db.DB)
		renderer := render.Select(cfg.TileServerURL, cfg.ThumbWidth, cfg.ThumbHeight)
		geocoder := geocode.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderTimeout, geocodeCache)
		worker := ingest.NewWorker(routeRepo, store, nil, renderer, geocoder, nil)

		routes, err := selectRoutes(ctx, routeRepo)
		if err != nil {
			log.Fatalf("Failed to load routes: %v", err)
		}

		force := regenForce || regenAll
		processed, skipped, failed := 0, 0, 0
		for _, route := range routes {
			if !force && route.ThumbnailKey != "" && route.Status != model.StatusFailed {
				skipped++
				continue
			}
			if regenDryRun {
				fmt.Printf("Would regenerate route %d (%s)\n", route.ID, route.Name)
				processed++
				continue
			}
			if err := worker.Process(ctx, ingest.Job{RouteID: route.ID}); err != nil {
				log.Printf("Route %d failed: %v", route.ID, err)
				failed++
				continue
			}
			fmt.Printf("Regenerated route %d (%s)\n", route.ID, route.Name)
			processed++
		}
		fmt.Printf("Done: %d processed, %d skipped, %d failed\n", processed, skipped, failed)
	},
}

// selectRoutes resolves the --route-id / --all choice.
func selectRoutes(ctx context.Context, repo repository.RouteRepository) ([]*model.Route, error) {
	if regenRouteID != 0 {
		route, err := repo.GetByID(ctx, regenRouteID)
		if err != nil {
			return nil, err
		}
		if route == nil {
			return nil, fmt.Errorf("route %d not found", regenRouteID)
		}
		return []*model.Route{route}, nil
	}
	return repo.List(ctx, repository.RouteFilter{})
}

func init() {
	regenerateCmd.Flags().BoolVar(&regenAll, "all", false, "process every route, not just those missing artifacts")
	regenerateCmd.Flags().BoolVar(&regenForce, "force", false, "re-render routes that already have artifacts")
	regenerateCmd.Flags().BoolVar(&regenDryRun, "dry-run", false, "report what would be done without doing it")
	regenerateCmd.Flags().UintVar(&regenRouteID, "route-id", 0, "limit to a single route")
	rootCmd.AddCommand(regenerateCmd)
}
