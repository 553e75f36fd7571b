package cmd

import (
	"context"
	"fmt"
	"log"
	"regexp"

	"github.com/spf13/cobra"

	"gpxvault/cache"
	"gpxvault/config"
	"gpxvault/core/geocode"
	"gpxvault/db"
	"gpxvault/repository"
)

var (
	geocodeForce  bool
	geocodeDryRun bool
)

// coordinatePattern matches the "52.4603, -2.1638" fallback names written
// when geocoding was unavailable at ingest time.
var coordinatePattern = regexp.MustCompile(`^-?\d+\.\d+, -?\d+\.\d+$`)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Resolve missing start locations",
	Long: `Reverse-geocode routes whose start location is still a raw coordinate.
--force re-resolves every route, including already named ones.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		ctx := context.Background()

		if err := db.Connect(cfg); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		var geocodeCache geocode.Cache
		if err := db.ConnectRedis(cfg); err == nil {
			defer db.CloseRedis()
			geocodeCache = cache.NewGeocodeCache(db.RedisClient)
		} else {
			log.Printf("Redis unavailable, geocoding without cache: %v", err)
		}

		routeRepo := repository.NewRouteRepository(db.DB)
		geocoder := geocode.NewClient(cfg.GeocoderBaseURL, cfg.GeocoderTimeout, geocodeCache)

		routes, err := routeRepo.List(ctx, repository.RouteFilter{})
		if err != nil {
			log.Fatalf("Failed to load routes: %v", err)
		}

		updated, skipped, unavailable := 0, 0, 0
		for _, route := range routes {
			needsLookup := !route.LocationResolved || coordinatePattern.MatchString(route.StartLocation)
			if !geocodeForce && !needsLookup {
				skipped++
				continue
			}
			if geocodeDryRun {
				fmt.Printf("Would geocode route %d (%s) at %.4f, %.4f\n", route.ID, route.Name, route.StartLat, route.StartLon)
				updated++
				continue
			}

			result := geocoder.Reverse(ctx, route.StartLat, route.StartLon)
			if !result.Available {
				unavailable++
				continue
			}
			if err := routeRepo.UpdateLocation(ctx, route.ID, result.Name, true); err != nil {
				log.Printf("Route %d update failed: %v", route.ID, err)
				continue
			}
			fmt.Printf("Route %d: %s\n", route.ID, result.Name)
			updated++
		}
		fmt.Printf("Done: %d updated, %d skipped, %d unavailable\n", updated, skipped, unavailable)
	},
}

func init() {
	geocodeCmd.Flags().BoolVar(&geocodeForce, "force", false, "re-resolve routes that already have a place name")
	geocodeCmd.Flags().BoolVar(&geocodeDryRun, "dry-run", false, "report what would be done without doing it")
	rootCmd.AddCommand(geocodeCmd)
}
