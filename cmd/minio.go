package cmd

import (
	"context"
	"fmt"
	"log"

	minio "github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"

	"gpxvault/config"
	"gpxvault/storage"
)

var (
	minioPrefix string
	minioStats  bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Inspect and manage the object storage bucket",
	Long:  `List stored objects, show per-prefix statistics, or delete everything under a prefix.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("MinIO: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewStore(cfg)
		if err != nil {
			log.Fatalf("Failed to connect to MinIO: %v", err)
		}

		ctx := context.Background()

		if minioDelete {
			if minioPrefix == "" {
				log.Fatal("Delete requires --prefix")
			}
			deleted := 0
			err := store.List(ctx, minioPrefix, func(info minio.ObjectInfo) error {
				if err := store.Remove(ctx, info.Key); err != nil {
					return err
				}
				deleted++
				return nil
			})
			if err != nil {
				log.Fatalf("Delete failed: %v", err)
			}
			fmt.Printf("Deleted %d objects under %s\n", deleted, minioPrefix)
			return
		}

		if minioStats {
			counts, sizes, err := store.Stats(ctx)
			if err != nil {
				log.Fatalf("Failed to collect stats: %v", err)
			}
			fmt.Println("\nBucket statistics:")
			for prefix, count := range counts {
				fmt.Printf("  %-14s %6d objects  %10.2f MB\n", prefix, count, float64(sizes[prefix])/(1024*1024))
			}
			return
		}

		total := 0
		err = store.List(ctx, minioPrefix, func(info minio.ObjectInfo) error {
			fmt.Printf("  %-60s %10d bytes\n", info.Key, info.Size)
			total++
			return nil
		})
		if err != nil {
			log.Fatalf("Failed to list objects: %v", err)
		}
		fmt.Printf("Total: %d objects\n", total)
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "object key prefix to list or delete")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "show per-prefix statistics")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "delete all objects under the prefix")
	rootCmd.AddCommand(minioCmd)
}
