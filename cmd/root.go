package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gpxvault/config"
	"gpxvault/logger"
	"gpxvault/server"
)

var rootCmd = &cobra.Command{
	Use:   "gpxvault",
	Short: "gpxvault is a personal GPS route archive.",
	Long:  `gpxvault stores GPS track uploads, computes route metrics, renders map artifacts and serves them over a small HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Bare invocation runs the server, same as the server subcommand.
		server.Start()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		cfg := config.Load()
		logger.Init(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	})
}
