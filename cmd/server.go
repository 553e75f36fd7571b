package cmd

import (
	"github.com/spf13/cobra"

	"gpxvault/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the gpxvault HTTP server",
	Long:  `Start the HTTP server: route uploads, listing, sharing, status streaming and the stored-artifact proxy.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
