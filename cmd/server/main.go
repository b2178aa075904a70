// Package main is the entry point for the movie chatbot server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "movie-chatbot",
	Short: "Movie chatbot server",
	Long: `Serves the movie chatbot API: a persisted message log plus agent turns
answered as JSON, Server-Sent Events or WebSocket frames.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Env file to load (default: ./.env if present)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
