// Package cli implements the psyche command-line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "psyche",
	Short: "A conversational agent with moods and a memory that forgets",
	Long: "Psyche is a cognitive runtime for a conversational agent: a staged\n" +
		"inference pipeline over a two-tier memory store with decay-based\n" +
		"consolidation and a bounded emotional state.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(statusCmd)
}
