package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fentz26/tasklist/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tasklist",
	Short: "tasklist - a small task list with debounced, crash-safe saves",
	Long: `tasklist keeps a list of tasks and writes it to durable storage in the
background. Run "tasklist daemon" to serve the HTTP API, "tasklist tui" for
the interactive view, or "tasklist task" to script it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string

	// cfg is loaded before any subcommand runs.
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://"+config.DefaultListen, "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default is the per-user config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
