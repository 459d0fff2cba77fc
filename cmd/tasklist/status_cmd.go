package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fentz26/tasklist/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health and persistence state",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	health, err := CheckHealth(apiAddr)
	if health == nil {
		return err
	}

	p := health.Persistence
	fmt.Printf("Daemon:   %s (version %s)\n", apiAddr, health.Version)
	fmt.Printf("Storage:  %s\n", p.Backend)
	fmt.Printf("State:    %s\n", p.State)
	fmt.Printf("Pending:  %t\n", p.Pending)
	fmt.Printf("Writes:   %d (skipped %d)\n", p.Writes, p.Skipped)
	if p.LastFlush != nil {
		fmt.Printf("Saved at: %s\n", p.LastFlush.Local().Format("2006-01-02 15:04:05"))
	}
	if p.LastError != "" {
		fmt.Printf("Error:    %s\n", p.LastError)
	}

	// Only journaling backends (sqlite) report flushes.
	flushes, ferr := tui.NewClient(apiAddr).Flushes(1)
	if ferr == nil && len(flushes) > 0 {
		f := flushes[0]
		fmt.Printf("Journal:  %d tasks, %d bytes, sha256 %s\n", f.Tasks, f.Bytes, f.SHA256[:12])
	}
	return err
}
