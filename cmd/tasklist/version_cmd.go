package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/fentz26/tasklist/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of tasklist",
	Long:  `Display the current version of the tasklist CLI.`,
	// the version needs no config
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run:               runVersion,
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("tasklist version %s\n", version.Version)
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}
