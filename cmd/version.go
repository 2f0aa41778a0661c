package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version information (set via SetVersionInfo from main)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
	goVersion = "unknown"
)

// SetVersionInfo records build-time version details for the version command
func SetVersionInfo(v, bt, gc, gv string) {
	version = v
	buildTime = bt
	gitCommit = gc
	goVersion = gv
	rootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("multidb-backup %s\n", version)
		fmt.Printf("  build time: %s\n", buildTime)
		fmt.Printf("  git commit: %s\n", gitCommit)
		fmt.Printf("  go version: %s\n", goVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
