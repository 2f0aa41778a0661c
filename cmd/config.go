package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"multidb-backup/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

// configInitCmd writes a starting configuration file
var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.WriteSample(path); err != nil {
			return err
		}
		fmt.Printf("Wrote sample configuration to %s\n", path)
		return nil
	},
}

// configCheckCmd validates the resolved configuration without running anything
var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("Configuration OK: %d store(s) enabled, remote provider %s\n",
			len(cfg.Targets()), cfg.Remote.Provider)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
