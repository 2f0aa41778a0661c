package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"multidb-backup/internal/config"
	"multidb-backup/internal/logging"
)

var cfgFile string

// CLI flag variables
var (
	verbose   bool
	quiet     bool
	logFile   string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "multidb-backup",
	Short: "Back up multiple database stores to a remote in one pass",
	Long: `multidb-backup dumps PostgreSQL, MySQL, MariaDB, MongoDB and Redis stores,
packages each store's dumps into a compressed (optionally encrypted) archive,
and syncs the archives to a remote via rclone, S3, GCS or Azure Blob Storage.

Each store is processed in isolation: one failing store never blocks the
others, and local staging files are always cleaned up.

Examples:
  # One-shot backup using config.yaml
  multidb-backup run --config=config.yaml

  # Long-running scheduler (cron from config, optional run at startup)
  multidb-backup serve --config=config.yaml

  # Write a starting configuration file
  multidb-backup config init`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (environment variables used when omitted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// newLogger builds the process logger from the persistent flags
func newLogger() (*logging.Logger, error) {
	level := logging.LogLevelNormal
	if verbose {
		level = logging.LogLevelDebug
	}
	if quiet {
		level = logging.LogLevelQuiet
	}
	return logging.NewLogger(logging.Config{
		Level:   level,
		Output:  os.Stdout,
		Format:  logFormat,
		LogFile: logFile,
	})
}

// loadConfig reads and validates the runtime configuration
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
