package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"multidb-backup/internal/backup"
	"multidb-backup/internal/config"
	"multidb-backup/internal/logging"
)

var askPassword bool

// runCmd executes a single backup pass and exits
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one backup pass over all enabled stores",
	RunE:  runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&askPassword, "ask-password", false, "prompt for the archive password instead of reading configuration")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if askPassword {
		password, err := promptPassword()
		if err != nil {
			return err
		}
		cfg.Encrypt = true
		cfg.Password = password
	}

	ctx := cmd.Context()
	orchestrator, err := buildOrchestrator(ctx, cfg, log)
	if err != nil {
		return err
	}

	if err := orchestrator.Preflight(ctx); err != nil {
		return fmt.Errorf("remote preflight failed: %w", err)
	}

	report := orchestrator.Run(ctx)
	printSummary(report)

	if report.Status() == backup.RunStatusFailed {
		return fmt.Errorf("backup run %s failed", report.ID)
	}
	return nil
}

// buildOrchestrator wires the run pipeline from the configuration
func buildOrchestrator(ctx context.Context, cfg *config.Config, log *logging.Logger) (*backup.Orchestrator, error) {
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating work directory %s: %w", cfg.WorkDir, err)
	}

	remote, err := backup.NewRemoteSync(ctx, cfg.Remote, log)
	if err != nil {
		return nil, err
	}

	password := ""
	if cfg.Encrypt {
		password = cfg.Password
	}

	return backup.NewOrchestrator(backup.OrchestratorOptions{
		Targets:       cfg.Targets(),
		Archiver:      backup.NewArchiver(backup.CompressionCodec(cfg.Compression), cfg.CompressionLevel, log),
		Remote:        remote,
		Notifiers:     cfg.Notifiers(log),
		WorkDir:       cfg.WorkDir,
		BasePath:      cfg.BasePath,
		Password:      password,
		RetentionDays: cfg.RetentionDays,
		Logger:        log,
	}), nil
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Archive password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(password) == 0 {
		return "", fmt.Errorf("password must not be empty")
	}
	return string(password), nil
}

// printSummary renders the per-target results of a finished run
func printSummary(report *backup.RunReport) {
	if quiet {
		return
	}

	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	bold.Printf("Backup run %s: %s (%s)\n", report.ID, report.Status(), backup.FormatDuration(report.Duration()))
	for _, outcome := range report.Outcomes {
		switch outcome.Status {
		case backup.OutcomeSuccess:
			green.Printf("  ✔ %-11s %s (%s)\n", outcome.Kind, outcome.Archive, outcome.Size)
		case backup.OutcomeSkipped:
			yellow.Printf("  - %-11s skipped: %s\n", outcome.Kind, outcome.Reason)
		default:
			red.Printf("  ✘ %-11s %s\n", outcome.Kind, outcome.Error)
		}
	}
	fmt.Println()
}
