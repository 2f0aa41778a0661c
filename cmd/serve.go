package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"multidb-backup/internal/backup"
)

const shutdownGrace = 30 * time.Second

// serveCmd runs the long-lived scheduler loop
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run backups on the configured cron schedule",
	Long: `serve validates the configuration, verifies the remote is reachable, then
runs backup passes on the configured cron expression until interrupted.
With backup.on_start enabled, one pass runs immediately at startup.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator, err := buildOrchestrator(ctx, cfg, log)
	if err != nil {
		return err
	}

	if err := orchestrator.Preflight(ctx); err != nil {
		return fmt.Errorf("remote preflight failed: %w", err)
	}
	log.Info("remote preflight succeeded")

	pass := func() {
		report := orchestrator.Run(ctx)
		printSummary(report)
	}

	scheduler := backup.NewScheduler(log)
	if err := scheduler.Schedule(cfg.Cron, pass); err != nil {
		return err
	}

	if cfg.RunOnStart {
		log.Info("running startup backup pass")
		pass()
	}

	scheduler.Start()
	log.Infof("scheduler started (cron %q)", cfg.Cron)

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	scheduler.Stop(stopCtx)
	return nil
}
