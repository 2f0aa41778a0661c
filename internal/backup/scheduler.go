package backup

import (
	"context"

	"github.com/robfig/cron/v3"

	"multidb-backup/internal/logging"
)

// Scheduler runs backup passes on a cron expression. Ticks that arrive while
// a run is still in progress are skipped, never queued.
type Scheduler struct {
	cron *cron.Cron
	log  *logging.Logger
}

// NewScheduler creates a Scheduler
func NewScheduler(log *logging.Logger) *Scheduler {
	logger := cron.PrintfLogger(cronPrinter{log})
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(logger),
			cron.Recover(logger),
		)),
		log: log,
	}
}

// Schedule registers the run function under the cron expression
func (s *Scheduler) Schedule(expression string, run func()) error {
	if _, err := s.cron.AddFunc(expression, run); err != nil {
		return NewConfigurationError("invalid cron expression: "+expression, err)
	}
	return nil
}

// Start launches the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight run to complete
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.log.Warn("shutdown timed out waiting for running backup")
	}
}

// cronPrinter adapts the structured logger to cron's printf interface
type cronPrinter struct {
	log *logging.Logger
}

func (p cronPrinter) Printf(format string, args ...interface{}) {
	p.log.Debugf(format, args...)
}
