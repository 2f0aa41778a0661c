package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"multidb-backup/internal/logging"
)

// targetState is one phase of a single target's pipeline
type targetState string

const (
	stateExtracting   targetState = "extracting"
	statePackaging    targetState = "packaging"
	stateTransmitting targetState = "transmitting"
	stateRetaining    targetState = "retaining"
	stateCleaning     targetState = "cleaning"
	stateDone         targetState = "done"
	stateFailed       targetState = "failed"
)

// Orchestrator drives the full backup run: each configured target is walked
// through extraction, packaging, transmission and retention in isolation, so
// one store's failure never blocks the others. Local workspace cleanup runs
// exactly once per target regardless of where the pipeline stopped.
type Orchestrator struct {
	targets       []Target
	archiver      *Archiver
	remote        RemoteSync
	notifiers     []Notifier
	runner        CommandRunner
	workDir       string
	basePath      string
	password      string
	retentionDays int
	log           *logging.Logger
}

// OrchestratorOptions configures a backup run
type OrchestratorOptions struct {
	Targets       []Target
	Archiver      *Archiver
	Remote        RemoteSync
	Notifiers     []Notifier
	Runner        CommandRunner
	WorkDir       string // local staging area for dumps and archives
	BasePath      string // remote path prefix; each store kind gets its own namespace under it
	Password      string // non-empty enables archive sealing
	RetentionDays int    // <= 0 disables retention
	Logger        *logging.Logger
}

// NewOrchestrator creates an Orchestrator for the given options
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	runner := opts.Runner
	if runner == nil {
		runner = NewCommandRunner()
	}
	return &Orchestrator{
		targets:       opts.Targets,
		archiver:      opts.Archiver,
		remote:        opts.Remote,
		notifiers:     opts.Notifiers,
		runner:        runner,
		workDir:       opts.WorkDir,
		basePath:      opts.BasePath,
		password:      opts.Password,
		retentionDays: opts.RetentionDays,
		log:           opts.Logger,
	}
}

// Run executes one full backup pass over all configured targets and returns
// the run report. The report is always produced; target failures are recorded
// in it rather than raised.
func (o *Orchestrator) Run(ctx context.Context) *RunReport {
	report := NewRunReport(time.Now())
	o.log.Infof("backup run %s started (%d targets)", report.ID, len(o.targets))

	for _, target := range o.targets {
		if ctx.Err() != nil {
			report.Append(TargetOutcome{
				Kind:   target.Kind,
				Status: OutcomeFailed,
				Error:  ctx.Err().Error(),
			})
			continue
		}
		report.Append(o.runTarget(ctx, target))
	}

	report.Finalize(time.Now())
	o.log.Infof("backup run %s finished: %s (%s)", report.ID, report.Status(), FormatDuration(report.Duration()))

	o.notify(ctx, report)
	return report
}

// runTarget walks one target through the pipeline states. Cleanup of the
// target's staging directory and local archive is deferred up front so it
// runs exactly once, whatever state the pipeline ends in.
func (o *Orchestrator) runTarget(ctx context.Context, target Target) TargetOutcome {
	log := o.log.WithField("store", string(target.Kind))
	state := stateExtracting
	log.Debugf("state: %s", state)

	tempDir, err := os.MkdirTemp(o.workDir, fmt.Sprintf("extract_%s_", target.Kind))
	if err != nil {
		return o.failedOutcome(target, NewConfigurationError("creating staging directory", err))
	}

	var archivePath string
	defer func() {
		log.Debugf("state: %s", stateCleaning)
		if err := os.RemoveAll(tempDir); err != nil {
			log.Warnf("cleanup: removing staging directory: %v", err)
		}
		if archivePath != "" {
			if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
				log.Warnf("cleanup: removing local archive: %v", err)
			}
		}
	}()

	// Extracting
	adapter, err := NewAdapter(target, tempDir, o.runner, o.log)
	if err != nil {
		return o.failedOutcome(target, err)
	}
	items, err := ExtractAll(ctx, adapter, tempDir, o.log)
	if err != nil {
		if errors.Is(err, ErrNoDatabases) {
			log.Info("nothing to back up, skipping")
			return TargetOutcome{
				Kind:   target.Kind,
				Status: OutcomeSkipped,
				Reason: "no databases found",
			}
		}
		return o.failedOutcome(target, err)
	}

	// Packaging
	state = statePackaging
	log.Debugf("state: %s (%d items)", state, len(items))

	files := make([]string, 0, len(items))
	databases := make([]string, 0, len(items))
	for _, item := range items {
		files = append(files, item.Path)
		databases = append(databases, item.Name)
	}

	archiveName := fmt.Sprintf("%s_%s%s",
		target.Kind, time.Now().Format("20060102_150405"), o.archiver.Extension(o.password != ""))
	archivePath = filepath.Join(o.workDir, archiveName)

	archive, err := o.archiver.Package(files, archivePath, o.password)
	if err != nil {
		return o.failedOutcome(target, err)
	}

	// Transmitting
	state = stateTransmitting
	log.Debugf("state: %s", state)

	namespace := o.namespaceFor(target.Kind)
	if !o.remote.Upload(ctx, archive.Path, namespace) {
		return o.failedOutcome(target, NewTransmissionError(
			fmt.Sprintf("uploading %s", filepath.Base(archive.Path)), nil).WithKind(target.Kind))
	}

	// Retaining: only enforced once this run's upload landed, so a broken
	// run can never age out the last good backups. Failures here are soft.
	state = stateRetaining
	log.Debugf("state: %s", state)
	if o.retentionDays > 0 {
		err := o.remote.EnforceRetention(ctx, namespace, o.retentionDays)
		o.log.LogRetention(namespace, o.retentionDays, err)
	}

	state = stateDone
	log.Debugf("state: %s", state)

	return TargetOutcome{
		Kind:      target.Kind,
		Status:    OutcomeSuccess,
		Archive:   filepath.Base(archive.Path),
		Size:      FormatSize(archive.Size),
		Databases: databases,
	}
}

// namespaceFor returns the remote path one store kind's archives and
// retention policy live under.
func (o *Orchestrator) namespaceFor(kind StoreKind) string {
	if o.basePath == "" {
		return string(kind)
	}
	return strings.Trim(o.basePath, "/") + "/" + string(kind)
}

func (o *Orchestrator) failedOutcome(target Target, err error) TargetOutcome {
	o.log.WithField("store", string(target.Kind)).Errorf("state: %s: %v", stateFailed, err)
	return TargetOutcome{
		Kind:   target.Kind,
		Status: OutcomeFailed,
		Error:  err.Error(),
	}
}

// notify delivers the run report to every configured notifier. Delivery
// failures are logged, never raised.
func (o *Orchestrator) notify(ctx context.Context, report *RunReport) {
	for _, notifier := range o.notifiers {
		if err := notifier.Notify(ctx, report); err != nil {
			o.log.Warnf("notification via %s failed: %v", notifier.Name(), err)
		}
	}
}

// Preflight verifies the remote is reachable before any scheduled work
// begins.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	return o.remote.VerifyReachable(ctx)
}
