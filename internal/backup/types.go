package backup

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StoreKind identifies the kind of data store a target points at
type StoreKind string

const (
	StoreKindPostgreSQL StoreKind = "postgresql"
	StoreKindMySQL      StoreKind = "mysql"
	StoreKindMariaDB    StoreKind = "mariadb"
	StoreKindMongoDB    StoreKind = "mongodb"
	StoreKindRedis      StoreKind = "redis"
)

// DatabasesAll is the database-selection policy that backs up every
// non-system database the instance reports. For Redis it doubles as the
// whole-instance sentinel returned by ListDatabases.
const DatabasesAll = "all"

// Target is one configured data-store instance to be backed up.
// It is immutable for the duration of a run.
type Target struct {
	Kind      StoreKind
	Host      string
	Port      int
	User      string
	Password  string
	Databases string // "all" or a comma-separated ordered list of names
	ExtraOpts string
	AuthDB    string // MongoDB authentication database
}

// ExtractedItem is one logical database's raw dump on local disk
type ExtractedItem struct {
	Target Target
	Name   string
	Path   string
	Size   int64
}

// ArchiveInfo describes a packaged archive on local disk
type ArchiveInfo struct {
	Path      string
	Size      int64
	Encrypted bool
}

// OutcomeStatus is the terminal status of one target's pipeline
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

// TargetOutcome is the recorded result of one target's pipeline execution
type TargetOutcome struct {
	Kind      StoreKind     `json:"type"`
	Status    OutcomeStatus `json:"status"`
	Archive   string        `json:"file,omitempty"`
	Size      string        `json:"size,omitempty"`
	Databases []string      `json:"databases,omitempty"`
	Error     string        `json:"error,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// RunStatus is the aggregate status of one orchestrator run
type RunStatus string

const (
	RunStatusSuccess        RunStatus = "success"
	RunStatusPartialSuccess RunStatus = "partial_success"
	RunStatusFailed         RunStatus = "failed"
)

// RunReport is the aggregate result of one orchestrator run. It is created
// at run start, appended to per target, finalized once all targets have been
// processed, and consumed once by the notifier.
type RunReport struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []TargetOutcome
}

// NewRunReport creates a report with the start timestamp set
func NewRunReport(now time.Time) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		StartedAt: now,
	}
}

// Append records one target's outcome
func (r *RunReport) Append(outcome TargetOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
}

// Finalize sets the end timestamp
func (r *RunReport) Finalize(now time.Time) {
	r.FinishedAt = now
}

// Succeeded returns the successful outcomes in run order
func (r *RunReport) Succeeded() []TargetOutcome {
	return r.filter(OutcomeSuccess)
}

// Failed returns the failed outcomes in run order
func (r *RunReport) Failed() []TargetOutcome {
	return r.filter(OutcomeFailed)
}

func (r *RunReport) filter(status OutcomeStatus) []TargetOutcome {
	var out []TargetOutcome
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// Status reports the aggregate run status: success when no target failed,
// failed when no target succeeded and at least one failed, partial_success
// otherwise. Skipped targets count toward neither side.
func (r *RunReport) Status() RunStatus {
	failed := len(r.Failed())
	succeeded := len(r.Succeeded())

	switch {
	case failed == 0:
		return RunStatusSuccess
	case succeeded == 0:
		return RunStatusFailed
	default:
		return RunStatusPartialSuccess
	}
}

// Duration returns the wall-clock duration of the run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FormatSize renders a byte count as a human-readable string
func FormatSize(sizeBytes int64) string {
	size := float64(sizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.2f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.2f TB", size)
}

// FormatDuration renders a duration the way run reports display it
func FormatDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm%ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh%dm", seconds/3600, (seconds%3600)/60)
	}
}
