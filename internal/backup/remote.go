package backup

import (
	"context"
	"time"
)

// Transport timeouts mirror the extraction bounds: uploads may move large
// archives, retention sweeps are cheap listings plus deletes.
const (
	uploadTimeout    = time.Hour
	retentionTimeout = 10 * time.Minute
	preflightTimeout = 30 * time.Second
)

// RemoteSync transfers archives to remote object storage and enforces the
// retention policy on what is already there.
//
// Upload never returns an error: any transport failure yields false and the
// orchestrator treats that as the target's transmission failure.
// EnforceRetention must only be called after a successful upload for the
// namespace in the current run, so a failed upload can never trigger
// deletion of the only remaining backups.
// VerifyReachable is the process-start preflight; it is not called per
// target.
type RemoteSync interface {
	Upload(ctx context.Context, localPath, namespace string) bool
	EnforceRetention(ctx context.Context, namespace string, retentionDays int) error
	VerifyReachable(ctx context.Context) error
}

// RemoteObject is one stored object as seen by a retention sweep
type RemoteObject struct {
	Key     string
	ModTime time.Time
}

// expiredObjects returns the objects whose age exceeds the retention window
func expiredObjects(objects []RemoteObject, retentionDays int, now time.Time) []RemoteObject {
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)

	var expired []RemoteObject
	for _, obj := range objects {
		if obj.ModTime.Before(cutoff) {
			expired = append(expired, obj)
		}
	}
	return expired
}
