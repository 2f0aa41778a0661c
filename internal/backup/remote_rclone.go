package backup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"multidb-backup/internal/logging"
)

// RcloneSync implements RemoteSync by shelling out to rclone. The remote
// identity and namespace form an rclone "remote:path" address; retention
// uses rclone's --min-age deletion filter.
type RcloneSync struct {
	remote             string
	configFile         string
	insecureSkipVerify bool
	runner             CommandRunner
	log                *logging.Logger
}

// NewRcloneSync creates an rclone-backed RemoteSync
func NewRcloneSync(cfg RcloneConfig, runner CommandRunner, log *logging.Logger) *RcloneSync {
	return &RcloneSync{
		remote:             cfg.Remote,
		configFile:         cfg.ConfigFile,
		insecureSkipVerify: cfg.InsecureSkipVerify,
		runner:             runner,
		log:                log,
	}
}

func (r *RcloneSync) args(command string, rest ...string) []string {
	args := append([]string{command}, rest...)
	args = append(args, "--config", r.configFile)
	if r.insecureSkipVerify {
		args = append(args, "--no-check-certificate")
	}
	return args
}

func (r *RcloneSync) address(namespace string) string {
	return fmt.Sprintf("%s:%s", r.remote, namespace)
}

// Upload copies one local file into the namespace. Transport failures are
// logged and reported as false, never raised.
func (r *RcloneSync) Upload(ctx context.Context, localPath, namespace string) bool {
	address := r.address(namespace)
	start := time.Now()

	result, err := r.runner.Run(ctx, CommandSpec{
		Name:    "rclone",
		Args:    r.args("copy", localPath, address, "-v"),
		Timeout: uploadTimeout,
	})
	if err != nil {
		r.log.Errorf("rclone copy to %s: %v", address, err)
		r.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}
	if !result.Ok() {
		r.log.Errorf("rclone copy to %s: %s", address, strings.TrimSpace(result.Stderr))
		r.log.LogUpload(localPath, namespace, time.Since(start), false)
		return false
	}

	r.log.LogUpload(localPath, namespace, time.Since(start), true)
	return true
}

// EnforceRetention deletes namespace objects older than the retention window
func (r *RcloneSync) EnforceRetention(ctx context.Context, namespace string, retentionDays int) error {
	address := r.address(namespace)
	minAge := fmt.Sprintf("%dd", retentionDays)

	result, err := r.runner.Run(ctx, CommandSpec{
		Name:    "rclone",
		Args:    r.args("delete", address, "--min-age", minAge, "-v"),
		Timeout: retentionTimeout,
	})
	if err != nil {
		return NewRetentionError(fmt.Sprintf("rclone delete %s", address), err)
	}
	if !result.Ok() {
		return NewRetentionError(fmt.Sprintf("rclone delete %s: %s", address, strings.TrimSpace(result.Stderr)), nil)
	}
	return nil
}

// VerifyReachable checks that the configured remote exists in the rclone
// configuration.
func (r *RcloneSync) VerifyReachable(ctx context.Context) error {
	result, err := r.runner.Run(ctx, CommandSpec{
		Name:    "rclone",
		Args:    r.args("listremotes"),
		Timeout: preflightTimeout,
	})
	if err != nil {
		return NewConfigurationError("rclone listremotes", err)
	}
	if !result.Ok() {
		return NewConfigurationError(fmt.Sprintf("rclone listremotes: %s", strings.TrimSpace(result.Stderr)), nil)
	}

	var available []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if name := strings.TrimSuffix(strings.TrimSpace(line), ":"); name != "" {
			available = append(available, name)
		}
	}
	for _, name := range available {
		if name == r.remote {
			return nil
		}
	}
	return NewConfigurationError(fmt.Sprintf("remote %q not found in rclone config (available: %s)",
		r.remote, strings.Join(available, ", ")), nil)
}
