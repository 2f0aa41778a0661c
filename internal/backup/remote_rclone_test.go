package backup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rcloneConfig() RcloneConfig {
	return RcloneConfig{
		Remote:     "offsite",
		ConfigFile: "/config/rclone.conf",
	}
}

func TestRcloneUpload(t *testing.T) {
	runner := &fakeRunner{}
	sync := NewRcloneSync(rcloneConfig(), runner, testLogger())

	ok := sync.Upload(context.Background(), "/stage/mysql_20260829.tar.zst", "backups")
	assert.True(t, ok)

	calls := runner.callsFor("rclone")
	require.Len(t, calls, 1)
	assert.Equal(t, "copy", calls[0].Args[0])
	assert.Contains(t, calls[0].Args, "/stage/mysql_20260829.tar.zst")
	assert.Contains(t, calls[0].Args, "offsite:backups")
	assert.Contains(t, calls[0].Args, "--config")
	assert.Contains(t, calls[0].Args, "/config/rclone.conf")
	assert.NotContains(t, calls[0].Args, "--no-check-certificate")
}

func TestRcloneUploadFailureReturnsFalse(t *testing.T) {
	runner := &fakeRunner{
		handler: func(spec CommandSpec) (CommandResult, error) {
			return CommandResult{ExitCode: 1, Stderr: "didn't find section in config file"}, nil
		},
	}
	sync := NewRcloneSync(rcloneConfig(), runner, testLogger())

	assert.False(t, sync.Upload(context.Background(), "/stage/a.tar.zst", "backups"))
}

func TestRcloneInsecureSkipVerifyFlag(t *testing.T) {
	cfg := rcloneConfig()
	cfg.InsecureSkipVerify = true
	runner := &fakeRunner{}
	sync := NewRcloneSync(cfg, runner, testLogger())

	sync.Upload(context.Background(), "/stage/a.tar.zst", "backups")

	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0].Args, "--no-check-certificate")
}

func TestRcloneEnforceRetention(t *testing.T) {
	runner := &fakeRunner{}
	sync := NewRcloneSync(rcloneConfig(), runner, testLogger())

	err := sync.EnforceRetention(context.Background(), "backups", 7)
	require.NoError(t, err)

	calls := runner.callsFor("rclone")
	require.Len(t, calls, 1)
	assert.Equal(t, "delete", calls[0].Args[0])
	assert.Contains(t, calls[0].Args, "offsite:backups")
	assert.Contains(t, calls[0].Args, "--min-age")
	assert.Contains(t, calls[0].Args, "7d")
}

func TestRcloneEnforceRetentionFailure(t *testing.T) {
	runner := &fakeRunner{
		handler: func(spec CommandSpec) (CommandResult, error) {
			return CommandResult{ExitCode: 3, Stderr: "directory not found"}, nil
		},
	}
	sync := NewRcloneSync(rcloneConfig(), runner, testLogger())

	err := sync.EnforceRetention(context.Background(), "backups", 7)
	require.Error(t, err)

	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, StageRetention, pipelineErr.Stage)
}

func TestRcloneVerifyReachable(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		wantErr bool
	}{
		{"remote configured", "offsite:\nother:\n", false},
		{"remote missing", "other:\n", true},
		{"no remotes at all", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{
				handler: func(spec CommandSpec) (CommandResult, error) {
					return CommandResult{Stdout: tt.stdout}, nil
				},
			}
			sync := NewRcloneSync(rcloneConfig(), runner, testLogger())

			err := sync.VerifyReachable(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
