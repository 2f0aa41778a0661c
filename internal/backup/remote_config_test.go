package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteConfigValidate(t *testing.T) {
	rcloneConf := filepath.Join(t.TempDir(), "rclone.conf")
	require.NoError(t, os.WriteFile(rcloneConf, []byte("[offsite]\ntype = s3\n"), 0o644))

	tests := []struct {
		name    string
		cfg     RemoteConfig
		wantErr string
	}{
		{
			name: "valid rclone",
			cfg: RemoteConfig{
				Provider: RemoteProviderRclone,
				Rclone:   RcloneConfig{Remote: "offsite", ConfigFile: rcloneConf},
			},
		},
		{
			name: "rclone config file missing",
			cfg: RemoteConfig{
				Provider: RemoteProviderRclone,
				Rclone:   RcloneConfig{Remote: "offsite", ConfigFile: "/nonexistent/rclone.conf"},
			},
			wantErr: "rclone",
		},
		{
			name: "s3 without bucket",
			cfg: RemoteConfig{
				Provider: RemoteProviderS3,
				S3:       S3Config{Region: "eu-west-1"},
			},
			wantErr: "bucket",
		},
		{
			name: "valid s3",
			cfg: RemoteConfig{
				Provider: RemoteProviderS3,
				S3:       S3Config{Bucket: "backups", Region: "eu-west-1"},
			},
		},
		{
			name: "gcs without bucket",
			cfg: RemoteConfig{
				Provider: RemoteProviderGCS,
			},
			wantErr: "bucket",
		},
		{
			name: "azure missing credentials",
			cfg: RemoteConfig{
				Provider: RemoteProviderAzure,
				Azure:    AzureConfig{Container: "backups"},
			},
			wantErr: "account",
		},
		{
			name:    "unknown provider",
			cfg:     RemoteConfig{Provider: "ftp"},
			wantErr: "provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
