package backup

import (
	"context"
	"fmt"

	"multidb-backup/internal/logging"
)

// NewRemoteSync creates the RemoteSync implementation selected by the
// configuration.
func NewRemoteSync(ctx context.Context, cfg RemoteConfig, log *logging.Logger) (RemoteSync, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case RemoteProviderRclone:
		return NewRcloneSync(cfg.Rclone, NewCommandRunner(), log), nil
	case RemoteProviderS3:
		return NewS3Sync(cfg.S3, log)
	case RemoteProviderGCS:
		return NewGCSSync(ctx, cfg.GCS, log)
	case RemoteProviderAzure:
		return NewAzureSync(cfg.Azure, log)
	default:
		return nil, NewConfigurationError(fmt.Sprintf("unsupported remote provider: %s", cfg.Provider), nil)
	}
}
