package backup

import (
	"fmt"
	"os"
)

// RemoteProvider selects the remote sync implementation
type RemoteProvider string

const (
	RemoteProviderRclone RemoteProvider = "rclone"
	RemoteProviderS3     RemoteProvider = "s3"
	RemoteProviderGCS    RemoteProvider = "gcs"
	RemoteProviderAzure  RemoteProvider = "azure"
)

// RemoteConfig holds the remote storage configuration for all providers;
// only the block matching Provider is consulted.
type RemoteConfig struct {
	Provider RemoteProvider `yaml:"provider"`
	Rclone   RcloneConfig   `yaml:"rclone"`
	S3       S3Config       `yaml:"s3"`
	GCS      GCSConfig      `yaml:"gcs"`
	Azure    AzureConfig    `yaml:"azure"`
}

// RcloneConfig configures the rclone transport shim
type RcloneConfig struct {
	Remote             string `yaml:"remote"`
	ConfigFile         string `yaml:"config"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
}

// S3Config configures the native Amazon S3 provider
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Prefix    string `yaml:"prefix"`
}

// GCSConfig configures the native Google Cloud Storage provider
type GCSConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	Prefix          string `yaml:"prefix"`
}

// AzureConfig configures the native Azure Blob Storage provider
type AzureConfig struct {
	AccountName string `yaml:"account_name"`
	AccountKey  string `yaml:"account_key"`
	Container   string `yaml:"container"`
	Prefix      string `yaml:"prefix"`
}

// SetDefaults fills in provider defaults
func (rc *RemoteConfig) SetDefaults() {
	if rc.Provider == "" {
		rc.Provider = RemoteProviderRclone
	}
	if rc.Rclone.Remote == "" {
		rc.Rclone.Remote = "backup"
	}
	if rc.Rclone.ConfigFile == "" {
		rc.Rclone.ConfigFile = "/config/rclone.conf"
	}
}

// Validate checks the block matching the selected provider
func (rc *RemoteConfig) Validate() error {
	var errs ValidationErrors

	switch rc.Provider {
	case RemoteProviderRclone:
		if rc.Rclone.Remote == "" {
			errs.Add("rclone.remote", "remote name is required")
		}
		if rc.Rclone.ConfigFile == "" {
			errs.Add("rclone.config", "config file path is required")
		} else if _, err := os.Stat(rc.Rclone.ConfigFile); err != nil {
			errs.Add("rclone.config", fmt.Sprintf("config file not found: %s", rc.Rclone.ConfigFile))
		}
	case RemoteProviderS3:
		if rc.S3.Bucket == "" {
			errs.Add("s3.bucket", "bucket is required")
		}
		if rc.S3.Region == "" {
			errs.Add("s3.region", "region is required")
		}
		// access/secret keys are optional: the AWS default credential
		// chain covers instance profiles and env credentials
	case RemoteProviderGCS:
		if rc.GCS.Bucket == "" {
			errs.Add("gcs.bucket", "bucket is required")
		}
	case RemoteProviderAzure:
		if rc.Azure.AccountName == "" || rc.Azure.AccountKey == "" {
			errs.Add("azure.credentials", "account name and key are required")
		}
		if rc.Azure.Container == "" {
			errs.Add("azure.container", "container is required")
		}
	default:
		errs.Add("provider", fmt.Sprintf("unsupported remote provider: %s", rc.Provider))
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
