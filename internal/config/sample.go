package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"multidb-backup/internal/backup"
)

// sampleFile mirrors the YAML layout Load reads, nested under the same
// top-level keys viper resolves.
type sampleFile struct {
	Backup struct {
		Cron             string `yaml:"cron"`
		OnStart          bool   `yaml:"on_start"`
		Encrypt          bool   `yaml:"encrypt"`
		Password         string `yaml:"password"`
		RetentionDays    int    `yaml:"retention_days"`
		WorkDir          string `yaml:"work_dir"`
		Compression      string `yaml:"compression"`
		CompressionLevel int    `yaml:"compression_level"`
		BasePath         string `yaml:"base_path"`
	} `yaml:"backup"`
	Remote struct {
		Provider string `yaml:"provider"`
	} `yaml:"remote"`
	Rclone backup.RcloneConfig `yaml:"rclone"`
	S3     backup.S3Config     `yaml:"s3"`
	GCS    backup.GCSConfig    `yaml:"gcs"`
	Azure  backup.AzureConfig  `yaml:"azure"`

	Webhook struct {
		URL    string `yaml:"url"`
		Method string `yaml:"method"`
		Type   string `yaml:"type"`
	} `yaml:"webhook"`
	MessagePusher struct {
		Token   string `yaml:"token"`
		Channel string `yaml:"channel"`
	} `yaml:"message_pusher"`

	PostgreSQL StoreSettings `yaml:"postgresql"`
	MySQL      StoreSettings `yaml:"mysql"`
	MariaDB    StoreSettings `yaml:"mariadb"`
	MongoDB    StoreSettings `yaml:"mongodb"`
	Redis      StoreSettings `yaml:"redis"`
}

// WriteSample writes a commented-out starting configuration to path. It
// refuses to overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	var sample sampleFile
	sample.Backup.Cron = "0 0 * * *"
	sample.Backup.WorkDir = "/tmp/multidb-backup"
	sample.Backup.Compression = "zstd"
	sample.Backup.CompressionLevel = 3
	sample.Backup.RetentionDays = 7
	sample.Remote.Provider = string(backup.RemoteProviderRclone)
	sample.Rclone = backup.RcloneConfig{Remote: "backup", ConfigFile: "/config/rclone.conf"}
	sample.Webhook.Type = WebhookTypeGeneric

	for _, block := range []*StoreSettings{&sample.PostgreSQL, &sample.MySQL, &sample.MariaDB, &sample.MongoDB, &sample.Redis} {
		block.Host = "localhost"
		block.Databases = backup.DatabasesAll
	}
	sample.PostgreSQL.Port = 5432
	sample.MySQL.Port = 3306
	sample.MariaDB.Port = 3306
	sample.MongoDB.Port = 27017
	sample.MongoDB.AuthDB = "admin"
	sample.Redis.Port = 6379

	data, err := yaml.Marshal(&sample)
	if err != nil {
		return fmt.Errorf("encoding sample config: %w", err)
	}

	header := []byte("# multidb-backup configuration\n# Every key can also be set via environment variables:\n# dotted keys uppercased with underscores, e.g. backup.cron -> BACKUP_CRON.\n\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
