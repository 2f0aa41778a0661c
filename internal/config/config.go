package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"multidb-backup/internal/backup"
	"multidb-backup/internal/logging"
)

// Webhook notification types
const (
	WebhookTypeGeneric       = "generic"
	WebhookTypeMessagePusher = "message_pusher"
)

// StoreSettings is the per-store connection block
type StoreSettings struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Databases string `yaml:"databases"` // "all" or a comma-separated list
	ExtraOpts string `yaml:"extra_opts"`
	AuthDB    string `yaml:"auth_db,omitempty"` // MongoDB only
}

// WebhookSettings selects and configures the notification channel
type WebhookSettings struct {
	URL           string `yaml:"url"`
	Method        string `yaml:"method"`
	Type          string `yaml:"type"` // generic or message_pusher
	PusherToken   string `yaml:"pusher_token"`
	PusherChannel string `yaml:"pusher_channel"`
}

// Config is the full runtime configuration. Every field can come from the
// YAML config file or from environment variables (dotted keys uppercased
// with underscores, e.g. backup.cron becomes BACKUP_CRON).
type Config struct {
	Cron             string `yaml:"cron"`
	RunOnStart       bool   `yaml:"run_on_start"`
	Encrypt          bool   `yaml:"encrypt"`
	Password         string `yaml:"password"`
	RetentionDays    int    `yaml:"retention_days"`
	WorkDir          string `yaml:"work_dir"`
	Compression      string `yaml:"compression"`
	CompressionLevel int    `yaml:"compression_level"`
	BasePath         string `yaml:"base_path"` // remote prefix; each store kind lives under it

	Remote  backup.RemoteConfig `yaml:"remote"`
	Webhook WebhookSettings     `yaml:"webhook"`

	PostgreSQL StoreSettings `yaml:"postgresql"`
	MySQL      StoreSettings `yaml:"mysql"`
	MariaDB    StoreSettings `yaml:"mariadb"`
	MongoDB    StoreSettings `yaml:"mongodb"`
	Redis      StoreSettings `yaml:"redis"`
}

// storeDefaults maps each store block to its conventional port
var storeDefaults = map[string]int{
	"postgresql": 5432,
	"mysql":      3306,
	"mariadb":    3306,
	"mongodb":    27017,
	"redis":      6379,
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backup.cron", "0 0 * * *")
	v.SetDefault("backup.on_start", false)
	v.SetDefault("backup.encrypt", false)
	v.SetDefault("backup.password", "")
	v.SetDefault("backup.retention_days", 0)
	v.SetDefault("backup.work_dir", "/tmp/multidb-backup")
	v.SetDefault("backup.compression", "zstd")
	v.SetDefault("backup.compression_level", 3)
	v.SetDefault("backup.base_path", "")

	v.SetDefault("remote.provider", string(backup.RemoteProviderRclone))
	v.SetDefault("rclone.remote", "backup")
	v.SetDefault("rclone.config", "/config/rclone.conf")
	v.SetDefault("rclone.insecure_skip_verify", false)

	for _, key := range []string{
		"s3.bucket", "s3.region", "s3.access_key", "s3.secret_key", "s3.prefix",
		"gcs.bucket", "gcs.credentials_file", "gcs.prefix",
		"azure.account_name", "azure.account_key", "azure.container", "azure.prefix",
		"webhook.url", "webhook.method",
		"message_pusher.token", "message_pusher.channel",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("webhook.type", WebhookTypeGeneric)

	for name, port := range storeDefaults {
		v.SetDefault(name+".enabled", false)
		v.SetDefault(name+".host", "localhost")
		v.SetDefault(name+".port", port)
		v.SetDefault(name+".user", "")
		v.SetDefault(name+".password", "")
		v.SetDefault(name+".databases", backup.DatabasesAll)
		v.SetDefault(name+".extra_opts", "")
	}
	v.SetDefault("mongodb.auth_db", "admin")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return v, nil
}

func storeSettings(v *viper.Viper, name string) StoreSettings {
	return StoreSettings{
		Enabled:   v.GetBool(name + ".enabled"),
		Host:      v.GetString(name + ".host"),
		Port:      v.GetInt(name + ".port"),
		User:      v.GetString(name + ".user"),
		Password:  v.GetString(name + ".password"),
		Databases: v.GetString(name + ".databases"),
		ExtraOpts: v.GetString(name + ".extra_opts"),
		AuthDB:    v.GetString(name + ".auth_db"),
	}
}

// Load builds the configuration from the optional YAML file at path plus
// the environment.
func Load(path string) (*Config, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Cron:             v.GetString("backup.cron"),
		RunOnStart:       v.GetBool("backup.on_start"),
		Encrypt:          v.GetBool("backup.encrypt"),
		Password:         v.GetString("backup.password"),
		RetentionDays:    v.GetInt("backup.retention_days"),
		WorkDir:          v.GetString("backup.work_dir"),
		Compression:      v.GetString("backup.compression"),
		CompressionLevel: v.GetInt("backup.compression_level"),
		BasePath:         v.GetString("backup.base_path"),
		Remote: backup.RemoteConfig{
			Provider: backup.RemoteProvider(v.GetString("remote.provider")),
			Rclone: backup.RcloneConfig{
				Remote:             v.GetString("rclone.remote"),
				ConfigFile:         v.GetString("rclone.config"),
				InsecureSkipVerify: v.GetBool("rclone.insecure_skip_verify"),
			},
			S3: backup.S3Config{
				Bucket:    v.GetString("s3.bucket"),
				Region:    v.GetString("s3.region"),
				AccessKey: v.GetString("s3.access_key"),
				SecretKey: v.GetString("s3.secret_key"),
				Prefix:    v.GetString("s3.prefix"),
			},
			GCS: backup.GCSConfig{
				Bucket:          v.GetString("gcs.bucket"),
				CredentialsFile: v.GetString("gcs.credentials_file"),
				Prefix:          v.GetString("gcs.prefix"),
			},
			Azure: backup.AzureConfig{
				AccountName: v.GetString("azure.account_name"),
				AccountKey:  v.GetString("azure.account_key"),
				Container:   v.GetString("azure.container"),
				Prefix:      v.GetString("azure.prefix"),
			},
		},
		Webhook: WebhookSettings{
			URL:           v.GetString("webhook.url"),
			Method:        v.GetString("webhook.method"),
			Type:          v.GetString("webhook.type"),
			PusherToken:   v.GetString("message_pusher.token"),
			PusherChannel: v.GetString("message_pusher.channel"),
		},
		PostgreSQL: storeSettings(v, "postgresql"),
		MySQL:      storeSettings(v, "mysql"),
		MariaDB:    storeSettings(v, "mariadb"),
		MongoDB:    storeSettings(v, "mongodb"),
		Redis:      storeSettings(v, "redis"),
	}
	return cfg, nil
}

// Validate checks configuration consistency. Errors here stop the process
// before any backup work begins.
func (c *Config) Validate() error {
	var errs backup.ValidationErrors

	if c.Cron == "" {
		errs.Add("backup.cron", "cron expression is required")
	}
	if c.Encrypt && c.Password == "" {
		errs.Add("backup.password", "password is required when encryption is enabled")
	}
	if c.Compression != "zstd" && c.Compression != "lz4" {
		errs.Add("backup.compression", fmt.Sprintf("unsupported codec %q (zstd or lz4)", c.Compression))
	}
	if c.RetentionDays < 0 {
		errs.Add("backup.retention_days", "must not be negative")
	}
	if len(c.Targets()) == 0 {
		errs.Add("stores", "at least one store must be enabled")
	}

	if c.Webhook.URL != "" {
		switch c.Webhook.Type {
		case WebhookTypeGeneric:
			method := strings.ToUpper(c.Webhook.Method)
			if method != "" && method != "GET" && method != "POST" {
				errs.Add("webhook.method", "must be GET or POST")
			}
		case WebhookTypeMessagePusher:
			if c.Webhook.PusherToken == "" {
				errs.Add("message_pusher.token", "token is required for message_pusher webhooks")
			}
		default:
			errs.Add("webhook.type", fmt.Sprintf("unsupported type %q", c.Webhook.Type))
		}
	}

	if err := c.Remote.Validate(); err != nil {
		errs.Add("remote", err.Error())
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Targets returns the enabled stores as backup targets in a fixed order
func (c *Config) Targets() []backup.Target {
	blocks := []struct {
		kind     backup.StoreKind
		settings StoreSettings
	}{
		{backup.StoreKindPostgreSQL, c.PostgreSQL},
		{backup.StoreKindMySQL, c.MySQL},
		{backup.StoreKindMariaDB, c.MariaDB},
		{backup.StoreKindMongoDB, c.MongoDB},
		{backup.StoreKindRedis, c.Redis},
	}

	var targets []backup.Target
	for _, block := range blocks {
		if !block.settings.Enabled {
			continue
		}
		targets = append(targets, backup.Target{
			Kind:      block.kind,
			Host:      block.settings.Host,
			Port:      block.settings.Port,
			User:      block.settings.User,
			Password:  block.settings.Password,
			Databases: block.settings.Databases,
			ExtraOpts: block.settings.ExtraOpts,
			AuthDB:    block.settings.AuthDB,
		})
	}
	return targets
}

// Notifiers builds the notification channels selected by the configuration
func (c *Config) Notifiers(log *logging.Logger) []backup.Notifier {
	if c.Webhook.URL == "" {
		return nil
	}
	switch c.Webhook.Type {
	case WebhookTypeMessagePusher:
		return []backup.Notifier{backup.NewMessagePusherNotifier(backup.MessagePusherConfig{
			URL:     c.Webhook.URL,
			Token:   c.Webhook.PusherToken,
			Channel: c.Webhook.PusherChannel,
		}, log)}
	default:
		return []backup.Notifier{backup.NewWebhookNotifier(backup.WebhookConfig{
			URL:    c.Webhook.URL,
			Method: c.Webhook.Method,
		}, log)}
	}
}
