package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multidb-backup/internal/backup"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0 0 * * *", cfg.Cron)
	assert.False(t, cfg.RunOnStart)
	assert.False(t, cfg.Encrypt)
	assert.Equal(t, 0, cfg.RetentionDays)
	assert.Equal(t, "zstd", cfg.Compression)
	assert.Equal(t, backup.RemoteProviderRclone, cfg.Remote.Provider)
	assert.Equal(t, "backup", cfg.Remote.Rclone.Remote)
	assert.Equal(t, "/config/rclone.conf", cfg.Remote.Rclone.ConfigFile)
	assert.Equal(t, "admin", cfg.MongoDB.AuthDB)
	assert.False(t, cfg.PostgreSQL.Enabled)
	assert.Equal(t, 5432, cfg.PostgreSQL.Port)
	assert.Equal(t, backup.DatabasesAll, cfg.MySQL.Databases)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("BACKUP_CRON", "30 3 * * *")
	t.Setenv("BACKUP_ON_START", "true")
	t.Setenv("BACKUP_ENCRYPT", "true")
	t.Setenv("BACKUP_PASSWORD", "hunter2")
	t.Setenv("BACKUP_RETENTION_DAYS", "14")
	t.Setenv("RCLONE_REMOTE", "offsite")
	t.Setenv("POSTGRESQL_ENABLED", "true")
	t.Setenv("POSTGRESQL_HOST", "pg.internal")
	t.Setenv("POSTGRESQL_DATABASES", "app,audit")
	t.Setenv("MONGODB_AUTH_DB", "auth_users")
	t.Setenv("WEBHOOK_URL", "https://hooks.internal/backup")
	t.Setenv("WEBHOOK_TYPE", "message_pusher")
	t.Setenv("MESSAGE_PUSHER_TOKEN", "tok123")
	t.Setenv("MESSAGE_PUSHER_CHANNEL", "ops")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "30 3 * * *", cfg.Cron)
	assert.True(t, cfg.RunOnStart)
	assert.True(t, cfg.Encrypt)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Equal(t, 14, cfg.RetentionDays)
	assert.Equal(t, "offsite", cfg.Remote.Rclone.Remote)
	assert.True(t, cfg.PostgreSQL.Enabled)
	assert.Equal(t, "pg.internal", cfg.PostgreSQL.Host)
	assert.Equal(t, "app,audit", cfg.PostgreSQL.Databases)
	assert.Equal(t, "auth_users", cfg.MongoDB.AuthDB)
	assert.Equal(t, "https://hooks.internal/backup", cfg.Webhook.URL)
	assert.Equal(t, WebhookTypeMessagePusher, cfg.Webhook.Type)
	assert.Equal(t, "tok123", cfg.Webhook.PusherToken)
	assert.Equal(t, "ops", cfg.Webhook.PusherChannel)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
backup:
  cron: "15 1 * * *"
  retention_days: 30
mysql:
  enabled: true
  host: mysql.internal
  user: backup
  password: secret
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "15 1 * * *", cfg.Cron)
	assert.Equal(t, 30, cfg.RetentionDays)
	assert.True(t, cfg.MySQL.Enabled)
	assert.Equal(t, "mysql.internal", cfg.MySQL.Host)
	// defaults survive partial files
	assert.Equal(t, 3306, cfg.MySQL.Port)
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()

	rcloneConf := filepath.Join(t.TempDir(), "rclone.conf")
	require.NoError(t, os.WriteFile(rcloneConf, []byte("[backup]\ntype = s3\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	cfg.Remote.Rclone.ConfigFile = rcloneConf
	cfg.MySQL.Enabled = true
	return cfg
}

func TestValidateAcceptsWorkingConfig(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "encryption without password",
			mutate:  func(c *Config) { c.Encrypt = true },
			wantErr: "password",
		},
		{
			name:    "no store enabled",
			mutate:  func(c *Config) { c.MySQL.Enabled = false },
			wantErr: "store",
		},
		{
			name:    "empty cron",
			mutate:  func(c *Config) { c.Cron = "" },
			wantErr: "cron",
		},
		{
			name:    "unknown compression codec",
			mutate:  func(c *Config) { c.Compression = "brotli" },
			wantErr: "compression",
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.RetentionDays = -1 },
			wantErr: "negative",
		},
		{
			name: "message pusher without token",
			mutate: func(c *Config) {
				c.Webhook.URL = "https://push.internal"
				c.Webhook.Type = WebhookTypeMessagePusher
			},
			wantErr: "token",
		},
		{
			name: "bad webhook method",
			mutate: func(c *Config) {
				c.Webhook.URL = "https://hooks.internal"
				c.Webhook.Method = "PATCH"
			},
			wantErr: "GET or POST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTargetsFixedOrder(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Redis.Enabled = true
	cfg.PostgreSQL.Enabled = true
	cfg.MongoDB.Enabled = true
	cfg.MongoDB.AuthDB = "admin"

	targets := cfg.Targets()
	require.Len(t, targets, 3)
	assert.Equal(t, backup.StoreKindPostgreSQL, targets[0].Kind)
	assert.Equal(t, backup.StoreKindMongoDB, targets[1].Kind)
	assert.Equal(t, backup.StoreKindRedis, targets[2].Kind)
	assert.Equal(t, "admin", targets[1].AuthDB)
}

func TestNotifiersSelection(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Notifiers(nil), "no URL means no notifiers")

	cfg.Webhook.URL = "https://hooks.internal"
	notifiers := cfg.Notifiers(nil)
	require.Len(t, notifiers, 1)
	assert.Equal(t, "webhook", notifiers[0].Name())

	cfg.Webhook.Type = WebhookTypeMessagePusher
	cfg.Webhook.PusherToken = "tok"
	notifiers = cfg.Notifiers(nil)
	require.Len(t, notifiers, 1)
	assert.Equal(t, "message-pusher", notifiers[0].Name())
}

func TestWriteSampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteSample(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0 0 * * *", cfg.Cron)
	assert.Equal(t, "zstd", cfg.Compression)
	assert.Equal(t, 5432, cfg.PostgreSQL.Port)
	assert.Equal(t, 27017, cfg.MongoDB.Port)

	// refuses to clobber
	assert.Error(t, WriteSample(path))
}
