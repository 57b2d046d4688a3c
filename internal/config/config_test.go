package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "ledger.db", cfg.DatabasePath)
	assert.Equal(t, ":5000", cfg.ListenAddr)
	assert.Equal(t, "admin@example.com", cfg.Admin.Email)
	assert.Equal(t, "admin123", cfg.Admin.Password)
	assert.Equal(t, bcrypt.DefaultCost, cfg.BcryptCost)
	assert.Equal(t, 2*time.Hour, cfg.LoginTTL)
	assert.Equal(t, 10*time.Minute, cfg.RecoveryTTL)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.NotificationsEnabled())
}

func TestLoad_Env(t *testing.T) {
	cfg, err := load(envOf(map[string]string{
		"LEDGER_DB_PATH":      "/var/lib/ledger.db",
		"LEDGER_LISTEN_ADDR":  "127.0.0.1:8080",
		"LEDGER_BCRYPT_COST":  "4",
		"LEDGER_LOGIN_TTL":    "30m",
		"LEDGER_RECOVERY_TTL": "5m",
		"LOG_LEVEL":           "DEBUG",
		"DISCORD_BOT_TOKEN":   "tok",
		"DISCORD_CHANNEL_ID":  "123",
	}))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/ledger.db", cfg.DatabasePath)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, 30*time.Minute, cfg.LoginTTL)
	assert.Equal(t, 5*time.Minute, cfg.RecoveryTTL)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.NotificationsEnabled())
	assert.Equal(t, "123", cfg.DiscordChannelId)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeYAML(t, `
database_path: file.db
listen_addr: ":9000"
admin:
  email: root@example.com
  password: hunter2
login_ttl: 1h
log_level: warn
discord:
  bot_token: from-file
  channel_id: "42"
`)
	cfg, err := load(envOf(map[string]string{
		"LEDGER_CONFIG":  path,
		"LEDGER_DB_PATH": "env.db",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env.db", cfg.DatabasePath, "env wins over file")
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "root@example.com", cfg.Admin.Email)
	assert.Equal(t, "hunter2", cfg.Admin.Password)
	assert.Equal(t, "9999999999", cfg.Admin.Phone)
	assert.Equal(t, time.Hour, cfg.LoginTTL)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
	assert.Equal(t, "from-file", cfg.DiscordBotToken)
	assert.Equal(t, "42", cfg.DiscordChannelId)
}

func TestLoad_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad cost", map[string]string{"LEDGER_BCRYPT_COST": "cheap"}, "LEDGER_BCRYPT_COST"},
		{"cost out of range", map[string]string{"LEDGER_BCRYPT_COST": "2"}, "out of range"},
		{"bad ttl", map[string]string{"LEDGER_LOGIN_TTL": "two hours"}, "LEDGER_LOGIN_TTL"},
		{"negative ttl", map[string]string{"LEDGER_RECOVERY_TTL": "-1m"}, "must be positive"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "unknown log level"},
		{"token without channel", map[string]string{"DISCORD_BOT_TOKEN": "tok"}, "Channel ID is not set"},
		{"missing file", map[string]string{"LEDGER_CONFIG": "/nonexistent/ledger.yaml"}, "failed to read config file"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := load(envOf(c.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.want)
		})
	}
}

func TestLoad_RejectsUnknownFileKeys(t *testing.T) {
	path := writeYAML(t, "databse_path: typo.db\n")
	_, err := load(envOf(map[string]string{"LEDGER_CONFIG": path}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}
