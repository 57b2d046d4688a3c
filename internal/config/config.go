package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Admin struct {
	Email    string
	Password string
	Phone    string
}

type Config struct {
	DatabasePath string
	ListenAddr   string
	Admin        Admin
	BcryptCost   int
	LoginTTL     time.Duration
	RecoveryTTL  time.Duration
	LogLevel     string

	// Notifications are disabled when DiscordBotToken is empty.
	DiscordBotToken  string
	DiscordChannelId string
}

// fileConfig is the YAML overlay named by LEDGER_CONFIG.
type fileConfig struct {
	DatabasePath string `yaml:"database_path"`
	ListenAddr   string `yaml:"listen_addr"`
	Admin        struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Phone    string `yaml:"phone"`
	} `yaml:"admin"`
	BcryptCost  int    `yaml:"bcrypt_cost"`
	LoginTTL    string `yaml:"login_ttl"`
	RecoveryTTL string `yaml:"recovery_ttl"`
	LogLevel    string `yaml:"log_level"`
	Discord     struct {
		BotToken  string `yaml:"bot_token"`
		ChannelID string `yaml:"channel_id"`
	} `yaml:"discord"`
}

func Default() *Config {
	return &Config{
		DatabasePath: "ledger.db",
		ListenAddr:   ":5000",
		Admin: Admin{
			Email:    "admin@example.com",
			Password: "admin123",
			Phone:    "9999999999",
		},
		BcryptCost:  bcrypt.DefaultCost,
		LoginTTL:    2 * time.Hour,
		RecoveryTTL: 10 * time.Minute,
		LogLevel:    "info",
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// LEDGER_CONFIG, and the environment, in that order of precedence.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path, ok := lookup("LEDGER_CONFIG"); ok && path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.overlayEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&c.DatabasePath, fc.DatabasePath)
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.Admin.Email, fc.Admin.Email)
	setString(&c.Admin.Password, fc.Admin.Password)
	setString(&c.Admin.Phone, fc.Admin.Phone)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.DiscordBotToken, fc.Discord.BotToken)
	setString(&c.DiscordChannelId, fc.Discord.ChannelID)
	if fc.BcryptCost != 0 {
		c.BcryptCost = fc.BcryptCost
	}
	if err := setDuration(&c.LoginTTL, "login_ttl", fc.LoginTTL); err != nil {
		return err
	}
	return setDuration(&c.RecoveryTTL, "recovery_ttl", fc.RecoveryTTL)
}

func (c *Config) overlayEnv(lookup func(string) (string, bool)) error {
	env := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	setString(&c.DatabasePath, env("LEDGER_DB_PATH"))
	setString(&c.ListenAddr, env("LEDGER_LISTEN_ADDR"))
	setString(&c.Admin.Email, env("LEDGER_ADMIN_EMAIL"))
	setString(&c.Admin.Password, env("LEDGER_ADMIN_PASSWORD"))
	setString(&c.Admin.Phone, env("LEDGER_ADMIN_PHONE"))
	setString(&c.LogLevel, env("LOG_LEVEL"))
	setString(&c.DiscordBotToken, env("DISCORD_BOT_TOKEN"))
	setString(&c.DiscordChannelId, env("DISCORD_CHANNEL_ID"))

	if v := env("LEDGER_BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEDGER_BCRYPT_COST: %w", err)
		}
		c.BcryptCost = cost
	}
	if err := setDuration(&c.LoginTTL, "LEDGER_LOGIN_TTL", env("LEDGER_LOGIN_TTL")); err != nil {
		return err
	}
	return setDuration(&c.RecoveryTTL, "LEDGER_RECOVERY_TTL", env("LEDGER_RECOVERY_TTL"))
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is not set")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is not set")
	}
	if c.Admin.Email == "" || c.Admin.Password == "" {
		return fmt.Errorf("admin email and password must be set")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.LoginTTL <= 0 || c.RecoveryTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.DiscordBotToken != "" && c.DiscordChannelId == "" {
		return fmt.Errorf("Channel ID is not set")
	}
	return nil
}

// NotificationsEnabled reports whether a Discord sink should be started.
func (c *Config) NotificationsEnabled() bool {
	return c.DiscordBotToken != ""
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
