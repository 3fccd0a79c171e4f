package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	SessionTTL     time.Duration         `yaml:"session_ttl"`
	Timezone       string                `yaml:"timezone"`
	Paths          RuntimePathsConfig    `yaml:"paths"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Discord        DiscordConfig         `yaml:"discord"`
	Relay          RelayConfig           `yaml:"relay"`
	Reaper         ReaperConfig          `yaml:"reaper"`
	Archive        ArchiveConfig         `yaml:"archive"`
}

type DatabaseRuntimeConfig struct {
	Driver   string            `yaml:"driver"` // mysql | postgres | sqlite
	DSN      string            `yaml:"dsn"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	User     string            `yaml:"user"`
	Password string            `yaml:"password"`
	Name     string            `yaml:"name"`
	Charset  string            `yaml:"charset"`
	Loc      string            `yaml:"loc"`
	SSLMode  string            `yaml:"ssl_mode"`
	Params   map[string]string `yaml:"params"`
}

// RedisRuntimeConfig is optional; an empty URL and host disables redis.
type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type DiscordConfig struct {
	Token             string  `yaml:"token"`
	GuildID           string  `yaml:"guild_id"`
	FallbackChannelID string  `yaml:"fallback_channel_id"`
	ReportChannelID   string  `yaml:"report_channel_id"`
	ReportTitle       string  `yaml:"report_title"`
	SendRatePerSecond float64 `yaml:"send_rate_per_second"`
	SendBurst         int     `yaml:"send_burst"`
}

type RelayConfig struct {
	HistoryLimit    int           `yaml:"history_limit"`
	AuthTimeout     time.Duration `yaml:"auth_timeout"`
	TimestampLayout string        `yaml:"timestamp_layout"`
}

type ReaperConfig struct {
	Enable        bool          `yaml:"enable"`
	Interval      time.Duration `yaml:"interval"`
	InactiveAfter time.Duration `yaml:"inactive_after"`
	ArchiveLimit  int           `yaml:"archive_limit"`
	RunOnStart    bool          `yaml:"run_on_start"`
}

type ArchiveConfig struct {
	Driver string   `yaml:"driver"` // local | s3
	Dir    string   `yaml:"dir"`
	S3     S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"`
	PathStyle       bool   `yaml:"path_style"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// Load reads the YAML config, overlays .env and process environment, then
// validates the result. A missing default config file is not an error: the
// environment may supply everything required. A missing explicit path is.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultConfigPath:
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	_ = godotenv.Load()
	applyEnv(&cfg, os.LookupEnv)
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:       defaultPort,
		Env:        defaultEnv,
		SessionTTL: defaultSessionTTL,
		Database: DatabaseRuntimeConfig{
			Driver:   defaultDBDriver,
			Host:     defaultDBHost,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
		},
		Discord: DiscordConfig{
			ReportTitle:       defaultReportTitle,
			SendRatePerSecond: defaultSendRate,
			SendBurst:         defaultSendBurst,
		},
		Relay: RelayConfig{
			HistoryLimit:    defaultHistoryLimit,
			AuthTimeout:     defaultAuthTimeout,
			TimestampLayout: defaultTimestampLayout,
		},
		Reaper: ReaperConfig{
			Enable:        true,
			Interval:      defaultReaperInterval,
			InactiveAfter: defaultReaperInactiveAfter,
			ArchiveLimit:  defaultReaperArchiveLimit,
			RunOnStart:    true,
		},
		Archive: ArchiveConfig{
			Driver: ArchiveDriverLocal,
		},
	}
}

// applyEnv overrides secrets and connection settings from the environment.
func applyEnv(cfg *AppConfig, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("JWT_SECRET", &cfg.JWTSecret)
	str("DISCORD_TOKEN", &cfg.Discord.Token)
	str("GUILD_ID", &cfg.Discord.GuildID)
	str("DB_DRIVER", &cfg.Database.Driver)
	str("DB_DSN", &cfg.Database.DSN)
	str("REDIS_URL", &cfg.Redis.URL)

	if v, ok := lookup("PORT"); ok {
		var port int
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%d", &port); err == nil {
			cfg.Port = port
		}
	}
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	if c.Database.Driver != DriverSQLite && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("jwt_secret is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("invalid session_ttl %s", c.SessionTTL)
	}
	if c.Relay.HistoryLimit < 0 || c.Relay.HistoryLimit > 100 {
		return fmt.Errorf("invalid relay.history_limit %d, expected 0-100", c.Relay.HistoryLimit)
	}
	if c.Reaper.Enable {
		if c.Reaper.Interval <= 0 {
			return fmt.Errorf("invalid reaper.interval %s", c.Reaper.Interval)
		}
		if c.Reaper.InactiveAfter <= 0 {
			return fmt.Errorf("invalid reaper.inactive_after %s", c.Reaper.InactiveAfter)
		}
	}
	switch c.Archive.Driver {
	case ArchiveDriverLocal:
	case ArchiveDriverS3:
		if c.Archive.S3.Bucket == "" || c.Archive.S3.Region == "" {
			return errors.New("archive.s3 requires bucket and region")
		}
	default:
		return fmt.Errorf("unsupported archive.driver %q", c.Archive.Driver)
	}
	return nil
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// RedisEnabled reports whether a redis endpoint is configured.
func (c *AppConfig) RedisEnabled() bool {
	return c.Redis.URL != "" || c.Redis.Host != ""
}

// LogDir returns the resolved log directory.
func (c *AppConfig) LogDir() string {
	return resolveRuntimePath(c.Paths.Logs, defaultLogsSubdir)
}

// ArchiveDir returns the resolved local archive directory.
func (c *AppConfig) ArchiveDir() string {
	return resolveRuntimePath(c.Archive.Dir, defaultArchivesSubdir)
}
