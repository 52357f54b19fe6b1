package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Ledger backend names.
const (
	BackendSQLite      = "sqlite"
	BackendRedis       = "redis"
	BackendGoogleTasks = "googletasks"
)

// Default values.
const (
	DefaultBackend           = BackendSQLite
	DefaultCallTimeout       = 15 * time.Second
	DefaultSQLitePath        = "ledger.db"
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPrefix       = "todosync"
	DefaultGoogleListID      = "@default"
	DefaultRequestsPerSecond = 5.0
	DefaultLogFormat         = "text"
)

// Settings holds the ledger backend selection and backend options.
type Settings struct {
	Backend     string              `toml:"backend"`
	CallTimeout Duration            `toml:"call_timeout"`
	LogFormat   string              `toml:"log_format"`
	SQLite      SQLiteSettings      `toml:"sqlite"`
	Redis       RedisSettings       `toml:"redis"`
	GoogleTasks GoogleTasksSettings `toml:"googletasks"`
}

// SQLiteSettings configures the sqlite backend.
type SQLiteSettings struct {
	Path string `toml:"path"`
}

// RedisSettings configures the redis backend.
type RedisSettings struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// GoogleTasksSettings configures the googletasks backend.
type GoogleTasksSettings struct {
	ListID            string  `toml:"list_id"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Duration is a time.Duration that decodes from strings like "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		Backend:     DefaultBackend,
		CallTimeout: Duration{DefaultCallTimeout},
		LogFormat:   DefaultLogFormat,
		SQLite:      SQLiteSettings{Path: DefaultSQLitePath},
		Redis:       RedisSettings{Addr: DefaultRedisAddr, Prefix: DefaultRedisPrefix},
		GoogleTasks: GoogleTasksSettings{
			ListID:            DefaultGoogleListID,
			RequestsPerSecond: DefaultRequestsPerSecond,
		},
	}
}

// Validate checks settings for unusable values.
func (s Settings) Validate() error {
	switch s.Backend {
	case BackendSQLite, BackendRedis, BackendGoogleTasks:
	default:
		return fmt.Errorf("unknown backend: %s", s.Backend)
	}
	switch s.LogFormat {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("unknown log_format: %s", s.LogFormat)
	}
	if s.CallTimeout.Duration <= 0 {
		return errors.New("call_timeout must be positive")
	}
	if s.Backend == BackendSQLite && s.SQLite.Path == "" {
		return errors.New("sqlite.path is required")
	}
	if s.Backend == BackendRedis && s.Redis.Addr == "" {
		return errors.New("redis.addr is required")
	}
	if s.GoogleTasks.RequestsPerSecond <= 0 {
		return errors.New("googletasks.requests_per_second must be positive")
	}
	return nil
}

// loadSettingsFile overlays config.toml onto c.Settings when the file exists.
func (c *Config) loadSettingsFile() error {
	path := c.SettingsPath()
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading settings file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &c.Settings); err != nil {
		return fmt.Errorf("loading settings file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv overrides settings from environment variables.
// A set variable that does not parse is an error.
func loadFromEnv(s *Settings) error {
	if v := os.Getenv("TODOSYNC_BACKEND"); v != "" {
		s.Backend = v
	}
	if v := os.Getenv("TODOSYNC_SQLITE_PATH"); v != "" {
		s.SQLite.Path = v
	}
	if v := os.Getenv("TODOSYNC_REDIS_ADDR"); v != "" {
		s.Redis.Addr = v
	}
	if v := os.Getenv("TODOSYNC_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TODOSYNC_REDIS_DB %q: %w", v, err)
		}
		s.Redis.DB = n
	}
	if v := os.Getenv("TODOSYNC_GOOGLE_LIST"); v != "" {
		s.GoogleTasks.ListID = v
	}
	if v := os.Getenv("TODOSYNC_LOG_FORMAT"); v != "" {
		s.LogFormat = v
	}
	if v := os.Getenv("TODOSYNC_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TODOSYNC_CALL_TIMEOUT %q: %w", v, err)
		}
		s.CallTimeout = Duration{d}
	}
	return nil
}
