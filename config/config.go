// Package config loads runtime settings from an optional YAML file and
// TILECORE_* environment variables. Environment values win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Save backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds every runtime setting.
type Config struct {
	Environment   string        `yaml:"environment"`
	LogLevel      slog.Level    `yaml:"-"`
	LogLevelName  string        `yaml:"log_level"`
	LockTimeout   time.Duration `yaml:"lock_timeout"`
	FrameInterval time.Duration `yaml:"frame_interval"`
	SaveSlot      string        `yaml:"save_slot"`
	SaveBackend   string        `yaml:"save_backend"`
	SaveDir       string        `yaml:"save_dir"`
	RedisURL      string        `yaml:"redis_url"`
	SQLitePath    string        `yaml:"sqlite_path"`
	PostgresURL   string        `yaml:"postgres_url"`
	ObserverAddr  string        `yaml:"observer_addr"`
	SoundRoot     string        `yaml:"sound_root"`
	ContentRoot   string        `yaml:"content_root"`
	Mute          bool          `yaml:"mute"`

	// Where a new session starts.
	StartArea string `yaml:"start_area"`
	StartX    int    `yaml:"start_x"`
	StartY    int    `yaml:"start_y"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Environment:   "development",
		LogLevel:      slog.LevelInfo,
		LogLevelName:  "info",
		LockTimeout:   250 * time.Millisecond,
		FrameInterval: 33 * time.Millisecond,
		SaveSlot:      "default",
		SaveBackend:   BackendFile,
		SaveDir:       "saves",
		RedisURL:      "redis://localhost:6379/0",
		SQLitePath:    "tilecore.db",
		SoundRoot:     "content",
		ContentRoot:   "content",
		StartArea:     "areas/house.tmx",
		StartX:        4,
		StartY:        3,
	}
}

// Load reads path (if non-empty and present) over the defaults, then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("config %s: %w", path, err)
			}
		}
	}

	cfg.Environment = getEnv("TILECORE_ENV", cfg.Environment)
	cfg.LogLevelName = getEnv("TILECORE_LOG_LEVEL", cfg.LogLevelName)
	cfg.SaveBackend = getEnv("TILECORE_SAVE_BACKEND", cfg.SaveBackend)
	cfg.RedisURL = getEnv("TILECORE_REDIS_URL", cfg.RedisURL)
	cfg.SQLitePath = getEnv("TILECORE_SQLITE_PATH", cfg.SQLitePath)
	cfg.PostgresURL = getEnv("TILECORE_POSTGRES_URL", cfg.PostgresURL)
	cfg.SaveDir = getEnv("TILECORE_SAVE_DIR", cfg.SaveDir)
	cfg.ObserverAddr = getEnv("TILECORE_OBSERVER_ADDR", cfg.ObserverAddr)
	cfg.ContentRoot = getEnv("TILECORE_CONTENT_ROOT", cfg.ContentRoot)
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	switch c.SaveBackend {
	case BackendFile, BackendRedis, BackendSQLite, BackendMemory:
	case BackendPostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("config: postgres backend needs postgres_url")
		}
	default:
		return fmt.Errorf("config: unknown save backend %q", c.SaveBackend)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("config: lock_timeout must not be negative")
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("config: frame_interval must be positive")
	}
	if c.SaveSlot == "" {
		return fmt.Errorf("config: save_slot must not be empty")
	}
	if c.StartArea == "" {
		return fmt.Errorf("config: start_area must not be empty")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
