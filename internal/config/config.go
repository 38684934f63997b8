// Package config loads taskflow settings from YAML files, a .env file and
// TASKFLOW_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/baiirun/taskflow/internal/auth"
	"github.com/baiirun/taskflow/internal/db"
	"github.com/baiirun/taskflow/internal/events"
)

// Config is the full set of settings.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Log      LogConfig      `mapstructure:"log"`
	Actor    string         `mapstructure:"actor"` // default acting user id for the CLI
}

type DatabaseConfig struct {
	Driver      string        `mapstructure:"driver"`
	Path        string        `mapstructure:"path"`
	DSN         string        `mapstructure:"dsn"`
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

type HTTPConfig struct {
	Addr string   `mapstructure:"addr"`
	CORS []string `mapstructure:"cors"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// NATSConfig enables event publication when URL is set.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const envPrefix = "TASKFLOW"

// Options controls where Load looks. Empty fields use the process defaults.
type Options struct {
	File string // explicit config file; disables the search path
	Home string
	Cwd  string
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("database.driver", string(db.DriverSQLite))
	v.SetDefault("database.path", filepath.Join(home, ".taskflow", "taskflow.db"))
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.lock_timeout", db.DefaultLockTimeout)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors", []string{})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", auth.DefaultTokenTTL)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", events.DefaultSubjectPrefix)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("actor", "")
}

// Load merges, in increasing precedence: defaults, ~/.taskflow/taskflow.yaml,
// ./taskflow.yaml (or opts.File alone), a ./.env file, and the environment.
func Load(opts Options) (*Config, error) {
	home := opts.Home
	if home == "" {
		if h, err := os.UserHomeDir(); err == nil {
			home = h
		}
	}
	cwd := opts.Cwd
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, home)

	files := []string{
		filepath.Join(home, ".taskflow", "taskflow.yaml"),
		filepath.Join(cwd, "taskflow.yaml"),
	}
	if opts.File != "" {
		files = []string{opts.File}
	}
	for _, path := range files {
		if err := mergeFile(v, path, opts.File != ""); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeFile(v *viper.Viper, path string, required bool) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if required {
			return fmt.Errorf("config file not found: %s", path)
		}
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch db.Driver(c.Database.Driver) {
	case db.DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case db.DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database.driver: %s", c.Database.Driver)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// DB returns the storage configuration.
func (c *Config) DB() db.Config {
	return db.Config{
		Driver:      db.Driver(c.Database.Driver),
		Path:        c.Database.Path,
		DSN:         c.Database.DSN,
		LockTimeout: c.Database.LockTimeout,
	}
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unsupported log.level: %s", s)
}
