// Package config handles the XDG configuration directory and runtime settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// AppName is the application directory name.
	AppName = "taskify"

	// EnvPrefix prefixes every environment override (TASKIFY_BACKEND_URL, ...).
	EnvPrefix = "TASKIFY"

	// ConfigFile is the optional settings file inside the config directory.
	ConfigFile = "config.yaml"

	// DefaultBackendURL matches the backend's local development port.
	DefaultBackendURL = "http://localhost:7000"

	// DefaultLinkBaseURL is where emailed links are redirected when no
	// local link server is running.
	DefaultLinkBaseURL = "http://localhost:8085"

	// DefaultSearchDebounce is the quiescence window for interactive search.
	DefaultSearchDebounce = 300 * time.Millisecond

	// DefaultPageSize is the initial listing window; "load more" grows it by the same step.
	DefaultPageSize = 5

	// DefaultRequestTimeout bounds a single backend round trip.
	DefaultRequestTimeout = 10 * time.Second
)

// State backends.
const (
	StateBackendFile  = "file"
	StateBackendRedis = "redis"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool

	BackendURL     string
	LinkBaseURL    string
	StateBackend   string
	RedisAddr      string
	RedisDB        int
	SearchDebounce time.Duration
	PageSize       int
	RequestTimeout time.Duration
	Format         string
}

// New creates a Config with defaults for the given (or default) directory.
// It does not read the environment; use Load for that.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{
		Dir:            dir,
		BackendURL:     DefaultBackendURL,
		LinkBaseURL:    DefaultLinkBaseURL,
		StateBackend:   StateBackendFile,
		SearchDebounce: DefaultSearchDebounce,
		PageSize:       DefaultPageSize,
		RequestTimeout: DefaultRequestTimeout,
		Format:         FormatText,
	}, nil
}

// Load builds a Config from defaults, an optional .env file in the working
// directory, config.yaml in the config directory, and TASKIFY_* variables.
func Load(configDir string) (*Config, error) {
	// .env is a development convenience; a missing file is fine.
	_ = godotenv.Load()

	cfg, err := New(configDir)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("backend_url", cfg.BackendURL)
	v.SetDefault("link_base_url", cfg.LinkBaseURL)
	v.SetDefault("state_backend", cfg.StateBackend)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("search_debounce", cfg.SearchDebounce)
	v.SetDefault("page_size", cfg.PageSize)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("format", cfg.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	path := filepath.Join(cfg.Dir, ConfigFile)
	if _, statErr := os.Stat(path); statErr == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", ConfigFile, err)
		}
	}

	cfg.BackendURL = strings.TrimRight(v.GetString("backend_url"), "/")
	cfg.LinkBaseURL = strings.TrimRight(v.GetString("link_base_url"), "/")
	cfg.StateBackend = v.GetString("state_backend")
	cfg.RedisAddr = v.GetString("redis_addr")
	cfg.RedisDB = v.GetInt("redis_db")
	cfg.SearchDebounce = v.GetDuration("search_debounce")
	cfg.PageSize = v.GetInt("page_size")
	cfg.RequestTimeout = v.GetDuration("request_timeout")
	cfg.Format = v.GetString("format")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend_url must be an absolute URL: %q", c.BackendURL)
	}
	switch c.StateBackend {
	case StateBackendFile:
	case StateBackendRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required when state_backend is redis")
		}
	default:
		return fmt.Errorf("unknown state_backend: %s", c.StateBackend)
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return fmt.Errorf("unknown format: %s", c.Format)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be positive: %d", c.PageSize)
	}
	if c.SearchDebounce < 0 {
		return fmt.Errorf("search_debounce must not be negative: %s", c.SearchDebounce)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive: %s", c.RequestTimeout)
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
