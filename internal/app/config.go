package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Config holds runtime configuration for the console.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8080/api/v1"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"20s"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionCookie string        `envconfig:"SESSION_COOKIE" default:"console_session"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	CacheBackend  string        `envconfig:"CACHE_BACKEND" default:"memory"`
	CacheListTTL  time.Duration `envconfig:"CACHE_LIST_TTL" default:"60s"`
	CachePointTTL time.Duration `envconfig:"CACHE_POINT_TTL" default:"1s"`

	FilterDebounce  time.Duration `envconfig:"FILTER_DEBOUNCE" default:"250ms"`
	DefaultPageSize int           `envconfig:"DEFAULT_PAGE_SIZE" default:"25"`

	ExportDir string `envconfig:"EXPORT_DIR" default:"./var/exports"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.SessionCookie == "" {
		return errors.New("session cookie name must be provided")
	}
	if c.CSRFSecret == "" {
		return errors.New("csrf secret must be provided")
	}
	if c.CacheBackend != CacheBackendMemory && c.CacheBackend != CacheBackendRedis {
		return errors.New("cache backend must be memory or redis")
	}
	if c.DefaultPageSize <= 0 || c.DefaultPageSize > 100 {
		return errors.New("default page size must be between 1 and 100")
	}
	if c.FilterDebounce < 0 {
		return errors.New("filter debounce must not be negative")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
