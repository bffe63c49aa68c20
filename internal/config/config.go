package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Auth     AuthConfig
	Sentry   SentryConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"15s"`
	SwaggerHost     string        `envconfig:"SWAGGER_HOST" default:""`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	// Timezone is the IANA zone whose calendar day bounds daily statistics.
	Timezone string `envconfig:"APP_TIMEZONE" default:"Asia/Karachi"`
	ResetDB  bool   `envconfig:"RESET_DB" default:"false"`
}

// DatabaseConfig holds MySQL connection settings.
type DatabaseConfig struct {
	Host        string        `envconfig:"DB_HOST" default:"localhost"`
	Port        int           `envconfig:"DB_PORT" default:"3306"`
	Name        string        `envconfig:"DB_NAME" default:"societyhub"`
	User        string        `envconfig:"DB_USER" default:"root"`
	Password    string        `envconfig:"DB_PASS" default:""`
	MaxOpen     int           `envconfig:"DB_MAX_OPEN" default:"20"`
	MaxIdle     int           `envconfig:"DB_MAX_IDLE" default:"5"`
	MaxLifetime time.Duration `envconfig:"DB_MAX_LIFETIME" default:"30m"`
}

// CacheConfig holds redis settings. An empty address selects the in-process
// change feed.
type CacheConfig struct {
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	FeedPrefix    string        `envconfig:"FEED_CHANNEL_PREFIX" default:"societyhub:feed:"`
	ViewTTL       time.Duration `envconfig:"VIEW_TTL" default:"10m"`
}

// StorageConfig selects and configures the media uploader.
type StorageConfig struct {
	Mode            string `envconfig:"STORAGE_MODE" default:"local"`
	GCSBucket       string `envconfig:"GCS_BUCKET" default:""`
	GCSPublicBase   string `envconfig:"GCS_PUBLIC_BASE_URL" default:""`
	GCSCredentials  string `envconfig:"GCS_CREDENTIALS_FILE" default:""`
	GCSEmulatorHost string `envconfig:"GCS_EMULATOR_HOST" default:""`
	LocalDir        string `envconfig:"MEDIA_DIR" default:"./data/media"`
	LocalPublicURL  string `envconfig:"MEDIA_PUBLIC_URL" default:"http://localhost:8080/media"`
}

// AuthConfig holds token verification and policy settings.
type AuthConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" default:"change-me"`
	// Policy overrides role grants, e.g. "guard:gate.entry|gate.exit".
	Policy map[string]string `envconfig:"AUTH_POLICY" default:""`
}

// SentryConfig holds error reporting settings. An empty DSN disables reporting.
type SentryConfig struct {
	DSN              string  `envconfig:"SENTRY_DSN" default:""`
	TracesSampleRate float64 `envconfig:"SENTRY_TRACES_SAMPLE_RATE" default:"0"`
}

// Address returns the listen address.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf(":%d", s.Port)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Location resolves Timezone.
func (a *AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from a .env file, when present, and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	switch cfg.Storage.Mode {
	case "local":
	case "gcs":
		if cfg.Storage.GCSBucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_MODE=gcs")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_MODE %q", cfg.Storage.Mode)
	}
	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
