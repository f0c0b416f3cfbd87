package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bookshelf/internal/assets"
	"bookshelf/internal/database"
	"bookshelf/internal/logger"
	"bookshelf/internal/security"
	"bookshelf/pkg/rabbitmq"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Asset store backends.
const (
	BackendMinio  = "minio"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config holds all settings of the service.
type Config struct {
	AppPort        string
	AppEnv         string
	DBDriver       string
	DatabaseDSN    string
	JWTSecret      string
	TokenTTL       time.Duration
	UploadDir      string
	MaxUploadBytes int
	FrontendDomain string

	Log logger.Config

	AssetBackend string
	Assets       assets.RemoteConfig

	RabbitMQ rabbitmq.Config
}

// MessagingEnabled reports whether asset removals go through RabbitMQ.
func (c *Config) MessagingEnabled() bool {
	return c.RabbitMQ.URL != ""
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	return FromViper(newViper())
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_DRIVER", database.DriverPostgres)
	v.SetDefault("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=bookshelf port=5432 sslmode=disable")
	v.SetDefault("TOKEN_TTL", security.DefaultTokenTTL.String())
	v.SetDefault("UPLOAD_DIR", os.TempDir())
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ASSET_BACKEND", BackendMinio)
	v.SetDefault("ASSET_BUCKET", "bookshelf")
	v.SetDefault("ASSET_REGION", "us-east-1")
	v.SetDefault("ASSET_USE_SSL", false)
	v.SetDefault("ASSET_CLEANUP_QUEUE", rabbitmq.DefaultQueue)
	v.SetDefault("ASSET_CLEANUP_RETRY_DELAY", rabbitmq.DefaultRetryDelay.String())
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from v and validates it.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:        v.GetString("APP_PORT"),
		AppEnv:         v.GetString("APP_ENV"),
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		TokenTTL:       v.GetDuration("TOKEN_TTL"),
		UploadDir:      v.GetString("UPLOAD_DIR"),
		MaxUploadBytes: v.GetInt("MAX_UPLOAD_BYTES"),
		FrontendDomain: v.GetString("FRONTEND_DOMAIN"),
		Log: logger.Config{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		AssetBackend: strings.ToLower(v.GetString("ASSET_BACKEND")),
		Assets: assets.RemoteConfig{
			Endpoint:        v.GetString("ASSET_ENDPOINT"),
			AccessKeyID:     v.GetString("ASSET_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("ASSET_SECRET_ACCESS_KEY"),
			Bucket:          v.GetString("ASSET_BUCKET"),
			Region:          v.GetString("ASSET_REGION"),
			UseSSL:          v.GetBool("ASSET_USE_SSL"),
			PublicURL:       strings.TrimSuffix(v.GetString("ASSET_PUBLIC_URL"), "/"),
		},
		RabbitMQ: rabbitmq.Config{
			URL:        v.GetString("RABBITMQ_URL"),
			Queue:      v.GetString("ASSET_CLEANUP_QUEUE"),
			RetryDelay: v.GetDuration("ASSET_CLEANUP_RETRY_DELAY"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes))
	}

	switch c.DBDriver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}

	switch c.AssetBackend {
	case BackendMemory:
	case BackendMinio, BackendS3:
		if c.Assets.Endpoint == "" || c.Assets.AccessKeyID == "" || c.Assets.SecretAccessKey == "" || c.Assets.Bucket == "" {
			errs = append(errs, fmt.Errorf("ASSET_ENDPOINT, ASSET_ACCESS_KEY_ID, ASSET_SECRET_ACCESS_KEY and ASSET_BUCKET are required for the %s backend", c.AssetBackend))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported ASSET_BACKEND %q", c.AssetBackend))
	}

	if c.MessagingEnabled() && c.RabbitMQ.Queue == "" {
		errs = append(errs, errors.New("ASSET_CLEANUP_QUEUE must not be empty when RABBITMQ_URL is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
