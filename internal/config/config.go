package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type StoreDriver string

const (
	StorePostgres StoreDriver = "postgres"
	StoreSQLite   StoreDriver = "sqlite"
	StoreMemory   StoreDriver = "memory"
)

// Config is built once at startup and handed to constructors by value or
// pointer; nothing mutates it afterwards.
type Config struct {
	ServerPort              string        `env:"SERVER_PORT" envDefault:"8000"`
	ServerReadHeaderTimeout time.Duration `env:"SERVER_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ServerWriteTimeout      time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ServerIdleTimeout       time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout          time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	JWTSecret    string        `env:"JWT_SECRET_KEY"`
	JWTAccessTTL time.Duration `env:"JWT_ACCESS_TTL" envDefault:"30m"`
	JWTSocialTTL time.Duration `env:"JWT_SOCIAL_TTL" envDefault:"15m"`
	JWTResetTTL  time.Duration `env:"JWT_RESET_TTL" envDefault:"15m"`
	BcryptCost   int           `env:"BCRYPT_COST" envDefault:"12"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	StoreDriver StoreDriver `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string      `env:"DATABASE_URL"`
	DBMaxConns  int32       `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32       `env:"DB_MIN_CONNS" envDefault:"1"`
	SQLitePath  string      `env:"SQLITE_PATH" envDefault:"./users.db"`

	GoogleClientID    string        `env:"GOOGLE_CLIENT_ID"`
	FacebookAppID     string        `env:"FACEBOOK_APP_ID"`
	FrontendURL       string        `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	GoogleUserInfoURL string        `env:"GOOGLE_USERINFO_URL" envDefault:"https://www.googleapis.com/oauth2/v3/userinfo"`
	FacebookGraphURL  string        `env:"FACEBOOK_GRAPH_URL" envDefault:"https://graph.facebook.com/me"`

	ResetExposeToken bool `env:"RESET_EXPOSE_TOKEN" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"pretty"`

	OTelEndpoint    string `env:"OTEL_ENDPOINT"`
	OTelServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"go-verse-auth"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.StoreDriver = StoreDriver(strings.ToLower(strings.TrimSpace(string(c.StoreDriver))))
	c.FrontendURL = strings.TrimRight(strings.TrimSpace(c.FrontendURL), "/")

	origins := make([]string, 0, len(c.CORSOrigins))
	for _, origin := range c.CORSOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.CORSOrigins = origins
}

func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}

	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT cannot be empty"))
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}

	if c.JWTAccessTTL <= 0 || c.JWTSocialTTL <= 0 || c.JWTResetTTL <= 0 {
		errs = append(errs, errors.New("JWT TTLs must be positive"))
	}

	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	switch c.StoreDriver {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			errs = append(errs, errors.New("DB_MIN_CONNS and DB_MAX_CONNS are inconsistent"))
		}
	case StoreSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite store"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q is not one of postgres, sqlite, memory", c.StoreDriver))
	}

	if _, err := url.ParseRequestURI(c.FrontendURL); err != nil {
		errs = append(errs, fmt.Errorf("FRONTEND_URL is invalid: %w", err))
	}

	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}

	switch strings.ToLower(c.LogFormat) {
	case "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of pretty, json", c.LogFormat))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LOG_LEVEL onto slog; unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
