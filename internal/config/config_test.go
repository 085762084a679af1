package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", " secret ")
	t.Setenv("STORE_DRIVER", "Memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "8000", cfg.ServerPort)
	assert.Equal(t, 30*time.Minute, cfg.JWTAccessTTL)
	assert.Equal(t, 15*time.Minute, cfg.JWTSocialTTL)
	assert.Equal(t, 15*time.Minute, cfg.JWTResetTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
	assert.True(t, cfg.ResetExposeToken)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/auth.db")
	t.Setenv("JWT_ACCESS_TTL", "1h")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("FRONTEND_URL", "https://app.example.com/")
	t.Setenv("RESET_EXPOSE_TOKEN", "false")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.StoreDriver)
	assert.Equal(t, time.Hour, cfg.JWTAccessTTL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, "https://app.example.com", cfg.FrontendURL)
	assert.False(t, cfg.ResetExposeToken)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("JWT_ACCESS_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			ServerPort:      "8000",
			RequestTimeout:  time.Second,
			JWTSecret:       "secret",
			JWTAccessTTL:    time.Minute,
			JWTSocialTTL:    time.Minute,
			JWTResetTTL:     time.Minute,
			BcryptCost:      10,
			StoreDriver:     StorePostgres,
			DatabaseURL:     "postgres://localhost/auth",
			DBMaxConns:      4,
			DBMinConns:      1,
			FrontendURL:     "http://localhost:3000",
			ProviderTimeout: time.Second,
			LogFormat:       "json",
		}
	}

	base := valid()
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET_KEY"},
		{"postgres without url", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "STORE_DRIVER"},
		{"bcrypt cost too high", func(c *Config) { c.BcryptCost = 40 }, "BCRYPT_COST"},
		{"min conns above max", func(c *Config) { c.DBMinConns = 9 }, "DB_MIN_CONNS"},
		{"bad frontend url", func(c *Config) { c.FrontendURL = "not a url" }, "FRONTEND_URL"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"zero ttl", func(c *Config) { c.JWTResetTTL = 0 }, "TTL"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
