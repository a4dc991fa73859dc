package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultsApplied() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := defaultsApplied()

	assert.Equal(t, "rfa-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "rfa", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenExpiration)
	assert.Equal(t, 168*time.Hour, cfg.JWT.RefreshTokenExpiration)
	assert.Equal(t, 10, cfg.JWT.MaxRefreshCount)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, int64(20<<20), cfg.Upload.MaxFileSize)
	assert.Contains(t, cfg.Upload.AllowedExtensions, ".csv")
	assert.Equal(t, 5, cfg.HTTP.AuthRateLimitRequests)
	// CORS origins must stay empty until explicitly configured
	assert.Empty(t, cfg.HTTP.CORSAllowOrigins)
}

func TestValidateConnectionPool(t *testing.T) {
	cfg := defaultsApplied()
	cfg.Database.MaxIdleConns = 50
	cfg.Database.MaxOpenConns = 10

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_idle_conns")
}

func TestValidateProduction(t *testing.T) {
	base := func() *Config {
		cfg := defaultsApplied()
		cfg.App.Env = "production"
		cfg.JWT.Secret = strings.Repeat("s", 32)
		cfg.Database.Password = "secret"
		cfg.Database.SSLMode = "require"
		return cfg
	}

	require.NoError(t, base().validate())

	short := base()
	short.JWT.Secret = "short"
	assert.Error(t, short.validate())

	noPass := base()
	noPass.Database.Password = ""
	assert.Error(t, noPass.validate())

	noSSL := base()
	noSSL.Database.SSLMode = "disable"
	assert.Error(t, noSSL.validate())

	wildcard := base()
	wildcard.HTTP.CORSAllowOrigins = []string{"*"}
	assert.Error(t, wildcard.validate())
}

func TestValidateSamplingRatio(t *testing.T) {
	cfg := defaultsApplied()
	cfg.Telemetry.SamplingRatio = 1.5
	assert.Error(t, cfg.validate())
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "rfa",
		Password: "p@ss/word",
		DBName:   "rfa",
		SSLMode:  "require",
	}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// special characters in the password must be escaped
	assert.NotContains(t, dsn, "p@ss/word")
}
