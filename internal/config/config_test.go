package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load("")

	assert.Equal(t, "development", cfg.App.ENV)
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "@tcp(localhost:3306)/matrimony")
	assert.Equal(t, 23*24*time.Hour, cfg.Reaper.NotifyAfter)
	assert.Equal(t, 30*24*time.Hour, cfg.Reaper.DeleteAfter)
	assert.Equal(t, time.Hour, cfg.Reaper.Interval)
	assert.Equal(t, 7*24*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, []string{"https://matrimony-sengunthar.netlify.app"}, cfg.HTTP.CORSOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("REAPER_INTERVAL", "5m")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("LOG_SOURCE", "yes")

	cfg := Load("")

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "port=5432")
	assert.Equal(t, 5*time.Minute, cfg.Reaper.Interval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.HTTP.CORSOrigins)
	assert.True(t, cfg.Log.Source)
}

func TestLoad_DatabaseURLWins(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/m")

	cfg := Load("")
	assert.Equal(t, "postgres://u:p@db:5432/m", cfg.DB.DSN)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_DRIVER=sqlite\nDB_NAME=dev\nJWT_SECRET=from-file\n"), 0o600))

	cfg := Load(path)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "dev.db", cfg.DB.DSN)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
}

func TestValidate(t *testing.T) {
	cfg := Load("")
	cfg.Reaper.NotifyAfter = cfg.Reaper.DeleteAfter
	assert.Error(t, cfg.Validate())

	cfg = Load("")
	cfg.Storage.Driver = "s3"
	assert.Error(t, cfg.Validate())

	cfg = Load("")
	cfg.App.ENV = "production"
	assert.Error(t, cfg.Validate())
}
