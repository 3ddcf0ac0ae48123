package config

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, DriverMySQL, cfg.StoreDriver)
	assert.Equal(t, "health", cfg.MongoDatabase)
	assert.Contains(t, cfg.DatabaseDSN, "parseTime=true")
	assert.False(t, cfg.IsProduction())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_ShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.NoError(t, err, "short secrets are tolerated outside production")

	t.Setenv("ENV", "production")
	_, err = Load()
	require.ErrorIs(t, err, ErrWeakSecret)
}

func TestLoad_UnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := Load()
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestLoad_ForcesParseTime(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("DATABASE_DSN", "app:secret@tcp(db:3306)/docassist")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.DatabaseDSN, "parseTime=true")
	assert.Contains(t, cfg.DatabaseDSN, "tcp(db:3306)/docassist")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("DATABASE_DSN", "not a dsn")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_SQLiteSkipsDSNNormalization(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file:docassist.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "file:docassist.db", cfg.DatabaseDSN)
}
