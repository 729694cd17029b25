package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults for memory driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")
		t.Setenv("DB_DSN", "")
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("CACHE_TTL", "")
		t.Setenv("SWEEP_INTERVAL", "")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 30*time.Second, cfg.CacheTTL)
		assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	})

	t.Run("postgres requires dsn", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "postgres")
		t.Setenv("DB_DSN", "")

		_, err := Load()
		assert.ErrorContains(t, err, "DB_DSN")
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "memory")

		t.Setenv("SWEEP_INTERVAL", "often")
		_, err := Load()
		assert.ErrorContains(t, err, "SWEEP_INTERVAL")

		t.Setenv("SWEEP_INTERVAL", "1m")
		t.Setenv("RATE_LIMIT_RPS", "many")
		_, err = Load()
		assert.ErrorContains(t, err, "RATE_LIMIT_RPS")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		StorageDriver: StorageDriverPostgres,
		DBDSN:         "postgres://localhost/turnos",
		LogLevel:      "info",
		DBMaxConns:    10,
		SweepInterval: time.Minute,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.StorageDriver = "sqlite" }},
		{"bad log level", func(c *Config) { c.LogLevel = "trace" }},
		{"no connections", func(c *Config) { c.DBMaxConns = 0 }},
		{"minio without keys", func(c *Config) { c.MinioEndpoint = "localhost:9000" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
