package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 5250, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.Equal(t, 500, cfg.BatchProcessing.MaxBatchSize)
	assert.Equal(t, 2*time.Second, cfg.BatchProcessing.RetryDelay)
	assert.Equal(t, time.Hour, cfg.Dataset.RefreshInterval)
	assert.Equal(t, 10, cfg.Analysis.TopN)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "ae", cfg.Geocoding.CountryCode)
	assert.Equal(t, time.Second, cfg.Geocoding.RequestDelay)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "SERVER_PORT=8080\nRECOMMENDATION_TOP_N=5\nREDIS_ADDR=localhost:6379\nCORS_ALLOW_ORIGINS=http://a.test,http://b.test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Cleanup(func() {
		for _, key := range []string{"SERVER_PORT", "RECOMMENDATION_TOP_N", "REDIS_ADDR", "CORS_ALLOW_ORIGINS"} {
			os.Unsetenv(key)
		}
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Analysis.TopN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowOrigins)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"Port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"Zero batch size", func(c *Config) { c.BatchProcessing.MaxBatchSize = 0 }},
		{"Negative retries", func(c *Config) { c.BatchProcessing.MaxRetries = -1 }},
		{"Zero max records", func(c *Config) { c.Analysis.MaxRecords = 0 }},
		{"Zero top n", func(c *Config) { c.Analysis.TopN = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.env"))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
