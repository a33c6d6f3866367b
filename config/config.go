package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Server struct {
		Port         int      `env:"SERVER_PORT" envDefault:"5250"`
		AllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
		GinMode      string   `env:"GIN_MODE" envDefault:"release"`
	}

	Database struct {
		Path string `env:"DATABASE_PATH" envDefault:"database/smartbuy.db"`
	}

	BatchProcessing struct {
		// Maximum number of transactions per upsert batch
		MaxBatchSize int `env:"BATCH_MAX_SIZE" envDefault:"500"`

		// Number of batches the import queue can hold
		QueueBuffer int `env:"BATCH_QUEUE_BUFFER" envDefault:"8"`

		// Maximum number of retries for failed batches
		MaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries
		RetryDelay time.Duration `env:"BATCH_RETRY_DELAY" envDefault:"2s"`
	}

	Dataset struct {
		// How often the in-memory snapshot is reloaded; zero disables it
		RefreshInterval time.Duration `env:"DATASET_REFRESH_INTERVAL" envDefault:"1h"`
	}

	Analysis struct {
		// Selections larger than this are rejected
		MaxRecords int `env:"ANALYSIS_MAX_RECORDS" envDefault:"200000"`

		// Areas listed per recommendation bucket
		TopN int `env:"RECOMMENDATION_TOP_N" envDefault:"10"`

		// Concurrent per-area pattern computations
		Workers int `env:"ANALYSIS_WORKERS" envDefault:"4"`
	}

	Geocoding struct {
		Endpoint    string `env:"GEOCODER_ENDPOINT" envDefault:"https://nominatim.openstreetmap.org/search"`
		CacheDir    string `env:"GEOCODER_CACHE_DIR" envDefault:"database/geocode_cache"`
		Region      string `env:"GEOCODER_REGION" envDefault:"Dubai, United Arab Emirates"`
		CountryCode string `env:"GEOCODER_COUNTRY_CODE" envDefault:"ae"`

		// Nominatim allows one request per second
		RequestDelay time.Duration `env:"GEOCODER_REQUEST_DELAY" envDefault:"1s"`
	}

	Redis struct {
		// Empty disables the result cache
		Addr     string        `env:"REDIS_ADDR"`
		Password string        `env:"REDIS_PASSWORD"`
		DB       int           `env:"REDIS_DB" envDefault:"0"`
		TTL      time.Duration `env:"REDIS_TTL" envDefault:"10m"`
	}
}

// LoadConfig reads the given .env files (if present) and then the process
// environment. Variables already set in the environment win.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	case c.BatchProcessing.MaxBatchSize <= 0:
		return fmt.Errorf("BATCH_MAX_SIZE must be positive")
	case c.BatchProcessing.MaxRetries < 0:
		return fmt.Errorf("BATCH_MAX_RETRIES must not be negative")
	case c.Analysis.MaxRecords <= 0:
		return fmt.Errorf("ANALYSIS_MAX_RECORDS must be positive")
	case c.Analysis.TopN <= 0:
		return fmt.Errorf("RECOMMENDATION_TOP_N must be positive")
	}
	return nil
}
