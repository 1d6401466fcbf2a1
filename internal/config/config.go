package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort          = 8000
	DefaultOpenSkyURL    = "https://opensky-network.org/api/states/all"
	DefaultStatsInterval = 5 * time.Minute
)

// Config holds the application configuration
type Config struct {
	Port          int
	OpenSkyURL    string
	SnapshotTTL   time.Duration
	RedisAddr     string
	NATSURL       string
	DBConnStr     string
	StatsInterval time.Duration
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	port := DefaultPort
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		port = p
	}

	openSkyURL := os.Getenv("OPENSKY_URL")
	if openSkyURL == "" {
		openSkyURL = DefaultOpenSkyURL
	}

	ttl, err := duration("SNAPSHOT_TTL", 0)
	if err != nil {
		return nil, err
	}

	interval, err := duration("STATS_INTERVAL", DefaultStatsInterval)
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("STATS_INTERVAL must be positive, got %s", interval)
	}

	return &Config{
		Port:          port,
		OpenSkyURL:    openSkyURL,
		SnapshotTTL:   ttl,
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		NATSURL:       os.Getenv("NATS_URL"),
		DBConnStr:     os.Getenv("DB_CONN_STR"),
		StatsInterval: interval,
	}, nil
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, v)
	}
	return d, nil
}
