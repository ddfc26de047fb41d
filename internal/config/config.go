package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported persistence backends for the route cache.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds every setting of the service, resolved from the environment.
type Config struct {
	Port string

	ORSAPIKey  string
	ORSBaseURL string
	ORSProfile string

	CacheBackend   string
	DBPath         string
	DatabaseURL    string
	RedisURL       string
	CacheNamespace string
	RouteCacheTTL  time.Duration

	DirectionsTimeout time.Duration
	LegConcurrency    int
	FallbackSpeedMPH  float64

	RabbitMQURL string
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadDotEnv loads a .env file when present; missing files are not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

// Load resolves the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           Get("PORT", "8080"),
		ORSAPIKey:      strings.TrimSpace(os.Getenv("ORS_API_KEY")),
		ORSBaseURL:     Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSProfile:     Get("ORS_PROFILE", "driving-hgv"),
		CacheBackend:   strings.ToLower(Get("CACHE_BACKEND", BackendSQLite)),
		DBPath:         Get("DB_PATH", "data/app.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		CacheNamespace: Get("CACHE_NAMESPACE", "route-cache"),
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
	}

	var err error
	if cfg.RouteCacheTTL, err = duration("ROUTE_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DirectionsTimeout, err = duration("DIRECTIONS_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	concurrency, err := strconv.Atoi(Get("LEG_CONCURRENCY", "4"))
	if err != nil || concurrency < 1 {
		return nil, fmt.Errorf("load config: LEG_CONCURRENCY must be a positive integer")
	}
	cfg.LegConcurrency = concurrency

	speed, err := strconv.ParseFloat(Get("FALLBACK_SPEED_MPH", "50"), 64)
	if err != nil || speed <= 0 {
		return nil, fmt.Errorf("load config: FALLBACK_SPEED_MPH must be a positive number")
	}
	cfg.FallbackSpeedMPH = speed

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case BackendSQLite, BackendMemory:
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("load config: DATABASE_URL is required for the postgres cache backend")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return errors.New("load config: REDIS_URL is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("load config: unknown CACHE_BACKEND %q", c.CacheBackend)
	}

	return nil
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("load config: %s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}
