package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// StorageBackend selects "file" or "minio".
	StorageBackend string
	StoragePath    string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Engine tuning.
	JobIdleInterval time.Duration
	FailedRetention time.Duration
	SweepSpec       string

	// Transport tuning.
	RequestTimeout    time.Duration
	RequestsPerSecond float64

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		StorageBackend:    getEnv("STORAGE_BACKEND", "file"),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		MinioEndpoint:     os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:    os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:    os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:       getEnv("MINIO_BUCKET", "mediaforge"),
		MinioUseSSL:       getEnvBool("MINIO_USE_SSL", false),
		JobIdleInterval:   time.Second * time.Duration(getEnvInt("JOB_IDLE_INTERVAL_SECONDS", 2)),
		FailedRetention:   time.Minute * time.Duration(getEnvInt("FAILED_RETENTION_MINUTES", 5)),
		SweepSpec:         getEnv("SWEEP_SPEC", "@every 60s"),
		RequestTimeout:    time.Second * time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 60)),
		RequestsPerSecond: getEnvFloat("REQUESTS_PER_SECOND", 5),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.StorageBackend != "file" && cfg.StorageBackend != "minio" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be file or minio, got %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "minio" && cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required with the minio backend")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
