package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/store"
)

// Store backends.
const (
	BackendBadger    = "badger"
	BackendPostgres  = "postgres"
	BackendPathstore = "pathstore"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Chunk bounds, in estimated tokens
	MinTokens int
	MaxTokens int

	// Index backend
	StoreBackend      string
	BadgerPath        string
	DatabaseURL       string
	PathstoreURL      string
	PathstoreAPIKey   string
	DefaultCollection string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentStore int
	StoreBatchSize     int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Index write latency window
	StatsWindow time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("STATCHUNK_API_KEY"),

		MinTokens: envInt("MIN_TOKENS", chunker.DefaultConfig().MinTokens),
		MaxTokens: envInt("MAX_TOKENS", chunker.DefaultConfig().MaxTokens),

		StoreBackend:      envOr("STORE_BACKEND", BackendBadger),
		BadgerPath:        envOr("BADGER_PATH", "./data/index"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		PathstoreURL:      envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey:   os.Getenv("PATHSTORE_API_KEY"),
		DefaultCollection: envOr("DEFAULT_COLLECTION", "statutes"),

		WorkerCount:        envInt("WORKER_COUNT", 4),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentStore: envInt("MAX_CONCURRENT_STORE", 4),
		StoreBatchSize:     envInt("STORE_BATCH_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL:      envDuration("JOB_TTL", 1*time.Hour),
		StatsWindow: envDuration("STATS_WINDOW", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 4
	}
	if cfg.StoreBatchSize <= 0 {
		cfg.StoreBatchSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Chunker returns the builder bounds.
func (c Config) Chunker() chunker.Config {
	return chunker.Config{MinTokens: c.MinTokens, MaxTokens: c.MaxTokens}
}

// Validate checks everything the CLI and the server both need.
func (c Config) Validate() error {
	if err := c.Chunker().Validate(); err != nil {
		return err
	}
	if err := store.ValidateName("DEFAULT_COLLECTION", c.DefaultCollection); err != nil {
		return err
	}
	switch c.StoreBackend {
	case BackendBadger:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendPathstore:
		if c.PathstoreAPIKey == "" {
			return errors.New("PATHSTORE_API_KEY is required for the pathstore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

// ValidateServer adds the checks only the HTTP service needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return errors.New("STATCHUNK_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
