package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Documents     DocumentsConfig
	Selection     SelectionConfig
	Embedding     EmbeddingConfig
	Retrieval     RetrievalConfig
	Server        ServerConfig
	Backfill      BackfillConfig
	Observability ObservabilityConfig
}

// DocumentsConfig selects the document store.
type DocumentsConfig struct {
	Store string // inmemory, sqlite, postgres, mysql, mssql or pgvector
	DSN   string
}

// SelectionConfig selects the selection store.
type SelectionConfig struct {
	Store    string // inmemory, sqlite, postgres, mysql, mssql, redis, mongo or neo4j
	DSN      string
	Username string
	Password string
	DBName   string
}

// EmbeddingConfig holds embedding provider configuration
type EmbeddingConfig struct {
	Provider string // openai or fake
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
	MaxRunes int
}

// RetrievalConfig selects the ranker.
type RetrievalConfig struct {
	Ranker           string // exact, pgvector or qdrant
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	JWTSecret       string
	IdentityHeader  string
	CORSOrigins     []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// BackfillConfig holds batch embedding configuration
type BackfillConfig struct {
	Concurrency   int
	RatePerSecond float64 // 0 means unlimited
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// Load reads .env when present, then the environment, and validates the
// result.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Documents: DocumentsConfig{
			Store: getEnv("DOCUMENT_STORE", "sqlite"),
			DSN:   getEnv("DOCUMENT_DSN", "docscope.db"),
		},
		Selection: SelectionConfig{
			Store:    getEnv("SELECTION_STORE", "sqlite"),
			DSN:      getEnv("SELECTION_DSN", "docscope.db"),
			Username: getEnv("SELECTION_USERNAME", ""),
			Password: getEnv("SELECTION_PASSWORD", ""),
			DBName:   getEnv("SELECTION_DB", ""),
		},
		Embedding: EmbeddingConfig{
			Provider: getEnv("EMBEDDING_PROVIDER", "openai"),
			APIKey:   getEnv("OPENAI_API_KEY", ""),
			BaseURL:  getEnv("OPENAI_BASE_URL", ""),
			Model:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Timeout:  getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
			MaxRunes: getEnvAsInt("EMBEDDING_MAX_RUNES", 2048),
		},
		Retrieval: RetrievalConfig{
			Ranker:           getEnv("RANKER", "exact"),
			QdrantHost:       getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:       getEnvAsInt("QDRANT_PORT", 6334),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "documents"),
		},
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8080"),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			IdentityHeader:  getEnv("IDENTITY_HEADER", "X-User-ID"),
			CORSOrigins:     getEnvAsList("CORS_ALLOWED_ORIGINS"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Backfill: BackfillConfig{
			Concurrency:   getEnvAsInt("BACKFILL_CONCURRENCY", 4),
			RatePerSecond: getEnvAsFloat("BACKFILL_RATE", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that every setting names a supported backend and that
// the settings it depends on are present.
func (c *Config) Validate() error {
	switch c.Documents.Store {
	case "inmemory":
	case "sqlite", "postgres", "mysql", "mssql", "pgvector":
		if c.Documents.DSN == "" {
			return fmt.Errorf("DOCUMENT_DSN is required for document store %q", c.Documents.Store)
		}
	default:
		return fmt.Errorf("unsupported document store: %q", c.Documents.Store)
	}

	switch c.Selection.Store {
	case "inmemory":
	case "sqlite", "postgres", "mysql", "mssql", "redis", "mongo", "neo4j":
		if c.Selection.DSN == "" {
			return fmt.Errorf("SELECTION_DSN is required for selection store %q", c.Selection.Store)
		}
	default:
		return fmt.Errorf("unsupported selection store: %q", c.Selection.Store)
	}

	switch c.Embedding.Provider {
	case "fake":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}
	if c.Embedding.MaxRunes <= 0 {
		return fmt.Errorf("EMBEDDING_MAX_RUNES must be positive")
	}

	switch c.Retrieval.Ranker {
	case "exact":
	case "pgvector":
		if c.Documents.Store != "pgvector" {
			return fmt.Errorf("the pgvector ranker requires DOCUMENT_STORE=pgvector")
		}
	case "qdrant":
		if c.Retrieval.QdrantHost == "" || c.Retrieval.QdrantCollection == "" {
			return fmt.Errorf("QDRANT_HOST and QDRANT_COLLECTION are required for the qdrant ranker")
		}
	default:
		return fmt.Errorf("unsupported ranker: %q", c.Retrieval.Ranker)
	}

	if c.Backfill.Concurrency <= 0 {
		return fmt.Errorf("BACKFILL_CONCURRENCY must be positive")
	}
	if c.Backfill.RatePerSecond < 0 {
		return fmt.Errorf("BACKFILL_RATE must not be negative")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping blank entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
