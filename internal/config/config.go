package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/scuola-sindacato/assistente/internal/core/domain"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/chunking"
	"github.com/scuola-sindacato/assistente/internal/infrastructure/resilience"
)

const (
	VectorBackendMemory   = "memory"
	VectorBackendQdrant   = "qdrant"
	VectorBackendPgvector = "pgvector"

	EmbedderHashing = "hashing"
	EmbedderOllama  = "ollama"
)

type Config struct {
	APIPort  string
	LogLevel string

	DocumentsPath      string
	LoadOnStartup      bool
	SeedEnabled        bool
	IngestAsync        bool
	SkipUnchanged      bool
	BackupPath         string
	LegacyTextFallback bool
	UploadMaxBytes     int64

	ChunkSize          int
	ChunkOverlap       int
	MinContentLength   int
	ChunkBoundaryRatio float64
	RAGTopK            int

	VectorBackend    string
	EmbedderBackend  string
	HashingDimension int

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	OllamaURL        string
	OllamaGenModel   string
	OllamaEmbedModel string

	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string

	RetryMaxAttempts      int
	RetryInitialBackoffMS int
	RetryMaxBackoffMS     int
	BreakerEnabled        bool
	BreakerMinRequests    int
	BreakerFailureRatio   float64
	BreakerOpenTimeoutSec int

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIMaxInFlight        int
	APIBackpressureWaitMS int
	APIRequestTimeoutSec  int

	WorkerMetricsPort    string
	WorkerTimeoutMinutes int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		DocumentsPath:      mustEnv("DOCUMENTS_PATH", "./documenti"),
		LoadOnStartup:      mustEnvBool("LOAD_ON_STARTUP", true),
		SeedEnabled:        mustEnvBool("SEED_ENABLED", true),
		IngestAsync:        mustEnvBool("INGEST_ASYNC", false),
		SkipUnchanged:      mustEnvBool("SKIP_UNCHANGED", false),
		BackupPath:         mustEnv("BACKUP_PATH", ""),
		LegacyTextFallback: mustEnvBool("LEGACY_TEXT_FALLBACK", true),
		UploadMaxBytes:     int64(mustEnvInt("UPLOAD_MAX_BYTES", 50<<20)),

		ChunkSize:          mustEnvInt("CHUNK_SIZE", chunking.DefaultChunkSize),
		ChunkOverlap:       mustEnvInt("CHUNK_OVERLAP", chunking.DefaultOverlap),
		MinContentLength:   mustEnvInt("MIN_CONTENT_LENGTH", chunking.DefaultMinContentLength),
		ChunkBoundaryRatio: mustEnvFloat("CHUNK_BOUNDARY_RATIO", chunking.DefaultBoundaryRatio),
		RAGTopK:            mustEnvInt("RAG_TOP_K", 5),

		VectorBackend:    strings.ToLower(mustEnv("VECTOR_BACKEND", VectorBackendMemory)),
		EmbedderBackend:  strings.ToLower(mustEnv("EMBEDDER", EmbedderHashing)),
		HashingDimension: mustEnvInt("HASHING_DIMENSION", 384),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "documents.ingest"),

		OllamaURL:        mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:   mustEnv("OLLAMA_GEN_MODEL", "llama3.2"),
		OllamaEmbedModel: mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		QdrantURL:        mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: mustEnv("QDRANT_COLLECTION", "school_docs"),
		QdrantAPIKey:     mustEnv("QDRANT_API_KEY", ""),

		RetryMaxAttempts:      mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS: mustEnvInt("RETRY_INITIAL_BACKOFF_MS", 200),
		RetryMaxBackoffMS:     mustEnvInt("RETRY_MAX_BACKOFF_MS", 2000),
		BreakerEnabled:        mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:    mustEnvInt("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio:   mustEnvFloat("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeoutSec: mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),

		APIRateLimitRPS:       mustEnvFloat("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst:     mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:        mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressureWaitMS: mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250),
		APIRequestTimeoutSec:  mustEnvInt("API_REQUEST_TIMEOUT_SECONDS", 120),

		WorkerMetricsPort:    mustEnv("WORKER_METRICS_PORT", "9090"),
		WorkerTimeoutMinutes: mustEnvInt("WORKER_TIMEOUT_MINUTES", 5),
	}
}

func (c Config) Chunking() chunking.Config {
	return chunking.Config{
		ChunkSize:        c.ChunkSize,
		Overlap:          c.ChunkOverlap,
		MinContentLength: c.MinContentLength,
		BoundaryRatio:    c.ChunkBoundaryRatio,
	}
}

func (c Config) Resilience() resilience.Config {
	return resilience.Config{
		MaxAttempts:         c.RetryMaxAttempts,
		InitialBackoff:      time.Duration(c.RetryInitialBackoffMS) * time.Millisecond,
		MaxBackoff:          time.Duration(c.RetryMaxBackoffMS) * time.Millisecond,
		Multiplier:          2,
		BreakerEnabled:      c.BreakerEnabled,
		BreakerMinRequests:  uint32(max(c.BreakerMinRequests, 0)),
		BreakerFailureRatio: c.BreakerFailureRatio,
		BreakerOpenTimeout:  time.Duration(c.BreakerOpenTimeoutSec) * time.Second,
	}
}

// Validate rejects combinations that would only fail later at first use.
func (c Config) Validate() error {
	if err := c.Chunking().Validate(); err != nil {
		return err
	}
	switch c.VectorBackend {
	case VectorBackendMemory, VectorBackendQdrant:
	case VectorBackendPgvector:
		if c.PostgresDSN == "" {
			return invalid("VECTOR_BACKEND=pgvector requires POSTGRES_DSN")
		}
	default:
		return invalid(fmt.Sprintf("unknown VECTOR_BACKEND %q", c.VectorBackend))
	}
	switch c.EmbedderBackend {
	case EmbedderHashing, EmbedderOllama:
	default:
		return invalid(fmt.Sprintf("unknown EMBEDDER %q", c.EmbedderBackend))
	}
	if c.IngestAsync && c.NATSURL == "" {
		return invalid("INGEST_ASYNC requires NATS_URL")
	}
	if c.SkipUnchanged && c.PostgresDSN == "" {
		return invalid("SKIP_UNCHANGED requires POSTGRES_DSN")
	}
	if c.RAGTopK < 1 {
		return invalid(fmt.Sprintf("RAG_TOP_K must be >= 1, got %d", c.RAGTopK))
	}
	return nil
}

func invalid(msg string) error {
	return domain.WrapError(domain.ErrConfiguration, "validate config", fmt.Errorf("%s", msg))
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return parsed
}
