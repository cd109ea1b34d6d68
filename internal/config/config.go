package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	VaultRoot string
	DBPath    string
	APIPort   string

	LogLevel  slog.Level
	LogFormat string

	EmbeddingProvider  string
	EmbeddingBaseURL   string
	EmbeddingModelName string
	EmbeddingAPIKey    string
	EmbeddingDim       int
	// EmbeddingAutoload asks a llama.cpp router to load the model at startup.
	EmbeddingAutoload bool

	QdrantURL        string
	QdrantCollection string

	IndexWorkers   int
	ChunkMaxTokens int
	ChunkMinTokens int

	WatchVault    bool
	WatchDebounce time.Duration
}

// EmbeddingsEnabled reports whether an embedding provider is configured.
func (c *Config) EmbeddingsEnabled() bool {
	return c.EmbeddingBaseURL != ""
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or a parent directory, it is loaded first.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	return load(true)
}

// LoadCLI is Load without the VAULT_ROOT requirement; the CLI takes the vault as a flag.
func LoadCLI() (*Config, error) {
	return load(false)
}

func load(requireVault bool) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		VaultRoot:          getEnv("VAULT_ROOT", ""),
		DBPath:             getEnv("DB_PATH", "./data/vaultgraph.db"),
		APIPort:            getEnv("API_PORT", "9000"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
		EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", ""),
		EmbeddingModelName: getEnv("EMBEDDING_MODEL_NAME", ""),
		EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
		QdrantURL:          getEnv("QDRANT_URL", ""),
		QdrantCollection:   getEnv("QDRANT_COLLECTION", "vault_segments"),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}

	if cfg.IndexWorkers, err = getEnvInt("INDEX_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.ChunkMaxTokens, err = getEnvInt("CHUNK_MAX_TOKENS", 512); err != nil {
		return nil, err
	}
	if cfg.ChunkMinTokens, err = getEnvInt("CHUNK_MIN_TOKENS", 64); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDim, err = getEnvInt("EMBEDDING_DIM", 0); err != nil {
		return nil, err
	}
	debounceMs, err := getEnvInt("WATCH_DEBOUNCE_MS", 750)
	if err != nil {
		return nil, err
	}
	cfg.WatchDebounce = time.Duration(debounceMs) * time.Millisecond

	watch, err := strconv.ParseBool(getEnv("WATCH_VAULT", "false"))
	if err != nil {
		return nil, fmt.Errorf("WATCH_VAULT must be a boolean: %w", err)
	}
	cfg.WatchVault = watch

	autoload, err := strconv.ParseBool(getEnv("EMBEDDING_AUTOLOAD", "false"))
	if err != nil {
		return nil, fmt.Errorf("EMBEDDING_AUTOLOAD must be a boolean: %w", err)
	}
	cfg.EmbeddingAutoload = autoload

	// Validate required fields
	if requireVault && cfg.VaultRoot == "" {
		return nil, fmt.Errorf("VAULT_ROOT is required")
	}
	if cfg.IndexWorkers <= 0 {
		return nil, fmt.Errorf("INDEX_WORKERS must be greater than 0")
	}
	if cfg.ChunkMaxTokens <= 0 || cfg.ChunkMinTokens < 0 || cfg.ChunkMinTokens > cfg.ChunkMaxTokens {
		return nil, fmt.Errorf("chunk token budgets are invalid: min=%d max=%d", cfg.ChunkMinTokens, cfg.ChunkMaxTokens)
	}

	// Embedding dimension must match the output vector size of the embeddings model.
	// Changing it marks every document stale on the next reindex.
	if cfg.EmbeddingsEnabled() {
		if cfg.EmbeddingModelName == "" {
			return nil, fmt.Errorf("EMBEDDING_MODEL_NAME is required when EMBEDDING_BASE_URL is set")
		}
		if cfg.EmbeddingDim <= 0 {
			return nil, fmt.Errorf("EMBEDDING_DIM must be greater than 0 when EMBEDDING_BASE_URL is set")
		}
	}

	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	return level, nil
}
