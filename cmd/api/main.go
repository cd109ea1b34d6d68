package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultgraph/internal/config"
	"vaultgraph/internal/handlers"
	"vaultgraph/internal/http"
	"vaultgraph/internal/indexer"
	"vaultgraph/internal/llm"
	"vaultgraph/internal/metrics"
	"vaultgraph/internal/query"
	"vaultgraph/internal/service"
	"vaultgraph/internal/storage"
	"vaultgraph/internal/vault"
	"vaultgraph/internal/vectorstore"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API indexes a markdown vault and serves lexical, semantic and hybrid
// search plus the vault's link graph.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: vaultgraph API
//   description: |
//     Local-first indexing and knowledge-graph API for a markdown vault.
//     Documents are segmented, optionally embedded, and kept in step with the
//     files on disk.
//   version: 1.0.0
// schemes:
//   - http
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := vault.CanonicalRoot(cfg.VaultRoot)
	if err != nil {
		log.Fatalf("Invalid VAULT_ROOT: %v", err)
	}

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	store := storage.NewStore(db)
	vaultManager := vault.NewManager(storage.NewVaultRepo(db))

	// Embeddings are optional; without them the index serves lexical search and links.
	var embedder llm.Embedder
	if cfg.EmbeddingsEnabled() {
		if cfg.EmbeddingAutoload {
			loader := llm.NewModelLoader(cfg.EmbeddingBaseURL)
			if err := loader.EnsureLoaded(ctx, cfg.EmbeddingModelName); err != nil {
				slog.Warn("Failed to load embedding model", "model", cfg.EmbeddingModelName, "error", err)
			}
		}
		client := llm.NewEmbeddingsClient(cfg.EmbeddingProvider, cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDim)
		embedder = client
		slog.Info("Embeddings enabled", "model", client.Identity().Key(), "dim", cfg.EmbeddingDim)
	} else {
		slog.Info("Embeddings disabled, semantic search will return no results")
	}
	embedders := llm.NewRegistry()
	if embedder != nil {
		embedders.Register(embedder)
	}

	// The Qdrant mirror needs vectors to mirror.
	var mirror *vectorstore.Mirror
	var collections handlers.CollectionChecker
	switch {
	case cfg.QdrantURL == "":
	case embedder == nil:
		slog.Warn("QDRANT_URL is set but embeddings are disabled, vector mirror not started")
	default:
		qdrantStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		defer func() {
			_ = qdrantStore.Close()
		}()
		if err := qdrantStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.EmbeddingDim); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		mirror = vectorstore.NewMirror(qdrantStore, cfg.QdrantCollection)
		collections = qdrantStore
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.EmbeddingDim)
	}

	segmenter := indexer.NewMarkdownSegmenter(cfg.ChunkMaxTokens, cfg.ChunkMinTokens)
	ix := indexer.NewIndexer(store, vaultManager, segmenter, embedder, mirror, cfg.IndexWorkers)
	engine := query.NewEngine(store, embedders, mirror)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	serviceMetrics := metrics.New(promRegistry)

	vaultService, err := service.NewVaultService(root, store, ix, engine, service.WithMetrics(serviceMetrics))
	if err != nil {
		log.Fatalf("Failed to create vault service: %v", err)
	}
	defer vaultService.Close()

	router := http.NewRouter(&http.Deps{
		VaultRoot:      root,
		VaultService:   vaultService,
		DB:             db,
		VectorStore:    collections,
		CollectionName: cfg.QdrantCollection,
		Metrics:        promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})

	// Bring the index up to date in the background.
	vaultService.StartReindex(ctx, false)

	if cfg.WatchVault {
		watcher, err := vault.NewWatcher(root, cfg.WatchDebounce, vaultService.HandleChanges)
		if err != nil {
			log.Fatalf("Failed to watch vault: %v", err)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("Vault watcher stopped", "error", err)
			}
		}()
	}

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", addr, "vault", root)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed to start: %v", err)
	}
	slog.Info("API server stopped")
}
