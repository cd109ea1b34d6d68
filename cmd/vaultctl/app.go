package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"vaultgraph/internal/config"
	"vaultgraph/internal/indexer"
	"vaultgraph/internal/llm"
	"vaultgraph/internal/query"
	"vaultgraph/internal/service"
	"vaultgraph/internal/storage"
	"vaultgraph/internal/vault"
)

// app is the index stack opened by one CLI invocation. The CLI never starts
// the Qdrant mirror; similarity search reads vectors from SQLite.
type app struct {
	db      *sql.DB
	root    string
	indexer *indexer.Indexer
	service service.VaultService
	// provider and model name the configured embedding space; blank when
	// embeddings are disabled.
	provider string
	model    string
}

func openApp(vaultFlag string) (*app, error) {
	cfg, err := config.LoadCLI()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	rootDir := vaultFlag
	if rootDir == "" {
		rootDir = cfg.VaultRoot
	}
	if rootDir == "" {
		return nil, fmt.Errorf("--vault or VAULT_ROOT is required")
	}
	root, err := vault.CanonicalRoot(rootDir)
	if err != nil {
		return nil, err
	}

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store := storage.NewStore(db)
	var embedder llm.Embedder
	if cfg.EmbeddingsEnabled() {
		embedder = llm.NewEmbeddingsClient(cfg.EmbeddingProvider, cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDim)
	}
	registry := llm.NewRegistry()
	if embedder != nil {
		registry.Register(embedder)
	}

	segmenter := indexer.NewMarkdownSegmenter(cfg.ChunkMaxTokens, cfg.ChunkMinTokens)
	ix := indexer.NewIndexer(store, vault.NewManager(storage.NewVaultRepo(db)), segmenter, embedder, nil, cfg.IndexWorkers)
	svc, err := service.NewVaultService(root, store, ix, query.NewEngine(store, registry, nil))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{db: db, root: root, indexer: ix, service: svc}
	if embedder != nil {
		a.provider, a.model = cfg.EmbeddingProvider, cfg.EmbeddingModelName
	}
	return a, nil
}

func (a *app) Close() {
	a.service.Close()
	_ = a.db.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
