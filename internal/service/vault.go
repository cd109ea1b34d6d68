package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vault_service.go -package=mocks -mock_names=VaultService=MockVaultService vaultgraph/internal/service VaultService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"vaultgraph/internal/contextutil"
	"vaultgraph/internal/graph"
	"vaultgraph/internal/indexer"
	"vaultgraph/internal/metrics"
	"vaultgraph/internal/query"
	"vaultgraph/internal/storage"
	"vaultgraph/internal/vault"
)

// watchBatchLimit is the largest change batch handled file by file. Larger
// batches run a full pass, which also catches renames of whole folders.
const watchBatchLimit = 16

// Indexer is the part of the indexing pipeline the service drives.
type Indexer interface {
	Reindex(ctx context.Context, vaultRoot string, forceFull bool) (*indexer.IndexReport, error)
	IndexFile(ctx context.Context, vaultRoot, relPath string) (*indexer.DocumentResult, error)
	CoverageStats(ctx context.Context, vaultRoot string) (*indexer.CoverageStats, error)
}

// Backlink is one incoming link of a document.
type Backlink struct {
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
	Anchor     string `json:"anchor,omitempty"`
	Alias      string `json:"alias,omitempty"`
	IsEmbed    bool   `json:"is_embed"`
	IsWiki     bool   `json:"is_wiki"`
}

// ReindexStatus reports what a reindex request did.
type ReindexStatus struct {
	// Started is false when the request joined a pass already running.
	Started bool
	Force   bool
}

// VaultService provides search, graph and indexing operations for one vault.
type VaultService interface {
	// Search runs a query request. An empty workspace path means the service's vault.
	Search(ctx context.Context, req query.SearchRequest) ([]query.SearchResult, error)
	// Lexical runs a full-text search with snippets.
	Lexical(ctx context.Context, q string, limit int) ([]query.Hit, error)
	// Graph returns the link graph prepared for rendering.
	Graph(ctx context.Context) (graph.RenderPlan, error)
	// Backlinks lists the links that resolve to relPath.
	Backlinks(ctx context.Context, relPath string) ([]Backlink, error)
	// StartReindex runs a pass in the background. Requests arriving while a
	// pass is running join it.
	StartReindex(ctx context.Context, force bool) ReindexStatus
	// LastReport returns the report of the most recent finished pass, or nil.
	LastReport() *indexer.IndexReport
	// Stats returns index coverage statistics.
	Stats(ctx context.Context) (*indexer.CoverageStats, error)
	// HandleChanges brings changed files up to date after a watcher batch.
	HandleChanges(ctx context.Context, relPaths []string)
	// Close aborts a running pass and waits for it to stop.
	Close()
}

// vaultService implements VaultService.
type vaultService struct {
	root    string
	store   storage.IndexStore
	indexer Indexer
	engine  query.Engine
	metrics *metrics.Metrics
	logger  *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	last    *indexer.IndexReport
}

// Option configures a VaultService.
type Option func(*vaultService)

// WithMetrics records passes, searches and watcher batches in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *vaultService) {
		s.metrics = m
	}
}

// NewVaultService creates a VaultService bound to root.
func NewVaultService(root string, store storage.IndexStore, ix Indexer, engine query.Engine, opts ...Option) (VaultService, error) {
	canonical, err := vault.CanonicalRoot(root)
	if err != nil {
		return nil, &ValidationError{Field: "root", Message: err.Error()}
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &vaultService{
		root:    canonical,
		store:   store,
		indexer: ix,
		engine:  engine,
		logger:  slog.Default(),
		baseCtx: baseCtx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// getLogger extracts logger from context or returns default logger.
func (s *vaultService) getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok {
		return l
	}
	return s.logger
}

// Search validates and runs a query request.
func (s *vaultService) Search(ctx context.Context, req query.SearchRequest) ([]query.SearchResult, error) {
	logger := s.getLogger(ctx)

	if strings.TrimSpace(req.Query) == "" {
		logger.WarnContext(ctx, "empty query in search request")
		return nil, &ValidationError{Field: "query", Message: "cannot be empty"}
	}
	if req.Limit < 0 {
		return nil, &ValidationError{Field: "limit", Message: "must not be negative"}
	}
	if req.WorkspacePath == "" {
		req.WorkspacePath = s.root
	}

	mode := req.Mode
	if mode == "" {
		mode = query.ModeSemantic
	}
	start := time.Now()
	results, err := s.engine.Search(ctx, req)
	s.metrics.ObserveSearch(string(mode), time.Since(start), err)
	if errors.Is(err, query.ErrUnknownMode) {
		return nil, &ValidationError{Field: "mode", Message: err.Error()}
	}
	if err != nil {
		logger.ErrorContext(ctx, "search failed", "error", err)
		return nil, WrapError(err, "failed to search")
	}

	logger.InfoContext(ctx, "search processed", "mode", req.Mode, "query_length", len(req.Query), "results", len(results))
	return results, nil
}

// Lexical runs a full-text search over the service's vault.
func (s *vaultService) Lexical(ctx context.Context, q string, limit int) ([]query.Hit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, &ValidationError{Field: "q", Message: "cannot be empty"}
	}
	if limit <= 0 {
		limit = query.DefaultLimit
	}
	if limit > query.MaxLimit {
		limit = query.MaxLimit
	}

	start := time.Now()
	hits, err := s.engine.Lexical(ctx, s.root, q, limit)
	s.metrics.ObserveSearch(string(query.ModeLexical), time.Since(start), err)
	if err != nil {
		s.getLogger(ctx).ErrorContext(ctx, "lexical search failed", "error", err)
		return nil, WrapError(err, "failed to search")
	}
	return hits, nil
}

// Graph builds the rendering plan for the vault's link graph.
func (s *vaultService) Graph(ctx context.Context) (graph.RenderPlan, error) {
	v, err := s.findVault(ctx)
	if err != nil {
		return graph.RenderPlan{}, err
	}
	data, err := graph.BuildSnapshot(ctx, s.store, v.ID)
	if err != nil {
		return graph.RenderPlan{}, WrapError(err, "failed to build graph")
	}
	plan := graph.Plan(data)

	s.getLogger(ctx).DebugContext(ctx, "graph built",
		"nodes", len(plan.View.Nodes),
		"edges", plan.TotalEdges,
		"degraded", plan.Profile.IsDegraded,
	)
	return plan, nil
}

// Backlinks lists incoming links of one document.
func (s *vaultService) Backlinks(ctx context.Context, relPath string) ([]Backlink, error) {
	relPath = strings.TrimSpace(relPath)
	if relPath == "" {
		return nil, &ValidationError{Field: "path", Message: "cannot be empty"}
	}
	v, err := s.findVault(ctx)
	if err != nil {
		return nil, err
	}

	found, err := s.store.Backlinks(ctx, v.ID, relPath)
	if err != nil {
		return nil, WrapError(err, "failed to list backlinks")
	}
	out := make([]Backlink, 0, len(found))
	for _, l := range found {
		out = append(out, Backlink{
			SourcePath: l.SourcePath,
			TargetPath: l.TargetPath,
			Anchor:     l.TargetAnchor,
			Alias:      l.Alias,
			IsEmbed:    l.IsEmbed,
			IsWiki:     l.IsWiki,
		})
	}
	return out, nil
}

// Stats returns coverage statistics for the vault.
func (s *vaultService) Stats(ctx context.Context) (*indexer.CoverageStats, error) {
	stats, err := s.indexer.CoverageStats(ctx, s.root)
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%s: %w", s.root, ErrNotIndexed)
	}
	if err != nil {
		return nil, WrapError(err, "failed to compute coverage stats")
	}
	return stats, nil
}

// StartReindex starts a pass unless one is already running.
func (s *vaultService) StartReindex(ctx context.Context, force bool) ReindexStatus {
	logger := s.getLogger(ctx)

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.InfoContext(ctx, "reindex already running, request joined", "force", force)
		return ReindexStatus{Started: false, Force: force}
	}
	s.running = true
	s.mu.Unlock()

	logger.InfoContext(ctx, "reindex started", "force", force)

	// The pass outlives the request; it stops only when the service closes.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		passCtx := contextutil.WithLogger(s.baseCtx, s.logger)
		report, err := s.indexer.Reindex(passCtx, s.root, force)
		s.metrics.ObservePass(report, err)

		s.mu.Lock()
		s.running = false
		if report != nil {
			s.last = report
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("reindex failed", "root", s.root, "error", err)
		}
	}()
	return ReindexStatus{Started: true, Force: force}
}

// LastReport returns the most recent pass report.
func (s *vaultService) LastReport() *indexer.IndexReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// HandleChanges indexes a small batch file by file and falls back to a full
// pass for larger ones.
func (s *vaultService) HandleChanges(ctx context.Context, relPaths []string) {
	logger := s.getLogger(ctx)
	if len(relPaths) == 0 {
		return
	}
	if len(relPaths) > watchBatchLimit {
		logger.InfoContext(ctx, "large change batch, running full pass", "files", len(relPaths))
		s.metrics.ObserveWatchBatch(metrics.BatchFullPass)
		s.StartReindex(ctx, false)
		return
	}
	s.metrics.ObserveWatchBatch(metrics.BatchIncremental)

	for _, relPath := range relPaths {
		if ctx.Err() != nil {
			return
		}
		res, err := s.indexer.IndexFile(ctx, s.root, relPath)
		if err != nil {
			logger.WarnContext(ctx, "failed to index changed file", "rel_path", relPath, "error", err)
			continue
		}
		logger.DebugContext(ctx, "changed file indexed", "rel_path", relPath, "outcome", res.Outcome, "reason", res.Reason)
	}
}

// Close aborts a running pass and waits for it.
func (s *vaultService) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *vaultService) findVault(ctx context.Context) (*storage.Vault, error) {
	v, err := s.store.FindVault(ctx, s.root)
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("%s: %w", s.root, ErrNotIndexed)
	}
	if err != nil {
		return nil, WrapError(err, "failed to find vault")
	}
	return v, nil
}
