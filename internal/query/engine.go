package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vaultgraph/internal/contextutil"
	"vaultgraph/internal/llm"
	"vaultgraph/internal/storage"
	"vaultgraph/internal/vault"
	"vaultgraph/internal/vectorstore"
)

// Engine answers searches over indexed vaults. Configuration gaps such as an
// unknown vault, a missing embedder or an empty index yield empty results
// rather than errors.
type Engine interface {
	// Lexical runs a full-text search and falls back to path matching when
	// the full-text index finds nothing.
	Lexical(ctx context.Context, vaultRoot, query string, limit int) ([]Hit, error)
	// Similar ranks documents by their best segment's cosine similarity to the query.
	Similar(ctx context.Context, vaultRoot, query, provider, model string, k int) ([]Hit, error)
	// Hybrid fuses lexical and similarity rankings.
	Hybrid(ctx context.Context, vaultRoot, query, provider, model string, limit int) ([]Hit, error)
	// Search is the request/response boundary over the three strategies.
	Search(ctx context.Context, req SearchRequest) ([]SearchResult, error)
}

// queryEngine implements the Engine interface.
type queryEngine struct {
	store    storage.IndexStore
	registry *llm.Registry
	mirror   *vectorstore.Mirror
	logger   *slog.Logger
}

// NewEngine creates a new query engine. registry and mirror may be nil.
func NewEngine(store storage.IndexStore, registry *llm.Registry, mirror *vectorstore.Mirror) Engine {
	if registry == nil {
		registry = llm.NewRegistry()
	}
	return &queryEngine{
		store:    store,
		registry: registry,
		mirror:   mirror,
		logger:   slog.Default(),
	}
}

// getLogger extracts logger from context or returns default logger.
func (e *queryEngine) getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok {
		return l
	}
	return e.logger
}

// findVault returns the vault for root, or nil when it was never indexed.
func (e *queryEngine) findVault(ctx context.Context, root string) (*storage.Vault, error) {
	canonical, err := vault.CanonicalRoot(root)
	if err != nil {
		e.getLogger(ctx).DebugContext(ctx, "invalid workspace root", "root", root, "error", err)
		return nil, nil
	}
	v, err := e.store.FindVault(ctx, canonical)
	if errors.Is(err, storage.ErrNotFound) {
		e.getLogger(ctx).DebugContext(ctx, "workspace not indexed", "root", canonical)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vault: %w", err)
	}
	return v, nil
}

// Lexical runs a full-text search over document paths and content.
func (e *queryEngine) Lexical(ctx context.Context, vaultRoot, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Hit{}, nil
	}
	v, err := e.findVault(ctx, vaultRoot)
	if err != nil || v == nil {
		return []Hit{}, err
	}

	if match := buildMatch(query); match != "" {
		found, err := e.store.SearchFTS(ctx, v.ID, match, limit)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			top := found[0].Score
			hits := make([]Hit, 0, len(found))
			for _, h := range found {
				hit := lexicalHit(h)
				if top > 0 {
					hit.Score = h.Score / top
				}
				hits = append(hits, hit)
			}
			return hits, nil
		}
	}

	// Nothing in the text: try the query as a path fragment.
	found, err := e.store.SearchPaths(ctx, v.ID, query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(found))
	for i, h := range found {
		hit := lexicalHit(h)
		hit.Score = 1 / float64(i+1)
		hits = append(hits, hit)
	}
	return hits, nil
}

// Similar embeds the query and ranks documents by their best segment.
func (e *queryEngine) Similar(ctx context.Context, vaultRoot, query, provider, model string, k int) ([]Hit, error) {
	logger := e.getLogger(ctx)

	query = strings.TrimSpace(query)
	if query == "" {
		return []Hit{}, nil
	}
	// Stored vectors are only comparable within one named embedding space.
	if provider == "" || model == "" {
		logger.DebugContext(ctx, "similarity search without embedding provider and model")
		return []Hit{}, nil
	}
	v, err := e.findVault(ctx, vaultRoot)
	if err != nil || v == nil {
		return []Hit{}, err
	}

	embedder, ok := e.registry.Lookup(provider, model)
	if !ok {
		logger.WarnContext(ctx, "no embedder for similarity search", "provider", provider, "model", model)
		return []Hit{}, nil
	}
	id := embedder.Identity()

	vecs, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		logger.WarnContext(ctx, "failed to embed query", "model", id.Key(), "error", err)
		return []Hit{}, nil
	}
	if len(vecs) != 1 || len(vecs[0]) != id.Dim {
		logger.WarnContext(ctx, "embedder returned unusable query vector", "model", id.Key())
		return []Hit{}, nil
	}
	queryVec := vecs[0]

	if e.mirror != nil {
		hits, err := e.similarFromMirror(ctx, v.ID, id, queryVec, k)
		if err == nil {
			return hits, nil
		}
		logger.WarnContext(ctx, "vector mirror search failed, scanning stored embeddings", "error", err)
	}

	stored, err := e.store.ListEmbeddings(ctx, v.ID, id.Key(), id.Dim)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		logger.DebugContext(ctx, "no stored embeddings for model", "model", id.Key(), "dim", id.Dim)
		return []Hit{}, nil
	}

	best := make(map[string]*Hit)
	for _, se := range stored {
		score := cosine(queryVec, se.Vector)
		if cur, ok := best[se.RelPath]; ok && cur.Score >= score {
			continue
		}
		best[se.RelPath] = &Hit{
			DocID:      se.DocID,
			RelPath:    se.RelPath,
			Score:      score,
			Ordinal:    se.Ordinal,
			CreatedAt:  se.CreatedAt,
			ModifiedAt: fromUnixNano(se.SourceMtime),
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, *h)
	}
	sortHits(hits)
	return truncate(hits, k), nil
}

// similarFromMirror takes candidates from the vector mirror and keeps those
// whose document is still indexed under the same embedding identity.
func (e *queryEngine) similarFromMirror(ctx context.Context, vaultID int64, id llm.EmbeddingIdentity, queryVec []float32, k int) ([]Hit, error) {
	limit := k * 4
	if limit <= 0 {
		limit = DefaultLimit * 4
	}
	results, err := e.mirror.Search(ctx, vaultID, id.Key(), queryVec, limit)
	if err != nil {
		return nil, err
	}

	docs, err := e.store.ListDocuments(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]storage.Document, len(docs))
	for _, d := range docs {
		byPath[d.RelPath] = d
	}

	best := make(map[string]*Hit)
	for _, r := range results {
		relPath, _ := r.Meta[vectorstore.MetaRelPath].(string)
		doc, ok := byPath[relPath]
		if !ok || doc.LastEmbeddingModel != id.Key() || doc.LastEmbeddingDim != id.Dim {
			continue
		}
		score := float64(r.Score)
		if cur, ok := best[relPath]; ok && cur.Score >= score {
			continue
		}
		best[relPath] = &Hit{
			DocID:      doc.ID,
			RelPath:    relPath,
			Score:      score,
			Ordinal:    metaInt(r.Meta[vectorstore.MetaOrdinal]),
			CreatedAt:  doc.CreatedAt,
			ModifiedAt: fromUnixNano(doc.LastSourceMtime),
		}
	}

	hits := make([]Hit, 0, len(best))
	for _, h := range best {
		hits = append(hits, *h)
	}
	sortHits(hits)
	return truncate(hits, k), nil
}

// Hybrid fuses lexical and similarity rankings with Reciprocal Rank Fusion.
func (e *queryEngine) Hybrid(ctx context.Context, vaultRoot, query, provider, model string, limit int) ([]Hit, error) {
	candidates := limit * 2
	if candidates <= 0 {
		candidates = DefaultLimit * 2
	}

	lexical, err := e.Lexical(ctx, vaultRoot, query, candidates)
	if err != nil {
		return nil, err
	}
	similar, err := e.Similar(ctx, vaultRoot, query, provider, model, candidates)
	if err != nil {
		return nil, err
	}
	return truncate(fuseRRF(lexical, similar), limit), nil
}

// Search runs a request in its mode and shapes the results for callers.
func (e *queryEngine) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	var hits []Hit
	var err error
	switch req.Mode {
	case "", ModeSemantic:
		hits, err = e.Similar(ctx, req.WorkspacePath, req.Query, req.EmbeddingProvider, req.EmbeddingModel, limit)
	case ModeLexical:
		hits, err = e.Lexical(ctx, req.WorkspacePath, req.Query, limit)
	case ModeHybrid:
		hits, err = e.Hybrid(ctx, req.WorkspacePath, req.Query, req.EmbeddingProvider, req.EmbeddingModel, limit)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
	if err != nil {
		return nil, err
	}

	e.getLogger(ctx).DebugContext(ctx, "search completed", "mode", req.Mode, "results", len(hits))

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, toResult(h))
	}
	return results, nil
}

func toResult(h Hit) SearchResult {
	r := SearchResult{
		Path:       h.RelPath,
		Name:       displayName(h.RelPath),
		Similarity: h.Score,
	}
	if !h.CreatedAt.IsZero() {
		created := h.CreatedAt
		r.CreatedAt = &created
	}
	if !h.ModifiedAt.IsZero() {
		modified := h.ModifiedAt
		r.ModifiedAt = &modified
	}
	return r
}

func lexicalHit(h storage.LexicalHit) Hit {
	return Hit{
		DocID:      h.DocID,
		RelPath:    h.RelPath,
		Snippet:    h.Snippet,
		Score:      h.Score,
		CreatedAt:  h.CreatedAt,
		ModifiedAt: fromUnixNano(h.SourceMtime),
	}
}

func fromUnixNano(ns int64) time.Time {
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func metaInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
