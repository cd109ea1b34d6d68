package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"vaultgraph/internal/contextutil"
	"vaultgraph/internal/links"
	"vaultgraph/internal/llm"
	"vaultgraph/internal/storage"
	"vaultgraph/internal/vault"
	"vaultgraph/internal/vectorstore"
)

// DefaultWorkers bounds concurrent per-document work within a pass.
const DefaultWorkers = 4

// Indexer keeps a vault's index in step with the markdown files on disk.
// Passes are coalesced per vault and documents are processed by a bounded
// worker pool; writes for one document are serialized across passes and
// single-file updates.
type Indexer struct {
	store     *storage.Store
	vaults    *vault.Manager
	segmenter *MarkdownSegmenter
	embedder  llm.Embedder
	mirror    *vectorstore.Mirror
	workers   int
	logger    *slog.Logger

	passes singleflight.Group
	locks  *keyedMutex
}

// NewIndexer creates a new indexer. embedder and mirror may be nil: without an
// embedder documents are indexed for lexical search and links only.
func NewIndexer(
	store *storage.Store,
	vaults *vault.Manager,
	segmenter *MarkdownSegmenter,
	embedder llm.Embedder,
	mirror *vectorstore.Mirror,
	workers int,
) *Indexer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Indexer{
		store:     store,
		vaults:    vaults,
		segmenter: segmenter,
		embedder:  embedder,
		mirror:    mirror,
		workers:   workers,
		logger:    slog.Default(),
		locks:     newKeyedMutex(),
	}
}

// getLogger extracts logger from context or returns default logger.
func (ix *Indexer) getLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextutil.LoggerKey()).(*slog.Logger); ok {
		return l
	}
	return ix.logger
}

// Reindex brings the vault at vaultRoot up to date. A call made while a pass
// for the same vault is running joins that pass and receives its report with
// Shared set. Per-document failures are recorded in the report; the returned
// error is reserved for failures of the pass itself.
func (ix *Indexer) Reindex(ctx context.Context, vaultRoot string, forceFull bool) (*IndexReport, error) {
	root, err := vault.CanonicalRoot(vaultRoot)
	if err != nil {
		return nil, err
	}

	leader := false
	v, err, _ := ix.passes.Do(root, func() (any, error) {
		leader = true
		return ix.runPass(ctx, root, forceFull)
	})
	if err != nil {
		return nil, err
	}

	report := *v.(*IndexReport)
	report.Shared = !leader
	return &report, nil
}

func (ix *Indexer) runPass(ctx context.Context, root string, forceFull bool) (*IndexReport, error) {
	started := time.Now()
	report := &IndexReport{
		RunID:         uuid.NewString(),
		WorkspaceRoot: root,
		StartedAt:     started,
	}
	logger := ix.getLogger(ctx).With("run_id", report.RunID, "vault_root", root)
	ctx = contextutil.WithLogger(ctx, logger)

	// A cancelled context before any document was scheduled is an abort, not a failure.
	abort := func(err error) (*IndexReport, error) {
		if ctx.Err() == nil {
			return nil, err
		}
		report.Aborted = true
		report.finish(started)
		logger.WarnContext(ctx, "indexing aborted before scheduling documents")
		return report, nil
	}

	v, err := ix.vaults.Open(ctx, root)
	if err != nil {
		return abort(err)
	}
	report.VaultID = v.ID

	files, err := vault.Scan(ctx, root)
	if err != nil {
		return abort(err)
	}

	stored, err := ix.store.ListDocuments(ctx, v.ID)
	if err != nil {
		return abort(fmt.Errorf("failed to list stored documents: %w", err))
	}
	storedByPath := make(map[string]*storage.Document, len(stored))
	for i := range stored {
		storedByPath[stored[i].RelPath] = &stored[i]
	}

	logger.InfoContext(ctx, "starting indexing", "total_files", len(files), "stored_documents", len(stored), "force_full", forceFull)

	var mu sync.Mutex
	record := func(res DocumentResult) {
		mu.Lock()
		report.add(res)
		mu.Unlock()
	}

	g := new(errgroup.Group)
	g.SetLimit(ix.workers)

	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		if ctx.Err() != nil {
			break
		}
		seen[file.RelPath] = struct{}{}
		doc := storedByPath[file.RelPath]
		g.Go(func() error {
			record(ix.processFile(ctx, v, file, doc, forceFull))
			return nil
		})
	}

	// Stored documents whose files are gone.
	if ctx.Err() == nil {
		for _, doc := range stored {
			if ctx.Err() != nil {
				break
			}
			if _, ok := seen[doc.RelPath]; ok {
				continue
			}
			relPath := doc.RelPath
			g.Go(func() error {
				record(ix.removeDocument(ctx, v, relPath))
				return nil
			})
		}
	}

	_ = g.Wait()

	report.Aborted = ctx.Err() != nil
	report.finish(started)

	logger.InfoContext(ctx, "indexing completed",
		"unchanged", report.Unchanged,
		"reindexed", report.Reindexed,
		"failed", report.Failed,
		"removed", report.Removed,
		"aborted", report.Aborted,
		"duration", report.Duration,
	)
	return report, nil
}

// IndexFile brings one file of the vault up to date, as after a watcher event.
// A file that no longer exists is removed from the index.
func (ix *Indexer) IndexFile(ctx context.Context, vaultRoot, relPath string) (*DocumentResult, error) {
	v, relPath, err := ix.openFile(ctx, vaultRoot, relPath)
	if err != nil {
		return nil, err
	}

	file, err := vault.Stat(v.WorkspaceRoot, relPath)
	if errors.Is(err, fs.ErrNotExist) {
		res := ix.removeDocument(ctx, v, relPath)
		return &res, nil
	}
	if err != nil {
		return nil, err
	}

	doc, err := ix.store.GetDocument(ctx, v.ID, relPath)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check existing document: %w", err)
	}

	res := ix.processFile(ctx, v, file, doc, false)
	return &res, nil
}

// RemoveFile drops one document from the index regardless of the file on disk.
func (ix *Indexer) RemoveFile(ctx context.Context, vaultRoot, relPath string) (*DocumentResult, error) {
	v, relPath, err := ix.openFile(ctx, vaultRoot, relPath)
	if err != nil {
		return nil, err
	}
	res := ix.removeDocument(ctx, v, relPath)
	return &res, nil
}

func (ix *Indexer) openFile(ctx context.Context, vaultRoot, relPath string) (storage.Vault, string, error) {
	clean := path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	if relPath == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return storage.Vault{}, "", fmt.Errorf("invalid vault path %q", relPath)
	}
	if !vault.IsMarkdown(clean) {
		return storage.Vault{}, "", fmt.Errorf("not a markdown file: %s", relPath)
	}
	v, err := ix.vaults.Open(ctx, vaultRoot)
	if err != nil {
		return storage.Vault{}, "", err
	}
	return v, clean, nil
}

// processFile decides whether one document is stale and, if so, re-chunks,
// re-embeds what changed and writes it in one transaction.
func (ix *Indexer) processFile(ctx context.Context, v storage.Vault, file vault.ScannedFile, doc *storage.Document, forceFull bool) DocumentResult {
	unlock := ix.locks.Lock(documentKey(v.ID, file.RelPath))
	defer unlock()

	logger := ix.getLogger(ctx).With("rel_path", file.RelPath)
	result := DocumentResult{RelPath: file.RelPath}

	reason := ix.staleReason(doc, forceFull)
	stat := SourceStat{Size: file.Size, ModTime: file.ModTime}

	// Size and mtime unchanged: trust the stored hash without reading the file.
	if reason == "" && stat.Matches(doc.LastSourceSize, doc.LastSourceMtime) {
		result.Outcome = OutcomeUnchanged
		return result
	}

	data, err := os.ReadFile(file.AbsPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.DebugContext(ctx, "file vanished before processing")
		return ix.deleteDocument(ctx, v, file.RelPath)
	}
	if err != nil {
		return ix.failed(ctx, result, fmt.Errorf("failed to read file: %w", err))
	}

	fp := FingerprintOf(data)
	if reason == "" && fp.Matches(doc.LastHash) {
		if err := ix.store.TouchSource(context.WithoutCancel(ctx), doc.ID, stat.Size, stat.ModTime); err != nil {
			return ix.failed(ctx, result, err)
		}
		result.Outcome = OutcomeUnchanged
		return result
	}
	if reason == "" {
		reason = "content changed"
	}

	content := string(data)
	chunks := ix.segmenter.Segment(content)

	var states []storage.SegmentState
	rebuild := false
	if doc != nil {
		states, err = ix.store.ListSegmentStates(ctx, doc.ID)
		if err != nil {
			return ix.failed(ctx, result, fmt.Errorf("failed to load segments: %w", err))
		}
		if !segmentsConsistent(states) {
			logger.WarnContext(ctx, "stored segments inconsistent, rebuilding", "segments", len(states))
			rebuild = true
		}
	}

	var identity *llm.EmbeddingIdentity
	if ix.embedder != nil {
		id := ix.embedder.Identity()
		identity = &id
	}

	plan := planSegments(chunks, states, rebuild, identity)
	if len(plan.toEmbed) > 0 {
		if err := ix.embed(ctx, chunks, plan, *identity); err != nil {
			return ix.failed(ctx, result, err)
		}
	}

	write := storage.DocumentWrite{
		VaultID:         v.ID,
		RelPath:         file.RelPath,
		Content:         content,
		ChunkingVersion: ix.segmenter.Version(),
		Hash:            fp.String(),
		Size:            stat.Size,
		ModTime:         stat.ModTime,
		Rebuild:         rebuild,
		Segments:        plan.writes,
		Links:           links.Parse(content),
	}
	if identity != nil {
		write.EmbeddingModel = identity.Key()
		write.EmbeddingDim = identity.Dim
	}

	// The write commits even when the pass is aborted mid-document.
	writeCtx := context.WithoutCancel(ctx)
	applied, err := ix.store.ApplyDocument(writeCtx, write)
	if err != nil {
		return ix.failed(ctx, result, err)
	}

	if ix.mirror != nil && identity != nil {
		if err := ix.mirror.SyncDocument(writeCtx, v.ID, file.RelPath, identity.Key(), plan.vectors(chunks), len(chunks), applied.PreviousSegments); err != nil {
			logger.WarnContext(ctx, "failed to mirror segment vectors", "error", err)
		}
	}

	logger.DebugContext(ctx, "document reindexed",
		"reason", reason,
		"segments", len(chunks),
		"embedded", len(plan.toEmbed),
		"rebuild", rebuild,
		"re_resolved_links", applied.ReResolved,
	)

	result.Outcome = OutcomeReindexed
	result.Reason = reason
	result.Segments = len(chunks)
	result.Embedded = len(plan.toEmbed)
	result.Rebuilt = rebuild
	return result
}

// staleReason returns why doc must be rebuilt regardless of its content, or
// "" when only the content decides.
func (ix *Indexer) staleReason(doc *storage.Document, forceFull bool) string {
	switch {
	case doc == nil:
		return "new document"
	case forceFull:
		return "forced"
	case doc.ChunkingVersion != ix.segmenter.Version():
		return "chunking version changed"
	}
	if ix.embedder != nil {
		id := ix.embedder.Identity()
		if doc.LastEmbeddingModel != id.Key() || doc.LastEmbeddingDim != id.Dim {
			return "embedding model changed"
		}
	}
	return ""
}

func (ix *Indexer) embed(ctx context.Context, chunks []Chunk, plan *segmentPlan, id llm.EmbeddingIdentity) error {
	texts := make([]string, len(plan.toEmbed))
	for i, idx := range plan.toEmbed {
		texts[i] = chunks[idx].Text
	}

	vecs, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed segments: %w", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d segments", len(vecs), len(texts))
	}

	for i, idx := range plan.toEmbed {
		if len(vecs[i]) != id.Dim {
			return fmt.Errorf("embedding for segment %d has size %d, expected %d", idx, len(vecs[i]), id.Dim)
		}
		plan.writes[idx].Embedding = &storage.EmbeddingWrite{Model: id.Key(), Dim: id.Dim, Vector: vecs[i]}
	}
	return nil
}

// removeDocument deletes a document under its lock.
func (ix *Indexer) removeDocument(ctx context.Context, v storage.Vault, relPath string) DocumentResult {
	unlock := ix.locks.Lock(documentKey(v.ID, relPath))
	defer unlock()
	return ix.deleteDocument(ctx, v, relPath)
}

// deleteDocument expects the caller to hold the document lock. A document
// that was never stored still reports removed.
func (ix *Indexer) deleteDocument(ctx context.Context, v storage.Vault, relPath string) DocumentResult {
	result := DocumentResult{RelPath: relPath, Outcome: OutcomeRemoved}
	writeCtx := context.WithoutCancel(ctx)

	_, err := ix.store.DeleteDocument(writeCtx, v.ID, relPath)
	if err != nil && !storage.IsNotFound(err) {
		return ix.failed(ctx, DocumentResult{RelPath: relPath}, fmt.Errorf("failed to delete document: %w", err))
	}

	if ix.mirror != nil && err == nil {
		if err := ix.mirror.RemoveDocument(writeCtx, v.ID, relPath); err != nil {
			ix.getLogger(ctx).WarnContext(ctx, "failed to remove mirrored document", "rel_path", relPath, "error", err)
		}
	}
	return result
}

func (ix *Indexer) failed(ctx context.Context, result DocumentResult, err error) DocumentResult {
	ix.getLogger(ctx).WarnContext(ctx, "failed to index document", "rel_path", result.RelPath, "error", err)
	result.Outcome = OutcomeFailed
	result.Reason = err.Error()
	return result
}
