package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index_store.go -package=mocks vaultgraph/internal/storage IndexStore,VaultStore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"vaultgraph/internal/links"
)

// IndexStore defines the read side of the index used by queries, the graph
// adapter and the service layer.
type IndexStore interface {
	// FindVault gets a vault by workspace root. Returns ErrNotFound if not found.
	FindVault(ctx context.Context, root string) (*Vault, error)
	ListDocuments(ctx context.Context, vaultID int64) ([]Document, error)
	ListLinks(ctx context.Context, vaultID int64) ([]LinkView, error)
	Backlinks(ctx context.Context, vaultID int64, relPath string) ([]LinkView, error)
	SearchFTS(ctx context.Context, vaultID int64, match string, limit int) ([]LexicalHit, error)
	SearchPaths(ctx context.Context, vaultID int64, substr string, limit int) ([]LexicalHit, error)
	ListEmbeddings(ctx context.Context, vaultID int64, model string, dim int) ([]StoredEmbedding, error)
	Coverage(ctx context.Context, vaultID int64) (*Coverage, error)
}

// VaultStore defines vault registration.
type VaultStore interface {
	// GetOrCreateByRoot gets or creates the vault for a workspace root.
	GetOrCreateByRoot(ctx context.Context, root string) (*Vault, error)
	// GetByRoot gets a vault by workspace root. Returns ErrNotFound if not found.
	GetByRoot(ctx context.Context, root string) (*Vault, error)
	ListAll(ctx context.Context) ([]Vault, error)
}

var _ VaultStore = (*VaultRepo)(nil)

// EmbeddingWrite is a vector to store for one segment.
type EmbeddingWrite struct {
	Model  string // "provider/model"
	Dim    int
	Vector []float32
}

// SegmentWrite describes the desired state of one segment.
type SegmentWrite struct {
	Ordinal     int
	Hash        string
	HeadingPath string
	TokenCount  int
	// Embedding replaces the stored vector when set. When nil the existing
	// vector is kept unless DropEmbedding is true.
	Embedding     *EmbeddingWrite
	DropEmbedding bool
}

// DocumentWrite is everything persisted for one re-indexed document.
type DocumentWrite struct {
	VaultID         int64
	RelPath         string
	Content         string
	ChunkingVersion string
	Hash            string
	Size            int64
	ModTime         int64
	EmbeddingModel  string
	EmbeddingDim    int
	// Rebuild discards stored segments before writing, used when the stored
	// segment set is inconsistent.
	Rebuild  bool
	Segments []SegmentWrite
	Links    []links.Reference
}

// ApplyResult reports what ApplyDocument changed.
type ApplyResult struct {
	DocID            int64
	Created          bool
	PreviousSegments int
	// ReResolved counts other documents' links that now point at this document.
	ReResolved int
}

// Store is the Index Store: it owns every persisted row and keeps the
// full-text shadow in step with document content.
type Store struct {
	db       *sql.DB
	vaults   *VaultRepo
	docs     *DocRepo
	segments *SegmentRepo
	links    *LinkRepo
}

var _ IndexStore = (*Store)(nil)

// NewStore creates a Store over an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		vaults:   NewVaultRepo(db),
		docs:     NewDocRepo(db),
		segments: NewSegmentRepo(db),
		links:    NewLinkRepo(db),
	}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// OpenVault gets or creates the vault for a workspace root.
func (s *Store) OpenVault(ctx context.Context, root string) (*Vault, error) {
	return s.vaults.GetOrCreateByRoot(ctx, root)
}

// FindVault gets a vault by workspace root. Returns ErrNotFound if not found.
func (s *Store) FindVault(ctx context.Context, root string) (*Vault, error) {
	return s.vaults.GetByRoot(ctx, root)
}

// ListVaults returns all vaults.
func (s *Store) ListVaults(ctx context.Context) ([]Vault, error) {
	return s.vaults.ListAll(ctx)
}

// GetDocument gets one document including content. Returns ErrNotFound if not found.
func (s *Store) GetDocument(ctx context.Context, vaultID int64, relPath string) (*Document, error) {
	return s.docs.GetByVaultAndPath(ctx, vaultID, relPath)
}

// ListDocuments returns all documents of a vault without content.
func (s *Store) ListDocuments(ctx context.Context, vaultID int64) ([]Document, error) {
	return s.docs.ListByVault(ctx, vaultID)
}

// ListSegmentStates returns a document's segments with their embeddings.
func (s *Store) ListSegmentStates(ctx context.Context, docID int64) ([]SegmentState, error) {
	return s.segments.ListStates(ctx, docID)
}

// ListEmbeddings returns all vectors of a vault for one model and dimension.
func (s *Store) ListEmbeddings(ctx context.Context, vaultID int64, model string, dim int) ([]StoredEmbedding, error) {
	return s.segments.ListEmbeddings(ctx, vaultID, model, dim)
}

// ListLinks returns all links sourced in a vault.
func (s *Store) ListLinks(ctx context.Context, vaultID int64) ([]LinkView, error) {
	return s.links.ListByVault(ctx, vaultID)
}

// OutgoingLinks returns one document's links in document order.
func (s *Store) OutgoingLinks(ctx context.Context, docID int64) ([]LinkView, error) {
	return s.links.ListBySource(ctx, docID)
}

// Backlinks returns links resolving to the document at relPath.
func (s *Store) Backlinks(ctx context.Context, vaultID int64, relPath string) ([]LinkView, error) {
	return s.links.Backlinks(ctx, vaultID, relPath)
}

// ApplyDocument writes a re-indexed document in one transaction: the document
// row with its full-text shadow, the segment and embedding diff, the outgoing
// links, and re-resolution of ghost links the document now satisfies.
func (s *Store) ApplyDocument(ctx context.Context, w DocumentWrite) (*ApplyResult, error) {
	var result ApplyResult
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		docs := NewDocRepo(tx)
		linkRepo := NewLinkRepo(tx)

		docID, created, err := docs.upsert(ctx, &w)
		if err != nil {
			return err
		}
		result.DocID, result.Created = docID, created

		if result.PreviousSegments, err = NewSegmentRepo(tx).apply(ctx, docID, w.Rebuild, w.Segments); err != nil {
			return err
		}

		if err := linkRepo.replace(ctx, w.VaultID, docID, w.RelPath, w.Links); err != nil {
			return err
		}

		if created {
			n, err := linkRepo.reResolveFor(ctx, w.VaultID, links.NormalizeKey(w.RelPath))
			if err != nil {
				return err
			}
			result.ReResolved = n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply document %s: %w", w.RelPath, err)
	}
	return &result, nil
}

// TouchSource refreshes the stored size and mtime of an unchanged document.
func (s *Store) TouchSource(ctx context.Context, docID, size, mtime int64) error {
	return s.docs.touchSource(ctx, docID, size, mtime)
}

// DeleteDocument removes the document at relPath and everything it owns.
// Links from other documents survive as unresolved edges.
// Returns ErrNotFound if the document does not exist.
func (s *Store) DeleteDocument(ctx context.Context, vaultID int64, relPath string) (int64, error) {
	var docID int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM doc WHERE vault_id = ? AND rel_path = ?", vaultID, relPath,
		).Scan(&docID)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query document: %w", err)
		}
		return NewDocRepo(tx).delete(ctx, docID)
	})
	if err != nil {
		return 0, err
	}
	return docID, nil
}

// DeleteVault removes a vault and every document it owns.
func (s *Store) DeleteVault(ctx context.Context, vaultID int64) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		docs := NewDocRepo(tx)
		list, err := docs.ListByVault(ctx, vaultID)
		if err != nil {
			return err
		}
		for _, d := range list {
			if err := docs.delete(ctx, d.ID); err != nil {
				return err
			}
		}
		return NewVaultRepo(tx).delete(ctx, vaultID)
	})
}

// SearchFTS runs a full-text MATCH over path and content. Hits are ranked by
// term frequency weighted against how common each term is across the vault,
// with path matches counting double.
func (s *Store) SearchFTS(ctx context.Context, vaultID int64, match string, limit int) ([]LexicalHit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.id, d.rel_path, snippet(doc_fts, '[', ']', '…', -1, 12), matchinfo(doc_fts, 'pcx'),
		 d.created_at, d.last_source_mtime
		 FROM doc_fts JOIN doc d ON d.id = doc_fts.docid
		 WHERE doc_fts MATCH ? AND d.vault_id = ?`,
		match, vaultID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search full-text index: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		var info []byte
		if err := rows.Scan(&h.DocID, &h.RelPath, &h.Snippet, &info, &h.CreatedAt, &h.SourceMtime); err != nil {
			return nil, fmt.Errorf("failed to scan full-text hit: %w", err)
		}
		h.Score = matchScore(info)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].RelPath < hits[j].RelPath
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// columnWeights are matchinfo weights for (rel_path, content).
var columnWeights = []float64{2.0, 1.0}

// matchScore decodes a matchinfo 'pcx' blob: phrase count, column count, then
// three counters per phrase and column (hits in this row, hits in all rows,
// rows with a hit).
func matchScore(info []byte) float64 {
	if len(info) < 8 {
		return 0
	}
	u := func(i int) uint32 { return binary.NativeEndian.Uint32(info[i*4:]) }
	phrases, cols := int(u(0)), int(u(1))
	if len(info) < (2+phrases*cols*3)*4 {
		return 0
	}

	score := 0.0
	for p := 0; p < phrases; p++ {
		for c := 0; c < cols; c++ {
			base := 2 + (p*cols+c)*3
			hitsRow, hitsAll := u(base), u(base+1)
			if hitsRow == 0 || hitsAll == 0 {
				continue
			}
			weight := 1.0
			if c < len(columnWeights) {
				weight = columnWeights[c]
			}
			score += weight * float64(hitsRow) / float64(hitsAll)
		}
	}
	return score
}

// SearchPaths matches a case-insensitive substring against document paths.
func (s *Store) SearchPaths(ctx context.Context, vaultID int64, substr string, limit int) ([]LexicalHit, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, rel_path, created_at, last_source_mtime FROM doc
		 WHERE vault_id = ? AND lower(rel_path) LIKE ? ESCAPE '\'
		 ORDER BY length(rel_path), rel_path LIMIT ?`,
		vaultID, "%"+escapeLike(toLowerASCII(substr))+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search paths: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var hits []LexicalHit
	for rows.Next() {
		var h LexicalHit
		if err := rows.Scan(&h.DocID, &h.RelPath, &h.CreatedAt, &h.SourceMtime); err != nil {
			return nil, fmt.Errorf("failed to scan path hit: %w", err)
		}
		h.Snippet = h.RelPath
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return hits, nil
}

// Coverage summarizes a vault's documents, segments, embeddings and links.
func (s *Store) Coverage(ctx context.Context, vaultID int64) (*Coverage, error) {
	var c Coverage

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		 COALESCE(SUM(CASE WHEN NOT EXISTS (SELECT 1 FROM segment s WHERE s.doc_id = d.id) THEN 1 ELSE 0 END), 0)
		 FROM doc d WHERE d.vault_id = ?`,
		vaultID,
	).Scan(&c.Documents, &c.EmptyDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(s.id), COUNT(e.id)
		 FROM segment s JOIN doc d ON d.id = s.doc_id LEFT JOIN embedding e ON e.segment_id = s.id
		 WHERE d.vault_id = ?`,
		vaultID,
	).Scan(&c.Segments, &c.EmbeddedSegments)
	if err != nil {
		return nil, fmt.Errorf("failed to count segments: %w", err)
	}

	if c.Links, c.UnresolvedLinks, err = s.links.counts(ctx, vaultID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT chunking_version FROM doc WHERE vault_id = ? ORDER BY chunking_version", vaultID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunking versions: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan chunking version: %w", err)
		}
		c.ChunkingVersions = append(c.ChunkingVersions, v)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if c.SegmentTokenCount, err = s.segments.tokenCounts(ctx, vaultID); err != nil {
		return nil, err
	}
	return &c, nil
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// toLowerASCII matches SQLite's lower(), which folds ASCII letters only.
func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
