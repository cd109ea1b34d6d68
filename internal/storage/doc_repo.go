package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vaultgraph/internal/links"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

const docColumns = `id, vault_id, rel_path, path_key, name_key, chunking_version, last_hash,
	last_source_size, last_source_mtime, last_embedding_model, last_embedding_dim, created_at, updated_at`

// DocRepo provides methods for document operations.
// It implements links.PathIndex so link resolution can run inside a write transaction.
type DocRepo struct {
	db DBTX
}

var _ links.PathIndex = (*DocRepo)(nil)

// NewDocRepo creates a new DocRepo.
func NewDocRepo(db DBTX) *DocRepo {
	return &DocRepo{db: db}
}

// GetByVaultAndPath gets a document, including content, by vault ID and relative path.
// Returns nil and ErrNotFound if not found.
func (r *DocRepo) GetByVaultAndPath(ctx context.Context, vaultID int64, relPath string) (*Document, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+docColumns+", content FROM doc WHERE vault_id = ? AND rel_path = ?",
		vaultID, relPath,
	)

	var doc Document
	dest := append(docScanDest(&doc), &doc.Content)
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query document: %w", err)
	}
	return &doc, nil
}

// ListByVault returns every document of a vault without content, ordered by path.
func (r *DocRepo) ListByVault(ctx context.Context, vaultID int64) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+docColumns+" FROM doc WHERE vault_id = ? ORDER BY rel_path",
		vaultID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(docScanDest(&doc)...); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return docs, nil
}

// LookupPathKey finds the document whose full path key equals key.
func (r *DocRepo) LookupPathKey(ctx context.Context, vaultID int64, key string) (int64, bool, error) {
	return r.lookupID(ctx,
		"SELECT id FROM doc WHERE vault_id = ? AND path_key = ? ORDER BY rel_path LIMIT 1",
		vaultID, key,
	)
}

// LookupSuffixKey finds the document whose path key ends with key on a segment
// boundary. The shortest path wins, then lexical order.
func (r *DocRepo) LookupSuffixKey(ctx context.Context, vaultID int64, key string) (int64, bool, error) {
	if !strings.Contains(key, "/") {
		return r.lookupID(ctx,
			"SELECT id FROM doc WHERE vault_id = ? AND name_key = ? ORDER BY length(path_key), path_key LIMIT 1",
			vaultID, key,
		)
	}
	return r.lookupID(ctx,
		`SELECT id FROM doc WHERE vault_id = ? AND (path_key = ? OR path_key LIKE ? ESCAPE '\')
		 ORDER BY length(path_key), path_key LIMIT 1`,
		vaultID, key, "%/"+escapeLike(key),
	)
}

func (r *DocRepo) lookupID(ctx context.Context, query string, args ...any) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up document: %w", err)
	}
	return id, true, nil
}

// upsert writes the document row and its full-text shadow row. It reports
// whether the document was newly created.
func (r *DocRepo) upsert(ctx context.Context, w *DocumentWrite) (int64, bool, error) {
	pathKey := links.NormalizeKey(w.RelPath)
	nameKey := links.NameKey(pathKey)

	var id int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM doc WHERE vault_id = ? AND rel_path = ?",
		w.VaultID, w.RelPath,
	).Scan(&id)

	created := false
	switch {
	case err == sql.ErrNoRows:
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO doc (vault_id, rel_path, path_key, name_key, content, chunking_version, last_hash,
			 last_source_size, last_source_mtime, last_embedding_model, last_embedding_dim)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.VaultID, w.RelPath, pathKey, nameKey, w.Content, w.ChunkingVersion, w.Hash,
			w.Size, w.ModTime, w.EmbeddingModel, w.EmbeddingDim,
		)
		if err != nil {
			return 0, false, fmt.Errorf("failed to insert document: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, false, fmt.Errorf("failed to get document id: %w", err)
		}
		created = true
	case err != nil:
		return 0, false, fmt.Errorf("failed to check existing document: %w", err)
	default:
		if _, err := r.db.ExecContext(ctx,
			`UPDATE doc SET content = ?, chunking_version = ?, last_hash = ?, last_source_size = ?,
			 last_source_mtime = ?, last_embedding_model = ?, last_embedding_dim = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			w.Content, w.ChunkingVersion, w.Hash, w.Size, w.ModTime, w.EmbeddingModel, w.EmbeddingDim, id,
		); err != nil {
			return 0, false, fmt.Errorf("failed to update document: %w", err)
		}
	}

	// FTS4 has no upsert; replace the shadow row in place.
	if _, err := r.db.ExecContext(ctx, "DELETE FROM doc_fts WHERE docid = ?", id); err != nil {
		return 0, false, fmt.Errorf("failed to clear full-text row: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO doc_fts (docid, rel_path, content) VALUES (?, ?, ?)",
		id, w.RelPath, w.Content,
	); err != nil {
		return 0, false, fmt.Errorf("failed to write full-text row: %w", err)
	}

	return id, created, nil
}

func (r *DocRepo) touchSource(ctx context.Context, docID, size, mtime int64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE doc SET last_source_size = ?, last_source_mtime = ? WHERE id = ?",
		size, mtime, docID,
	)
	if err != nil {
		return fmt.Errorf("failed to update source stat: %w", err)
	}
	return nil
}

// delete removes a document in two phases: first everything it owns, then the
// document itself after incoming links have been turned back into ghosts.
func (r *DocRepo) delete(ctx context.Context, docID int64) error {
	owned := []struct {
		what  string
		query string
	}{
		{"embeddings", "DELETE FROM embedding WHERE segment_id IN (SELECT id FROM segment WHERE doc_id = ?)"},
		{"segments", "DELETE FROM segment WHERE doc_id = ?"},
		{"outgoing links", "DELETE FROM link WHERE source_doc_id = ?"},
		{"wiki link refs", "DELETE FROM wiki_link_ref WHERE source_doc_id = ?"},
		{"full-text row", "DELETE FROM doc_fts WHERE docid = ?"},
	}
	for _, stmt := range owned {
		if _, err := r.db.ExecContext(ctx, stmt.query, docID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", stmt.what, err)
		}
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE link SET target_doc_id = NULL WHERE target_doc_id = ?", docID,
	); err != nil {
		return fmt.Errorf("failed to detach incoming links: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM doc WHERE id = ?", docID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func docScanDest(doc *Document) []any {
	return []any{
		&doc.ID, &doc.VaultID, &doc.RelPath, &doc.PathKey, &doc.NameKey, &doc.ChunkingVersion, &doc.LastHash,
		&doc.LastSourceSize, &doc.LastSourceMtime, &doc.LastEmbeddingModel, &doc.LastEmbeddingDim,
		&doc.CreatedAt, &doc.UpdatedAt,
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
