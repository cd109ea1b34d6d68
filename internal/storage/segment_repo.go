package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// SegmentRepo provides methods for segment and embedding operations.
type SegmentRepo struct {
	db DBTX
}

// NewSegmentRepo creates a new SegmentRepo.
func NewSegmentRepo(db DBTX) *SegmentRepo {
	return &SegmentRepo{db: db}
}

// ListStates returns a document's segments ordered by ordinal, each joined with
// its embedding when one exists.
func (r *SegmentRepo) ListStates(ctx context.Context, docID int64) ([]SegmentState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.ordinal, s.last_hash, s.heading_path, s.token_count, e.model, e.dim, e.vec
		 FROM segment s LEFT JOIN embedding e ON e.segment_id = s.id
		 WHERE s.doc_id = ? ORDER BY s.ordinal`,
		docID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var states []SegmentState
	for rows.Next() {
		var s SegmentState
		var model sql.NullString
		var dim sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Ordinal, &s.Hash, &s.HeadingPath, &s.TokenCount, &model, &dim, &s.Vector); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}
		s.HasEmbedding = model.Valid
		s.EmbeddingModel = model.String
		s.EmbeddingDim = int(dim.Int64)
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return states, nil
}

// ListEmbeddings returns every stored vector in a vault produced by model with
// the given dimension. Rows with malformed vectors are skipped.
func (r *SegmentRepo) ListEmbeddings(ctx context.Context, vaultID int64, model string, dim int) ([]StoredEmbedding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT d.id, d.rel_path, d.created_at, d.last_source_mtime, s.id, s.ordinal, e.vec
		 FROM embedding e
		 JOIN segment s ON s.id = e.segment_id
		 JOIN doc d ON d.id = s.doc_id
		 WHERE d.vault_id = ? AND e.model = ? AND e.dim = ?
		 ORDER BY d.rel_path, s.ordinal`,
		vaultID, model, dim,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []StoredEmbedding
	for rows.Next() {
		var e StoredEmbedding
		var blob []byte
		if err := rows.Scan(&e.DocID, &e.RelPath, &e.CreatedAt, &e.SourceMtime, &e.SegmentID, &e.Ordinal, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vec, err := DecodeVector(blob, dim)
		if err != nil {
			continue
		}
		e.Vector = vec
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// apply diffs the stored segments of a document against segs by ordinal.
// It returns the number of segments stored before the write.
func (r *SegmentRepo) apply(ctx context.Context, docID int64, rebuild bool, segs []SegmentWrite) (int, error) {
	existing, err := r.ListStates(ctx, docID)
	if err != nil {
		return 0, err
	}
	previous := len(existing)

	if rebuild {
		if err := r.deleteFrom(ctx, docID, 0); err != nil {
			return 0, err
		}
		existing = nil
	}

	byOrdinal := make(map[int]SegmentState, len(existing))
	for _, s := range existing {
		byOrdinal[s.Ordinal] = s
	}

	for _, seg := range segs {
		id, err := r.writeSegment(ctx, docID, seg, byOrdinal)
		if err != nil {
			return 0, err
		}

		switch {
		case seg.Embedding != nil:
			if _, err := r.db.ExecContext(ctx,
				`INSERT INTO embedding (segment_id, model, dim, vec) VALUES (?, ?, ?, ?)
				 ON CONFLICT (segment_id) DO UPDATE SET model = excluded.model, dim = excluded.dim, vec = excluded.vec`,
				id, seg.Embedding.Model, seg.Embedding.Dim, EncodeVector(seg.Embedding.Vector),
			); err != nil {
				return 0, fmt.Errorf("failed to write embedding for segment %d: %w", seg.Ordinal, err)
			}
		case seg.DropEmbedding:
			if _, err := r.db.ExecContext(ctx, "DELETE FROM embedding WHERE segment_id = ?", id); err != nil {
				return 0, fmt.Errorf("failed to drop embedding for segment %d: %w", seg.Ordinal, err)
			}
		}
	}

	if err := r.deleteFrom(ctx, docID, len(segs)); err != nil {
		return 0, err
	}
	return previous, nil
}

func (r *SegmentRepo) writeSegment(ctx context.Context, docID int64, seg SegmentWrite, existing map[int]SegmentState) (int64, error) {
	if cur, ok := existing[seg.Ordinal]; ok {
		if cur.Hash != seg.Hash || cur.HeadingPath != seg.HeadingPath || cur.TokenCount != seg.TokenCount {
			if _, err := r.db.ExecContext(ctx,
				"UPDATE segment SET last_hash = ?, heading_path = ?, token_count = ? WHERE id = ?",
				seg.Hash, seg.HeadingPath, seg.TokenCount, cur.ID,
			); err != nil {
				return 0, fmt.Errorf("failed to update segment %d: %w", seg.Ordinal, err)
			}
		}
		return cur.ID, nil
	}

	res, err := r.db.ExecContext(ctx,
		"INSERT INTO segment (doc_id, ordinal, last_hash, heading_path, token_count) VALUES (?, ?, ?, ?, ?)",
		docID, seg.Ordinal, seg.Hash, seg.HeadingPath, seg.TokenCount,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert segment %d: %w", seg.Ordinal, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get segment id: %w", err)
	}
	return id, nil
}

// deleteFrom removes segments with ordinal >= from, and their embeddings.
func (r *SegmentRepo) deleteFrom(ctx context.Context, docID int64, from int) error {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM embedding WHERE segment_id IN (SELECT id FROM segment WHERE doc_id = ? AND ordinal >= ?)",
		docID, from,
	); err != nil {
		return fmt.Errorf("failed to delete trailing embeddings: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM segment WHERE doc_id = ? AND ordinal >= ?",
		docID, from,
	); err != nil {
		return fmt.Errorf("failed to delete trailing segments: %w", err)
	}
	return nil
}

// tokenCounts returns the token count of every segment in a vault.
func (r *SegmentRepo) tokenCounts(ctx context.Context, vaultID int64) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT s.token_count FROM segment s JOIN doc d ON d.id = s.doc_id WHERE d.vault_id = ?",
		vaultID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query segment token counts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var counts []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan token count: %w", err)
		}
		counts = append(counts, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return counts, nil
}
