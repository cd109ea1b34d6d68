package vectorstore

import (
	"context"
	"fmt"
)

// SegmentVector is one committed segment embedding to mirror.
type SegmentVector struct {
	Ordinal     int
	HeadingPath string
	Vector      []float32
}

// Mirror keeps a vector collection in step with the segment embeddings held
// by the index store. The store stays the source of truth; the mirror only
// accelerates similarity candidates.
type Mirror struct {
	store      VectorStore
	collection string
}

// NewMirror creates a mirror writing to collection.
func NewMirror(store VectorStore, collection string) *Mirror {
	return &Mirror{store: store, collection: collection}
}

// Collection returns the mirrored collection name.
func (m *Mirror) Collection() string {
	return m.collection
}

// SyncDocument upserts the changed segment vectors of a document and deletes
// points for positions in [count, previous) that no longer exist.
func (m *Mirror) SyncDocument(ctx context.Context, vaultID int64, relPath, model string, changed []SegmentVector, count, previous int) error {
	points := make([]Point, 0, len(changed))
	for _, seg := range changed {
		points = append(points, Point{
			ID:  SegmentPointID(vaultID, relPath, seg.Ordinal),
			Vec: seg.Vector,
			Meta: map[string]any{
				MetaVaultID:     vaultID,
				MetaRelPath:     relPath,
				MetaOrdinal:     seg.Ordinal,
				MetaModel:       model,
				MetaHeadingPath: seg.HeadingPath,
			},
		})
	}
	if len(points) > 0 {
		if err := m.store.Upsert(ctx, m.collection, points); err != nil {
			return fmt.Errorf("failed to mirror segments of %s: %w", relPath, err)
		}
	}

	var stale []string
	for ordinal := count; ordinal < previous; ordinal++ {
		stale = append(stale, SegmentPointID(vaultID, relPath, ordinal))
	}
	if len(stale) > 0 {
		if err := m.store.Delete(ctx, m.collection, stale); err != nil {
			return fmt.Errorf("failed to remove trailing segments of %s: %w", relPath, err)
		}
	}
	return nil
}

// RemoveDocument deletes every point of a document.
func (m *Mirror) RemoveDocument(ctx context.Context, vaultID int64, relPath string) error {
	if err := m.store.DeleteByFilter(ctx, m.collection, Filter{VaultID: vaultID, RelPath: relPath}); err != nil {
		return fmt.Errorf("failed to remove mirrored document %s: %w", relPath, err)
	}
	return nil
}

// Search returns the k nearest mirrored segments of one vault and model.
func (m *Mirror) Search(ctx context.Context, vaultID int64, model string, query []float32, k int) ([]SearchResult, error) {
	return m.store.Search(ctx, m.collection, query, k, Filter{VaultID: vaultID, Model: model})
}
