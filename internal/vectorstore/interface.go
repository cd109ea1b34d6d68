package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks vaultgraph/internal/vectorstore VectorStore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Payload keys stored with every segment point.
const (
	MetaVaultID     = "vault_id"
	MetaRelPath     = "rel_path"
	MetaOrdinal     = "ordinal"
	MetaModel       = "model"
	MetaHeadingPath = "heading_path"
)

// Point represents a vector point with metadata.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// Filter restricts searches and deletes. Zero fields are not applied.
type Filter struct {
	VaultID int64
	Model   string
	RelPath string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search restricted by filter.
	Search(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]SearchResult, error)

	// Delete removes points by their IDs.
	Delete(ctx context.Context, collection string, ids []string) error

	// DeleteByFilter removes every point matching filter.
	DeleteByFilter(ctx context.Context, collection string, filter Filter) error
}

// SegmentPointID derives a stable point ID for one segment position, so a
// re-embedded segment overwrites its previous point.
func SegmentPointID(vaultID int64, relPath string, ordinal int) string {
	name := fmt.Sprintf("vaultgraph:segment:%d:%s:%d", vaultID, relPath, ordinal)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}
