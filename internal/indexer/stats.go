package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// CoverageStats contains statistics about what a vault's index holds.
type CoverageStats struct {
	WorkspaceRoot string `json:"workspace_root"`
	// DocsIndexed is the number of documents in the index.
	DocsIndexed int `json:"docs_indexed"`
	// DocsWith0Segments is the number of documents that produced no segments.
	DocsWith0Segments int `json:"docs_with_0_segments"`
	// Segments is the total number of stored segments.
	Segments int `json:"segments"`
	// SegmentsEmbedded is the number of segments with a stored vector.
	SegmentsEmbedded int `json:"segments_embedded"`
	// Links is the number of stored links, UnresolvedLinks those without a target.
	Links           int `json:"links"`
	UnresolvedLinks int `json:"unresolved_links"`
	// SegmentTokenStats contains statistics about token counts per segment.
	SegmentTokenStats SegmentTokenStats `json:"segment_token_stats"`
	// ChunkingVersion is the version the indexer currently writes.
	ChunkingVersion string `json:"chunking_version"`
	// StoredChunkingVersions lists every version present in the index.
	StoredChunkingVersions []string `json:"stored_chunking_versions"`
	EmbeddingModel         string   `json:"embedding_model,omitempty"`
	// IndexVersion is a hash identifying the index build (chunking version + embedding model).
	IndexVersion string `json:"index_version"`
}

// SegmentTokenStats contains statistics about token counts in segments.
type SegmentTokenStats struct {
	// Min is the minimum token count across all segments.
	Min int `json:"min"`
	// Max is the maximum token count across all segments.
	Max int `json:"max"`
	// Mean is the mean token count across all segments.
	Mean float64 `json:"mean"`
	// P95 is the 95th percentile token count.
	P95 int `json:"p95"`
}

// CoverageStats computes coverage statistics for the vault at vaultRoot.
func (ix *Indexer) CoverageStats(ctx context.Context, vaultRoot string) (*CoverageStats, error) {
	v, err := ix.vaults.Find(ctx, vaultRoot)
	if err != nil {
		return nil, err
	}

	cov, err := ix.store.Coverage(ctx, v.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute coverage: %w", err)
	}

	stats := &CoverageStats{
		WorkspaceRoot:          v.WorkspaceRoot,
		DocsIndexed:            cov.Documents,
		DocsWith0Segments:      cov.EmptyDocuments,
		Segments:               cov.Segments,
		SegmentsEmbedded:       cov.EmbeddedSegments,
		Links:                  cov.Links,
		UnresolvedLinks:        cov.UnresolvedLinks,
		SegmentTokenStats:      computeTokenStats(cov.SegmentTokenCount),
		ChunkingVersion:        ix.segmenter.Version(),
		StoredChunkingVersions: cov.ChunkingVersions,
	}
	if ix.embedder != nil {
		stats.EmbeddingModel = ix.embedder.Identity().Key()
	}
	stats.IndexVersion = indexVersion(stats.ChunkingVersion, stats.EmbeddingModel)

	return stats, nil
}

// indexVersion hashes the settings that determine index contents.
func indexVersion(chunkingVersion, embeddingModel string) string {
	hash := sha256.Sum256([]byte(chunkingVersion + "|" + embeddingModel))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}

// computeTokenStats computes min, max, mean, and p95 from token counts.
func computeTokenStats(tokenCounts []int) SegmentTokenStats {
	if len(tokenCounts) == 0 {
		return SegmentTokenStats{}
	}

	// Sort for percentile calculation
	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, count := range tokenCounts {
		sum += count
	}
	mean := float64(sum) / float64(len(tokenCounts))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return SegmentTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}
