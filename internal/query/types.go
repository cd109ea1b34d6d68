package query

import (
	"errors"
	"time"
)

// Mode selects the retrieval strategy of a search.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeLexical  Mode = "lexical"
	ModeHybrid   Mode = "hybrid"
)

// ErrUnknownMode is returned by Search for a mode other than the ones above.
var ErrUnknownMode = errors.New("unknown search mode")

const (
	// DefaultLimit is used when a request does not set a limit.
	DefaultLimit = 10
	// MaxLimit caps the number of results of one request.
	MaxLimit = 100
	// rrfK is the Reciprocal Rank Fusion damping constant.
	rrfK = 60
)

// SearchRequest represents a search over one vault.
type SearchRequest struct {
	// WorkspacePath is the vault root directory.
	WorkspacePath string `json:"workspacePath"`
	// Query is the user's search text.
	Query string `json:"query"`
	// EmbeddingProvider and EmbeddingModel name the embedding space for
	// semantic search. Both must match the stored vectors; when either is
	// blank semantic results are empty.
	EmbeddingProvider string `json:"embeddingProvider,omitempty"`
	EmbeddingModel    string `json:"embeddingModel,omitempty"`
	// Mode is "semantic" (default), "lexical" or "hybrid".
	Mode Mode `json:"mode,omitempty"`
	// Limit is the maximum number of results. Defaults to 10, max 100.
	Limit int `json:"limit,omitempty"`
}

// SearchResult is one document returned by Search.
type SearchResult struct {
	// Path is the document path relative to the vault root.
	Path string `json:"path"`
	// Name is the file name without its markdown extension.
	Name string `json:"name"`
	// Similarity is the ranking score: cosine similarity for semantic search,
	// a relative match score for lexical search and a fused rank score for hybrid.
	Similarity float64    `json:"similarity"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
	ModifiedAt *time.Time `json:"modifiedAt,omitempty"`
}

// Hit is a ranked document from one retrieval strategy.
type Hit struct {
	DocID   int64  `json:"doc_id"`
	RelPath string `json:"rel_path"`
	// Snippet is a highlighted excerpt for lexical hits.
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score"`
	// Ordinal is the best matching segment for similarity hits.
	Ordinal    int       `json:"ordinal"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}
