package storage

import "time"

// Vault represents one indexed root directory in the database.
type Vault struct {
	ID            int64
	WorkspaceRoot string
	CreatedAt     time.Time
}

// Document represents one markdown source file in the database.
type Document struct {
	ID                 int64
	VaultID            int64
	RelPath            string // Relative path from vault root, slash separated
	PathKey            string // Normalized lookup key (see links.NormalizeKey)
	NameKey            string // Basename of PathKey
	Content            string // Empty when listed without content
	ChunkingVersion    string
	LastHash           string // SHA-256 hex of file content
	LastSourceSize     int64
	LastSourceMtime    int64  // Unix nanoseconds
	LastEmbeddingModel string // "provider/model", empty when never embedded
	LastEmbeddingDim   int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SegmentState is a stored segment joined with its embedding, if any.
type SegmentState struct {
	ID          int64
	Ordinal     int
	Hash        string
	HeadingPath string
	TokenCount  int
	// Embedding fields are zero when the segment has no embedding row.
	HasEmbedding   bool
	EmbeddingModel string
	EmbeddingDim   int
	Vector         []byte
}

// Link is one outgoing reference of a document.
type Link struct {
	ID           int64
	SourceDocID  int64
	TargetDocID  *int64 // nil means unresolved
	TargetPath   string // Raw target token as written
	TargetAnchor string
	Alias        string
	IsEmbed      bool
	IsWiki       bool
	IsExternal   bool
}

// LinkView is a link together with the paths of both endpoints.
type LinkView struct {
	Link
	SourcePath string
	TargetRel  string // Target document's rel_path, empty when unresolved
}

// LexicalHit is one full-text match.
type LexicalHit struct {
	DocID       int64
	RelPath     string
	Snippet     string
	Score       float64
	CreatedAt   time.Time
	SourceMtime int64
}

// StoredEmbedding is one segment vector with its owning document.
type StoredEmbedding struct {
	DocID       int64
	RelPath     string
	SegmentID   int64
	Ordinal     int
	Vector      []float32
	CreatedAt   time.Time
	SourceMtime int64
}

// Coverage summarizes what a vault's index holds.
type Coverage struct {
	Documents         int
	EmptyDocuments    int
	Segments          int
	EmbeddedSegments  int
	Links             int
	UnresolvedLinks   int
	ChunkingVersions  []string
	SegmentTokenCount []int
}
