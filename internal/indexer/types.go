package indexer

// Chunk represents one segment of a document produced by the segmenter.
type Chunk struct {
	Index       int
	HeadingPath string
	Text        string
	Tokens      int
	Hash        Fingerprint
}
