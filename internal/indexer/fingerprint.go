package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// Fingerprint is the SHA-256 hex digest of a document or chunk body.
// Staleness decisions compare fingerprints before any chunking or embedding work.
type Fingerprint string

// FingerprintOf hashes raw content.
func FingerprintOf(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// FingerprintOfString hashes text content.
func FingerprintOfString(s string) Fingerprint {
	return FingerprintOf([]byte(s))
}

// Matches reports whether f equals a stored hash. An empty stored hash never matches.
func (f Fingerprint) Matches(stored string) bool {
	return stored != "" && string(f) == stored
}

func (f Fingerprint) String() string {
	return string(f)
}

// SourceStat is the cheap size+mtime pre-filter checked before hashing a file.
type SourceStat struct {
	Size    int64
	ModTime int64 // unix nanoseconds
}

// StatOf extracts a SourceStat from file info.
func StatOf(info os.FileInfo) SourceStat {
	return SourceStat{Size: info.Size(), ModTime: info.ModTime().UnixNano()}
}

// Matches reports whether the stat equals the stored size and mtime.
func (s SourceStat) Matches(size, modTime int64) bool {
	return s.Size == size && s.ModTime == modTime
}
