package links

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
)

var attachmentExtRe = regexp.MustCompile(`^\.[a-z0-9]{1,5}$`)

// NormalizeKey turns a vault-relative path or link target into a lookup key:
// separators become "/", "./" and leading "/" are dropped, a trailing .md or
// .markdown is stripped and the result is lowercased.
func NormalizeKey(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	key := strings.ToLower(p)
	for _, ext := range []string{".md", ".markdown"} {
		if strings.HasSuffix(key, ext) {
			return key[:len(key)-len(ext)]
		}
	}
	return key
}

// NameKey returns the basename part of a normalized key.
func NameKey(key string) string {
	return path.Base(key)
}

// Suffixes returns every trailing path of key, longest first: "a/b/c" yields
// "a/b/c", "b/c" and "c".
func Suffixes(key string) []string {
	if key == "" {
		return nil
	}
	out := []string{key}
	for i := 0; i < len(key); i++ {
		if key[i] == '/' && i+1 < len(key) {
			out = append(out, key[i+1:])
		}
	}
	return out
}

// IsAttachment reports whether a target names a non-markdown file such as an image.
func IsAttachment(target string) bool {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(target, `\`, "/")))
	if ext == ".md" || ext == ".markdown" {
		return false
	}
	return attachmentExtRe.MatchString(ext)
}

// QueryKey returns the key recorded for a local reference so that a document
// created later under that key can re-resolve the reference.
func QueryKey(sourceRelPath string, ref Reference) string {
	if ref.IsExternal {
		return ""
	}
	if ref.IsWiki || strings.HasPrefix(ref.Target, "/") {
		return NormalizeKey(ref.Target)
	}
	return NormalizeKey(relativeTo(sourceRelPath, ref.Target))
}

// QueryKeys returns every key under which a later document can satisfy ref:
// the QueryKey, plus the vault-relative key that Resolve falls back to for a
// markdown link.
func QueryKeys(sourceRelPath string, ref Reference) []string {
	key := QueryKey(sourceRelPath, ref)
	if key == "" {
		return nil
	}
	keys := []string{key}
	if fallback := NormalizeKey(ref.Target); fallback != "" && fallback != key {
		keys = append(keys, fallback)
	}
	return keys
}

func relativeTo(sourceRelPath, target string) string {
	dir := path.Dir(strings.ReplaceAll(sourceRelPath, `\`, "/"))
	return path.Join(dir, strings.ReplaceAll(target, `\`, "/"))
}

// PathIndex looks documents up by normalized key within one vault.
type PathIndex interface {
	// LookupPathKey finds the document whose full path key equals key.
	LookupPathKey(ctx context.Context, vaultID int64, key string) (int64, bool, error)
	// LookupSuffixKey finds the document whose path key ends with key on a
	// segment boundary, preferring the shortest path and then lexical order.
	LookupSuffixKey(ctx context.Context, vaultID int64, key string) (int64, bool, error)
}

// Resolver maps references to document ids.
type Resolver struct {
	index   PathIndex
	vaultID int64
}

// NewResolver creates a resolver for one vault.
func NewResolver(index PathIndex, vaultID int64) *Resolver {
	return &Resolver{index: index, vaultID: vaultID}
}

// Resolve returns the target document id of ref, or nil when the target has no
// backing document. Markdown links are tried relative to the source directory
// first; then the vault-relative path; then a suffix or basename match.
// Malformed targets are never an error, only unresolved.
func (r *Resolver) Resolve(ctx context.Context, sourceRelPath string, ref Reference) (*int64, error) {
	if ref.IsExternal {
		return nil, nil
	}

	var candidates []string
	if !ref.IsWiki && !strings.HasPrefix(ref.Target, "/") {
		candidates = append(candidates, NormalizeKey(relativeTo(sourceRelPath, ref.Target)))
	}
	key := NormalizeKey(ref.Target)
	candidates = append(candidates, key)

	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		id, ok, err := r.index.LookupPathKey(ctx, r.vaultID, c)
		if err != nil {
			return nil, fmt.Errorf("failed to look up path %q: %w", c, err)
		}
		if ok {
			return &id, nil
		}
	}

	if key == "" {
		return nil, nil
	}
	id, ok, err := r.index.LookupSuffixKey(ctx, r.vaultID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to look up suffix %q: %w", key, err)
	}
	if ok {
		return &id, nil
	}
	return nil, nil
}
