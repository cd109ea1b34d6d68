package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"vaultgraph/internal/contextutil"
)

// ScannedFile represents a markdown file found during vault scanning.
type ScannedFile struct {
	RelPath string // Relative path from vault root (e.g., "projects/meeting-notes.md")
	Folder  string // Folder path (path components except filename, e.g., "projects")
	AbsPath string // Absolute file path
	Size    int64
	ModTime int64 // unix nanoseconds
}

// IsMarkdown reports whether a file name has a markdown extension.
func IsMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// skipDir reports whether a directory is hidden tool state (.obsidian, .git, .trash).
func skipDir(name string) bool {
	return len(name) > 1 && strings.HasPrefix(name, ".")
}

// Scan walks root and returns every markdown file, sorted by relative path.
// Entries that cannot be read below the root are logged and skipped; only a
// failure to read the root itself is an error.
func Scan(ctx context.Context, root string) ([]ScannedFile, error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat vault root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", root)
	}

	var scannedFiles []ScannedFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logger.WarnContext(ctx, "skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !IsMarkdown(d.Name()) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			// Removed between listing and stat.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			logger.WarnContext(ctx, "skipping file without stat", "path", path, "error", err)
			return nil
		}

		relPath, ok := RelPath(root, path)
		if !ok {
			return nil
		}

		scannedFiles = append(scannedFiles, ScannedFile{
			RelPath: relPath,
			Folder:  folderOf(relPath),
			AbsPath: path,
			Size:    fi.Size(),
			ModTime: fi.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan vault %s: %w", root, err)
	}

	sort.Slice(scannedFiles, func(i, j int) bool {
		return scannedFiles[i].RelPath < scannedFiles[j].RelPath
	})
	return scannedFiles, nil
}

// Stat describes a single vault file. The returned error wraps fs.ErrNotExist
// when the file is gone.
func Stat(root, relPath string) (ScannedFile, error) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	fi, err := os.Stat(abs)
	if err != nil {
		return ScannedFile{}, fmt.Errorf("failed to stat %s: %w", relPath, err)
	}
	if fi.IsDir() {
		return ScannedFile{}, fmt.Errorf("%s is a directory", relPath)
	}
	return ScannedFile{
		RelPath: relPath,
		Folder:  folderOf(relPath),
		AbsPath: abs,
		Size:    fi.Size(),
		ModTime: fi.ModTime().UnixNano(),
	}, nil
}

// RelPath converts an absolute path under root to a forward-slash relative
// path. It reports false for paths outside root or under hidden directories.
func RelPath(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	parts := strings.Split(rel, "/")
	for _, part := range parts[:len(parts)-1] {
		if skipDir(part) {
			return "", false
		}
	}
	return rel, true
}

func folderOf(relPath string) string {
	folder := filepath.ToSlash(filepath.Dir(relPath))
	if folder == "." {
		return ""
	}
	return folder
}
