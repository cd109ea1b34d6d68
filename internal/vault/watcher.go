package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"vaultgraph/internal/contextutil"
)

// DefaultDebounce is the quiet period after the last change before a batch fires.
const DefaultDebounce = 750 * time.Millisecond

// ChangeHandler receives the relative paths of markdown files that changed
// during one debounce window.
type ChangeHandler func(ctx context.Context, relPaths []string)

// Watcher watches a vault directory tree and reports batches of markdown changes.
type Watcher struct {
	root     string
	debounce time.Duration
	handler  ChangeHandler
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher for root. Every non-hidden directory is watched,
// and directories created later are added as they appear.
func NewWatcher(root string, debounce time.Duration, handler ChangeHandler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{root: root, debounce: debounce, handler: handler, watcher: fw}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run delivers change batches until ctx is done. It closes the underlying watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)
	defer func() {
		_ = w.watcher.Close()
	}()

	timer := time.NewTimer(0)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]struct{})
	logger.InfoContext(ctx, "vault watcher started", "root", w.root, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
					}
					// A moved-in directory may already hold notes.
					w.collectTree(event.Name, pending)
					timer.Reset(w.debounce)
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !IsMarkdown(event.Name) {
				continue
			}
			rel, ok := RelPath(w.root, event.Name)
			if !ok {
				continue
			}
			pending[rel] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for rel := range pending {
				batch = append(batch, rel)
			}
			sort.Strings(batch)
			clear(pending)
			logger.DebugContext(ctx, "vault changes detected", "count", len(batch))
			w.handler(ctx, batch)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "vault watcher error", "error", err)
		}
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) collectTree(dir string, pending map[string]struct{}) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsMarkdown(d.Name()) {
			return nil
		}
		if rel, ok := RelPath(w.root, path); ok {
			pending[rel] = struct{}{}
		}
		return nil
	})
}
