package vault

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *batchRecorder) handle(_ context.Context, relPaths []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, relPaths)
}

func (r *batchRecorder) seen() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool)
	for _, b := range r.batches {
		for _, p := range b {
			out[p] = true
		}
	}
	return out
}

func startWatcher(t *testing.T, root string, rec *batchRecorder) {
	t.Helper()
	w, err := NewWatcher(root, 50*time.Millisecond, rec.handle)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcher_ReportsMarkdownChanges(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "existing.md", "v1")

	rec := &batchRecorder{}
	startWatcher(t, root, rec)

	writeFile(t, root, "existing.md", "v2")
	writeFile(t, root, "new.md", "fresh")
	writeFile(t, root, "ignored.txt", "nope")

	assert.Eventually(t, func() bool {
		seen := rec.seen()
		return seen["existing.md"] && seen["new.md"]
	}, 3*time.Second, 20*time.Millisecond)
	assert.False(t, rec.seen()["ignored.txt"])
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	root := t.TempDir()
	rec := &batchRecorder{}
	startWatcher(t, root, rec)

	for i := 0; i < 5; i++ {
		writeFile(t, root, "burst.md", "x")
	}

	assert.Eventually(t, func() bool { return rec.seen()["burst.md"] }, 3*time.Second, 20*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.batches, 1)
	assert.Equal(t, []string{"burst.md"}, rec.batches[0])
}

func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &batchRecorder{}
	startWatcher(t, root, rec)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects"), 0755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, root, "projects/plan.md", "plan")

	assert.Eventually(t, func() bool { return rec.seen()["projects/plan.md"] }, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_IgnoresHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".obsidian/cache.md", "x")

	rec := &batchRecorder{}
	startWatcher(t, root, rec)

	writeFile(t, root, ".obsidian/cache.md", "y")
	writeFile(t, root, "visible.md", "z")

	assert.Eventually(t, func() bool { return rec.seen()["visible.md"] }, 3*time.Second, 20*time.Millisecond)
	assert.False(t, rec.seen()[".obsidian/cache.md"])
}
