package indexer

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"vaultgraph/internal/llm"
	"vaultgraph/internal/storage"
	"vaultgraph/internal/vault"
	"vaultgraph/internal/vectorstore"
	vectorstore_mocks "vaultgraph/internal/vectorstore/mocks"
)

// countingEmbedder returns deterministic vectors and records how many texts it embedded.
type countingEmbedder struct {
	id llm.EmbeddingIdentity

	mu      sync.Mutex
	calls   int
	texts   int
	fail    error
	blockCh chan struct{}
	started chan struct{}
}

func newCountingEmbedder(model string) *countingEmbedder {
	return &countingEmbedder{id: llm.EmbeddingIdentity{Provider: "test", Model: model, Dim: 4}}
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.texts += len(texts)
	fail, block, started := e.fail, e.blockCh, e.started
	e.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if block != nil {
		<-block
	}
	if fail != nil {
		return nil, fail
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		sum := float32(h.Sum32()%1000) + 1
		out[i] = []float32{sum, 1, float32(len(text)), 0.5}
	}
	return out, nil
}

func (e *countingEmbedder) Identity() llm.EmbeddingIdentity {
	return e.id
}

func (e *countingEmbedder) embedded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.texts
}

type testEnv struct {
	root  string
	db    *sql.DB
	store *storage.Store
	vault *vault.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// One connection makes total_changes() cover every write.
	db.SetMaxOpenConns(1)

	return &testEnv{
		root:  t.TempDir(),
		db:    db,
		store: storage.NewStore(db),
		vault: vault.NewManager(storage.NewVaultRepo(db)),
	}
}

func (env *testEnv) indexer(embedder llm.Embedder, mirror *vectorstore.Mirror) *Indexer {
	return NewIndexer(env.store, env.vault, NewMarkdownSegmenter(64, 0), embedder, mirror, 2)
}

func (env *testEnv) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(env.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

func (env *testEnv) totalChanges(t *testing.T) int {
	t.Helper()
	var n int
	if err := env.db.QueryRow("SELECT total_changes()").Scan(&n); err != nil {
		t.Fatalf("total_changes() error = %v", err)
	}
	return n
}

func (env *testEnv) vaultID(t *testing.T) int64 {
	t.Helper()
	v, err := env.vault.Find(context.Background(), env.root)
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	return v.ID
}

func mustReindex(t *testing.T, ix *Indexer, root string, force bool) *IndexReport {
	t.Helper()
	report, err := ix.Reindex(context.Background(), root, force)
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	return report
}

func outcomeOf(t *testing.T, report *IndexReport, rel string) DocumentResult {
	t.Helper()
	res, ok := report.Result(rel)
	if !ok {
		t.Fatalf("report has no entry for %s: %+v", rel, report.Documents)
	}
	return res
}

const twoSections = "# Alpha\n\nalpha body text about gardens and soil.\n\n# Beta\n\nbeta body text about rivers and boats.\n"

func TestIndexer_Reindex_UnchangedPassWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "See [[b]] for more.\n\n"+twoSections)
	env.write(t, "b.md", "# B\n\nThe b note.")
	env.write(t, "sub/c.md", "# C\n\nLinks to [a](../a.md).")

	emb := newCountingEmbedder("m1")
	ix := env.indexer(emb, nil)

	first := mustReindex(t, ix, env.root, false)
	if first.Reindexed != 3 || first.Failed != 0 {
		t.Fatalf("first pass = %+v", first)
	}
	if first.RunID == "" || first.VaultID == 0 {
		t.Errorf("first pass missing identity: %+v", first)
	}
	if first.Shared || first.Aborted {
		t.Errorf("first pass Shared=%v Aborted=%v", first.Shared, first.Aborted)
	}
	embeddedAfterFirst := emb.embedded()
	if embeddedAfterFirst == 0 {
		t.Fatal("first pass embedded nothing")
	}

	before := env.totalChanges(t)
	second := mustReindex(t, ix, env.root, false)
	if second.Unchanged != 3 || second.Reindexed != 0 {
		t.Errorf("second pass = %+v", second)
	}
	if got := env.totalChanges(t) - before; got != 0 {
		t.Errorf("unchanged pass performed %d row changes, want 0", got)
	}
	if emb.embedded() != embeddedAfterFirst {
		t.Errorf("unchanged pass embedded %d texts", emb.embedded()-embeddedAfterFirst)
	}
}

func TestIndexer_Reindex_ReembedsOnlyChangedSegments(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "doc.md", twoSections)

	emb := newCountingEmbedder("m1")
	ix := env.indexer(emb, nil)

	first := mustReindex(t, ix, env.root, false)
	if got := outcomeOf(t, first, "doc.md"); got.Segments != 2 || got.Embedded != 2 {
		t.Fatalf("first pass doc = %+v", got)
	}

	edited := strings.Replace(twoSections, "rivers and boats", "rivers, lakes and boats", 1)
	env.write(t, "doc.md", edited)
	second := mustReindex(t, ix, env.root, false)
	got := outcomeOf(t, second, "doc.md")
	if got.Outcome != OutcomeReindexed {
		t.Fatalf("second pass outcome = %s", got.Outcome)
	}
	if got.Embedded != 1 {
		t.Errorf("second pass embedded %d segments, want 1", got.Embedded)
	}
	if got.Reason != "content changed" {
		t.Errorf("Reason = %q", got.Reason)
	}

	// Swapping the sections moves both hashes to new ordinals; vectors are reused.
	parts := strings.SplitN(edited, "# Beta", 2)
	env.write(t, "doc.md", "# Beta"+strings.TrimRight(parts[1], "\n")+"\n\n"+strings.TrimRight(parts[0], "\n")+"\n\n")
	third := mustReindex(t, ix, env.root, false)
	if got := outcomeOf(t, third, "doc.md"); got.Embedded != 0 || got.Segments != 2 {
		t.Errorf("reordered doc = %+v, want 2 segments and 0 embedded", got)
	}
}

func TestIndexer_Reindex_TouchOnlyRefreshesStat(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "# A\n\nsame text")

	ix := env.indexer(newCountingEmbedder("m1"), nil)
	mustReindex(t, ix, env.root, false)

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(env.root, "a.md"), later, later); err != nil {
		t.Fatal(err)
	}

	before := env.totalChanges(t)
	report := mustReindex(t, ix, env.root, false)
	if got := outcomeOf(t, report, "a.md"); got.Outcome != OutcomeUnchanged {
		t.Fatalf("outcome = %s, want unchanged", got.Outcome)
	}
	if env.totalChanges(t) == before {
		t.Error("drifted stat was not refreshed")
	}

	before = env.totalChanges(t)
	mustReindex(t, ix, env.root, false)
	if got := env.totalChanges(t) - before; got != 0 {
		t.Errorf("pass after refresh performed %d row changes, want 0", got)
	}
}

func TestIndexer_Reindex_RemovesDeletedFiles(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "Points to [[b]].")
	env.write(t, "b.md", "# B")

	ix := env.indexer(nil, nil)
	mustReindex(t, ix, env.root, false)

	if err := os.Remove(filepath.Join(env.root, "b.md")); err != nil {
		t.Fatal(err)
	}
	report := mustReindex(t, ix, env.root, false)
	if got := outcomeOf(t, report, "b.md"); got.Outcome != OutcomeRemoved {
		t.Errorf("b.md outcome = %s, want removed", got.Outcome)
	}
	if report.Removed != 1 || report.Unchanged != 1 {
		t.Errorf("report = %+v", report)
	}

	links, err := env.store.ListLinks(context.Background(), env.vaultID(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 || links[0].TargetDocID != nil {
		t.Errorf("link after delete = %+v, want one unresolved link", links)
	}
}

func TestIndexer_ProcessFile_VanishedFile(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "Points to [[b]].")
	env.write(t, "b.md", "# B")

	ix := env.indexer(nil, nil)
	mustReindex(t, ix, env.root, false)

	ctx := context.Background()
	v, err := env.vault.Find(ctx, env.root)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := env.store.GetDocument(ctx, v.ID, "b.md")
	if err != nil {
		t.Fatal(err)
	}

	// Discovered with a new size, then removed before it is read.
	absPath := filepath.Join(env.root, "b.md")
	if err := os.Remove(absPath); err != nil {
		t.Fatal(err)
	}
	file := vault.ScannedFile{RelPath: "b.md", AbsPath: absPath, Size: doc.LastSourceSize + 1, ModTime: doc.LastSourceMtime}

	if got := ix.processFile(ctx, v, file, doc, false); got.Outcome != OutcomeRemoved {
		t.Errorf("processFile() outcome = %s (%s), want removed", got.Outcome, got.Reason)
	}
	if _, err := env.store.GetDocument(ctx, v.ID, "b.md"); !storage.IsNotFound(err) {
		t.Errorf("GetDocument() error = %v, want not found", err)
	}

	// Never indexed and already gone: nothing to delete, still removed.
	gone := vault.ScannedFile{RelPath: "c.md", AbsPath: filepath.Join(env.root, "c.md"), Size: 1}
	if got := ix.processFile(ctx, v, gone, nil, false); got.Outcome != OutcomeRemoved {
		t.Errorf("processFile() new file outcome = %s (%s), want removed", got.Outcome, got.Reason)
	}
}

func TestIndexer_Reindex_EmbeddingFailureIsolated(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "# A\n\ntext")

	emb := newCountingEmbedder("m1")
	emb.fail = errors.New("provider unavailable")
	ix := env.indexer(emb, nil)

	report := mustReindex(t, ix, env.root, false)
	got := outcomeOf(t, report, "a.md")
	if got.Outcome != OutcomeFailed || !strings.Contains(got.Reason, "provider unavailable") {
		t.Fatalf("outcome = %+v, want failed with reason", got)
	}
	if _, err := env.store.GetDocument(context.Background(), env.vaultID(t), "a.md"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("failed document was stored: err = %v", err)
	}

	emb.mu.Lock()
	emb.fail = nil
	emb.mu.Unlock()

	report = mustReindex(t, ix, env.root, false)
	if got := outcomeOf(t, report, "a.md"); got.Outcome != OutcomeReindexed {
		t.Errorf("retry outcome = %s, want reindexed", got.Outcome)
	}
}

func TestIndexer_Reindex_WithoutEmbedder(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", twoSections)

	ix := env.indexer(nil, nil)
	report := mustReindex(t, ix, env.root, false)
	if got := outcomeOf(t, report, "a.md"); got.Outcome != OutcomeReindexed || got.Embedded != 0 {
		t.Fatalf("outcome = %+v", got)
	}

	stats, err := ix.CoverageStats(context.Background(), env.root)
	if err != nil {
		t.Fatalf("CoverageStats() error = %v", err)
	}
	if stats.Segments != 2 || stats.SegmentsEmbedded != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.EmbeddingModel != "" {
		t.Errorf("EmbeddingModel = %q, want empty", stats.EmbeddingModel)
	}
}

func TestIndexer_Reindex_ModelChangeReembeds(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", twoSections)

	mustReindex(t, env.indexer(newCountingEmbedder("m1"), nil), env.root, false)

	emb2 := newCountingEmbedder("m2")
	report := mustReindex(t, env.indexer(emb2, nil), env.root, false)
	got := outcomeOf(t, report, "a.md")
	if got.Reason != "embedding model changed" || got.Embedded != 2 {
		t.Errorf("outcome = %+v, want model change with 2 embedded", got)
	}

	doc, err := env.store.GetDocument(context.Background(), env.vaultID(t), "a.md")
	if err != nil {
		t.Fatal(err)
	}
	if doc.LastEmbeddingModel != "test/m2" || doc.LastEmbeddingDim != 4 {
		t.Errorf("stored identity = %s/%d", doc.LastEmbeddingModel, doc.LastEmbeddingDim)
	}
}

func TestIndexer_Reindex_ForceReusesVectors(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", twoSections)

	emb := newCountingEmbedder("m1")
	ix := env.indexer(emb, nil)
	mustReindex(t, ix, env.root, false)
	embedded := emb.embedded()

	report := mustReindex(t, ix, env.root, true)
	got := outcomeOf(t, report, "a.md")
	if got.Outcome != OutcomeReindexed || got.Reason != "forced" {
		t.Errorf("outcome = %+v", got)
	}
	if emb.embedded() != embedded {
		t.Errorf("forced pass embedded %d texts, want 0", emb.embedded()-embedded)
	}
}

func TestIndexer_Reindex_InconsistentSegmentsRebuild(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", twoSections)

	emb := newCountingEmbedder("m1")
	ix := env.indexer(emb, nil)
	mustReindex(t, ix, env.root, false)

	if _, err := env.db.Exec("UPDATE embedding SET vec = x'0000'"); err != nil {
		t.Fatal(err)
	}

	report := mustReindex(t, ix, env.root, true)
	got := outcomeOf(t, report, "a.md")
	if !got.Rebuilt {
		t.Errorf("outcome = %+v, want rebuilt", got)
	}
	if got.Embedded != 2 {
		t.Errorf("Embedded = %d, want 2 after corrupt vectors", got.Embedded)
	}

	var bad int
	if err := env.db.QueryRow("SELECT COUNT(*) FROM embedding WHERE length(vec) != dim * 4").Scan(&bad); err != nil {
		t.Fatal(err)
	}
	if bad != 0 {
		t.Errorf("%d malformed vectors remain", bad)
	}
}

func TestIndexer_Reindex_Coalesces(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "# A\n\ntext")

	emb := newCountingEmbedder("m1")
	emb.blockCh = make(chan struct{})
	emb.started = make(chan struct{}, 1)
	ix := env.indexer(emb, nil)

	var wg sync.WaitGroup
	reports := make([]*IndexReport, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[0], _ = ix.Reindex(context.Background(), env.root, false)
	}()

	<-emb.started
	wg.Add(1)
	go func() {
		defer wg.Done()
		reports[1], _ = ix.Reindex(context.Background(), env.root, false)
	}()
	// Let the second caller reach the in-flight pass before releasing it.
	time.Sleep(100 * time.Millisecond)
	close(emb.blockCh)
	wg.Wait()

	if reports[0] == nil || reports[1] == nil {
		t.Fatal("Reindex() returned nil report")
	}
	if reports[0].RunID != reports[1].RunID {
		t.Errorf("run ids differ: %s vs %s", reports[0].RunID, reports[1].RunID)
	}
	if reports[0].Shared || !reports[1].Shared {
		t.Errorf("Shared = %v, %v; want false, true", reports[0].Shared, reports[1].Shared)
	}
	if emb.embedded() != 1 {
		t.Errorf("embedded %d texts, want 1", emb.embedded())
	}
}

func TestIndexer_Reindex_Aborted(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "# A")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := env.indexer(nil, nil).Reindex(ctx, env.root, false)
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if !report.Aborted {
		t.Error("Aborted = false, want true")
	}
	if report.Reindexed != 0 {
		t.Errorf("aborted pass reindexed %d documents", report.Reindexed)
	}
}

func TestIndexer_Reindex_MissingRoot(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.indexer(nil, nil).Reindex(context.Background(), filepath.Join(env.root, "missing"), false); err == nil {
		t.Error("Reindex() expected error for missing root")
	}
}

func TestIndexer_IndexFile(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "Waiting for [[later]].")

	ix := env.indexer(nil, nil)
	mustReindex(t, ix, env.root, false)

	env.write(t, "notes/later.md", "# Later")
	res, err := ix.IndexFile(context.Background(), env.root, "notes/later.md")
	if err != nil {
		t.Fatalf("IndexFile() error = %v", err)
	}
	if res.Outcome != OutcomeReindexed {
		t.Errorf("IndexFile() outcome = %s, want reindexed", res.Outcome)
	}

	backlinks, err := env.store.Backlinks(context.Background(), env.vaultID(t), "notes/later.md")
	if err != nil {
		t.Fatal(err)
	}
	if len(backlinks) != 1 || backlinks[0].SourcePath != "a.md" {
		t.Errorf("Backlinks() = %+v, want link from a.md", backlinks)
	}

	if err := os.Remove(filepath.Join(env.root, "notes", "later.md")); err != nil {
		t.Fatal(err)
	}
	res, err = ix.IndexFile(context.Background(), env.root, "notes/later.md")
	if err != nil {
		t.Fatalf("IndexFile() after delete error = %v", err)
	}
	if res.Outcome != OutcomeRemoved {
		t.Errorf("IndexFile() after delete outcome = %s, want removed", res.Outcome)
	}

	for _, bad := range []string{"", "../escape.md", "/abs.md", "image.png"} {
		if _, err := ix.IndexFile(context.Background(), env.root, bad); err == nil {
			t.Errorf("IndexFile(%q) expected error", bad)
		}
	}
}

func TestIndexer_RemoveFile(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.md", "# A")

	ix := env.indexer(nil, nil)
	mustReindex(t, ix, env.root, false)

	res, err := ix.RemoveFile(context.Background(), env.root, "a.md")
	if err != nil {
		t.Fatalf("RemoveFile() error = %v", err)
	}
	if res.Outcome != OutcomeRemoved {
		t.Errorf("RemoveFile() outcome = %s", res.Outcome)
	}
	docs, err := env.store.ListDocuments(context.Background(), env.vaultID(t))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 0 {
		t.Errorf("documents after RemoveFile = %d, want 0", len(docs))
	}
}

func TestIndexer_MirrorsVectors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	env := newTestEnv(t)
	env.write(t, "a.md", twoSections)

	mockVectorStore := vectorstore_mocks.NewMockVectorStore(ctrl)
	mirror := vectorstore.NewMirror(mockVectorStore, "segments")

	mockVectorStore.EXPECT().
		Upsert(gomock.Any(), "segments", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, points []vectorstore.Point) error {
			if len(points) != 2 {
				t.Errorf("Upsert() got %d points, want 2", len(points))
			}
			return nil
		})
	mockVectorStore.EXPECT().
		DeleteByFilter(gomock.Any(), "segments", vectorstore.Filter{VaultID: 1, RelPath: "a.md"}).
		Return(errors.New("mirror down"))

	ix := env.indexer(newCountingEmbedder("m1"), mirror)
	mustReindex(t, ix, env.root, false)

	if err := os.Remove(filepath.Join(env.root, "a.md")); err != nil {
		t.Fatal(err)
	}
	// Mirror failures never fail the document.
	report := mustReindex(t, ix, env.root, false)
	if got := outcomeOf(t, report, "a.md"); got.Outcome != OutcomeRemoved {
		t.Errorf("outcome = %s, want removed", got.Outcome)
	}
}

func TestKeyedMutex(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.Lock("a")
	acquired := make(chan struct{})
	go func() {
		unlock := km.Lock("a")
		close(acquired)
		unlock()
	}()

	// Other keys are not blocked.
	unlockB := km.Lock("b")
	unlockB()

	select {
	case <-acquired:
		t.Fatal("second Lock(a) acquired while held")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	<-acquired

	if n := km.size(); n != 0 {
		t.Errorf("size() = %d after all unlocks, want 0", n)
	}
}
