package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vaultgraph/internal/storage"
	storage_mocks "vaultgraph/internal/storage/mocks"
)

func TestBuildNodeDegreeMap(t *testing.T) {
	data := ViewData{
		Nodes: []Node{{ID: "1"}, {ID: "2"}, {ID: "3"}},
		Edges: []Edge{{Source: "1", Target: "2"}, {Source: "1", Target: "3"}},
	}
	assert.Equal(t, map[string]int{"1": 2, "2": 1, "3": 1}, BuildNodeDegreeMap(data))
}

func TestBuildNodeDegreeMap_SelfAndIsolated(t *testing.T) {
	data := ViewData{
		Nodes: []Node{{ID: "a"}, {ID: "b"}, {ID: GhostPrefix + "x", Unresolved: true}},
		Edges: []Edge{
			{Source: "a", Target: "a"},
			{Source: "a", Target: GhostPrefix + "x", Unresolved: true},
		},
	}
	degrees := BuildNodeDegreeMap(data)
	assert.Equal(t, 3, degrees["a"])
	assert.Equal(t, 0, degrees["b"])
	assert.Equal(t, 1, degrees[GhostPrefix+"x"])
}

func TestVisualStateAndOpenAction(t *testing.T) {
	resolved := Node{ID: "notes/a.md", RelPath: "notes/a.md"}
	ghost := Node{ID: GhostPrefix + "missing", RelPath: "Missing", Unresolved: true}

	assert.Equal(t, StateResolved, VisualStateOf(resolved))
	assert.Equal(t, StateUnresolved, VisualStateOf(ghost))

	assert.Equal(t, OpenAction{Kind: ActionOpenPath, Path: "notes/a.md"}, OpenActionFor(resolved))
	assert.Equal(t, OpenAction{Kind: ActionUnresolvedTarget, RawPath: "Missing"}, OpenActionFor(ghost))
}

func TestDegradeProfileFor(t *testing.T) {
	small := DegradeProfileFor(100, 200)
	assert.False(t, small.IsDegraded)
	assert.Equal(t, 200, small.EdgeRenderLimit)
	assert.Equal(t, 220, small.SimulationTickCap)

	large := DegradeProfileFor(400, 1500)
	assert.True(t, large.IsDegraded)
	assert.Equal(t, 800, large.EdgeRenderLimit)
	assert.Equal(t, 185, large.SimulationTickCap)
	assert.Greater(t, large.LabelVisibleScale, small.LabelVisibleScale)

	assert.True(t, DegradeProfileFor(300, 0).IsDegraded)
	assert.True(t, DegradeProfileFor(0, 1000).IsDegraded)
	assert.Equal(t, 800, DegradeProfileFor(10, 950).EdgeRenderLimit)
}

func TestDegradeProfileFor_Monotonic(t *testing.T) {
	sizes := []int{0, 1, 50, 299, 300, 301, 500, 799, 800, 801, 999, 1000, 5000}
	for _, n := range sizes {
		prev := DegradeProfileFor(n, 0)
		for _, e := range sizes[1:] {
			cur := DegradeProfileFor(n, e)
			if prev.IsDegraded {
				assert.True(t, cur.IsDegraded, fmt.Sprintf("nodes=%d edges=%d", n, e))
			}
			assert.LessOrEqual(t, cur.SimulationTickCap, prev.SimulationTickCap)
			assert.GreaterOrEqual(t, cur.LabelVisibleScale, prev.LabelVisibleScale)
			prev = cur
		}
	}
	for _, e := range sizes {
		prev := DegradeProfileFor(0, e)
		for _, n := range sizes[1:] {
			cur := DegradeProfileFor(n, e)
			assert.LessOrEqual(t, cur.EdgeRenderLimit, maxRenderedEdges)
			assert.LessOrEqual(t, cur.SimulationTickCap, prev.SimulationTickCap)
			if prev.IsDegraded {
				assert.True(t, cur.IsDegraded)
			}
			prev = cur
		}
	}
}

func TestSampleEdgesForRender(t *testing.T) {
	edges := []Edge{
		{Source: "a", Target: "b"},
		{Source: "a", Target: "ghost1", Unresolved: true},
		{Source: "c", Target: "d"},
		{Source: "c", Target: "ghost2", Unresolved: true},
	}

	got := SampleEdgesForRender(edges, 3)
	assert.Equal(t, []Edge{
		{Source: "a", Target: "ghost1", Unresolved: true},
		{Source: "c", Target: "ghost2", Unresolved: true},
		{Source: "a", Target: "b"},
	}, got)

	assert.Len(t, SampleEdgesForRender(edges, 10), 4)
	assert.Empty(t, SampleEdgesForRender(edges, 0))
	assert.Equal(t, []Edge{{Source: "a", Target: "ghost1", Unresolved: true}}, SampleEdgesForRender(edges, 1))
}

func TestBuildSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	target := int64(2)
	src := storage_mocks.NewMockIndexStore(ctrl)
	src.EXPECT().ListDocuments(gomock.Any(), int64(7)).Return([]storage.Document{
		{ID: 1, RelPath: "index.md"},
		{ID: 2, RelPath: "docs/guide.md"},
	}, nil)
	src.EXPECT().ListLinks(gomock.Any(), int64(7)).Return([]storage.LinkView{
		{Link: storage.Link{SourceDocID: 1, TargetDocID: &target, TargetPath: "docs/guide", IsWiki: true}, SourcePath: "index.md", TargetRel: "docs/guide.md"},
		{Link: storage.Link{SourceDocID: 1, TargetDocID: &target, TargetPath: "docs/guide.md"}, SourcePath: "index.md", TargetRel: "docs/guide.md"},
		{Link: storage.Link{SourceDocID: 1, TargetPath: "Missing Note", IsWiki: true}, SourcePath: "index.md"},
		{Link: storage.Link{SourceDocID: 2, TargetPath: "missing note", IsWiki: true}, SourcePath: "docs/guide.md"},
		{Link: storage.Link{SourceDocID: 2, TargetPath: "../index.md"}, SourcePath: "docs/guide.md", TargetRel: "index.md"},
		{Link: storage.Link{SourceDocID: 2, TargetPath: "https://example.com", IsExternal: true}, SourcePath: "docs/guide.md"},
		{Link: storage.Link{SourceDocID: 2, TargetPath: "img/diagram.png", IsEmbed: true}, SourcePath: "docs/guide.md"},
	}, nil)

	data, err := BuildSnapshot(context.Background(), src, 7)
	require.NoError(t, err)

	assert.Equal(t, []Node{
		{ID: "index.md", RelPath: "index.md", FileName: "index.md"},
		{ID: "docs/guide.md", RelPath: "docs/guide.md", FileName: "guide.md"},
		{ID: "unresolved:missing note", RelPath: "Missing Note", FileName: "Missing Note", Unresolved: true},
	}, data.Nodes)

	assert.Equal(t, []Edge{
		{Source: "index.md", Target: "docs/guide.md"},
		{Source: "index.md", Target: "unresolved:missing note", Unresolved: true},
		{Source: "docs/guide.md", Target: "unresolved:missing note", Unresolved: true},
		{Source: "docs/guide.md", Target: "index.md"},
	}, data.Edges)

	degrees := BuildNodeDegreeMap(data)
	assert.Equal(t, 2, degrees["unresolved:missing note"])
	assert.Equal(t, 3, degrees["index.md"])
}

func TestBuildSnapshot_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	src := storage_mocks.NewMockIndexStore(ctrl)
	src.EXPECT().ListDocuments(gomock.Any(), int64(1)).Return(nil, errors.New("database is locked"))

	_, err := BuildSnapshot(context.Background(), src, 1)
	assert.ErrorContains(t, err, "failed to list documents")

	src.EXPECT().ListDocuments(gomock.Any(), int64(1)).Return(nil, nil)
	src.EXPECT().ListLinks(gomock.Any(), int64(1)).Return(nil, errors.New("database is locked"))
	_, err = BuildSnapshot(context.Background(), src, 1)
	assert.ErrorContains(t, err, "failed to list links")
}

func TestPlan(t *testing.T) {
	data := ViewData{Nodes: []Node{{ID: "a"}, {ID: "b"}}}
	for i := 0; i < 1200; i++ {
		data.Edges = append(data.Edges, Edge{Source: "a", Target: "b", Unresolved: i%600 == 0})
	}

	plan := Plan(data)
	assert.True(t, plan.Profile.IsDegraded)
	assert.Equal(t, 1200, plan.TotalEdges)
	require.Len(t, plan.View.Edges, 800)
	assert.True(t, plan.View.Edges[0].Unresolved)
	assert.True(t, plan.View.Edges[1].Unresolved)
	assert.False(t, plan.View.Edges[2].Unresolved)
	assert.Equal(t, 1200, plan.Degrees["a"])

	empty := Plan(ViewData{})
	assert.False(t, empty.Profile.IsDegraded)
	assert.Empty(t, empty.View.Edges)
}
