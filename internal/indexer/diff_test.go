package indexer

import (
	"testing"

	"vaultgraph/internal/llm"
	"vaultgraph/internal/storage"
)

func chunkOf(ordinal int, text string) Chunk {
	return Chunk{Index: ordinal, Text: text, Tokens: 1, Hash: FingerprintOfString(text)}
}

func stateOf(ordinal int, text string, id *llm.EmbeddingIdentity, vec []float32) storage.SegmentState {
	st := storage.SegmentState{ID: int64(ordinal + 1), Ordinal: ordinal, Hash: FingerprintOfString(text).String(), TokenCount: 1}
	if id != nil {
		st.HasEmbedding = true
		st.EmbeddingModel = id.Key()
		st.EmbeddingDim = id.Dim
		st.Vector = storage.EncodeVector(vec)
	}
	return st
}

func TestPlanSegments(t *testing.T) {
	id := &llm.EmbeddingIdentity{Provider: "p", Model: "m", Dim: 2}
	other := &llm.EmbeddingIdentity{Provider: "p", Model: "old", Dim: 2}
	vec := []float32{1, 2}

	tests := []struct {
		name        string
		chunks      []Chunk
		states      []storage.SegmentState
		rebuild     bool
		id          *llm.EmbeddingIdentity
		wantEmbed   []int
		wantCopied  []int
		wantDropped []int
	}{
		{
			name:      "new document embeds everything",
			chunks:    []Chunk{chunkOf(0, "a"), chunkOf(1, "b")},
			id:        id,
			wantEmbed: []int{0, 1},
		},
		{
			name:   "unchanged segments keep rows",
			chunks: []Chunk{chunkOf(0, "a"), chunkOf(1, "b")},
			states: []storage.SegmentState{stateOf(0, "a", id, vec), stateOf(1, "b", id, vec)},
			id:     id,
		},
		{
			name:      "changed segment embeds",
			chunks:    []Chunk{chunkOf(0, "a"), chunkOf(1, "c")},
			states:    []storage.SegmentState{stateOf(0, "a", id, vec), stateOf(1, "b", id, vec)},
			id:        id,
			wantEmbed: []int{1},
		},
		{
			name:       "moved segment copies vector",
			chunks:     []Chunk{chunkOf(0, "b"), chunkOf(1, "a")},
			states:     []storage.SegmentState{stateOf(0, "a", id, vec), stateOf(1, "b", id, vec)},
			id:         id,
			wantCopied: []int{0, 1},
		},
		{
			name:       "rebuild copies instead of keeping",
			chunks:     []Chunk{chunkOf(0, "a")},
			states:     []storage.SegmentState{stateOf(0, "a", id, vec)},
			rebuild:    true,
			id:         id,
			wantCopied: []int{0},
		},
		{
			name:      "vectors of another model are not reused",
			chunks:    []Chunk{chunkOf(0, "a")},
			states:    []storage.SegmentState{stateOf(0, "a", other, vec)},
			id:        id,
			wantEmbed: []int{0},
		},
		{
			name:        "no embedder drops changed vectors",
			chunks:      []Chunk{chunkOf(0, "a"), chunkOf(1, "c")},
			states:      []storage.SegmentState{stateOf(0, "a", id, vec), stateOf(1, "b", id, vec)},
			wantDropped: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := planSegments(tt.chunks, tt.states, tt.rebuild, tt.id)

			if len(plan.writes) != len(tt.chunks) {
				t.Fatalf("writes = %d, want %d", len(plan.writes), len(tt.chunks))
			}
			if !equalInts(plan.toEmbed, tt.wantEmbed) {
				t.Errorf("toEmbed = %v, want %v", plan.toEmbed, tt.wantEmbed)
			}

			var copied, dropped []int
			for i, w := range plan.writes {
				if w.Ordinal != i || w.Hash != tt.chunks[i].Hash.String() {
					t.Errorf("write %d = %+v", i, w)
				}
				if w.Embedding != nil {
					copied = append(copied, i)
				}
				if w.DropEmbedding {
					dropped = append(dropped, i)
				}
			}
			if !equalInts(copied, tt.wantCopied) {
				t.Errorf("copied = %v, want %v", copied, tt.wantCopied)
			}
			if !equalInts(dropped, tt.wantDropped) {
				t.Errorf("dropped = %v, want %v", dropped, tt.wantDropped)
			}
		})
	}
}

func TestPlanSegments_Vectors(t *testing.T) {
	id := &llm.EmbeddingIdentity{Provider: "p", Model: "m", Dim: 2}
	chunks := []Chunk{chunkOf(0, "b"), chunkOf(1, "a")}
	chunks[0].HeadingPath = "Intro"
	states := []storage.SegmentState{stateOf(0, "a", id, []float32{1, 2}), stateOf(1, "b", id, []float32{3, 4})}

	got := planSegments(chunks, states, false, id).vectors(chunks)
	if len(got) != 2 {
		t.Fatalf("vectors() = %d, want 2", len(got))
	}
	if got[0].Ordinal != 0 || got[0].HeadingPath != "Intro" || got[0].Vector[0] != 3 {
		t.Errorf("vectors()[0] = %+v", got[0])
	}
}

func TestSegmentsConsistent(t *testing.T) {
	id := &llm.EmbeddingIdentity{Provider: "p", Model: "m", Dim: 2}
	good := stateOf(0, "a", id, []float32{1, 2})
	corrupt := stateOf(1, "b", id, []float32{1, 2})
	corrupt.Vector = corrupt.Vector[:3]

	tests := []struct {
		name   string
		states []storage.SegmentState
		want   bool
	}{
		{name: "empty", want: true},
		{name: "contiguous", states: []storage.SegmentState{good, stateOf(1, "b", nil, nil)}, want: true},
		{name: "gap", states: []storage.SegmentState{good, stateOf(2, "c", nil, nil)}, want: false},
		{name: "duplicate", states: []storage.SegmentState{good, good}, want: false},
		{name: "bad vector length", states: []storage.SegmentState{good, corrupt}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := segmentsConsistent(tt.states); got != tt.want {
				t.Errorf("segmentsConsistent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
