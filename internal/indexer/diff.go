package indexer

import (
	"vaultgraph/internal/llm"
	"vaultgraph/internal/storage"
	"vaultgraph/internal/vectorstore"
)

// segmentPlan is the desired segment set of a stale document.
type segmentPlan struct {
	writes []storage.SegmentWrite
	// toEmbed lists chunk positions with no reusable vector.
	toEmbed []int
}

// planSegments diffs fresh chunks against stored segment states. A segment
// whose ordinal and hash are unchanged keeps its row and vector. Otherwise a
// stored vector with the same hash is copied from any ordinal, and only the
// remaining chunks are embedded. Stored vectors are reusable only when they
// were produced by the current embedding identity. With no identity, changed
// segments drop their vectors.
func planSegments(chunks []Chunk, states []storage.SegmentState, rebuild bool, id *llm.EmbeddingIdentity) *segmentPlan {
	byOrdinal := make(map[int]storage.SegmentState, len(states))
	byHash := make(map[string][]float32)
	for _, st := range states {
		byOrdinal[st.Ordinal] = st
		if id == nil || !reusableVector(st, *id) {
			continue
		}
		if _, ok := byHash[st.Hash]; ok {
			continue
		}
		vec, err := storage.DecodeVector(st.Vector, st.EmbeddingDim)
		if err == nil {
			byHash[st.Hash] = vec
		}
	}

	plan := &segmentPlan{writes: make([]storage.SegmentWrite, len(chunks))}
	for i, c := range chunks {
		w := storage.SegmentWrite{
			Ordinal:     c.Index,
			Hash:        c.Hash.String(),
			HeadingPath: c.HeadingPath,
			TokenCount:  c.Tokens,
		}

		prev, hasPrev := byOrdinal[c.Index]
		sameSegment := !rebuild && hasPrev && prev.Hash == w.Hash

		switch {
		case id == nil:
			// Keep whatever vector an unchanged segment holds.
			w.DropEmbedding = !sameSegment
		case sameSegment && reusableVector(prev, *id):
			// Row and vector stay as they are.
		default:
			if vec, ok := byHash[w.Hash]; ok {
				w.Embedding = &storage.EmbeddingWrite{Model: id.Key(), Dim: id.Dim, Vector: vec}
			} else {
				plan.toEmbed = append(plan.toEmbed, i)
			}
		}
		plan.writes[i] = w
	}
	return plan
}

// vectors returns the segment vectors written by the plan, for mirroring.
func (p *segmentPlan) vectors(chunks []Chunk) []vectorstore.SegmentVector {
	var out []vectorstore.SegmentVector
	for i, w := range p.writes {
		if w.Embedding == nil {
			continue
		}
		out = append(out, vectorstore.SegmentVector{
			Ordinal:     w.Ordinal,
			HeadingPath: chunks[i].HeadingPath,
			Vector:      w.Embedding.Vector,
		})
	}
	return out
}

func reusableVector(st storage.SegmentState, id llm.EmbeddingIdentity) bool {
	return st.HasEmbedding &&
		st.EmbeddingModel == id.Key() &&
		st.EmbeddingDim == id.Dim &&
		storage.ValidVector(st.Vector, st.EmbeddingDim)
}

// segmentsConsistent reports whether stored ordinals run 0..n-1 without gaps
// and every stored vector has the byte length its dimension requires.
func segmentsConsistent(states []storage.SegmentState) bool {
	seen := make([]bool, len(states))
	for _, st := range states {
		if st.Ordinal < 0 || st.Ordinal >= len(states) || seen[st.Ordinal] {
			return false
		}
		seen[st.Ordinal] = true
		if st.HasEmbedding && !storage.ValidVector(st.Vector, st.EmbeddingDim) {
			return false
		}
	}
	return true
}
