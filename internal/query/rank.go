package query

import (
	"math"
	"sort"
)

// cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// fuseRRF merges ranked lists with Reciprocal Rank Fusion: each list adds
// 1/(rrfK+rank) for the documents it ranks, rank starting at 1. A document
// keeps the fields of the first list it appears in.
func fuseRRF(lists ...[]Hit) []Hit {
	byPath := make(map[string]*Hit)
	var order []string
	for _, list := range lists {
		for rank, h := range list {
			contribution := 1.0 / float64(rrfK+rank+1)
			if existing, ok := byPath[h.RelPath]; ok {
				existing.Score += contribution
				continue
			}
			fused := h
			fused.Score = contribution
			byPath[h.RelPath] = &fused
			order = append(order, h.RelPath)
		}
	}

	out := make([]Hit, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	sortHits(out)
	return out
}

// sortHits orders by score descending, then path.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].RelPath < hits[j].RelPath
	})
}

func truncate(hits []Hit, limit int) []Hit {
	if limit > 0 && len(hits) > limit {
		return hits[:limit]
	}
	return hits
}
