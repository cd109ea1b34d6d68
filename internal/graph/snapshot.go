package graph

import (
	"context"
	"fmt"
	"path"

	"vaultgraph/internal/links"
	"vaultgraph/internal/storage"
)

// GhostPrefix starts the id of every unresolved target node.
const GhostPrefix = "unresolved:"

// Source is the read side of the index needed to build a snapshot.
type Source interface {
	ListDocuments(ctx context.Context, vaultID int64) ([]storage.Document, error)
	ListLinks(ctx context.Context, vaultID int64) ([]storage.LinkView, error)
}

// BuildSnapshot projects a vault's documents and links into view data.
// Document nodes use their relative path as id. Unresolved local links point
// at one ghost node per normalized target key. External links and unresolved
// attachment embeds are left out, and repeated (source, target) pairs collapse
// into one edge.
func BuildSnapshot(ctx context.Context, source Source, vaultID int64) (ViewData, error) {
	docs, err := source.ListDocuments(ctx, vaultID)
	if err != nil {
		return ViewData{}, fmt.Errorf("failed to list documents: %w", err)
	}
	refs, err := source.ListLinks(ctx, vaultID)
	if err != nil {
		return ViewData{}, fmt.Errorf("failed to list links: %w", err)
	}

	data := ViewData{
		Nodes: make([]Node, 0, len(docs)),
		Edges: make([]Edge, 0, len(refs)),
	}
	known := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		data.Nodes = append(data.Nodes, Node{
			ID:       d.RelPath,
			RelPath:  d.RelPath,
			FileName: path.Base(d.RelPath),
		})
		known[d.RelPath] = struct{}{}
	}

	type pair struct{ source, target string }
	seen := make(map[pair]struct{}, len(refs))

	for _, l := range refs {
		if l.IsExternal {
			continue
		}
		if _, ok := known[l.SourcePath]; !ok {
			continue
		}

		edge := Edge{Source: l.SourcePath}
		if l.TargetRel != "" {
			edge.Target = l.TargetRel
		} else {
			if links.IsAttachment(l.TargetPath) {
				continue
			}
			key := links.QueryKey(l.SourcePath, links.Reference{Target: l.TargetPath, IsWiki: l.IsWiki})
			if key == "" {
				continue
			}
			edge.Target = GhostPrefix + key
			edge.Unresolved = true
			if _, ok := known[edge.Target]; !ok {
				data.Nodes = append(data.Nodes, Node{
					ID:         edge.Target,
					RelPath:    l.TargetPath,
					FileName:   path.Base(l.TargetPath),
					Unresolved: true,
				})
				known[edge.Target] = struct{}{}
			}
		}

		p := pair{edge.Source, edge.Target}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		data.Edges = append(data.Edges, edge)
	}
	return data, nil
}

// RenderPlan is a snapshot prepared for drawing: degrees over the full graph,
// the degrade profile for its size, and the edges sampled to that profile.
type RenderPlan struct {
	View       ViewData       `json:"view"`
	Degrees    map[string]int `json:"degrees"`
	Profile    DegradeProfile `json:"profile"`
	TotalEdges int            `json:"totalEdges"`
}

// Plan samples data for rendering.
func Plan(data ViewData) RenderPlan {
	profile := DegradeProfileFor(len(data.Nodes), len(data.Edges))
	return RenderPlan{
		View: ViewData{
			Nodes: data.Nodes,
			Edges: SampleEdgesForRender(data.Edges, profile.EdgeRenderLimit),
		},
		Degrees:    BuildNodeDegreeMap(data),
		Profile:    profile,
		TotalEdges: len(data.Edges),
	}
}
