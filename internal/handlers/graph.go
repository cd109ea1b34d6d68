package handlers

import (
	"net/http"

	"vaultgraph/internal/contextutil"
	"vaultgraph/internal/graph"
	"vaultgraph/internal/service"
)

// GraphHandler serves the vault's link graph.
type GraphHandler struct {
	vaultService service.VaultService
}

// NewGraphHandler creates a new GraphHandler.
func NewGraphHandler(vaultService service.VaultService) *GraphHandler {
	return &GraphHandler{vaultService: vaultService}
}

// GraphNode is a node with its renderer classification.
type GraphNode struct {
	graph.Node
	Degree int               `json:"degree"`
	State  graph.VisualState `json:"state"`
	Action graph.OpenAction  `json:"action"`
}

// GraphResponse represents the response of the graph endpoint.
//
// swagger:model GraphResponse
type GraphResponse struct {
	Nodes   []GraphNode          `json:"nodes"`
	Edges   []graph.Edge         `json:"edges"`
	Profile graph.DegradeProfile `json:"profile"`
	// Number of edges before sampling
	TotalEdges int `json:"totalEdges"`
}

// ServeHTTP handles GET /api/graph.
func (h *GraphHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	plan, err := h.vaultService.Graph(ctx)
	if err != nil {
		handleServiceError(w, ctx, logger, err, "Failed to build graph")
		return
	}

	nodes := make([]GraphNode, 0, len(plan.View.Nodes))
	for _, n := range plan.View.Nodes {
		nodes = append(nodes, GraphNode{
			Node:   n,
			Degree: plan.Degrees[n.ID],
			State:  graph.VisualStateOf(n),
			Action: graph.OpenActionFor(n),
		})
	}

	writeJSON(ctx, w, http.StatusOK, GraphResponse{
		Nodes:      nodes,
		Edges:      plan.View.Edges,
		Profile:    plan.Profile,
		TotalEdges: plan.TotalEdges,
	})
}

// BacklinksHandler lists incoming links of a document.
type BacklinksHandler struct {
	vaultService service.VaultService
}

// NewBacklinksHandler creates a new BacklinksHandler.
func NewBacklinksHandler(vaultService service.VaultService) *BacklinksHandler {
	return &BacklinksHandler{vaultService: vaultService}
}

// BacklinkResponse is one incoming link.
type BacklinkResponse struct {
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path"`
	Anchor     string `json:"anchor,omitempty"`
	Alias      string `json:"alias,omitempty"`
	IsEmbed    bool   `json:"is_embed"`
	IsWiki     bool   `json:"is_wiki"`
}

// BacklinksResponse represents the response of the backlinks endpoint.
type BacklinksResponse struct {
	Path      string             `json:"path"`
	Backlinks []BacklinkResponse `json:"backlinks"`
}

// ServeHTTP handles GET /api/backlinks?path=.
func (h *BacklinksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	relPath := r.URL.Query().Get("path")
	found, err := h.vaultService.Backlinks(ctx, relPath)
	if err != nil {
		handleServiceError(w, ctx, logger, err, "Failed to list backlinks")
		return
	}

	resp := BacklinksResponse{
		Path:      relPath,
		Backlinks: make([]BacklinkResponse, 0, len(found)),
	}
	for _, b := range found {
		resp.Backlinks = append(resp.Backlinks, BacklinkResponse(b))
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
