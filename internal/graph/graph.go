package graph

// ViewData is the snapshot consumed by the renderer.
type ViewData struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is a document, or a ghost standing in for an unresolved link target.
type Node struct {
	ID         string `json:"id"`
	RelPath    string `json:"relPath"`
	FileName   string `json:"fileName"`
	Unresolved bool   `json:"unresolved"`
}

// Edge connects two node ids.
type Edge struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Unresolved bool   `json:"unresolved"`
}

// VisualState is how a node is drawn.
type VisualState string

const (
	StateResolved   VisualState = "resolved"
	StateUnresolved VisualState = "unresolved"
)

// OpenActionKind tells the caller what activating a node should do.
type OpenActionKind string

const (
	ActionOpenPath         OpenActionKind = "open-path"
	ActionUnresolvedTarget OpenActionKind = "unresolved-target"
)

// OpenAction is the result of activating a node. Path is set for open-path,
// RawPath for unresolved-target.
type OpenAction struct {
	Kind    OpenActionKind `json:"kind"`
	Path    string         `json:"path,omitempty"`
	RawPath string         `json:"rawPath,omitempty"`
}

// DegradeProfile holds rendering limits for a graph of a given size.
type DegradeProfile struct {
	IsDegraded        bool    `json:"isDegraded"`
	SimulationTickCap int     `json:"simulationTickCap"`
	EdgeRenderLimit   int     `json:"edgeRenderLimit"`
	LabelVisibleScale float64 `json:"labelVisibleScale"`
}

// Degrade thresholds. A graph at or above either limit is degraded.
const (
	degradeNodeThreshold = 300
	degradeEdgeThreshold = 1000

	maxRenderedEdges = 800

	normalTickCap      = 220
	degradedTickCap    = 185
	normalLabelScale   = 0.5
	degradedLabelScale = 0.95
)

// BuildNodeDegreeMap counts the edges touching each node. Both endpoints are
// counted, so a self edge adds two to its node. Every node is present in the
// result, with zero when it has no edges.
func BuildNodeDegreeMap(data ViewData) map[string]int {
	degrees := make(map[string]int, len(data.Nodes))
	for _, n := range data.Nodes {
		degrees[n.ID] = 0
	}
	for _, e := range data.Edges {
		degrees[e.Source]++
		degrees[e.Target]++
	}
	return degrees
}

// VisualStateOf returns the drawing state of n.
func VisualStateOf(n Node) VisualState {
	if n.Unresolved {
		return StateUnresolved
	}
	return StateResolved
}

// OpenActionFor returns what activating n should do.
func OpenActionFor(n Node) OpenAction {
	if n.Unresolved {
		return OpenAction{Kind: ActionUnresolvedTarget, RawPath: n.RelPath}
	}
	return OpenAction{Kind: ActionOpenPath, Path: n.RelPath}
}

// DegradeProfileFor picks rendering limits for a graph size. Growing either
// count never relaxes a limit.
func DegradeProfileFor(nodeCount, edgeCount int) DegradeProfile {
	if nodeCount < degradeNodeThreshold && edgeCount < degradeEdgeThreshold {
		return DegradeProfile{
			IsDegraded:        false,
			SimulationTickCap: normalTickCap,
			EdgeRenderLimit:   min(max(edgeCount, 0), maxRenderedEdges),
			LabelVisibleScale: normalLabelScale,
		}
	}
	return DegradeProfile{
		IsDegraded:        true,
		SimulationTickCap: degradedTickCap,
		EdgeRenderLimit:   maxRenderedEdges,
		LabelVisibleScale: degradedLabelScale,
	}
}

// SampleEdgesForRender returns at most limit edges: unresolved edges first,
// then resolved ones, each group in its original order.
func SampleEdgesForRender(edges []Edge, limit int) []Edge {
	if limit <= 0 {
		return []Edge{}
	}
	out := make([]Edge, 0, min(limit, len(edges)))
	for _, want := range []bool{true, false} {
		for _, e := range edges {
			if len(out) == limit {
				return out
			}
			if e.Unresolved == want {
				out = append(out, e)
			}
		}
	}
	return out
}
