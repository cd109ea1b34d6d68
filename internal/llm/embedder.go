// Package llm talks to external embedding providers. Embedding models are an
// opaque capability: text goes in, a fixed-width vector comes out.
package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks vaultgraph/internal/llm Embedder

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// EmbeddingIdentity names the vector space an embedder produces. Vectors are
// only comparable when both key and dimension match.
type EmbeddingIdentity struct {
	Provider string
	Model    string
	Dim      int
}

// Key returns the "provider/model" string stored alongside each vector.
func (id EmbeddingIdentity) Key() string {
	return id.Provider + "/" + id.Model
}

// Embedder turns texts into vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Identity describes the vector space of the returned vectors.
	Identity() EmbeddingIdentity
}

// Registry holds the configured embedders, addressable by provider and model.
type Registry struct {
	mu        sync.RWMutex
	embedders []Embedder
}

// NewRegistry creates a registry holding embedders.
func NewRegistry(embedders ...Embedder) *Registry {
	r := &Registry{}
	for _, e := range embedders {
		r.Register(e)
	}
	return r
}

// Register adds an embedder, replacing one with the same identity key.
func (r *Registry) Register(e Embedder) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, cur := range r.embedders {
		if cur.Identity().Key() == e.Identity().Key() {
			r.embedders[i] = e
			return
		}
	}
	r.embedders = append(r.embedders, e)
}

// Lookup finds the embedder whose identity matches provider and model
// exactly. Blank values never match.
func (r *Registry) Lookup(provider, model string) (Embedder, bool) {
	if provider == "" || model == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.embedders {
		id := e.Identity()
		if id.Provider == provider && id.Model == model {
			return e, true
		}
	}
	return nil, false
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
