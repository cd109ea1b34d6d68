package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type fixedEmbedder struct {
	id EmbeddingIdentity
}

func (f fixedEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, f.id.Dim)
	}
	return out, nil
}

func (f fixedEmbedder) Identity() EmbeddingIdentity {
	return f.id
}

func TestRegistry_Lookup(t *testing.T) {
	local := fixedEmbedder{EmbeddingIdentity{Provider: "llamacpp", Model: "nomic", Dim: 768}}
	remote := fixedEmbedder{EmbeddingIdentity{Provider: "openai", Model: "text-embedding-3-small", Dim: 1536}}
	r := NewRegistry(local, remote)

	tests := []struct {
		name     string
		provider string
		model    string
		want     string
		wantOK   bool
	}{
		{name: "both empty", wantOK: false},
		{name: "exact match", provider: "openai", model: "text-embedding-3-small", want: "openai/text-embedding-3-small", wantOK: true},
		{name: "second exact match", provider: "llamacpp", model: "nomic", want: "llamacpp/nomic", wantOK: true},
		{name: "provider only", provider: "openai", wantOK: false},
		{name: "model only", model: "nomic", wantOK: false},
		{name: "unknown model", provider: "openai", model: "nomic", wantOK: false},
		{name: "unknown provider", provider: "cohere", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := r.Lookup(tt.provider, tt.model)
			if ok != tt.wantOK {
				t.Fatalf("Lookup() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && e.Identity().Key() != tt.want {
				t.Errorf("Lookup() = %s, want %s", e.Identity().Key(), tt.want)
			}
		})
	}
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Lookup("p", "m"); ok {
		t.Error("Lookup() on empty registry should report false")
	}

	r.Register(nil)
	if len(r.embedders) != 0 {
		t.Error("Register(nil) should be ignored")
	}
}

func TestRegistry_RegisterReplacesSameKey(t *testing.T) {
	r := NewRegistry(fixedEmbedder{EmbeddingIdentity{Provider: "p", Model: "m", Dim: 2}})
	r.Register(fixedEmbedder{EmbeddingIdentity{Provider: "p", Model: "m", Dim: 4}})

	e, ok := r.Lookup("p", "m")
	if !ok {
		t.Fatal("Lookup() ok = false")
	}
	if e.Identity().Dim != 4 {
		t.Errorf("Identity().Dim = %d, want 4", e.Identity().Dim)
	}
}

func TestModelLoader_EnsureLoaded(t *testing.T) {
	tests := []struct {
		name      string
		inCache   bool
		failAfter bool
		wantLoad  bool
		wantErr   bool
	}{
		{name: "already loaded", inCache: true, wantLoad: false},
		{name: "loads and waits", wantLoad: true},
		{name: "load fails", failAfter: true, wantLoad: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var loaded atomic.Bool
			var loadCalls atomic.Int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				switch r.URL.Path {
				case "/models":
					st := ModelStatus{ID: "embed", InCache: tt.inCache || (loaded.Load() && !tt.failAfter)}
					if loaded.Load() && tt.failAfter {
						failed, code := true, 3
						st.Status.Failed, st.Status.ExitCode = &failed, &code
					}
					_ = json.NewEncoder(w).Encode(ModelsResponse{Data: []ModelStatus{st}})
				case "/models/load":
					loadCalls.Add(1)
					loaded.Store(true)
					_ = json.NewEncoder(w).Encode(LoadModelResponse{Success: true})
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
			defer server.Close()

			ml := NewModelLoader(server.URL)
			ml.pollInterval = 10 * time.Millisecond
			ml.maxWait = time.Second

			err := ml.EnsureLoaded(context.Background(), "embed")
			if (err != nil) != tt.wantErr {
				t.Errorf("EnsureLoaded() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (loadCalls.Load() > 0) != tt.wantLoad {
				t.Errorf("EnsureLoaded() load calls = %d, wantLoad %v", loadCalls.Load(), tt.wantLoad)
			}
		})
	}
}
