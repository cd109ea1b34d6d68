package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vaultgraph/internal/handlers"
	"vaultgraph/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	// VaultRoot is the canonical vault root served under /notes.
	VaultRoot    string
	VaultService service.VaultService
	// DB is pinged by the health check.
	DB handlers.Pinger
	// VectorStore is nil when the vector mirror is disabled.
	VectorStore    handlers.CollectionChecker
	CollectionName string
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	searchHandler := handlers.NewSearchHandler(deps.VaultService)
	lexicalHandler := handlers.NewLexicalHandler(deps.VaultService)
	graphHandler := handlers.NewGraphHandler(deps.VaultService)
	backlinksHandler := handlers.NewBacklinksHandler(deps.VaultService)
	indexHandler := handlers.NewIndexHandler(deps.VaultService)
	statsHandler := handlers.NewStatsHandler(deps.VaultService)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.VectorStore, deps.CollectionName)
	noteHandler := handlers.NewNoteHandler(deps.VaultRoot, deps.VaultService)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodGet, "/lexical", lexicalHandler)
		r.Method(http.MethodGet, "/graph", graphHandler)
		r.Method(http.MethodGet, "/backlinks", backlinksHandler)
		r.Method(http.MethodPost, "/index", indexHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
		r.Method(http.MethodGet, "/health", healthHandler)
	})

	// Rendered notes for the graph's open-path action
	r.Handle("/notes/*", noteHandler)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}
