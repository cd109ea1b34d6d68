package handlers

import (
	"encoding/json"
	"net/http"

	"vaultgraph/internal/contextutil"
	"vaultgraph/internal/query"
	"vaultgraph/internal/service"
)

// SearchHandler handles HTTP requests for searches.
type SearchHandler struct {
	vaultService service.VaultService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(vaultService service.VaultService) *SearchHandler {
	return &SearchHandler{
		vaultService: vaultService,
	}
}

// SearchRequest represents the HTTP request payload for searches.
//
// swagger:model SearchRequest
type SearchRequest struct {
	// Vault root to search; defaults to the served vault
	WorkspacePath string `json:"workspacePath,omitempty"`

	// The search text
	Query string `json:"query"`

	// Embedding provider and model of the stored vectors; semantic results
	// are empty unless both are set
	EmbeddingProvider string `json:"embeddingProvider,omitempty"`
	EmbeddingModel    string `json:"embeddingModel,omitempty"`

	// "semantic" (default), "lexical" or "hybrid"
	Mode string `json:"mode,omitempty"`

	// Maximum number of results (default 10, max 100)
	Limit int `json:"limit,omitempty"`
}

// SearchResponse represents the HTTP response payload for searches.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Results []query.SearchResult `json:"results"`
}

// ServeHTTP handles HTTP requests for searches.
//
// swagger:route POST /api/search search
//
// # Search indexed documents
//
// Runs a semantic, lexical or hybrid search. Configuration gaps such as an
// unknown embedding model yield an empty result list.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Ranked results
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
//	'400':
//	  description: Invalid request
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	results, err := h.vaultService.Search(ctx, query.SearchRequest{
		WorkspacePath:     req.WorkspacePath,
		Query:             req.Query,
		EmbeddingProvider: req.EmbeddingProvider,
		EmbeddingModel:    req.EmbeddingModel,
		Mode:              query.Mode(req.Mode),
		Limit:             req.Limit,
	})
	if err != nil {
		handleServiceError(w, ctx, logger, err, "Failed to process search request")
		return
	}

	writeJSON(ctx, w, http.StatusOK, SearchResponse{Results: results})
}

// LexicalHandler handles full-text searches with snippets.
type LexicalHandler struct {
	vaultService service.VaultService
}

// NewLexicalHandler creates a new LexicalHandler.
func NewLexicalHandler(vaultService service.VaultService) *LexicalHandler {
	return &LexicalHandler{vaultService: vaultService}
}

// LexicalResponse represents the response of the lexical endpoint.
type LexicalResponse struct {
	Hits []query.Hit `json:"hits"`
}

// ServeHTTP handles GET /api/lexical?q=&limit=.
func (h *LexicalHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		handleServiceError(w, ctx, logger, err, "Invalid limit")
		return
	}

	hits, err := h.vaultService.Lexical(ctx, r.URL.Query().Get("q"), limit)
	if err != nil {
		handleServiceError(w, ctx, logger, err, "Failed to process lexical search")
		return
	}

	writeJSON(ctx, w, http.StatusOK, LexicalResponse{Hits: hits})
}
