package handlers

import (
	"net/http"
	"time"

	"vaultgraph/internal/contextutil"
	"vaultgraph/internal/indexer"
	"vaultgraph/internal/service"
)

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	vaultService service.VaultService
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(vaultService service.VaultService) *IndexHandler {
	return &IndexHandler{
		vaultService: vaultService,
	}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP handles HTTP requests for triggering re-indexing.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if force {
		logger.InfoContext(ctx, "force re-indexing triggered via API")
	} else {
		logger.InfoContext(ctx, "re-indexing triggered via API")
	}

	// The pass runs in the background; the response returns immediately.
	status := h.vaultService.StartReindex(ctx, force)

	resp := IndexResponse{
		Message: "Indexing started. Check server logs for progress.",
		Status:  "accepted",
	}
	switch {
	case !status.Started:
		resp.Message = "Indexing already in progress; this request joined it."
		resp.Status = "joined"
	case force:
		resp.Message = "Full re-indexing started (every document re-chunked). Check server logs for progress."
	}
	writeJSON(ctx, w, http.StatusAccepted, resp)
}

// StatsHandler serves index coverage statistics.
type StatsHandler struct {
	vaultService service.VaultService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(vaultService service.VaultService) *StatsHandler {
	return &StatsHandler{vaultService: vaultService}
}

// StatsResponse combines coverage with the summary of the last pass.
type StatsResponse struct {
	Coverage *indexer.CoverageStats `json:"coverage"`
	LastPass *PassSummary           `json:"last_pass,omitempty"`
}

// PassSummary is an IndexReport without its per-document entries.
type PassSummary struct {
	RunID      string  `json:"run_id"`
	Unchanged  int     `json:"unchanged"`
	Reindexed  int     `json:"reindexed"`
	Failed     int     `json:"failed"`
	Removed    int     `json:"removed"`
	Aborted    bool    `json:"aborted"`
	StartedAt  string  `json:"started_at"`
	DurationMs float64 `json:"duration_ms"`
}

// ServeHTTP handles GET /api/stats.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.vaultService.Stats(ctx)
	if err != nil {
		handleServiceError(w, ctx, logger, err, "Failed to compute stats")
		return
	}

	resp := StatsResponse{Coverage: stats}
	if report := h.vaultService.LastReport(); report != nil {
		resp.LastPass = &PassSummary{
			RunID:      report.RunID,
			Unchanged:  report.Unchanged,
			Reindexed:  report.Reindexed,
			Failed:     report.Failed,
			Removed:    report.Removed,
			Aborted:    report.Aborted,
			StartedAt:  report.StartedAt.UTC().Format(time.RFC3339),
			DurationMs: float64(report.Duration.Microseconds()) / 1000,
		}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}
