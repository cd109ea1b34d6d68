package indexer

import (
	"sort"
	"time"
)

// Outcome is what a pass did with one document.
type Outcome string

const (
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeReindexed Outcome = "reindexed"
	OutcomeFailed    Outcome = "failed"
	OutcomeRemoved   Outcome = "removed"
)

// DocumentResult is the per-document entry of an IndexReport.
type DocumentResult struct {
	RelPath string  `json:"rel_path"`
	Outcome Outcome `json:"outcome"`
	// Reason explains a failure, or why a reindexed document was stale.
	Reason   string `json:"reason,omitempty"`
	Segments int    `json:"segments,omitempty"`
	Embedded int    `json:"embedded,omitempty"`
	Rebuilt  bool   `json:"rebuilt,omitempty"`
}

// IndexReport summarizes one reindex pass over a vault.
type IndexReport struct {
	RunID         string           `json:"run_id"`
	VaultID       int64            `json:"vault_id"`
	WorkspaceRoot string           `json:"workspace_root"`
	Documents     []DocumentResult `json:"documents"`
	Unchanged     int              `json:"unchanged"`
	Reindexed     int              `json:"reindexed"`
	Failed        int              `json:"failed"`
	Removed       int              `json:"removed"`
	// Shared is set for callers that joined a pass already in flight.
	Shared bool `json:"shared"`
	// Aborted is set when the pass stopped scheduling documents early.
	Aborted   bool          `json:"aborted"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

func (r *IndexReport) add(res DocumentResult) {
	r.Documents = append(r.Documents, res)
	switch res.Outcome {
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeReindexed:
		r.Reindexed++
	case OutcomeFailed:
		r.Failed++
	case OutcomeRemoved:
		r.Removed++
	}
}

func (r *IndexReport) finish(started time.Time) {
	sort.Slice(r.Documents, func(i, j int) bool {
		return r.Documents[i].RelPath < r.Documents[j].RelPath
	})
	r.Duration = time.Since(started)
}

// Result returns the entry for relPath.
func (r *IndexReport) Result(relPath string) (DocumentResult, bool) {
	for _, d := range r.Documents {
		if d.RelPath == relPath {
			return d, true
		}
	}
	return DocumentResult{}, false
}
