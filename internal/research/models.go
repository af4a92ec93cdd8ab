package research

import (
	"time"

	"github.com/quorumhq/quorum/internal/orchestrator"
)

// SavedResearch is one completed run a user chose to keep: the query, the
// per-model aggregate and the synthesis. Created explicitly after a run
// completes, owned by the authenticated user, deleted explicitly.
type SavedResearch struct {
	ID        string                         `json:"id"`
	UserID    string                         `json:"user_id"`
	Query     string                         `json:"query"`
	Responses []orchestrator.AggregateResult `json:"responses"`
	Synthesis string                         `json:"synthesis"`
	CreatedAt time.Time                      `json:"created_at"`
}

// SaveRequest is the client payload for saving a completed run.
type SaveRequest struct {
	Query     string                         `json:"query" binding:"required"`
	Responses []orchestrator.AggregateResult `json:"responses" binding:"required"`
	Synthesis string                         `json:"synthesis"`
}
