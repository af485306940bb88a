package pipeline

import (
	"time"

	"github.com/clinsight/ade-signal-pipeline/internal/mention"
)

// MentionBatch is the event consumed from the mention-batches topic: one
// extraction batch submitted for validation.
type MentionBatch struct {
	BatchID     string            `json:"batch_id"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Mentions    []mention.Mention `json:"mentions"`
}

// DecisionBatch is the event published to the decisions topic after a run:
// the full decision table plus the run summary.
type DecisionBatch struct {
	RunID       string             `json:"run_id"`
	BatchID     string             `json:"batch_id"`
	CompletedAt time.Time          `json:"completed_at"`
	Decisions   []mention.Decision `json:"decisions"`
	Summary     Summary            `json:"summary"`
}
