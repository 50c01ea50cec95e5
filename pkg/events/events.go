package events

import "encoding/json"

// Wire types for the two remote event streams. Both streams are decoded one
// frame at a time and dispatched in arrival order; handlers switch on Type
// exhaustively.

const (
	QueryEventProgress = "progress"
	QueryEventComplete = "complete"
	QueryEventError    = "error"
)

const (
	BatchEventTaskProgress  = "task_progress"
	BatchEventTaskComplete  = "task_complete"
	BatchEventTaskError     = "task_error"
	BatchEventBatchComplete = "batch_complete"

	// BatchEventStreamError never comes off the wire; the stream reader
	// synthesizes it when the transport fails mid-subscription.
	BatchEventStreamError = "stream_error"
)

// QueryEvent is one frame of the query stream. Exactly one of the per-type
// field groups is meaningful, selected by Type.
type QueryEvent struct {
	Type string `json:"type"`

	// progress
	Step string          `json:"step,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`

	// complete
	Answer         string                 `json:"answer,omitempty"`
	Sources        []SourcePayload        `json:"sources,omitempty"`
	QueryType      string                 `json:"query_type,omitempty"`
	ExpandedQuery  string                 `json:"expanded_query,omitempty"`
	RetrievalCount int                    `json:"retrieval_count,omitempty"`
	RerankedCount  int                    `json:"reranked_count,omitempty"`
	Warnings       []string               `json:"warnings,omitempty"`
	CitationChecks []CitationCheckPayload `json:"citation_checks,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// StepData is the decoded progress payload for a pipeline step. All fields
// are optional on the wire.
type StepData struct {
	Status   string                `json:"status,omitempty"`
	Skipped  bool                  `json:"skipped,omitempty"`
	Error    string                `json:"error,omitempty"`
	Message  string                `json:"message,omitempty"`
	Chunk    string                `json:"chunk,omitempty"`
	Citation *CitationCheckPayload `json:"citation,omitempty"`
}

type SourcePayload struct {
	PaperId string  `json:"paper_id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

type CitationCheckPayload struct {
	CitationId  string  `json:"citation_id"`
	Claim       string  `json:"claim"`
	Confidence  float64 `json:"confidence"`
	Valid       bool    `json:"valid"`
	Explanation string  `json:"explanation,omitempty"`
}

// BatchEvent is one frame of a batch progress subscription.
type BatchEvent struct {
	Type            string `json:"type"`
	BatchId         string `json:"batch_id,omitempty"`
	TaskId          string `json:"task_id,omitempty"`
	Status          string `json:"status,omitempty"`
	CurrentStep     string `json:"current_step,omitempty"`
	ProgressPercent int    `json:"progress_percent,omitempty"`
	PaperId         string `json:"paper_id,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}
