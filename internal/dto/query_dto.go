package dto

import "github.com/google/uuid"

// QueryOptions carries the tunables the caller may set on a submission.
// Zero values fall back to server defaults; bounds mirror what the remote
// service accepts.
type QueryOptions struct {
	TopK                int      `json:"top_k" validate:"omitempty,min=1,max=50"`
	Temperature         float64  `json:"temperature" validate:"omitempty,min=0,max=2"`
	PaperIds            []string `json:"paper_ids,omitempty"`
	MaxChunksPerPaper   int      `json:"max_chunks_per_paper,omitempty" validate:"omitempty,min=1,max=20"`
	QueryType           string   `json:"query_type,omitempty"`
	EnableHyde          bool     `json:"enable_hyde"`
	EnableExpansion     bool     `json:"enable_expansion"`
	EnableCitationCheck bool     `json:"enable_citation_check"`
}

type SubmitQueryRequest struct {
	Question string       `json:"question" validate:"required"`
	Options  QueryOptions `json:"options"`
}

type SubmitQueryResult struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	QueryId        uuid.UUID `json:"query_id"`
	ResponseId     uuid.UUID `json:"response_id"`
}
