package entity

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	Id             uuid.UUID
	ConversationId uuid.UUID
	Kind           string
	Content        string
	Metadata       *MessageMetadata
	CreatedAt      time.Time
}

// MessageMetadata is filled in progressively while a response streams and
// finalized from the completion event.
type MessageMetadata struct {
	QueryType      string
	ExpandedQuery  string
	Sources        []Source
	CitationChecks []CitationCheck
	RetrievalCount int
	RerankedCount  int
	LatencyMs      int
	Warnings       []string
}

type Source struct {
	PaperId string
	Title   string
	Snippet string
	Score   float64
}

// CitationCheck is a confidence-scored verification record tying a claim in
// the answer to a retrieved source. Append-only on a message; lookups by
// citation id must resolve to the lowest-confidence entry.
type CitationCheck struct {
	CitationId  string
	Claim       string
	Confidence  float64
	Valid       bool
	Explanation string
}
