package api

import (
	"context"
	"encoding/json"

	"ai-paperchat-client/pkg/events"
)

// QueryStreamRequest is the submission payload for the query stream.
type QueryStreamRequest struct {
	Question            string   `json:"question"`
	TopK                int      `json:"top_k,omitempty"`
	Temperature         float64  `json:"temperature,omitempty"`
	PaperIds            []string `json:"paper_ids,omitempty"`
	MaxChunksPerPaper   int      `json:"max_chunks_per_paper,omitempty"`
	ConversationId      string   `json:"conversation_id,omitempty"`
	QueryType           string   `json:"query_type,omitempty"`
	EnableHyde          bool     `json:"enable_hyde,omitempty"`
	EnableExpansion     bool     `json:"enable_expansion,omitempty"`
	EnableCitationCheck bool     `json:"enable_citation_check,omitempty"`
}

// QueryStreamer opens the query event stream.
type QueryStreamer interface {
	StreamQuery(ctx context.Context, req QueryStreamRequest) (<-chan events.QueryEvent, error)
}

var _ QueryStreamer = &Client{}

// StreamQuery submits the question and returns an ordered channel of stream
// events. The channel closes when the stream ends. A transport failure
// mid-stream is delivered as a final error-typed event so the consumer has a
// single exhaustive switch to write.
func (c *Client) StreamQuery(ctx context.Context, req QueryStreamRequest) (<-chan events.QueryEvent, error) {
	resp, err := c.openStream(ctx, "POST", "/api/query/stream", req)
	if err != nil {
		return nil, err
	}

	out := make(chan events.QueryEvent)

	go func() {
		defer close(out)
		defer resp.Body.Close()

		err := scanFrames(resp.Body, func(data []byte) error {
			var ev events.QueryEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				// Malformed frame: skip it rather than kill the stream
				return nil
			}
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			select {
			case out <- events.QueryEvent{Type: events.QueryEventError, Message: "stream read failed: " + err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
