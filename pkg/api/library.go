package api

import (
	"context"
	"time"
)

type PaperPayload struct {
	Id         string    `json:"id"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type StatsPayload struct {
	PaperCount int `json:"paper_count"`
	ChunkCount int `json:"chunk_count"`
	QueryCount int `json:"query_count"`
}

// LibraryAPI is the authoritative listing + statistics surface used by the
// best-effort refreshes.
type LibraryAPI interface {
	ListPapers(ctx context.Context) ([]PaperPayload, error)
	GetStats(ctx context.Context) (*StatsPayload, error)
}

var _ LibraryAPI = &Client{}

func (c *Client) ListPapers(ctx context.Context) ([]PaperPayload, error) {
	var resp struct {
		Papers []PaperPayload `json:"papers"`
	}
	if err := c.doJSON(ctx, "GET", "/api/papers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Papers, nil
}

func (c *Client) GetStats(ctx context.Context) (*StatsPayload, error) {
	var resp StatsPayload
	if err := c.doJSON(ctx, "GET", "/api/stats", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
