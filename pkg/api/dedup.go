package api

import "context"

type DedupResponse struct {
	Duplicates     []DuplicateInfo `json:"duplicates"`
	UniqueCount    int             `json:"unique_count"`
	DuplicateCount int             `json:"duplicate_count"`
}

type DuplicateInfo struct {
	Hash    string `json:"hash"`
	PaperId string `json:"paper_id"`
	Title   string `json:"title"`
}

// DedupChecker answers which content digests the library already knows.
type DedupChecker interface {
	CheckDuplicates(ctx context.Context, hashes []string) (*DedupResponse, error)
}

var _ DedupChecker = &Client{}

func (c *Client) CheckDuplicates(ctx context.Context, hashes []string) (*DedupResponse, error) {
	payload := map[string]interface{}{"hashes": hashes}
	var resp DedupResponse
	if err := c.doJSON(ctx, "POST", "/api/papers/check-duplicates", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
