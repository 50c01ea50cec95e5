package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"ai-paperchat-client/pkg/events"
)

type InitBatchResponse struct {
	BatchId string     `json:"batch_id"`
	Tasks   []TaskInfo `json:"tasks"`
}

type TaskInfo struct {
	TaskId   string `json:"task_id"`
	Filename string `json:"filename"`
}

type UploadFileResponse struct {
	Status   string `json:"status"`
	FileSize int64  `json:"file_size"`
}

// UploadAPI is the batch upload protocol surface.
type UploadAPI interface {
	InitBatch(ctx context.Context, filenames []string) (*InitBatchResponse, error)
	UploadFile(ctx context.Context, batchId, taskId string, data []byte) (*UploadFileResponse, error)
	StartProcessing(ctx context.Context, batchId string) error
	CancelTask(ctx context.Context, batchId, taskId string) error
	RetryTask(ctx context.Context, batchId, taskId string) error
	StreamBatchEvents(ctx context.Context, batchId string) (<-chan events.BatchEvent, error)
}

var _ UploadAPI = &Client{}

func (c *Client) InitBatch(ctx context.Context, filenames []string) (*InitBatchResponse, error) {
	payload := map[string]interface{}{"filenames": filenames}
	var resp InitBatchResponse
	if err := c.doJSON(ctx, "POST", "/api/upload/init", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadFile transfers one task body as a raw octet stream.
func (c *Client) UploadFile(ctx context.Context, batchId, taskId string, data []byte) (*UploadFileResponse, error) {
	path := fmt.Sprintf("/api/upload/%s/tasks/%s/file", batchId, taskId)
	req, err := c.newRequest(ctx, "POST", path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	httpResp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload file %s: %w", taskId, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("upload file %s: status %d, body: %s", taskId, httpResp.StatusCode, string(raw))
	}

	var resp UploadFileResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal upload response: %w", err)
	}
	return &resp, nil
}

func (c *Client) StartProcessing(ctx context.Context, batchId string) error {
	path := fmt.Sprintf("/api/upload/%s/start", batchId)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

func (c *Client) CancelTask(ctx context.Context, batchId, taskId string) error {
	path := fmt.Sprintf("/api/upload/%s/tasks/%s/cancel", batchId, taskId)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

func (c *Client) RetryTask(ctx context.Context, batchId, taskId string) error {
	path := fmt.Sprintf("/api/upload/%s/tasks/%s/retry", batchId, taskId)
	return c.doJSON(ctx, "POST", path, nil, nil)
}

// StreamBatchEvents opens the batch-scoped progress subscription. The channel
// closes when the stream ends; a mid-stream transport failure is delivered as
// a synthetic batch event with an error message so the consumer can invoke
// its error callback without a second channel.
func (c *Client) StreamBatchEvents(ctx context.Context, batchId string) (<-chan events.BatchEvent, error) {
	path := fmt.Sprintf("/api/upload/%s/events", batchId)
	resp, err := c.openStream(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan events.BatchEvent)

	go func() {
		defer close(out)
		defer resp.Body.Close()

		err := scanFrames(resp.Body, func(data []byte) error {
			var ev events.BatchEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				return nil
			}
			if ev.BatchId == "" {
				ev.BatchId = batchId
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
			case out <- events.BatchEvent{Type: events.BatchEventStreamError, BatchId: batchId, ErrorMessage: "stream read failed: " + err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
