package upload

import (
	"context"
	"fmt"
	"log"
	"sync"

	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/pkg/api"
)

// TaskCallbacks route per-task transitions back to the owner of the batch
// store. Callbacks may be invoked concurrently up to the pool width.
type TaskCallbacks struct {
	OnUploading func(taskId string)
	OnUploaded  func(taskId string, fileSize int64)
	OnFailed    func(taskId string, message string)
}

// Scheduler transfers task bodies through a semaphore-guarded worker pool:
// permits are acquired and released per task, so a slow transfer never holds
// back an unrelated one, while the pool width caps concurrent transfers.
type Scheduler struct {
	uploadApi   api.UploadAPI
	concurrency int
	logger      *log.Logger
}

func NewScheduler(uploadApi api.UploadAPI, concurrency int, logger *log.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		uploadApi:   uploadApi,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run uploads every task body, then asks the remote service to start
// processing exactly once after all transfers settled. A failed transfer
// marks its own task and never aborts siblings; failed bodies are not
// retried automatically.
func (s *Scheduler) Run(ctx context.Context, batch *entity.BatchUpload, cb TaskCallbacks) error {
	s.logger.Printf("[SCHEDULER] Uploading %d task bodies (width %d) for batch %s",
		len(batch.Tasks), s.concurrency, batch.BatchId)

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup

	for _, task := range batch.Tasks {
		wg.Add(1)
		go func(t *entity.UploadTask) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			cb.OnUploading(t.TaskId)

			resp, err := s.uploadApi.UploadFile(ctx, batch.BatchId, t.TaskId, t.Data)
			if err != nil {
				s.logger.Printf("[SCHEDULER] Task %s (%s) failed: %v", t.TaskId, t.Filename, err)
				cb.OnFailed(t.TaskId, err.Error())
				return
			}

			cb.OnUploaded(t.TaskId, resp.FileSize)
		}(task)
	}

	wg.Wait()

	s.logger.Printf("[SCHEDULER] All transfers settled, starting processing for batch %s", batch.BatchId)

	if err := s.uploadApi.StartProcessing(ctx, batch.BatchId); err != nil {
		return fmt.Errorf("start processing: %w", err)
	}
	return nil
}
