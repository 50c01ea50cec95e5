package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-paperchat-client/internal/constant"
	"ai-paperchat-client/internal/dto"
	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/internal/pkg/logger"
	"ai-paperchat-client/internal/repository/memory"
	"ai-paperchat-client/pkg/api"
	"ai-paperchat-client/pkg/upload"

	"go.opentelemetry.io/otel"
)

// IUploadService orchestrates batch uploads: dedup, scheduling, progress
// listening and per-task control.
type IUploadService interface {
	StartUpload(ctx context.Context, files []dto.UploadFile) (*dto.UploadResult, error)
	CancelTask(ctx context.Context, taskId string) error
	RetryTask(ctx context.Context, taskId string) error
	ClearBatch()
	ActiveBatch() *entity.BatchUpload
}

type uploadService struct {
	uploadApi api.UploadAPI
	hasher    *upload.Hasher
	scheduler *upload.Scheduler
	listener  *upload.Listener
	batchRepo *memory.BatchRepository
	paperRepo *memory.PaperRepository
	sysLogger logger.ILogger
	flowLog   *log.Logger
	maxFiles  int
}

func NewUploadService(
	uploadApi api.UploadAPI,
	hasher *upload.Hasher,
	scheduler *upload.Scheduler,
	listener *upload.Listener,
	batchRepo *memory.BatchRepository,
	paperRepo *memory.PaperRepository,
	sysLogger logger.ILogger,
	flowLog *log.Logger,
	maxFiles int,
) IUploadService {
	return &uploadService{
		uploadApi: uploadApi,
		hasher:    hasher,
		scheduler: scheduler,
		listener:  listener,
		batchRepo: batchRepo,
		paperRepo: paperRepo,
		sysLogger: sysLogger,
		flowLog:   flowLog,
		maxFiles:  maxFiles,
	}
}

// StartUpload runs the full upload flow and blocks until every body transfer
// settled and processing was started. Progress past that point arrives
// through the batch event subscription.
func (us *uploadService) StartUpload(ctx context.Context, files []dto.UploadFile) (*dto.UploadResult, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > us.maxFiles {
		return nil, fmt.Errorf("too many files: %d (max %d)", len(files), us.maxFiles)
	}

	tracer := otel.Tracer("upload-service")
	ctx, span := tracer.Start(ctx, "StartUpload")
	defer span.End()

	// 1. Hash and partition; a dedup failure aborts the whole attempt
	partition, err := us.hasher.Partition(ctx, files)
	if err != nil {
		return nil, err
	}

	skippedTitles := make([]string, 0, len(partition.Duplicates))
	for _, d := range partition.Duplicates {
		skippedTitles = append(skippedTitles, d.ExistingTitle)
	}

	// 2. All duplicates: report what was skipped, create no batch
	if len(partition.Unique) == 0 {
		us.flowLog.Printf("[UPLOAD] Nothing to upload, %d duplicates skipped", partition.DuplicateCount)
		return &dto.UploadResult{
			SkippedDuplicates: partition.DuplicateCount,
			SkippedTitles:     skippedTitles,
		}, nil
	}

	// 3. Initialize the batch and attach raw bytes by position
	filenames := make([]string, len(partition.Unique))
	for i, f := range partition.Unique {
		filenames[i] = f.Filename
	}
	initResp, err := us.uploadApi.InitBatch(ctx, filenames)
	if err != nil {
		return nil, fmt.Errorf("init batch: %w", err)
	}
	if len(initResp.Tasks) != len(partition.Unique) {
		return nil, fmt.Errorf("init batch returned %d tasks for %d files", len(initResp.Tasks), len(partition.Unique))
	}

	batch := &entity.BatchUpload{
		BatchId:           initResp.BatchId,
		CreatedAt:         time.Now(),
		DuplicatesSkipped: partition.DuplicateCount,
	}
	for i, info := range initResp.Tasks {
		batch.Tasks = append(batch.Tasks, &entity.UploadTask{
			TaskId:   info.TaskId,
			BatchId:  initResp.BatchId,
			Filename: info.Filename,
			FileSize: int64(len(partition.Unique[i].Data)),
			Data:     partition.Unique[i].Data,
			Status:   constant.TaskStatusPending,
			Priority: i,
		})
	}

	// 4. Register the batch and one provisional paper per task
	us.batchRepo.Set(batch)
	for _, task := range batch.Tasks {
		us.paperRepo.Save(&entity.Paper{
			Id:          task.TaskId,
			Title:       task.Filename,
			Filename:    task.Filename,
			Status:      constant.PaperStatusPending,
			Provisional: true,
			UploadedAt:  batch.CreatedAt,
		})
	}

	// 5. Open the progress subscription. Its failures never cancel uploads.
	if err := us.listener.Listen(ctx, batch.BatchId, func(err error) {
		us.sysLogger.Error("Upload", "Batch event stream error", map[string]interface{}{
			"batch_id": batch.BatchId,
			"error":    err.Error(),
		})
	}); err != nil {
		us.sysLogger.Warn("Upload", "Batch event subscription failed", map[string]interface{}{"error": err.Error()})
	}

	// 6. Transfer bodies and trigger processing once everything settled
	err = us.scheduler.Run(ctx, batch, upload.TaskCallbacks{
		OnUploading: func(taskId string) {
			us.batchRepo.UpdateTask(taskId, func(t *entity.UploadTask) {
				t.Status = constant.TaskStatusUploading
			})
		},
		OnUploaded: func(taskId string, fileSize int64) {
			us.batchRepo.UpdateTask(taskId, func(t *entity.UploadTask) {
				if fileSize > 0 {
					t.FileSize = fileSize
				}
			})
		},
		OnFailed: func(taskId, message string) {
			us.batchRepo.UpdateTask(taskId, func(t *entity.UploadTask) {
				t.Status = constant.TaskStatusError
				t.ErrorMessage = message
			})
			us.paperRepo.Update(taskId, func(p *entity.Paper) {
				p.Status = constant.PaperStatusError
				p.ErrorMessage = message
			})
		},
	})
	if err != nil {
		return nil, err
	}

	return &dto.UploadResult{
		BatchId:           batch.BatchId,
		TaskCount:         len(batch.Tasks),
		SkippedDuplicates: partition.DuplicateCount,
		SkippedTitles:     skippedTitles,
	}, nil
}

// CancelTask is valid only while a task is pending or uploading. The local
// state is set optimistically regardless of what the server answered.
func (us *uploadService) CancelTask(ctx context.Context, taskId string) error {
	batch := us.batchRepo.Get()
	if batch == nil {
		return nil
	}

	status := us.batchRepo.TaskStatus(taskId)
	if status != constant.TaskStatusPending && status != constant.TaskStatusUploading {
		return nil
	}

	if err := us.uploadApi.CancelTask(ctx, batch.BatchId, taskId); err != nil {
		us.sysLogger.Warn("Upload", "Cancel call failed", map[string]interface{}{
			"task_id": taskId,
			"error":   err.Error(),
		})
	}

	us.batchRepo.UpdateTask(taskId, func(t *entity.UploadTask) {
		t.Status = constant.TaskStatusError
		t.ErrorMessage = constant.CancelledTaskMessage
	})
	return nil
}

// RetryTask is valid only while a task is in error. Local state resets after
// the server accepted the retry.
func (us *uploadService) RetryTask(ctx context.Context, taskId string) error {
	batch := us.batchRepo.Get()
	if batch == nil {
		return nil
	}

	if us.batchRepo.TaskStatus(taskId) != constant.TaskStatusError {
		return nil
	}

	if err := us.uploadApi.RetryTask(ctx, batch.BatchId, taskId); err != nil {
		return fmt.Errorf("retry task %s: %w", taskId, err)
	}

	us.batchRepo.UpdateTask(taskId, func(t *entity.UploadTask) {
		t.Status = constant.TaskStatusPending
		t.ErrorMessage = ""
		t.ProgressPercent = 0
	})
	return nil
}

// ClearBatch drops the active batch and closes its subscription. Events that
// race the clear are dropped by the consumer's no-op path.
func (us *uploadService) ClearBatch() {
	us.listener.Close()
	us.batchRepo.Clear()
}

// ActiveBatch returns a snapshot of the current batch; stream events keep
// updating the stored tasks while callers render the copy.
func (us *uploadService) ActiveBatch() *entity.BatchUpload {
	return us.batchRepo.Snapshot()
}
