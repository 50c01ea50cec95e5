package memory

import (
	"sync"

	"ai-paperchat-client/internal/entity"
)

// BatchRepository holds the single active batch. A batch exists from upload
// start until an explicit clear; all task mutation goes through the
// repository lock so stream events and upload goroutines serialize.
type BatchRepository struct {
	mu    sync.RWMutex
	batch *entity.BatchUpload
}

func NewBatchRepository() *BatchRepository {
	return &BatchRepository{}
}

func (r *BatchRepository) Set(batch *entity.BatchUpload) {
	r.mu.Lock()
	r.batch = batch
	r.mu.Unlock()
}

func (r *BatchRepository) Get() *entity.BatchUpload {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.batch
}

// Snapshot returns a copy of the active batch with every task copied by
// value, so callers can read it while stream events keep mutating the
// originals under the lock. Task Data slices are shared; they are written
// once at batch creation and never touched afterwards.
func (r *BatchRepository) Snapshot() *entity.BatchUpload {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.batch == nil {
		return nil
	}
	out := &entity.BatchUpload{
		BatchId:           r.batch.BatchId,
		Tasks:             make([]*entity.UploadTask, 0, len(r.batch.Tasks)),
		CreatedAt:         r.batch.CreatedAt,
		DuplicatesSkipped: r.batch.DuplicatesSkipped,
	}
	for _, task := range r.batch.Tasks {
		copied := *task
		out.Tasks = append(out.Tasks, &copied)
	}
	return out
}

func (r *BatchRepository) Clear() {
	r.mu.Lock()
	r.batch = nil
	r.mu.Unlock()
}

// UpdateTask applies fn to the named task under the lock. Unknown task ids
// and a missing batch are no-ops: events can race a clear.
func (r *BatchRepository) UpdateTask(taskId string, fn func(*entity.UploadTask)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.batch == nil {
		return false
	}
	task := r.batch.FindTask(taskId)
	if task == nil {
		return false
	}
	fn(task)
	return true
}

// TaskStatus returns the named task's current status, or "" when absent.
func (r *BatchRepository) TaskStatus(taskId string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.batch == nil {
		return ""
	}
	task := r.batch.FindTask(taskId)
	if task == nil {
		return ""
	}
	return task.Status
}
