package memory

import (
	"sync"
	"testing"
	"time"

	"ai-paperchat-client/internal/constant"
	"ai-paperchat-client/internal/entity"
)

func seedBatch(repo *BatchRepository) {
	repo.Set(&entity.BatchUpload{
		BatchId:   "batch-1",
		CreatedAt: time.Now(),
		Tasks: []*entity.UploadTask{
			{TaskId: "task-a", BatchId: "batch-1", Filename: "a.pdf", Status: constant.TaskStatusPending},
			{TaskId: "task-b", BatchId: "batch-1", Filename: "b.pdf", Status: constant.TaskStatusPending},
		},
	})
}

func TestSnapshotIsIsolatedFromUpdates(t *testing.T) {
	repo := NewBatchRepository()
	seedBatch(repo)

	snap := repo.Snapshot()
	repo.UpdateTask("task-a", func(task *entity.UploadTask) {
		task.Status = constant.TaskStatusUploading
		task.ProgressPercent = 40
	})

	got := snap.FindTask("task-a")
	if got.Status != constant.TaskStatusPending || got.ProgressPercent != 0 {
		t.Errorf("snapshot task = %+v, mutated after the fact", got)
	}
	if live := repo.Snapshot().FindTask("task-a"); live.Status != constant.TaskStatusUploading {
		t.Errorf("fresh snapshot status = %s, want uploading", live.Status)
	}
}

func TestSnapshotOfMissingBatch(t *testing.T) {
	repo := NewBatchRepository()
	if repo.Snapshot() != nil {
		t.Error("Snapshot() != nil with no batch set")
	}
}

// Readers render snapshots while stream events mutate the stored tasks;
// run with -race to check the two never touch the same memory.
func TestSnapshotConcurrentWithTaskUpdates(t *testing.T) {
	repo := NewBatchRepository()
	seedBatch(repo)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			percent := i % 101
			repo.UpdateTask("task-a", func(task *entity.UploadTask) {
				task.Status = constant.TaskStatusEmbedding
				task.ProgressPercent = percent
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			snap := repo.Snapshot()
			for _, task := range snap.Tasks {
				if task.ProgressPercent < 0 || task.ProgressPercent > 100 {
					t.Errorf("torn read: progress = %d", task.ProgressPercent)
					return
				}
				_ = task.Status
			}
		}
	}()
	wg.Wait()
}
