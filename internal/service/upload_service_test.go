package service

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"

	"ai-paperchat-client/internal/constant"
	"ai-paperchat-client/internal/dto"
	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/internal/repository/memory"
	"ai-paperchat-client/pkg/api"
	"ai-paperchat-client/pkg/events"
	"ai-paperchat-client/pkg/upload"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// fakeRemote implements both api.UploadAPI and api.DedupChecker.
type fakeRemote struct {
	mu sync.Mutex

	dedupResp *api.DedupResponse
	dedupErr  error

	failUploads map[string]bool
	uploaded    []string
	startCalls  int32
	cancelled   []string
	retried     []string
	retryErr    error
}

func (f *fakeRemote) CheckDuplicates(ctx context.Context, hashes []string) (*api.DedupResponse, error) {
	if f.dedupErr != nil {
		return nil, f.dedupErr
	}
	if f.dedupResp != nil {
		return f.dedupResp, nil
	}
	return &api.DedupResponse{}, nil
}

func (f *fakeRemote) InitBatch(ctx context.Context, filenames []string) (*api.InitBatchResponse, error) {
	resp := &api.InitBatchResponse{BatchId: "batch-1"}
	for i, name := range filenames {
		resp.Tasks = append(resp.Tasks, api.TaskInfo{TaskId: "task-" + string(rune('a'+i)), Filename: name})
	}
	return resp, nil
}

func (f *fakeRemote) UploadFile(ctx context.Context, batchId, taskId string, data []byte) (*api.UploadFileResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUploads[taskId] {
		return nil, errors.New("transfer refused")
	}
	f.uploaded = append(f.uploaded, taskId)
	return &api.UploadFileResponse{Status: "uploaded", FileSize: int64(len(data))}, nil
}

func (f *fakeRemote) StartProcessing(ctx context.Context, batchId string) error {
	atomic.AddInt32(&f.startCalls, 1)
	return nil
}

func (f *fakeRemote) CancelTask(ctx context.Context, batchId, taskId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, taskId)
	return nil
}

func (f *fakeRemote) RetryTask(ctx context.Context, batchId, taskId string) error {
	if f.retryErr != nil {
		return f.retryErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, taskId)
	return nil
}

func (f *fakeRemote) StreamBatchEvents(ctx context.Context, batchId string) (<-chan events.BatchEvent, error) {
	ch := make(chan events.BatchEvent)
	close(ch)
	return ch, nil
}

type uploadFixture struct {
	svc       IUploadService
	remote    *fakeRemote
	batchRepo *memory.BatchRepository
	paperRepo *memory.PaperRepository
}

func newUploadFixture(remote *fakeRemote) *uploadFixture {
	flowLog := log.New(io.Discard, "", 0)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	batchRepo := memory.NewBatchRepository()
	paperRepo := memory.NewPaperRepository()

	svc := NewUploadService(
		remote,
		upload.NewHasher(remote, flowLog),
		upload.NewScheduler(remote, 2, flowLog),
		upload.NewListener(remote, pubSub, "BATCH_PROGRESS", flowLog),
		batchRepo,
		paperRepo,
		nopLogger{},
		flowLog,
		20,
	)
	return &uploadFixture{svc: svc, remote: remote, batchRepo: batchRepo, paperRepo: paperRepo}
}

func testFiles(names ...string) []dto.UploadFile {
	files := make([]dto.UploadFile, 0, len(names))
	for _, name := range names {
		files = append(files, dto.UploadFile{Filename: name, Data: []byte("content of " + name)})
	}
	return files
}

func TestStartUploadHappyPath(t *testing.T) {
	fx := newUploadFixture(&fakeRemote{})

	result, err := fx.svc.StartUpload(context.Background(), testFiles("a.pdf", "b.pdf"))
	if err != nil {
		t.Fatalf("StartUpload() error = %v", err)
	}
	if result.BatchId != "batch-1" || result.TaskCount != 2 {
		t.Errorf("result = %+v", result)
	}

	batch := fx.svc.ActiveBatch()
	if batch == nil || len(batch.Tasks) != 2 {
		t.Fatal("active batch missing or wrong size")
	}
	for _, task := range batch.Tasks {
		if task.Status != constant.TaskStatusUploading {
			t.Errorf("task %s status = %s, want uploading until remote events arrive", task.TaskId, task.Status)
		}
	}

	// One provisional paper per task, keyed by task id
	for _, task := range batch.Tasks {
		paper, found := fx.paperRepo.GetCopy(task.TaskId)
		if !found {
			t.Fatalf("no provisional paper for task %s", task.TaskId)
		}
		if !paper.Provisional || paper.Status != constant.PaperStatusPending {
			t.Errorf("paper = %+v", paper)
		}
	}

	if got := atomic.LoadInt32(&fx.remote.startCalls); got != 1 {
		t.Errorf("StartProcessing called %d times, want 1", got)
	}
}

func TestStartUploadAllDuplicates(t *testing.T) {
	files := testFiles("a.pdf")
	remote := &fakeRemote{dedupResp: &api.DedupResponse{
		Duplicates: []api.DuplicateInfo{
			{Hash: upload.HashFile(files[0].Data), PaperId: "p-1", Title: "Already There"},
		},
		DuplicateCount: 1,
	}}
	fx := newUploadFixture(remote)

	result, err := fx.svc.StartUpload(context.Background(), files)
	if err != nil {
		t.Fatalf("StartUpload() error = %v", err)
	}
	if result.BatchId != "" || result.TaskCount != 0 {
		t.Errorf("result = %+v, want no batch", result)
	}
	if result.SkippedDuplicates != 1 || result.SkippedTitles[0] != "Already There" {
		t.Errorf("skip summary = %+v", result)
	}
	if fx.svc.ActiveBatch() != nil {
		t.Error("all-duplicate submission created a batch")
	}
	if got := atomic.LoadInt32(&remote.startCalls); got != 0 {
		t.Error("StartProcessing called for an empty batch")
	}
}

func TestStartUploadDedupFailureAborts(t *testing.T) {
	fx := newUploadFixture(&fakeRemote{dedupErr: errors.New("service down")})

	_, err := fx.svc.StartUpload(context.Background(), testFiles("a.pdf"))
	if err == nil {
		t.Fatal("StartUpload() succeeded despite dedup failure")
	}
	if fx.svc.ActiveBatch() != nil {
		t.Error("failed submission left a batch behind")
	}
}

func TestStartUploadTooManyFiles(t *testing.T) {
	fx := newUploadFixture(&fakeRemote{})

	names := make([]string, 21)
	for i := range names {
		names[i] = "f" + string(rune('a'+i%26)) + ".pdf"
	}
	if _, err := fx.svc.StartUpload(context.Background(), testFiles(names...)); err == nil {
		t.Fatal("StartUpload() accepted more files than the limit")
	}
}

func TestStartUploadTransferFailureMarksTask(t *testing.T) {
	remote := &fakeRemote{failUploads: map[string]bool{"task-a": true}}
	fx := newUploadFixture(remote)

	if _, err := fx.svc.StartUpload(context.Background(), testFiles("a.pdf", "b.pdf")); err != nil {
		t.Fatalf("StartUpload() error = %v", err)
	}

	if got := fx.batchRepo.TaskStatus("task-a"); got != constant.TaskStatusError {
		t.Errorf("failed task status = %s, want error", got)
	}
	if got := fx.batchRepo.TaskStatus("task-b"); got != constant.TaskStatusUploading {
		t.Errorf("sibling task status = %s, want uploading", got)
	}
	paper, _ := fx.paperRepo.GetCopy("task-a")
	if paper.Status != constant.PaperStatusError {
		t.Errorf("paper status = %s, want error", paper.Status)
	}
	// Processing still starts for the surviving sibling
	if got := atomic.LoadInt32(&remote.startCalls); got != 1 {
		t.Errorf("StartProcessing called %d times, want 1", got)
	}
}

func TestCancelTaskGating(t *testing.T) {
	remote := &fakeRemote{}
	fx := newUploadFixture(remote)

	if _, err := fx.svc.StartUpload(context.Background(), testFiles("a.pdf")); err != nil {
		t.Fatalf("StartUpload() error = %v", err)
	}

	// uploading tasks are cancellable
	if err := fx.svc.CancelTask(context.Background(), "task-a"); err != nil {
		t.Fatalf("CancelTask() error = %v", err)
	}
	batch := fx.svc.ActiveBatch()
	task := batch.FindTask("task-a")
	if task.Status != constant.TaskStatusError || task.ErrorMessage != constant.CancelledTaskMessage {
		t.Errorf("task = %+v, want cancelled", task)
	}
	if len(remote.cancelled) != 1 {
		t.Errorf("remote cancel called %d times, want 1", len(remote.cancelled))
	}

	// already-settled tasks are not
	fx.batchRepo.UpdateTask("task-a", func(tk *entity.UploadTask) { tk.Status = constant.TaskStatusComplete })
	if err := fx.svc.CancelTask(context.Background(), "task-a"); err != nil {
		t.Fatalf("CancelTask() error = %v", err)
	}
	if len(remote.cancelled) != 1 {
		t.Error("cancel reached the remote for a settled task")
	}
}

func TestRetryTaskGating(t *testing.T) {
	remote := &fakeRemote{failUploads: map[string]bool{"task-a": true}}
	fx := newUploadFixture(remote)

	if _, err := fx.svc.StartUpload(context.Background(), testFiles("a.pdf")); err != nil {
		t.Fatalf("StartUpload() error = %v", err)
	}

	if err := fx.svc.RetryTask(context.Background(), "task-a"); err != nil {
		t.Fatalf("RetryTask() error = %v", err)
	}
	task := fx.svc.ActiveBatch().FindTask("task-a")
	if task.Status != constant.TaskStatusPending || task.ErrorMessage != "" || task.ProgressPercent != 0 {
		t.Errorf("task = %+v, want reset to pending", task)
	}

	// non-error tasks are not retryable
	if err := fx.svc.RetryTask(context.Background(), "task-a"); err != nil {
		t.Fatalf("RetryTask() error = %v", err)
	}
	if len(remote.retried) != 1 {
		t.Errorf("remote retry called %d times, want 1", len(remote.retried))
	}
}

func TestRetryTaskRemoteFailureKeepsErrorState(t *testing.T) {
	remote := &fakeRemote{failUploads: map[string]bool{"task-a": true}, retryErr: errors.New("rejected")}
	fx := newUploadFixture(remote)

	if _, err := fx.svc.StartUpload(context.Background(), testFiles("a.pdf")); err != nil {
		t.Fatalf("StartUpload() error = %v", err)
	}

	if err := fx.svc.RetryTask(context.Background(), "task-a"); err == nil {
		t.Fatal("RetryTask() succeeded despite remote failure")
	}
	if got := fx.batchRepo.TaskStatus("task-a"); got != constant.TaskStatusError {
		t.Errorf("task status = %s, want still error", got)
	}
}

func TestTaskControlsWithoutBatchAreNoOps(t *testing.T) {
	fx := newUploadFixture(&fakeRemote{})

	if err := fx.svc.CancelTask(context.Background(), "ghost"); err != nil {
		t.Errorf("CancelTask() error = %v", err)
	}
	if err := fx.svc.RetryTask(context.Background(), "ghost"); err != nil {
		t.Errorf("RetryTask() error = %v", err)
	}
}

func TestClearBatch(t *testing.T) {
	fx := newUploadFixture(&fakeRemote{})

	if _, err := fx.svc.StartUpload(context.Background(), testFiles("a.pdf")); err != nil {
		t.Fatalf("StartUpload() error = %v", err)
	}
	fx.svc.ClearBatch()
	if fx.svc.ActiveBatch() != nil {
		t.Error("batch survived ClearBatch")
	}

	// late events for the cleared batch must not panic or resurrect it
	if updated := fx.batchRepo.UpdateTask("task-a", func(tk *entity.UploadTask) {}); updated {
		t.Error("update succeeded against a cleared batch")
	}
}
