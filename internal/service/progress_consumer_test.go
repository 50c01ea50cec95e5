package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-paperchat-client/internal/constant"
	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/internal/repository/memory"
	"ai-paperchat-client/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const testTopic = "BATCH_PROGRESS"

type consumerFixture struct {
	pubSub    *gochannel.GoChannel
	batchRepo *memory.BatchRepository
	paperRepo *memory.PaperRepository
	library   *fakeLibrary
}

func newConsumerFixture(t *testing.T) *consumerFixture {
	t.Helper()
	fx := &consumerFixture{
		pubSub:    gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false)),
		batchRepo: memory.NewBatchRepository(),
		paperRepo: memory.NewPaperRepository(),
		library:   &fakeLibrary{},
	}

	consumer := NewProgressConsumer(fx.pubSub, testTopic, fx.batchRepo, fx.paperRepo, fx.library)
	if err := consumer.Consume(context.Background()); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	fx.batchRepo.Set(&entity.BatchUpload{
		BatchId:   "batch-1",
		CreatedAt: time.Now(),
		Tasks: []*entity.UploadTask{
			{TaskId: "task-a", BatchId: "batch-1", Status: constant.TaskStatusUploading},
		},
	})
	fx.paperRepo.Save(&entity.Paper{
		Id:          "task-a",
		Title:       "a.pdf",
		Status:      constant.PaperStatusPending,
		Provisional: true,
	})
	return fx
}

func (fx *consumerFixture) publish(t *testing.T, ev events.BatchEvent) {
	t.Helper()
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	if err := fx.pubSub.Publish(testTopic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

// waitFor polls until check passes or the deadline hits. Consumption is
// asynchronous, so assertions on repository state need a grace window.
func waitFor(t *testing.T, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestConsumerTaskProgress(t *testing.T) {
	fx := newConsumerFixture(t)

	fx.publish(t, events.BatchEvent{
		Type:            events.BatchEventTaskProgress,
		BatchId:         "batch-1",
		TaskId:          "task-a",
		Status:          constant.TaskStatusEmbedding,
		CurrentStep:     "embedding chunks",
		ProgressPercent: 60,
	})

	waitFor(t, func() bool {
		return fx.batchRepo.TaskStatus("task-a") == constant.TaskStatusEmbedding
	})

	task := fx.batchRepo.Snapshot().FindTask("task-a")
	if task.CurrentStep != "embedding chunks" || task.ProgressPercent != 60 {
		t.Errorf("task = %+v", task)
	}
	paper, _ := fx.paperRepo.GetCopy("task-a")
	if paper.Status != constant.PaperStatusIndexing || paper.ProgressPercent != 60 {
		t.Errorf("paper = %+v", paper)
	}
}

func TestConsumerTaskCompletePromotesPaper(t *testing.T) {
	fx := newConsumerFixture(t)

	fx.publish(t, events.BatchEvent{
		Type:    events.BatchEventTaskComplete,
		BatchId: "batch-1",
		TaskId:  "task-a",
		PaperId: "paper-42",
	})

	waitFor(t, func() bool {
		return fx.batchRepo.TaskStatus("task-a") == constant.TaskStatusComplete
	})

	task := fx.batchRepo.Snapshot().FindTask("task-a")
	if task.ProgressPercent != 100 {
		t.Errorf("task progress = %d, want 100", task.ProgressPercent)
	}

	waitFor(t, func() bool {
		paper, found := fx.paperRepo.GetCopy("paper-42")
		return found && paper.Status == constant.PaperStatusIndexed
	})
	if _, found := fx.paperRepo.GetCopy("task-a"); found {
		t.Error("provisional entry survived promotion")
	}
	waitFor(t, func() bool { return fx.library.papersRefreshes.Load() >= 1 })
}

func TestConsumerTaskError(t *testing.T) {
	fx := newConsumerFixture(t)

	fx.publish(t, events.BatchEvent{
		Type:         events.BatchEventTaskError,
		BatchId:      "batch-1",
		TaskId:       "task-a",
		ErrorMessage: "corrupt pdf",
	})

	waitFor(t, func() bool {
		return fx.batchRepo.TaskStatus("task-a") == constant.TaskStatusError
	})

	task := fx.batchRepo.Snapshot().FindTask("task-a")
	if task.ErrorMessage != "corrupt pdf" {
		t.Errorf("task error = %q", task.ErrorMessage)
	}
	paper, _ := fx.paperRepo.GetCopy("task-a")
	if paper.Status != constant.PaperStatusError || paper.ErrorMessage != "corrupt pdf" {
		t.Errorf("paper = %+v", paper)
	}
}

func TestConsumerBatchCompleteRefreshesLibrary(t *testing.T) {
	fx := newConsumerFixture(t)

	fx.publish(t, events.BatchEvent{
		Type:    events.BatchEventBatchComplete,
		BatchId: "batch-1",
	})

	waitFor(t, func() bool {
		return fx.library.papersRefreshes.Load() >= 1 && fx.library.statsRefreshes.Load() >= 1
	})
}

func TestConsumerUnknownTaskIsNoOp(t *testing.T) {
	fx := newConsumerFixture(t)

	fx.publish(t, events.BatchEvent{
		Type:            events.BatchEventTaskProgress,
		BatchId:         "batch-1",
		TaskId:          "task-ghost",
		Status:          constant.TaskStatusIndexing,
		ProgressPercent: 10,
	})
	// A follow-up event for a known task proves the stray one was consumed
	fx.publish(t, events.BatchEvent{
		Type:            events.BatchEventTaskProgress,
		BatchId:         "batch-1",
		TaskId:          "task-a",
		Status:          constant.TaskStatusProcessing,
		ProgressPercent: 5,
	})

	waitFor(t, func() bool {
		return fx.batchRepo.TaskStatus("task-a") == constant.TaskStatusProcessing
	})
	if fx.batchRepo.TaskStatus("task-ghost") != "" {
		t.Error("unknown task materialized in the batch")
	}
	if _, found := fx.paperRepo.GetCopy("task-ghost"); found {
		t.Error("unknown task materialized a paper")
	}
}
