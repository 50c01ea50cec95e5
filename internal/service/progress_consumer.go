package service

import (
	"context"
	"encoding/json"
	"log"

	"ai-paperchat-client/internal/constant"
	"ai-paperchat-client/internal/entity"
	"ai-paperchat-client/internal/repository/memory"
	"ai-paperchat-client/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IProgressConsumer interface {
	Consume(ctx context.Context) error
}

type progressConsumer struct {
	pubSub    *gochannel.GoChannel
	topicName string
	batchRepo *memory.BatchRepository
	paperRepo *memory.PaperRepository
	library   ILibraryService
}

func NewProgressConsumer(
	pubSub *gochannel.GoChannel,
	topicName string,
	batchRepo *memory.BatchRepository,
	paperRepo *memory.PaperRepository,
	library ILibraryService,
) IProgressConsumer {
	return &progressConsumer{
		pubSub:    pubSub,
		topicName: topicName,
		batchRepo: batchRepo,
		paperRepo: paperRepo,
		library:   library,
	}
}

func (pc *progressConsumer) Consume(ctx context.Context) error {
	messages, err := pc.pubSub.Subscribe(ctx, pc.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			pc.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage applies a single batch event to local state. Every message
// is Acked: batch events are snapshots and redelivery would only replay a
// stale one.
func (pc *progressConsumer) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var ev events.BatchEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		log.Printf("[ERROR] Failed to unmarshal batch event: %v", err)
		return
	}

	switch ev.Type {
	case events.BatchEventTaskProgress:
		pc.applyTaskProgress(ev)
	case events.BatchEventTaskComplete:
		pc.applyTaskComplete(ctx, ev)
	case events.BatchEventTaskError:
		pc.applyTaskError(ev)
	case events.BatchEventBatchComplete:
		pc.applyBatchComplete(ctx, ev)
	default:
		log.Printf("[WARN] Unknown batch event type: %s", ev.Type)
	}
}

func (pc *progressConsumer) applyTaskProgress(ev events.BatchEvent) {
	updated := pc.batchRepo.UpdateTask(ev.TaskId, func(t *entity.UploadTask) {
		if ev.Status != "" {
			t.Status = ev.Status
		}
		t.CurrentStep = ev.CurrentStep
		t.ProgressPercent = ev.ProgressPercent
	})
	if !updated {
		return
	}
	pc.paperRepo.Update(ev.TaskId, func(p *entity.Paper) {
		p.Status = constant.PaperStatusIndexing
		p.ProgressPercent = ev.ProgressPercent
	})
}

func (pc *progressConsumer) applyTaskComplete(ctx context.Context, ev events.BatchEvent) {
	updated := pc.batchRepo.UpdateTask(ev.TaskId, func(t *entity.UploadTask) {
		t.Status = constant.TaskStatusComplete
		t.ProgressPercent = 100
		t.ErrorMessage = ""
	})
	if !updated {
		return
	}

	if ev.PaperId != "" {
		pc.paperRepo.Promote(ev.TaskId, ev.PaperId)
		pc.paperRepo.Update(ev.PaperId, func(p *entity.Paper) {
			p.Status = constant.PaperStatusIndexed
			p.ProgressPercent = 100
		})
	}

	if err := pc.library.RefreshPapers(ctx); err != nil {
		log.Printf("[WARN] Library refresh after task completion failed: %v", err)
	}
}

func (pc *progressConsumer) applyTaskError(ev events.BatchEvent) {
	updated := pc.batchRepo.UpdateTask(ev.TaskId, func(t *entity.UploadTask) {
		t.Status = constant.TaskStatusError
		t.ErrorMessage = ev.ErrorMessage
	})
	if !updated {
		return
	}
	pc.paperRepo.Update(ev.TaskId, func(p *entity.Paper) {
		p.Status = constant.PaperStatusError
		p.ErrorMessage = ev.ErrorMessage
	})
}

func (pc *progressConsumer) applyBatchComplete(ctx context.Context, ev events.BatchEvent) {
	log.Printf("[INFO] Batch %s complete, refreshing library", ev.BatchId)
	if err := pc.library.RefreshPapers(ctx); err != nil {
		log.Printf("[WARN] Library refresh after batch completion failed: %v", err)
	}
	if err := pc.library.RefreshStats(ctx); err != nil {
		log.Printf("[WARN] Stats refresh after batch completion failed: %v", err)
	}
}
