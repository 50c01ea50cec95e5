package upload

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"ai-paperchat-client/pkg/api"
	"ai-paperchat-client/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Listener bridges one batch's remote event subscription onto the in-process
// bus. Stream events are published in arrival order; a transport failure
// invokes the error callback and nothing else: the upload and listening
// failure domains stay decoupled.
type Listener struct {
	uploadApi api.UploadAPI
	publisher message.Publisher
	topic     string
	logger    *log.Logger

	cancel context.CancelFunc
}

func NewListener(uploadApi api.UploadAPI, publisher message.Publisher, topic string, logger *log.Logger) *Listener {
	return &Listener{
		uploadApi: uploadApi,
		publisher: publisher,
		topic:     topic,
		logger:    logger,
	}
}

// Listen opens the subscription for batchId and dispatches until the stream
// ends or Close is called. batch_complete is the terminal event and closes
// the subscription.
func (l *Listener) Listen(ctx context.Context, batchId string, onError func(error)) error {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	stream, err := l.uploadApi.StreamBatchEvents(ctx, batchId)
	if err != nil {
		cancel()
		return err
	}

	go func() {
		defer cancel()
		for ev := range stream {
			if ev.Type == events.BatchEventStreamError {
				l.logger.Printf("[LISTENER] Batch %s stream error: %s", batchId, ev.ErrorMessage)
				if onError != nil {
					onError(errors.New(ev.ErrorMessage))
				}
				continue
			}

			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			msg := message.NewMessage(watermill.NewUUID(), payload)
			if err := l.publisher.Publish(l.topic, msg); err != nil {
				l.logger.Printf("[LISTENER] Publish failed for batch %s: %v", batchId, err)
			}

			if ev.Type == events.BatchEventBatchComplete {
				l.logger.Printf("[LISTENER] Batch %s complete, closing subscription", batchId)
				return
			}
		}
	}()

	return nil
}

// Close stops further dispatch. In-flight uploads are unaffected.
func (l *Listener) Close() {
	if l.cancel != nil {
		l.cancel()
	}
}
