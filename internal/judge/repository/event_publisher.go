package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"efrog/internal/common/mq"
	"efrog/internal/judge/model"
	appErr "efrog/pkg/errors"
)

// EventPublisher publishes terminal submission events for downstream
// consumers (ratings, notifications).
type EventPublisher interface {
	PublishFinished(ctx context.Context, event model.SubmissionFinishedEvent) error
}

// MQEventPublisher publishes events to a message queue.
type MQEventPublisher struct {
	queue mq.MessageQueue
	topic string
}

// NewMQEventPublisher creates a new MQ event publisher.
func NewMQEventPublisher(queue mq.MessageQueue, topic string) *MQEventPublisher {
	return &MQEventPublisher{queue: queue, topic: topic}
}

// PublishFinished publishes a finished-submission event.
func (p *MQEventPublisher) PublishFinished(ctx context.Context, event model.SubmissionFinishedEvent) error {
	if p == nil || p.queue == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("event publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("event topic is required")
	}
	if event.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if event.FinishedAt == 0 {
		event.FinishedAt = time.Now().Unix()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal finished event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = event.SubmissionID
	if err := p.queue.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish finished event failed")
	}
	return nil
}
