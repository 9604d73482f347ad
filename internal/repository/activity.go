package repository

import (
	"context"
	"fmt"

	"DeskSync/internal/domain/models"
	drepo "DeskSync/internal/domain/repository"
	pkgkafka "DeskSync/pkg/kafka"
	"DeskSync/pkg/logger"
	"DeskSync/pkg/queue"
)

const activityMessageType = "activity_event"

// ActivityExporter publishes audit events for resolved mutations and scope
// changes toward the BI dashboards. With a queue configured events are
// buffered in Redis and drained by ActivityPublishJob; otherwise they go to
// Kafka directly; with neither, export is a no-op. Failures here must never
// affect the mutation path, so every error is logged and swallowed by the
// caller.
type ActivityExporter struct {
	queue    queue.Publisher
	producer *pkgkafka.Producer
	topic    string
	logger   *logger.Logger
}

// NewActivityExporter builds the exporter. Either dependency may be nil.
func NewActivityExporter(q queue.Publisher, producer *pkgkafka.Producer, topic string, lgr *logger.Logger) *ActivityExporter {
	return &ActivityExporter{queue: q, producer: producer, topic: topic, logger: lgr}
}

// Publish exports one activity event.
func (e *ActivityExporter) Publish(ctx context.Context, ev models.ActivityEvent) error {
	if e.queue != nil {
		if err := e.queue.PublishMessage(ctx, activityMessageType, ev); err != nil {
			return fmt.Errorf("enqueue activity: %w", err)
		}
		return nil
	}
	if e.producer != nil {
		if err := e.producer.Publish(ctx, e.topic, []byte(ev.Account), ev); err != nil {
			return fmt.Errorf("publish activity: %w", err)
		}
		return nil
	}
	return nil
}

// Close releases the Kafka writer when this exporter owns one.
func (e *ActivityExporter) Close() error {
	if e.producer != nil {
		return e.producer.Close()
	}
	return nil
}

var _ drepo.ActivityPublisher = (*ActivityExporter)(nil)

// ActivityPublishJob drains buffered activity events from the Redis queue
// into the Kafka topic. Keyed by account so each account's audit trail stays
// ordered per partition.
type ActivityPublishJob struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewActivityPublishJob(producer *pkgkafka.Producer, topic string) *ActivityPublishJob {
	return &ActivityPublishJob{producer: producer, topic: topic}
}

func (j *ActivityPublishJob) Kind() string { return activityMessageType }

func (j *ActivityPublishJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.ActivityEvent](payload)
	if err != nil {
		return fmt.Errorf("parse activity payload: %w", err)
	}
	if err := j.producer.Publish(ctx, j.topic, []byte(ev.Account), ev); err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	return nil
}

var _ queue.Job = (*ActivityPublishJob)(nil)
