// Package events publishes booking lifecycle events for downstream consumers.
package events

import (
	"context"
	"fmt"
	"time"

	"coworking/pkg/kafka"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/google/uuid"
)

const source = "coworking"

type Publisher interface {
	Publish(ctx context.Context, event model.BookingEvent) error
}

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaPublisher struct {
	producer messagePublisher
}

// NewKafkaPublisher keys every event by resource so that the events of one
// resource stay ordered on a single partition.
func NewKafkaPublisher(producer *kafka.Producer) Publisher {
	return &kafkaPublisher{producer: producer}
}

func (p *kafkaPublisher) Publish(ctx context.Context, event model.BookingEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	msg, err := kafka.NewMessage().
		WithKey(event.ResourceID).
		WithValue(event).
		WithEventID(event.ID).
		WithEventType(event.Type).
		WithCorrelationID(event.Token).
		WithSource(source).
		WithTimestamp(event.OccurredAt).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build %s event: %w", event.Type, err)
	}
	return p.producer.Publish(ctx, msg)
}

type logPublisher struct {
	log *logger.Logger
}

// NewLogPublisher is used when Kafka is disabled; events are only logged.
func NewLogPublisher(log *logger.Logger) Publisher {
	return &logPublisher{log: log}
}

func (p *logPublisher) Publish(_ context.Context, event model.BookingEvent) error {
	p.log.Debug("Booking event",
		"type", event.Type,
		"resource_id", event.ResourceID,
		"token", event.Token,
		"order_id", event.OrderID,
	)
	return nil
}
