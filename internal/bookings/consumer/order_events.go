// Package consumer feeds order lifecycle events from Kafka into the booking
// pipeline.
package consumer

import (
	"context"
	"net/http"

	apperrors "coworking/pkg/errors"
	"coworking/pkg/kafka"
	"coworking/pkg/logger"
	"coworking/pkg/model"
)

type OrderEventHandler interface {
	HandleOrderEvent(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error)
}

type OrderEventConsumer struct {
	handler OrderEventHandler
	log     *logger.Logger
}

func NewOrderEventConsumer(handler OrderEventHandler, log *logger.Logger) *OrderEventConsumer {
	return &OrderEventConsumer{handler: handler, log: log}
}

// Handle is a kafka.MessageHandler. Malformed or invalid events are
// permanent and go to the DLQ; failures of a dependency are retried.
func (c *OrderEventConsumer) Handle(ctx context.Context, msg kafka.Message) error {
	var event model.OrderEvent
	if err := msg.DecodeValue(&event); err != nil {
		c.log.Warn("Undecodable order event",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return err
	}

	outcome, err := c.handler.HandleOrderEvent(ctx, &event)
	if err != nil {
		return classify(err)
	}

	c.log.Info("Order event consumed",
		"order_id", outcome.OrderID,
		"action", outcome.Action,
		"event_id", msg.GetEventID(),
	)
	return nil
}

func classify(err error) error {
	appErr := apperrors.AsAppError(err)
	if appErr.HTTPStatus >= http.StatusInternalServerError && appErr.Code != apperrors.CodeMisconfiguration {
		return kafka.NewTransientError(appErr.Message, err)
	}
	return kafka.NewPermanentError(appErr.Message, err)
}
