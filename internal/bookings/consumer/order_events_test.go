package consumer

import (
	"context"
	"errors"
	"testing"

	apperrors "coworking/pkg/errors"
	"coworking/pkg/kafka"
	"coworking/pkg/logger"
	"coworking/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHandler struct {
	handleFunc func(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error)
}

func (m *mockHandler) HandleOrderEvent(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
	return m.handleFunc(ctx, event)
}

func message(t *testing.T, value any) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().WithKey("1001").WithValue(value).Build()
	require.NoError(t, err)
	return msg
}

func TestHandle_DispatchesDecodedEvent(t *testing.T) {
	var received *model.OrderEvent
	c := NewOrderEventConsumer(&mockHandler{handleFunc: func(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
		received = event
		return &model.OrderOutcome{OrderID: event.OrderID, Action: model.ActionFinalized}, nil
	}}, logger.Discard())

	err := c.Handle(context.Background(), message(t, model.OrderEvent{
		OrderID: "1001",
		Status:  model.OrderCompleted,
		Lines:   []model.OrderLine{{LockToken: "t-1"}},
	}))

	require.NoError(t, err)
	require.NotNil(t, received)
	assert.Equal(t, "1001", received.OrderID)
	assert.Equal(t, "t-1", received.Lines[0].LockToken)
}

func TestHandle_UndecodableIsPermanent(t *testing.T) {
	c := NewOrderEventConsumer(&mockHandler{}, logger.Discard())

	err := c.Handle(context.Background(), kafka.Message{Key: "k", Value: []byte("{")})

	require.Error(t, err)
	assert.Equal(t, kafka.ErrorTypePermanent, kafka.ClassifyError(err))
}

func TestHandle_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want kafka.ErrorType
	}{
		{"validation", apperrors.Validation("bad", nil), kafka.ErrorTypePermanent},
		{"misconfiguration", apperrors.Misconfiguration("no mapping"), kafka.ErrorTypePermanent},
		{"store outage", apperrors.Internal("write failed", errors.New("timeout")), kafka.ErrorTypeTransient},
		{"lock store", apperrors.Unavailable("Lock store", errors.New("refused")), kafka.ErrorTypeTransient},
		{"plain error", errors.New("boom"), kafka.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOrderEventConsumer(&mockHandler{handleFunc: func(ctx context.Context, event *model.OrderEvent) (*model.OrderOutcome, error) {
				return nil, tt.err
			}}, logger.Discard())

			err := c.Handle(context.Background(), message(t, model.OrderEvent{OrderID: "1", Status: model.OrderCompleted}))
			require.Error(t, err)
			assert.Equal(t, tt.want, kafka.ClassifyError(err))
		})
	}
}
