package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte("product-1"), Value: value}
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "product-42", EventKey(42))
}

func TestHandleMessageRoutesProductEvents(t *testing.T) {
	var received []*models.ProductEvent
	handler := NewEventHandler()
	handler.OnProductEvent(func(ctx context.Context, event *models.ProductEvent) error {
		received = append(received, event)
		return nil
	})

	event := &models.ProductEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "e-1",
			EventType: models.EventTypeProductRelationChanged,
			Timestamp: time.Now(),
		},
		ProductID:  1,
		Relation:   models.RelationExtra,
		RelatedIDs: []int64{2},
	}

	require.NoError(t, handler.HandleMessage(context.Background(), message(t, event)))
	require.Len(t, received, 1)
	assert.Equal(t, int64(1), received[0].ProductID)
	assert.Equal(t, models.RelationExtra, received[0].Relation)
	assert.Equal(t, []int64{1, 2}, received[0].AffectedIDs())
}

func TestHandleMessageIgnoresUnknownTypes(t *testing.T) {
	called := false
	handler := NewEventHandler()
	handler.OnProductEvent(func(ctx context.Context, event *models.ProductEvent) error {
		called = true
		return nil
	})

	msg := message(t, models.BaseEvent{EventID: "e-2", EventType: "ORDER_CREATED"})
	require.NoError(t, handler.HandleMessage(context.Background(), msg))
	assert.False(t, called)
}

func TestHandleMessageErrors(t *testing.T) {
	handler := NewEventHandler()

	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte("{")})
	assert.Error(t, err)

	boom := errors.New("boom")
	handler.OnProductEvent(func(ctx context.Context, event *models.ProductEvent) error {
		return boom
	})
	msg := message(t, models.ProductEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeProductDeleted},
		ProductID: 3,
	})
	assert.ErrorIs(t, handler.HandleMessage(context.Background(), msg), boom)
}
