package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing product events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishProductEvent publishes a product event keyed by product id
func (ep *EventPublisher) PublishProductEvent(ctx context.Context, event *models.ProductEvent) error {
	return ep.producer.PublishEvent(ctx, EventKey(event.ProductID), event)
}

// EventKey returns the partition key for events about a product
func EventKey(productID int64) string {
	return fmt.Sprintf("product-%d", productID)
}

// EventHandler handles incoming events
type EventHandler struct {
	onProductEvent func(context.Context, *models.ProductEvent) error
	logger         *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnProductEvent registers a handler for every product event type
func (eh *EventHandler) OnProductEvent(handler func(context.Context, *models.ProductEvent) error) {
	eh.onProductEvent = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeProductCreated,
		models.EventTypeProductUpdated,
		models.EventTypeProductDeleted,
		models.EventTypeProductRelationChanged,
		models.EventTypeProductReverted:
		if eh.onProductEvent != nil {
			var event models.ProductEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onProductEvent(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
