package worker

import (
	"context"
	"fmt"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/broker"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/util"

	"go.uber.org/zap"
)

// Invalidator drops cached products
type Invalidator interface {
	InvalidateProducts(ctx context.Context, ids ...int64) error
}

// CacheWorker evicts cached products named by product events, keeping the
// caches of every service instance in line with writes made elsewhere
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        Invalidator
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(consumer *broker.Consumer, cache Invalidator) *CacheWorker {
	w := &CacheWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnProductEvent(w.handleProductEvent)
	return w
}

// Start starts the worker
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.consumer.Close()
}

func (w *CacheWorker) handleProductEvent(ctx context.Context, event *models.ProductEvent) error {
	ids := event.AffectedIDs()
	if err := w.cache.InvalidateProducts(ctx, ids...); err != nil {
		return fmt.Errorf("failed to invalidate products %v: %w", ids, err)
	}

	util.CacheInvalidationsTotal.Add(float64(len(ids)))
	w.logger.Debug("Invalidated cached products",
		zap.String("event_type", event.EventType),
		zap.Int64s("product_ids", ids))
	return nil
}
