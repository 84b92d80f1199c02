package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/store"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/util"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Defaults for Options
const (
	DefaultCacheTTL = 5 * time.Minute
	DefaultLockTTL  = 10 * time.Second
)

// Options tunes a CatalogService
type Options struct {
	CacheTTL time.Duration
	LockTTL  time.Duration
}

// CatalogService handles product catalog business logic
type CatalogService struct {
	store     store.ProductRepository
	cache     ProductCache
	locker    Locker
	publisher EventPublisher
	cacheTTL  time.Duration
	lockTTL   time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

// NewCatalogService creates a new catalog service. A nil cache or publisher
// disables caching or events; a nil locker falls back to a LocalLocker.
func NewCatalogService(
	repo store.ProductRepository,
	cache ProductCache,
	locker Locker,
	publisher EventPublisher,
	opts Options,
) *CatalogService {
	if cache == nil {
		cache = noopCache{}
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}

	return &CatalogService{
		store:     repo,
		cache:     cache,
		locker:    locker,
		publisher: publisher,
		cacheTTL:  opts.CacheTTL,
		lockTTL:   opts.LockTTL,
		clock:     time.Now,
		logger:    util.GetLogger(),
	}
}

// CreateProduct validates and persists a new product. owner is the calling
// application and may be empty.
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductWriteRequest, owner string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.CreateProduct")
	defer span.End()
	defer s.observe("create", time.Now())

	attrs, err := req.attributes()
	if err != nil {
		util.ProductWritesFailed.WithLabelValues("validation").Inc()
		return nil, err
	}

	p := models.NewProduct(req.Organization, attrs.Type)
	p.ApplyAttributes(attrs)
	if req.AvailableAt != nil {
		p.AvailableAt = req.AvailableAt.UTC()
	}
	if owner != "" {
		p.Owner = &owner
	}

	if err := s.createProduct(ctx, p); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return p, nil
}

// createProduct stamps defaults on p, validates it and persists it
func (s *CatalogService) createProduct(ctx context.Context, p *models.Product) error {
	if p.Identifier == "" {
		p.Identifier = uuid.New().String()
	}
	if p.AvailableAt.IsZero() {
		p.AvailableAt = s.clock().UTC()
	}
	p.ComputePricing()

	if err := p.Validate(); err != nil {
		util.ProductWritesFailed.WithLabelValues("validation").Inc()
		return err
	}

	if err := s.store.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, models.ErrDuplicateIdentifier) {
			util.ProductWritesFailed.WithLabelValues("duplicate").Inc()
			return err
		}
		util.ProductWritesFailed.WithLabelValues("db_error").Inc()
		return fmt.Errorf("failed to create product: %w", err)
	}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.Int64("product_id", p.ID),
		zap.String("organization", p.Organization),
		zap.String("identifier", p.Identifier))

	s.publish(ctx, models.EventTypeProductCreated, p, func(e *models.ProductEvent) { e.Version = 1 })
	return nil
}

// GetProduct retrieves a product, reading through the cache
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetProduct", attribute.Int64("product.id", id))
	defer span.End()

	cached, err := s.cache.GetProduct(ctx, id)
	if err != nil {
		s.logger.Warn("Product cache read failed, falling back to store",
			zap.Int64("product_id", id), zap.Error(err))
	}
	if cached != nil {
		util.ProductCacheRequests.WithLabelValues("hit").Inc()
		return cached, nil
	}
	util.ProductCacheRequests.WithLabelValues("miss").Inc()

	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetProduct(ctx, p, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache product", zap.Int64("product_id", id), zap.Error(err))
	}
	return p, nil
}

// ListProducts retrieves the products matching filter
func (s *CatalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ReplaceProduct overwrites every writable attribute of a product. The
// organization cannot change, and a type change may not strand existing
// variations or set members.
func (s *CatalogService) ReplaceProduct(ctx context.Context, id int64, req *ProductWriteRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ReplaceProduct", attribute.Int64("product.id", id))
	defer span.End()
	defer s.observe("replace", time.Now())

	attrs, err := req.attributes()
	if err != nil {
		util.ProductWritesFailed.WithLabelValues("validation").Inc()
		return nil, err
	}

	unlock, err := s.lockProducts(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Organization != "" && req.Organization != p.Organization {
		util.ProductWritesFailed.WithLabelValues("immutable").Inc()
		return nil, fmt.Errorf("%w: bronOrganisatie", models.ErrImmutableField)
	}
	if attrs.Identifier == "" {
		attrs.Identifier = p.Identifier
	}
	if req.AvailableAt != nil {
		p.AvailableAt = req.AvailableAt.UTC()
	}

	if err := s.writeAttributes(ctx, p, attrs, models.VersionActionUpdate); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, models.EventTypeProductUpdated, p, nil)
	return p, nil
}

// writeAttributes applies attrs to p, validates it and stores a new version
func (s *CatalogService) writeAttributes(ctx context.Context, p *models.Product, attrs models.ProductAttributes, action string) error {
	if err := checkTypeChange(p, attrs.Type); err != nil {
		util.ProductWritesFailed.WithLabelValues("type_constraint").Inc()
		return err
	}

	p.ApplyAttributes(attrs)
	if err := p.Validate(); err != nil {
		util.ProductWritesFailed.WithLabelValues("validation").Inc()
		return err
	}

	if err := s.store.UpdateProduct(ctx, p, action); err != nil {
		if errors.Is(err, models.ErrDuplicateIdentifier) || models.IsProductNotFoundError(err) {
			return err
		}
		util.ProductWritesFailed.WithLabelValues("db_error").Inc()
		return fmt.Errorf("failed to update product: %w", err)
	}

	util.ProductsUpdatedTotal.WithLabelValues(action).Inc()
	s.invalidate(ctx, p.ID)
	s.logger.Info("Product updated",
		zap.Int64("product_id", p.ID),
		zap.String("action", action))
	return nil
}

// DeleteProduct detaches a product from every relation on both sides and
// removes it
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.DeleteProduct", attribute.Int64("product.id", id))
	defer span.End()
	defer s.observe("delete", time.Now())

	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}

	locked := models.NewIDSet(append(p.RelatedIDs(), id)...)
	unlock, err := s.lockProducts(ctx, locked...)
	if err != nil {
		return err
	}
	defer unlock()

	// reload under lock
	p, err = s.store.GetProductByID(ctx, id)
	if err != nil {
		return err
	}
	for _, relatedID := range p.RelatedIDs() {
		if !locked.Has(relatedID) {
			return fmt.Errorf("%w: product %d gained relation %d", models.ErrConcurrentModification, id, relatedID)
		}
	}
	neighbours, err := s.store.GetProductsByIDs(ctx, p.RelatedIDs())
	if err != nil {
		return fmt.Errorf("failed to load related products: %w", err)
	}

	if err := detach(p, neighbours); err != nil {
		return err
	}
	if len(neighbours) > 0 {
		now := s.clock()
		for _, n := range neighbours {
			n.Touch(now)
		}
		if err := s.store.SaveRelations(ctx, append(neighbours, p)...); err != nil {
			return fmt.Errorf("failed to detach product: %w", err)
		}
	}

	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}

	util.ProductsDeletedTotal.Inc()
	ids := make([]int64, 0, len(neighbours))
	for _, n := range neighbours {
		ids = append(ids, n.ID)
	}
	s.invalidate(ctx, append(ids, id)...)
	s.logger.Info("Product deleted", zap.Int64("product_id", id), zap.Int64s("related_ids", ids))

	s.publish(ctx, models.EventTypeProductDeleted, p, func(e *models.ProductEvent) { e.RelatedIDs = ids })
	return nil
}

// detach removes p from every relation it takes part in
func detach(p *models.Product, neighbours []*models.Product) error {
	for _, n := range neighbours {
		steps := []func() (bool, error){
			func() (bool, error) { return p.RemoveExtra(n) },
			func() (bool, error) { return n.RemoveExtra(p) },
			func() (bool, error) { return p.RemoveSetMember(n) },
			func() (bool, error) { return n.RemoveSetMember(p) },
			func() (bool, error) { return p.RemoveVariation(n) },
			func() (bool, error) { return n.RemoveVariation(p) },
		}
		for _, step := range steps {
			if _, err := step(); err != nil {
				return fmt.Errorf("failed to detach product %d from %d: %w", p.ID, n.ID, err)
			}
		}
	}
	return nil
}

// checkTypeChange rejects type changes that would strand relations only the
// current type may own
func checkTypeChange(p *models.Product, newType models.ProductType) error {
	if newType == p.Type {
		return nil
	}
	if len(p.Variations) > 0 && newType != models.ProductTypeVariable {
		return fmt.Errorf("%w: product %d has %d variations and must stay %s",
			models.ErrTypeConstraint, p.ID, len(p.Variations), models.ProductTypeVariable)
	}
	if len(p.ComposedOf) > 0 && newType != models.ProductTypeComposite {
		return fmt.Errorf("%w: product %d has %d set members and must stay %s",
			models.ErrTypeConstraint, p.ID, len(p.ComposedOf), models.ProductTypeComposite)
	}
	return nil
}

// lockProducts locks every id in ascending order and returns the release func
func (s *CatalogService) lockProducts(ctx context.Context, ids ...int64) (func(), error) {
	type held struct {
		key   string
		token string
	}
	var acquired []held

	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			if err := s.locker.ReleaseLock(context.Background(), acquired[i].key, acquired[i].token); err != nil {
				s.logger.Error("Failed to release product lock",
					zap.String("key", acquired[i].key), zap.Error(err))
			}
		}
	}

	for _, id := range models.NewIDSet(ids...) {
		key := fmt.Sprintf("product:%d", id)
		token, ok, err := s.locker.AcquireLock(ctx, key, s.lockTTL)
		if err != nil {
			release()
			return nil, fmt.Errorf("failed to lock product %d: %w", id, err)
		}
		if !ok {
			release()
			util.LockAcquireFailures.Inc()
			return nil, fmt.Errorf("%w: product %d", models.ErrConcurrentModification, id)
		}
		acquired = append(acquired, held{key: key, token: token})
	}

	return release, nil
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...int64) {
	if err := s.cache.InvalidateProducts(ctx, ids...); err != nil {
		s.logger.Warn("Failed to invalidate cached products", zap.Int64s("product_ids", ids), zap.Error(err))
	}
}

func (s *CatalogService) publish(ctx context.Context, eventType string, p *models.Product, decorate func(*models.ProductEvent)) {
	event := &models.ProductEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.clock().UTC(),
		},
		ProductID:    p.ID,
		Organization: p.Organization,
	}
	if decorate != nil {
		decorate(event)
	}

	if err := s.publisher.PublishProductEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish product event",
			zap.String("event_type", eventType),
			zap.Int64("product_id", p.ID),
			zap.Error(err))
	}
}

func (s *CatalogService) observe(operation string, start time.Time) {
	util.ProductOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
