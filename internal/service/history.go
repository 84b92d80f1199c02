package service

import (
	"context"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/util"

	"go.opentelemetry.io/otel/attribute"
)

// History returns the recorded versions of a product, oldest first
func (s *CatalogService) History(ctx context.Context, id int64) ([]models.ProductVersion, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.History", attribute.Int64("product.id", id))
	defer span.End()

	if _, err := s.store.GetProductByID(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListVersions(ctx, id)
}

// Revert copies the writable attributes recorded in version onto the product
// and stores the result as a new version. Identity, organization, relations
// and the creation time are left untouched.
func (s *CatalogService) Revert(ctx context.Context, id int64, version int) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Revert",
		attribute.Int64("product.id", id),
		attribute.Int("product.version", version))
	defer span.End()
	defer s.observe("revert", time.Now())

	unlock, err := s.lockProducts(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.store.GetProductByID(ctx, id)
	if err != nil {
		return nil, err
	}

	recorded, err := s.store.GetVersion(ctx, id, version)
	if err != nil {
		return nil, err
	}
	attrs, err := recorded.Attributes()
	if err != nil {
		return nil, err
	}

	if err := s.writeAttributes(ctx, p, attrs, models.VersionActionRevert); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.publish(ctx, models.EventTypeProductReverted, p, func(e *models.ProductEvent) { e.Version = version })
	return p, nil
}
