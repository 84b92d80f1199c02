package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Relation operations
const (
	opAdd    = "add"
	opRemove = "remove"
	opSet    = "set"
)

// AddExtra offers extraID as an add-on of productID
func (s *CatalogService) AddExtra(ctx context.Context, productID, extraID int64) (*models.Product, error) {
	return s.mutatePair(ctx, models.RelationExtra, opAdd, productID, extraID,
		func(ctx context.Context, owner, other *models.Product) (bool, error) {
			return owner.AddExtra(other)
		})
}

// RemoveExtra withdraws extraID as an add-on of productID
func (s *CatalogService) RemoveExtra(ctx context.Context, productID, extraID int64) (*models.Product, error) {
	return s.mutatePair(ctx, models.RelationExtra, opRemove, productID, extraID,
		func(ctx context.Context, owner, other *models.Product) (bool, error) {
			return owner.RemoveExtra(other)
		})
}

// AddSetMember adds memberID to the composite product setID
func (s *CatalogService) AddSetMember(ctx context.Context, setID, memberID int64) (*models.Product, error) {
	return s.mutatePair(ctx, models.RelationSetMember, opAdd, setID, memberID,
		func(ctx context.Context, owner, other *models.Product) (bool, error) {
			if err := s.checkSetCycle(ctx, owner, other); err != nil {
				return false, err
			}
			return owner.AddSetMember(other)
		})
}

// RemoveSetMember removes memberID from the composite product setID
func (s *CatalogService) RemoveSetMember(ctx context.Context, setID, memberID int64) (*models.Product, error) {
	return s.mutatePair(ctx, models.RelationSetMember, opRemove, setID, memberID,
		func(ctx context.Context, owner, other *models.Product) (bool, error) {
			return owner.RemoveSetMember(other)
		})
}

// AddVariation makes variationID a variation of the variable product parentID
func (s *CatalogService) AddVariation(ctx context.Context, parentID, variationID int64) (*models.Product, error) {
	return s.mutatePair(ctx, models.RelationVariation, opAdd, parentID, variationID,
		func(ctx context.Context, owner, other *models.Product) (bool, error) {
			if err := s.checkParentCycle(ctx, owner, other); err != nil {
				return false, err
			}
			return owner.AddVariation(other)
		})
}

// RemoveVariation detaches variationID from parentID
func (s *CatalogService) RemoveVariation(ctx context.Context, parentID, variationID int64) (*models.Product, error) {
	return s.mutatePair(ctx, models.RelationVariation, opRemove, parentID, variationID,
		func(ctx context.Context, owner, other *models.Product) (bool, error) {
			return owner.RemoveVariation(other)
		})
}

// SetParent moves a variation to parentID, or detaches it when parentID is nil.
// Both the old and the new parent are updated.
func (s *CatalogService) SetParent(ctx context.Context, childID int64, parentID *int64) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.SetParent", attribute.Int64("product.id", childID))
	defer span.End()
	defer s.observe("relation", time.Now())

	child, err := s.store.GetProductByID(ctx, childID)
	if err != nil {
		return nil, err
	}

	ids := []int64{childID}
	if child.ParentID != nil {
		ids = append(ids, *child.ParentID)
	}
	if parentID != nil {
		ids = append(ids, *parentID)
	}
	unlock, err := s.lockProducts(ctx, ids...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	products, err := s.loadProducts(ctx, ids...)
	if err != nil {
		return nil, err
	}
	child = products[childID]

	var oldParent, newParent *models.Product
	if child.ParentID != nil {
		if oldParent = products[*child.ParentID]; oldParent == nil {
			// parent changed between the unlocked read and the lock
			return nil, fmt.Errorf("%w: product %d", models.ErrConcurrentModification, childID)
		}
	}
	if parentID != nil {
		newParent = products[*parentID]
		if newParent.ID == child.ID {
			s.rejected(models.RelationParent, models.ErrSelfReference)
			return nil, fmt.Errorf("%w: product %d", models.ErrSelfReference, child.ID)
		}
		if err := s.checkParentCycle(ctx, newParent, child); err != nil {
			s.rejected(models.RelationParent, err)
			return nil, err
		}
	}

	changed, err := child.Reparent(oldParent, newParent)
	if err != nil {
		s.rejected(models.RelationParent, err)
		util.RecordError(span, err)
		return nil, err
	}
	if !changed {
		return child, nil
	}

	touched := []*models.Product{child}
	for _, p := range []*models.Product{oldParent, newParent} {
		if p != nil && p.ID != child.ID {
			touched = append(touched, p)
		}
	}
	if err := s.saveRelations(ctx, models.RelationParent, opSet, touched...); err != nil {
		return nil, err
	}
	return child, nil
}

// AddGroup records membership of groupID
func (s *CatalogService) AddGroup(ctx context.Context, productID, groupID int64) (*models.Product, error) {
	return s.mutateGroup(ctx, opAdd, productID, groupID, (*models.Product).AddGroup)
}

// RemoveGroup drops membership of groupID
func (s *CatalogService) RemoveGroup(ctx context.Context, productID, groupID int64) (*models.Product, error) {
	return s.mutateGroup(ctx, opRemove, productID, groupID, (*models.Product).RemoveGroup)
}

func (s *CatalogService) mutateGroup(ctx context.Context, operation string, productID, groupID int64, mutate func(*models.Product, int64) bool) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Group",
		attribute.Int64("product.id", productID),
		attribute.String("relation.operation", operation))
	defer span.End()
	defer s.observe("relation", time.Now())

	unlock, err := s.lockProducts(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := s.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !mutate(p, groupID) {
		return p, nil
	}

	if err := s.saveRelations(ctx, models.RelationGroup, operation, p); err != nil {
		return nil, err
	}
	return p, nil
}

type pairMutation func(ctx context.Context, owner, other *models.Product) (bool, error)

// mutatePair locks and loads both products, applies mutate and persists both
// sides when anything changed. It returns the owner.
func (s *CatalogService) mutatePair(ctx context.Context, relation, operation string, ownerID, otherID int64, mutate pairMutation) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Relation",
		attribute.String("relation.kind", relation),
		attribute.String("relation.operation", operation),
		attribute.Int64("product.id", ownerID),
		attribute.Int64("product.other_id", otherID))
	defer span.End()
	defer s.observe("relation", time.Now())

	unlock, err := s.lockProducts(ctx, ownerID, otherID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	products, err := s.loadProducts(ctx, ownerID, otherID)
	if err != nil {
		return nil, err
	}
	owner, other := products[ownerID], products[otherID]

	changed, err := mutate(ctx, owner, other)
	if err != nil {
		s.rejected(relation, err)
		util.RecordError(span, err)
		return nil, err
	}
	if !changed {
		return owner, nil
	}

	if err := s.saveRelations(ctx, relation, operation, owner, other); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	return owner, nil
}

// saveRelations stamps, persists, invalidates and announces a relation change.
// The first product is the subject of the event.
func (s *CatalogService) saveRelations(ctx context.Context, relation, operation string, products ...*models.Product) error {
	now := s.clock()
	ids := make([]int64, len(products))
	for i, p := range products {
		p.Touch(now)
		ids[i] = p.ID
	}

	if err := s.store.SaveRelations(ctx, products...); err != nil {
		return fmt.Errorf("failed to save relations: %w", err)
	}

	util.RelationMutationsTotal.WithLabelValues(relation, operation).Inc()
	s.invalidate(ctx, ids...)
	s.logger.Info("Product relation changed",
		zap.String("relation", relation),
		zap.String("operation", operation),
		zap.Int64s("product_ids", ids))

	s.publish(ctx, models.EventTypeProductRelationChanged, products[0], func(e *models.ProductEvent) {
		e.Relation = relation
		e.RelatedIDs = ids[1:]
	})
	return nil
}

// loadProducts loads every id fresh from the store. A shared id yields one
// shared instance.
func (s *CatalogService) loadProducts(ctx context.Context, ids ...int64) (map[int64]*models.Product, error) {
	unique := models.NewIDSet(ids...)
	products, err := s.store.GetProductsByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[int64]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range unique {
		if byID[id] == nil {
			return nil, models.NewProductNotFoundError(id)
		}
	}
	return byID, nil
}

// checkSetCycle rejects adding member to set when member already contains
// set, directly or through nested sets
func (s *CatalogService) checkSetCycle(ctx context.Context, set, member *models.Product) error {
	if set.ID == member.ID {
		return nil
	}

	visited := map[int64]bool{member.ID: true}
	queue := append([]int64(nil), member.ComposedOf...)
	for len(queue) > 0 {
		batch := queue
		queue = nil

		var next []int64
		for _, id := range batch {
			if id == set.ID {
				return fmt.Errorf("%w: product %d already contains product %d", models.ErrRelationCycle, member.ID, set.ID)
			}
			if !visited[id] {
				visited[id] = true
				next = append(next, id)
			}
		}
		if len(next) == 0 {
			break
		}

		nested, err := s.store.GetProductsByIDs(ctx, next)
		if err != nil {
			return fmt.Errorf("failed to walk set containment: %w", err)
		}
		for _, p := range nested {
			queue = append(queue, p.ComposedOf...)
		}
	}
	return nil
}

// checkParentCycle rejects making child a variation of parent when child is
// an ancestor of parent
func (s *CatalogService) checkParentCycle(ctx context.Context, parent, child *models.Product) error {
	if parent.ID == child.ID {
		return nil
	}

	visited := map[int64]bool{parent.ID: true}
	next := parent.ParentID
	for next != nil {
		if *next == child.ID {
			return fmt.Errorf("%w: product %d is an ancestor of product %d", models.ErrRelationCycle, child.ID, parent.ID)
		}
		if visited[*next] {
			return fmt.Errorf("%w: parent chain of product %d loops", models.ErrRelationCycle, parent.ID)
		}
		visited[*next] = true

		ancestor, err := s.store.GetProductByID(ctx, *next)
		if err != nil {
			return fmt.Errorf("failed to walk parent chain: %w", err)
		}
		next = ancestor.ParentID
	}
	return nil
}

func (s *CatalogService) rejected(relation string, err error) {
	reason := "other"
	switch {
	case errors.Is(err, models.ErrSelfReference):
		reason = "self_reference"
	case errors.Is(err, models.ErrTypeConstraint):
		reason = "type_constraint"
	case errors.Is(err, models.ErrParentAlreadySet):
		reason = "parent_already_set"
	case errors.Is(err, models.ErrRelationCycle):
		reason = "cycle"
	case errors.Is(err, models.ErrStaleParent):
		reason = "stale_parent"
	}
	util.RelationMutationsRejected.WithLabelValues(relation, reason).Inc()
}
