package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
)

// InMemoryStore is a thread-safe in-memory ProductRepository. Rows keep only
// the owning side of each relation; inverse views are derived on read.
type InMemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	products map[int64]*models.Product
	versions map[int64][]models.ProductVersion
	now      func() time.Time
}

// NewInMemoryStore constructs a new InMemoryStore
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products: make(map[int64]*models.Product),
		versions: make(map[int64][]models.ProductVersion),
		now:      time.Now,
	}
}

// compile-time assertion that InMemoryStore implements ProductRepository
var _ ProductRepository = (*InMemoryStore)(nil)

// CreateProduct assigns an id and creation time to p and records version 1
func (s *InMemoryStore) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdentifier(p); err != nil {
		return err
	}

	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = s.now().UTC()

	row := p.Clone()
	row.ParentID = nil
	row.Extras, row.ServedAsExtraFor = nil, nil
	row.ComposedOf, row.PartOfSet = nil, nil
	row.Variations, row.Groups = nil, nil
	s.products[p.ID] = row

	return s.appendVersion(p, models.VersionActionCreate)
}

// UpdateProduct overwrites the attributes of p and records a new version
func (s *InMemoryStore) UpdateProduct(ctx context.Context, p *models.Product, action string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.products[p.ID]
	if !ok {
		return models.NewProductNotFoundError(p.ID)
	}
	if err := s.checkIdentifier(p); err != nil {
		return err
	}

	p.Touch(s.now())

	updated := p.Clone()
	row.ProductAttributes = updated.ProductAttributes
	row.TaxAmount = updated.TaxAmount
	row.PriceIncl = updated.PriceIncl
	row.AvailableAt = updated.AvailableAt
	row.ModifiedAt = updated.ModifiedAt

	return s.appendVersion(p, action)
}

// SaveRelations replaces the owned relations of every given product
func (s *InMemoryStore) SaveRelations(ctx context.Context, products ...*models.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range products {
		if _, ok := s.products[p.ID]; !ok {
			return models.NewProductNotFoundError(p.ID)
		}
		for _, id := range p.RelatedIDs() {
			if _, ok := s.products[id]; !ok {
				return fmt.Errorf("%w: product %d references missing product %d", models.ErrUnsavedProduct, p.ID, id)
			}
		}
	}

	for _, p := range products {
		c := p.Clone()
		row := s.products[p.ID]
		row.ParentID = c.ParentID
		row.Extras = c.Extras
		row.ComposedOf = c.ComposedOf
		row.Groups = c.Groups
		row.ModifiedAt = c.ModifiedAt
	}
	return nil
}

// GetProductByID retrieves a product by ID
func (s *InMemoryStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.products[id]
	if !ok {
		return nil, models.NewProductNotFoundError(id)
	}
	return s.materialize(row), nil
}

// GetProductsByIDs retrieves the existing products among ids, ordered by id
func (s *InMemoryStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Product, 0, len(ids))
	for _, id := range models.NewIDSet(ids...) {
		if row, ok := s.products[id]; ok {
			out = append(out, s.materialize(row))
		}
	}
	return out, nil
}

// GetProductByIdentifier retrieves a product by organization and identifier, or nil
func (s *InMemoryStore) GetProductByIdentifier(ctx context.Context, organization, identifier string) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.products {
		if row.Organization == organization && row.Identifier == identifier {
			return s.materialize(row), nil
		}
	}
	return nil, nil
}

// ListProducts retrieves the products matching filter
func (s *InMemoryStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Product, 0, len(s.products))
	for _, row := range s.products {
		if filter.Organization != "" && row.Organization != filter.Organization {
			continue
		}
		if filter.Type != "" && row.Type != filter.Type {
			continue
		}
		if filter.StandalonePurchasable != nil && row.StandalonePurchasable != *filter.StandalonePurchasable {
			continue
		}
		out = append(out, s.materialize(row))
	}

	less := func(a, b *models.Product) bool { return a.ID < b.ID }
	switch filter.SortBy {
	case "naam":
		less = func(a, b *models.Product) bool { return a.Name < b.Name }
	case "prijsExcl":
		less = func(a, b *models.Product) bool { return a.PriceExcl < b.PriceExcl }
	case "registratiedatum":
		less = func(a, b *models.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if filter.Order == "desc" {
			return less(out[j], out[i]) || (!less(out[i], out[j]) && out[i].ID > out[j].ID)
		}
		return less(out[i], out[j]) || (!less(out[j], out[i]) && out[i].ID < out[j].ID)
	})

	return out, nil
}

// DeleteProduct removes a product and every reference to it
func (s *InMemoryStore) DeleteProduct(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return models.NewProductNotFoundError(id)
	}
	delete(s.products, id)
	delete(s.versions, id)

	for _, row := range s.products {
		row.Extras = without(row.Extras, id)
		row.ComposedOf = without(row.ComposedOf, id)
		if row.ParentID != nil && *row.ParentID == id {
			row.ParentID = nil
		}
	}
	return nil
}

// ListVersions retrieves the recorded versions of a product, oldest first
func (s *InMemoryStore) ListVersions(ctx context.Context, productID int64) ([]models.ProductVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ProductVersion, len(s.versions[productID]))
	copy(out, s.versions[productID])
	return out, nil
}

// GetVersion retrieves one recorded version of a product
func (s *InMemoryStore) GetVersion(ctx context.Context, productID int64, version int) (*models.ProductVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[productID]
	if version < 1 || version > len(versions) {
		return nil, fmt.Errorf("%w: product %d version %d", models.ErrVersionNotFound, productID, version)
	}
	v := versions[version-1]
	return &v, nil
}

// Close is a no-op
func (s *InMemoryStore) Close() error {
	return nil
}

func (s *InMemoryStore) checkIdentifier(p *models.Product) error {
	for id, row := range s.products {
		if id != p.ID && row.Organization == p.Organization && row.Identifier == p.Identifier {
			return models.NewDuplicateIdentifierError(p.Organization, p.Identifier)
		}
	}
	return nil
}

func (s *InMemoryStore) appendVersion(p *models.Product, action string) error {
	v, err := models.NewProductVersion(p, action, s.now())
	if err != nil {
		return err
	}
	v.Version = len(s.versions[p.ID]) + 1
	s.versions[p.ID] = append(s.versions[p.ID], *v)
	return nil
}

// materialize copies a row and derives its inverse relation views
func (s *InMemoryStore) materialize(row *models.Product) *models.Product {
	p := row.Clone()
	p.Extras = models.NewIDSet(row.Extras...)
	p.ComposedOf = models.NewIDSet(row.ComposedOf...)
	p.Groups = models.NewIDSet(row.Groups...)

	var servedAsExtraFor, partOfSet, variations []int64
	for id, other := range s.products {
		if other.Extras.Has(row.ID) {
			servedAsExtraFor = append(servedAsExtraFor, id)
		}
		if other.ComposedOf.Has(row.ID) {
			partOfSet = append(partOfSet, id)
		}
		if other.ParentID != nil && *other.ParentID == row.ID {
			variations = append(variations, id)
		}
	}
	p.ServedAsExtraFor = models.NewIDSet(servedAsExtraFor...)
	p.PartOfSet = models.NewIDSet(partOfSet...)
	p.Variations = models.NewIDSet(variations...)
	return p
}

func without(set models.IDSet, id int64) models.IDSet {
	if !set.Has(id) {
		return set
	}
	out := make(models.IDSet, 0, len(set)-1)
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
