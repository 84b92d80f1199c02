package store

import (
	"context"
	"fmt"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
)

// Store backends
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ProductRepository persists products, their relations and version history
type ProductRepository interface {
	// CreateProduct inserts p, assigns its id and CreatedAt, and records version 1
	CreateProduct(ctx context.Context, p *models.Product) error
	// UpdateProduct replaces the stored attributes of p and appends a version
	UpdateProduct(ctx context.Context, p *models.Product, action string) error
	// SaveRelations writes the owning side of every relation of the given
	// products and their ModifiedAt in a single transaction
	SaveRelations(ctx context.Context, products ...*models.Product) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]*models.Product, error)
	// GetProductByIdentifier returns nil when no product matches
	GetProductByIdentifier(ctx context.Context, organization, identifier string) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListVersions(ctx context.Context, productID int64) ([]models.ProductVersion, error)
	GetVersion(ctx context.Context, productID int64, version int) (*models.ProductVersion, error)
	Close() error
}

// NewRepository constructs a ProductRepository by backend: "postgres" or "memory".
// The database URL is ignored for the memory backend.
func NewRepository(backend, databaseURL string) (ProductRepository, error) {
	switch backend {
	case BackendPostgres, "":
		return NewStore(databaseURL)
	case BackendMemory, "mem":
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
