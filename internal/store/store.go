package store

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	identifierConstraint = "products_organization_identifier_key"
)

const productColumns = `id, organization, identifier, name, summary, description, type,
	standalone_purchasable, price_excl, tax_percentage, tax_amount, price_incl, currency, language,
	available_at, image_url, video_url, contact_person, owner, locations, officials, parent_id,
	created_at, modified_at`

// Store is the Postgres implementation of ProductRepository
type Store struct {
	db *sqlx.DB
}

var _ ProductRepository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// CreateProduct inserts a product and records its first version
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (organization, identifier, name, summary, description, type,
			standalone_purchasable, price_excl, tax_percentage, tax_amount, price_incl, currency, language,
			available_at, image_url, video_url, contact_person, owner, locations, officials)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING id, created_at`

	err = tx.QueryRowxContext(ctx, query,
		p.Organization, p.Identifier, p.Name, p.Summary, p.Description, p.Type,
		p.StandalonePurchasable, p.PriceExcl, p.TaxPercentage, p.TaxAmount, p.PriceIncl, p.Currency, p.Language,
		p.AvailableAt, p.ImageURL, p.VideoURL, p.ContactPerson, p.Owner, p.Locations, p.Officials,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return mapWriteError(err, p)
	}
	p.CreatedAt = p.CreatedAt.UTC()

	if err := insertVersion(ctx, tx, p, models.VersionActionCreate); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateProduct replaces the writable attributes, stamps the modification
// time and appends a version
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product, action string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	p.Touch(time.Now())

	query := `
		UPDATE products SET identifier = $1, name = $2, summary = $3, description = $4, type = $5,
			standalone_purchasable = $6, price_excl = $7, tax_percentage = $8, tax_amount = $9,
			price_incl = $10, currency = $11, language = $12, available_at = $13, image_url = $14,
			video_url = $15, contact_person = $16, locations = $17, officials = $18, modified_at = $19
		WHERE id = $20`

	result, err := tx.ExecContext(ctx, query,
		p.Identifier, p.Name, p.Summary, p.Description, p.Type,
		p.StandalonePurchasable, p.PriceExcl, p.TaxPercentage, p.TaxAmount,
		p.PriceIncl, p.Currency, p.Language, p.AvailableAt, p.ImageURL,
		p.VideoURL, p.ContactPerson, p.Locations, p.Officials, p.ModifiedAt,
		p.ID)
	if err != nil {
		return mapWriteError(err, p)
	}
	if err := expectRow(result, p.ID); err != nil {
		return err
	}

	if err := insertVersion(ctx, tx, p, action); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveRelations writes parent pointers, extras, set members and groups of the
// given products in one transaction. Inverse views are derived on read.
func (s *Store) SaveRelations(ctx context.Context, products ...*models.Product) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range sortedByID(products) {
		result, err := tx.ExecContext(ctx,
			"UPDATE products SET parent_id = $1, modified_at = $2 WHERE id = $3",
			p.ParentID, p.ModifiedAt, p.ID)
		if err != nil {
			return mapRelationError(err)
		}
		if err := expectRow(result, p.ID); err != nil {
			return err
		}

		if err := replaceLinks(ctx, tx, "product_extras", "product_id", "extra_id", p.ID, p.Extras); err != nil {
			return err
		}
		if err := replaceLinks(ctx, tx, "product_set_members", "set_id", "member_id", p.ID, p.ComposedOf); err != nil {
			return err
		}
		if err := replaceLinks(ctx, tx, "product_groups", "product_id", "group_id", p.ID, p.Groups); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.NewProductNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}

	if err := loadRelations(ctx, s.db, []*models.Product{&product}); err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs. Unknown ids are skipped.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]*models.Product, error) {
	if len(ids) == 0 {
		return []*models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []*models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, s.db, products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProductByIdentifier retrieves a product by its organization-scoped identifier
func (s *Store) GetProductByIdentifier(ctx context.Context, organization, identifier string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE organization = $1 AND identifier = $2",
		organization, identifier)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := loadRelations(ctx, s.db, []*models.Product{&product}); err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves the products matching filter
func (s *Store) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	query, args := buildListQuery(filter)

	products := []*models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}
	if err := loadRelations(ctx, s.db, products); err != nil {
		return nil, err
	}
	return products, nil
}

// DeleteProduct removes a product. Relation rows on both sides cascade and
// variations lose their parent.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectRow(result, id)
}

// ListVersions retrieves the version history of a product, oldest first
func (s *Store) ListVersions(ctx context.Context, productID int64) ([]models.ProductVersion, error) {
	versions := []models.ProductVersion{}
	err := s.db.SelectContext(ctx, &versions,
		`SELECT product_id, version, action, data, created_at
		FROM product_versions WHERE product_id = $1 ORDER BY version`, productID)
	return versions, err
}

// GetVersion retrieves one recorded version of a product
func (s *Store) GetVersion(ctx context.Context, productID int64, version int) (*models.ProductVersion, error) {
	var v models.ProductVersion
	err := s.db.GetContext(ctx, &v,
		`SELECT product_id, version, action, data, created_at
		FROM product_versions WHERE product_id = $1 AND version = $2`, productID, version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: product %d version %d", models.ErrVersionNotFound, productID, version)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func buildListQuery(filter models.ProductFilter) (string, []interface{}) {
	query := "SELECT " + productColumns + " FROM products WHERE TRUE"
	var args []interface{}

	if filter.Organization != "" {
		args = append(args, filter.Organization)
		query += fmt.Sprintf(" AND organization = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.StandalonePurchasable != nil {
		args = append(args, *filter.StandalonePurchasable)
		query += fmt.Sprintf(" AND standalone_purchasable = $%d", len(args))
	}

	column := "id"
	switch filter.SortBy {
	case "naam":
		column = "name"
	case "prijsExcl":
		column = "price_excl"
	case "registratiedatum":
		column = "created_at"
	}
	direction := "ASC"
	if filter.Order == "desc" {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, id %s", column, direction, direction)

	return query, args
}

type link struct {
	OwnerID int64 `db:"owner_id"`
	OtherID int64 `db:"other_id"`
}

// loadRelations fills the relation id sets of products, deriving inverse views
// from the owning tables
func loadRelations(ctx context.Context, q sqlx.QueryerContext, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	for i, p := range products {
		ids[i] = p.ID
		p.CreatedAt = p.CreatedAt.UTC()
		p.AvailableAt = p.AvailableAt.UTC()
		if p.ModifiedAt != nil {
			p.Touch(*p.ModifiedAt)
		}
	}

	relations := []struct {
		query  string
		assign func(p *models.Product, set models.IDSet)
	}{
		{"SELECT product_id AS owner_id, extra_id AS other_id FROM product_extras WHERE product_id = ANY($1)",
			func(p *models.Product, set models.IDSet) { p.Extras = set }},
		{"SELECT extra_id AS owner_id, product_id AS other_id FROM product_extras WHERE extra_id = ANY($1)",
			func(p *models.Product, set models.IDSet) { p.ServedAsExtraFor = set }},
		{"SELECT set_id AS owner_id, member_id AS other_id FROM product_set_members WHERE set_id = ANY($1)",
			func(p *models.Product, set models.IDSet) { p.ComposedOf = set }},
		{"SELECT member_id AS owner_id, set_id AS other_id FROM product_set_members WHERE member_id = ANY($1)",
			func(p *models.Product, set models.IDSet) { p.PartOfSet = set }},
		{"SELECT parent_id AS owner_id, id AS other_id FROM products WHERE parent_id = ANY($1)",
			func(p *models.Product, set models.IDSet) { p.Variations = set }},
		{"SELECT product_id AS owner_id, group_id AS other_id FROM product_groups WHERE product_id = ANY($1)",
			func(p *models.Product, set models.IDSet) { p.Groups = set }},
	}

	for _, rel := range relations {
		var links []link
		if err := sqlx.SelectContext(ctx, q, &links, rel.query, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to load relations: %w", err)
		}

		grouped := make(map[int64][]int64, len(products))
		for _, l := range links {
			grouped[l.OwnerID] = append(grouped[l.OwnerID], l.OtherID)
		}
		for _, p := range products {
			rel.assign(p, models.NewIDSet(grouped[p.ID]...))
		}
	}

	return nil
}

// replaceLinks rewrites the rows of a join table owned by ownerID
func replaceLinks(ctx context.Context, tx *sqlx.Tx, table, ownerColumn, otherColumn string, ownerID int64, others models.IDSet) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, ownerColumn), ownerID)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	if len(others) == 0 {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (%s, %s) SELECT $1, unnest($2::bigint[])", table, ownerColumn, otherColumn),
		ownerID, pq.Array([]int64(others)))
	if err != nil {
		return mapRelationError(fmt.Errorf("failed to write %s: %w", table, err))
	}
	return nil
}

func insertVersion(ctx context.Context, tx *sqlx.Tx, p *models.Product, action string) error {
	v, err := models.NewProductVersion(p, action, time.Now())
	if err != nil {
		return err
	}

	query := `
		INSERT INTO product_versions (product_id, version, action, data, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4 FROM product_versions WHERE product_id = $1`

	if _, err := tx.ExecContext(ctx, query, v.ProductID, v.Action, v.Data, v.CreatedAt); err != nil {
		return fmt.Errorf("failed to record version: %w", err)
	}
	return nil
}

func expectRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.NewProductNotFoundError(id)
	}
	return nil
}

func mapWriteError(err error, p *models.Product) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation && pqErr.Constraint == identifierConstraint {
		return models.NewDuplicateIdentifierError(p.Organization, p.Identifier)
	}
	return err
}

func mapRelationError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("%w: %s", models.ErrUnsavedProduct, pqErr.Detail)
	}
	return err
}

func sortedByID(products []*models.Product) []*models.Product {
	sorted := slices.Clone(products)
	slices.SortFunc(sorted, func(a, b *models.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}
