package store

import (
	"context"
	"testing"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrganization = "123456789"

func newProduct(identifier, name string, productType models.ProductType) *models.Product {
	p := models.NewProduct(testOrganization, productType)
	p.Identifier = identifier
	p.Name = name
	p.Summary = "Inclusief locatie & trouwambtenaar"
	p.Description = "Locatie: Stadskantoor Utrecht, 6e verdieping"
	p.StandalonePurchasable = true
	return p
}

// runRepositorySuite exercises behaviour every ProductRepository must share.
// newRepo must return an empty repository.
func runRepositorySuite(t *testing.T, newRepo func(t *testing.T) ProductRepository) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		repo := newRepo(t)

		p := newProduct("eenvoudig-trouwen", "Eenvoudig Trouwen", models.ProductTypeSimple)
		p.SetPriceExcl(16300)
		p.SetTaxPercentage(21)
		p.Locations = []string{"https://locaties.example.nl/1"}
		require.NoError(t, repo.CreateProduct(ctx, p))
		assert.NotZero(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())

		got, err := repo.GetProductByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ProductAttributes, got.ProductAttributes)
		assert.Equal(t, int64(3423), got.TaxAmount)
		assert.Equal(t, int64(19723), got.PriceIncl)
		assert.Equal(t, testOrganization, got.Organization)
		assert.Nil(t, got.ModifiedAt)
		assert.Empty(t, got.Extras)

		byIdent, err := repo.GetProductByIdentifier(ctx, testOrganization, "eenvoudig-trouwen")
		require.NoError(t, err)
		require.NotNil(t, byIdent)
		assert.Equal(t, p.ID, byIdent.ID)

		missing, err := repo.GetProductByIdentifier(ctx, testOrganization, "onbekend")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("duplicate identifier rejected", func(t *testing.T) {
		repo := newRepo(t)

		require.NoError(t, repo.CreateProduct(ctx, newProduct("X", "Eerste product", models.ProductTypeSimple)))

		err := repo.CreateProduct(ctx, newProduct("X", "Tweede product", models.ProductTypeSimple))
		assert.ErrorIs(t, err, models.ErrDuplicateIdentifier)

		other := newProduct("X", "Ander product", models.ProductTypeSimple)
		other.Organization = "987654321"
		assert.NoError(t, repo.CreateProduct(ctx, other))
	})

	t.Run("update appends versions", func(t *testing.T) {
		repo := newRepo(t)

		p := newProduct("gratis-trouwen", "Gratis Trouwen", models.ProductTypeSimple)
		require.NoError(t, repo.CreateProduct(ctx, p))

		p.Name = "Gratis Trouwen op maandag"
		require.NoError(t, repo.UpdateProduct(ctx, p, models.VersionActionUpdate))
		assert.NotNil(t, p.ModifiedAt)

		versions, err := repo.ListVersions(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, versions, 2)
		assert.Equal(t, 1, versions[0].Version)
		assert.Equal(t, models.VersionActionCreate, versions[0].Action)
		assert.Equal(t, 2, versions[1].Version)

		first, err := repo.GetVersion(ctx, p.ID, 1)
		require.NoError(t, err)
		attrs, err := first.Attributes()
		require.NoError(t, err)
		assert.Equal(t, "Gratis Trouwen", attrs.Name)

		_, err = repo.GetVersion(ctx, p.ID, 3)
		assert.ErrorIs(t, err, models.ErrVersionNotFound)

		missing := newProduct("weg", "Bestaat niet", models.ProductTypeSimple)
		missing.ID = 999
		err = repo.UpdateProduct(ctx, missing, models.VersionActionUpdate)
		assert.True(t, models.IsProductNotFoundError(err))
	})

	t.Run("relations derive inverse views", func(t *testing.T) {
		repo := newRepo(t)

		shirt := newProduct("shirt", "Trouwshirt", models.ProductTypeVariable)
		red := newProduct("shirt-rood", "Trouwshirt rood", models.ProductTypeSimple)
		set := newProduct("pakket", "Trouwpakket", models.ProductTypeComposite)
		for _, p := range []*models.Product{shirt, red, set} {
			require.NoError(t, repo.CreateProduct(ctx, p))
		}

		_, err := shirt.AddVariation(red)
		require.NoError(t, err)
		_, err = set.AddSetMember(shirt)
		require.NoError(t, err)
		_, err = set.AddExtra(red)
		require.NoError(t, err)
		set.AddGroup(4)
		require.NoError(t, repo.SaveRelations(ctx, shirt, red, set))

		products, err := repo.GetProductsByIDs(ctx, []int64{set.ID, red.ID, shirt.ID})
		require.NoError(t, err)
		require.Len(t, products, 3)
		byID := map[int64]*models.Product{}
		for _, p := range products {
			byID[p.ID] = p
		}

		assert.Equal(t, models.IDSet{red.ID}, byID[shirt.ID].Variations)
		assert.Equal(t, shirt.ID, *byID[red.ID].ParentID)
		assert.Equal(t, models.IDSet{shirt.ID}, byID[set.ID].ComposedOf)
		assert.Equal(t, models.IDSet{set.ID}, byID[shirt.ID].PartOfSet)
		assert.Equal(t, models.IDSet{red.ID}, byID[set.ID].Extras)
		assert.Equal(t, models.IDSet{set.ID}, byID[red.ID].ServedAsExtraFor)
		assert.Equal(t, models.IDSet{4}, byID[set.ID].Groups)

		require.NoError(t, repo.DeleteProduct(ctx, shirt.ID))

		gotRed, err := repo.GetProductByID(ctx, red.ID)
		require.NoError(t, err)
		assert.Nil(t, gotRed.ParentID)

		gotSet, err := repo.GetProductByID(ctx, set.ID)
		require.NoError(t, err)
		assert.Empty(t, gotSet.ComposedOf)
		assert.Equal(t, models.IDSet{red.ID}, gotSet.Extras)

		_, err = repo.GetProductByID(ctx, shirt.ID)
		assert.True(t, models.IsProductNotFoundError(err))
		assert.True(t, models.IsProductNotFoundError(repo.DeleteProduct(ctx, shirt.ID)))
	})

	t.Run("list filters and sorts", func(t *testing.T) {
		repo := newRepo(t)

		cheap := newProduct("a", "Gratis Trouwen", models.ProductTypeSimple)
		expensive := newProduct("b", "Uitgebreid Trouwen v.a.", models.ProductTypeSimple)
		expensive.SetPriceExcl(49000)
		bundle := newProduct("c", "Eenvoudig Trouwen", models.ProductTypeComposite)
		bundle.StandalonePurchasable = false
		bundle.SetPriceExcl(16300)
		for _, p := range []*models.Product{cheap, expensive, bundle} {
			require.NoError(t, repo.CreateProduct(ctx, p))
		}

		all, err := repo.ListProducts(ctx, models.ProductFilter{SortBy: "prijsExcl", Order: "desc"})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"b", "c", "a"}, identifiers(all))

		standalone := true
		simple, err := repo.ListProducts(ctx, models.ProductFilter{
			Type:                  models.ProductTypeSimple,
			StandalonePurchasable: &standalone,
			SortBy:                "naam",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, identifiers(simple))

		none, err := repo.ListProducts(ctx, models.ProductFilter{Organization: "000000000"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func identifiers(products []*models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Identifier
	}
	return out
}
