package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductDefaults(t *testing.T) {
	p := NewProduct("123456789", ProductTypeSimple)

	assert.Equal(t, "EUR", p.Currency)
	assert.Equal(t, "nl", p.Language)
	assert.Equal(t, int64(0), p.PriceExcl)
	assert.Equal(t, int64(0), p.PriceIncl)
	assert.Nil(t, p.ModifiedAt)
}

func TestProductURLAndString(t *testing.T) {
	p := NewProduct("123456789", ProductTypeSimple)
	p.ID = 12
	p.Name = "Gratis Trouwen"

	assert.Equal(t, "https://pdc.example.nl/producten/12", p.URL("https://pdc.example.nl/"))
	assert.Equal(t, "Gratis Trouwen", p.String())
}

func TestCloneIsDeep(t *testing.T) {
	p := newTestProduct(1, ProductTypeVariable)
	p.Locations = []string{"stadskantoor"}
	p.Touch(time.Now())
	child := newTestProduct(2, ProductTypeSimple)
	_, err := p.AddVariation(child)
	require.NoError(t, err)

	c := p.Clone()
	c.Locations[0] = "elders"
	c.Variations[0] = 99
	*c.ModifiedAt = time.Time{}

	assert.Equal(t, "stadskantoor", p.Locations[0])
	assert.Equal(t, IDSet{2}, p.Variations)
	assert.False(t, p.ModifiedAt.IsZero())
}

func TestProductJSONUsesCatalogNames(t *testing.T) {
	p := NewProduct("123456789", ProductTypeSimple)
	p.ID = 3
	p.Name = "Eenvoudig Trouwen"
	p.SetPriceExcl(16300)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Eenvoudig Trouwen", out["naam"])
	assert.Equal(t, "123456789", out["bronOrganisatie"])
	assert.Equal(t, float64(16300), out["prijsIncl"])
	assert.Equal(t, []any{}, out["extras"])
	assert.Nil(t, out["moeder"])

	var back Product
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p.Name, back.Name)
	assert.Equal(t, p.PriceIncl, back.PriceIncl)
}

func TestIDSetUnmarshalSorts(t *testing.T) {
	var s IDSet
	require.NoError(t, json.Unmarshal([]byte("[5,1,5,3]"), &s))
	assert.Equal(t, IDSet{1, 3, 5}, s)
}

func TestVersionSnapshotRoundTrip(t *testing.T) {
	p := validProduct()
	p.ID = 8
	p.SetPriceExcl(49000)

	v, err := NewProductVersion(p, VersionActionCreate, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(8), v.ProductID)

	attrs, err := v.Attributes()
	require.NoError(t, err)
	assert.Equal(t, p.ProductAttributes, attrs)
}
