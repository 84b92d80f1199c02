package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Defaults applied to new products
const (
	DefaultCurrency = "EUR"
	DefaultLanguage = "nl"
)

// MaxPriceExcl is the largest net price whose gross price still fits an
// int64 at any valid tax percentage
const MaxPriceExcl int64 = math.MaxInt64 / 2

// ProductType classifies how a product is offered
type ProductType string

// Product types
const (
	ProductTypeSimple       ProductType = "simpel"
	ProductTypeComposite    ProductType = "samengesteld"
	ProductTypeVirtual      ProductType = "virtueel"
	ProductTypeExternal     ProductType = "extern"
	ProductTypeTicket       ProductType = "kaartje"
	ProductTypeVariable     ProductType = "variabel"
	ProductTypeSubscription ProductType = "abonnement"
	ProductTypeService      ProductType = "dienst"
)

var productTypeNames = map[string]ProductType{
	"simpel":       ProductTypeSimple,
	"simple":       ProductTypeSimple,
	"samengesteld": ProductTypeComposite,
	"composite":    ProductTypeComposite,
	"virtueel":     ProductTypeVirtual,
	"virtual":      ProductTypeVirtual,
	"extern":       ProductTypeExternal,
	"external":     ProductTypeExternal,
	"kaartje":      ProductTypeTicket,
	"ticket":       ProductTypeTicket,
	"variabel":     ProductTypeVariable,
	"variable":     ProductTypeVariable,
	"abonnement":   ProductTypeSubscription,
	"subscription": ProductTypeSubscription,
	"dienst":       ProductTypeService,
	"service":      ProductTypeService,
}

// ParseProductType accepts Dutch and English type names and returns the canonical type
func ParseProductType(s string) (ProductType, error) {
	t, ok := productTypeNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown product type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the canonical product types
func (t ProductType) Valid() bool {
	canonical, ok := productTypeNames[string(t)]
	return ok && canonical == t
}

// ProductAttributes holds the externally writable fields of a product.
// Version snapshots record exactly this set.
type ProductAttributes struct {
	Identifier            string         `db:"identifier" json:"identificatie" validate:"max=40"`
	Name                  string         `db:"name" json:"naam" validate:"required,min=5,max=255"`
	Summary               string         `db:"summary" json:"samenvatting" validate:"required,min=25,max=2000"`
	Description           string         `db:"description" json:"beschrijving" validate:"required,min=25,max=2000"`
	Type                  ProductType    `db:"type" json:"type" validate:"required,product_type"`
	StandalonePurchasable bool           `db:"standalone_purchasable" json:"losLeverbaar"`
	PriceExcl             int64          `db:"price_excl" json:"prijsExcl" validate:"gte=0,lte=4611686018427387903"`
	TaxPercentage         int64          `db:"tax_percentage" json:"belastingPercentage" validate:"gte=0,lte=100"`
	Currency              string         `db:"currency" json:"valuta" validate:"required,iso4217"`
	Language              string         `db:"language" json:"taal" validate:"required,len=2,lowercase,alpha"`
	ImageURL              *string        `db:"image_url" json:"afbeelding,omitempty" validate:"omitempty,url,max=255"`
	VideoURL              *string        `db:"video_url" json:"film,omitempty" validate:"omitempty,url,max=255"`
	ContactPerson         *string        `db:"contact_person" json:"contactPersoon,omitempty" validate:"omitempty,url,max=255"`
	Locations             pq.StringArray `db:"locations" json:"locaties"`
	Officials             pq.StringArray `db:"officials" json:"ambtenaren"`
}

// Product is a catalog item. Relations are kept as id sets on both sides;
// use the paired mutation methods to change them.
type Product struct {
	ID           int64  `db:"id" json:"id"`
	Organization string `db:"organization" json:"bronOrganisatie" validate:"required,len=9,number"`
	ProductAttributes

	TaxAmount   int64      `db:"tax_amount" json:"prijsBelasting"`
	PriceIncl   int64      `db:"price_incl" json:"prijsIncl"`
	AvailableAt time.Time  `db:"available_at" json:"beschikbaar"`
	Owner       *string    `db:"owner" json:"eigenaar,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"registratiedatum"`
	ModifiedAt  *time.Time `db:"modified_at" json:"wijzigingsdatum"`
	ParentID    *int64     `db:"parent_id" json:"moeder"`

	Extras           IDSet `db:"-" json:"extras"`
	ServedAsExtraFor IDSet `db:"-" json:"leverbaarBij"`
	ComposedOf       IDSet `db:"-" json:"producten"`
	PartOfSet        IDSet `db:"-" json:"sets"`
	Variations       IDSet `db:"-" json:"variaties"`
	Groups           IDSet `db:"-" json:"groepen"`
}

// NewProduct creates a product for an organization with the catalog defaults applied
func NewProduct(organization string, productType ProductType) *Product {
	return &Product{
		Organization: organization,
		ProductAttributes: ProductAttributes{
			Type:     productType,
			Currency: DefaultCurrency,
			Language: DefaultLanguage,
		},
	}
}

// String returns the product name
func (p *Product) String() string {
	return p.Name
}

// URL returns the public resource location of the product
func (p *Product) URL(baseURL string) string {
	return fmt.Sprintf("%s/producten/%d", strings.TrimRight(baseURL, "/"), p.ID)
}

// ApplyAttributes replaces the writable fields and recomputes derived pricing
func (p *Product) ApplyAttributes(attrs ProductAttributes) {
	p.ProductAttributes = attrs
	p.Locations = cloneStrings(attrs.Locations)
	p.Officials = cloneStrings(attrs.Officials)
	p.ComputePricing()
}

// Touch stamps the modification time
func (p *Product) Touch(now time.Time) {
	t := now.UTC()
	p.ModifiedAt = &t
}

// Clone returns a deep copy
func (p *Product) Clone() *Product {
	c := *p
	c.ImageURL = cloneString(p.ImageURL)
	c.VideoURL = cloneString(p.VideoURL)
	c.ContactPerson = cloneString(p.ContactPerson)
	c.Owner = cloneString(p.Owner)
	c.Locations = cloneStrings(p.Locations)
	c.Officials = cloneStrings(p.Officials)
	if p.ModifiedAt != nil {
		t := *p.ModifiedAt
		c.ModifiedAt = &t
	}
	if p.ParentID != nil {
		id := *p.ParentID
		c.ParentID = &id
	}
	c.Extras = p.Extras.Clone()
	c.ServedAsExtraFor = p.ServedAsExtraFor.Clone()
	c.ComposedOf = p.ComposedOf.Clone()
	c.PartOfSet = p.PartOfSet.Clone()
	c.Variations = p.Variations.Clone()
	c.Groups = p.Groups.Clone()
	return &c
}

// RelatedIDs returns every product id p points at or is pointed at by
func (p *Product) RelatedIDs() []int64 {
	related := NewIDSet()
	for _, set := range []IDSet{p.Extras, p.ServedAsExtraFor, p.ComposedOf, p.PartOfSet, p.Variations} {
		for _, id := range set {
			related.insert(id)
		}
	}
	if p.ParentID != nil {
		related.insert(*p.ParentID)
	}
	return related
}

// ProductFilter narrows product listings
type ProductFilter struct {
	Organization          string
	Type                  ProductType
	StandalonePurchasable *bool
	SortBy                string // "id", "naam", "prijsExcl", "registratiedatum"
	Order                 string // "asc" or "desc"
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneStrings(in pq.StringArray) pq.StringArray {
	if in == nil {
		return nil
	}
	out := make(pq.StringArray, len(in))
	copy(out, in)
	return out
}
