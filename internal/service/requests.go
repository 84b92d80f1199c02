package service

import (
	"time"

	"github.com/GemeenteUtrecht/Huwelijksplanner-producten-diensten/internal/models"
)

// ProductWriteRequest holds the externally settable fields of a product.
// Organization is only honoured on create.
type ProductWriteRequest struct {
	Organization          string     `json:"bronOrganisatie"`
	Identifier            string     `json:"identificatie"`
	Name                  string     `json:"naam"`
	Summary               string     `json:"samenvatting"`
	Description           string     `json:"beschrijving"`
	Type                  string     `json:"type" binding:"required"`
	StandalonePurchasable bool       `json:"losLeverbaar"`
	PriceExcl             *int64     `json:"prijsExcl"`
	TaxPercentage         *int64     `json:"belastingPercentage"`
	Currency              string     `json:"valuta"`
	Language              string     `json:"taal"`
	AvailableAt           *time.Time `json:"beschikbaar"`
	ImageURL              *string    `json:"afbeelding"`
	VideoURL              *string    `json:"film"`
	ContactPerson         *string    `json:"contactPersoon"`
	Locations             []string   `json:"locaties"`
	Officials             []string   `json:"ambtenaren"`
}

// attributes converts the request into model attributes, applying defaults
func (r *ProductWriteRequest) attributes() (models.ProductAttributes, error) {
	productType, err := models.ParseProductType(r.Type)
	if err != nil {
		return models.ProductAttributes{}, &models.ValidationError{Fields: []models.FieldError{{
			Field:   "type",
			Rule:    "product_type",
			Message: err.Error(),
		}}}
	}

	attrs := models.ProductAttributes{
		Identifier:            r.Identifier,
		Name:                  r.Name,
		Summary:               r.Summary,
		Description:           r.Description,
		Type:                  productType,
		StandalonePurchasable: r.StandalonePurchasable,
		Currency:              r.Currency,
		Language:              r.Language,
		ImageURL:              r.ImageURL,
		VideoURL:              r.VideoURL,
		ContactPerson:         r.ContactPerson,
		Locations:             r.Locations,
		Officials:             r.Officials,
	}
	if r.PriceExcl != nil {
		attrs.PriceExcl = *r.PriceExcl
	}
	if r.TaxPercentage != nil {
		attrs.TaxPercentage = *r.TaxPercentage
	}
	if attrs.Currency == "" {
		attrs.Currency = models.DefaultCurrency
	}
	if attrs.Language == "" {
		attrs.Language = models.DefaultLanguage
	}
	return attrs, nil
}

// ParentRequest names the new parent of a variation; null detaches it
type ParentRequest struct {
	ParentID *int64 `json:"moeder"`
}
