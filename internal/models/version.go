package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Version actions
const (
	VersionActionCreate = "create"
	VersionActionUpdate = "update"
	VersionActionRevert = "revert"
)

// ProductVersion is a recorded snapshot of a product's writable attributes
type ProductVersion struct {
	ProductID int64          `db:"product_id" json:"product"`
	Version   int            `db:"version" json:"versie"`
	Action    string         `db:"action" json:"actie"`
	Data      types.JSONText `db:"data" json:"data"`
	CreatedAt time.Time      `db:"created_at" json:"tijdstip"`
}

// NewProductVersion snapshots the writable attributes of p. The version
// number is assigned by the store.
func NewProductVersion(p *Product, action string, at time.Time) (*ProductVersion, error) {
	data, err := json.Marshal(p.ProductAttributes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product snapshot: %w", err)
	}
	return &ProductVersion{
		ProductID: p.ID,
		Action:    action,
		Data:      types.JSONText(data),
		CreatedAt: at.UTC(),
	}, nil
}

// Attributes decodes the snapshot
func (v *ProductVersion) Attributes() (ProductAttributes, error) {
	var attrs ProductAttributes
	if err := json.Unmarshal(v.Data, &attrs); err != nil {
		return ProductAttributes{}, fmt.Errorf("failed to decode version %d of product %d: %w", v.Version, v.ProductID, err)
	}
	return attrs, nil
}
