package models

import (
	"errors"
	"fmt"
	"strings"
)

// Relationship and lifecycle errors
var (
	ErrSelfReference          = errors.New("product cannot reference itself")
	ErrTypeConstraint         = errors.New("relation not allowed for product type")
	ErrParentAlreadySet       = errors.New("product already has a parent")
	ErrStaleParent            = errors.New("parent reference does not match")
	ErrRelationCycle          = errors.New("relation would create a cycle")
	ErrUnsavedProduct         = errors.New("product has not been persisted")
	ErrDuplicateIdentifier    = errors.New("identifier already in use for organization")
	ErrImmutableField         = errors.New("field cannot be changed after creation")
	ErrConcurrentModification = errors.New("product is being modified concurrently")
	ErrVersionNotFound        = errors.New("version not found")
)

// ProductNotFoundError is returned when no product exists for an id
type ProductNotFoundError struct {
	ProductID int64
}

// Error implements the error interface for ProductNotFoundError
func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product not found: id=%d", e.ProductID)
}

// Is allows errors.Is to match any ProductNotFoundError
func (e *ProductNotFoundError) Is(target error) bool {
	_, ok := target.(*ProductNotFoundError)
	return ok
}

// NewProductNotFoundError creates a new ProductNotFoundError
func NewProductNotFoundError(productID int64) error {
	return &ProductNotFoundError{ProductID: productID}
}

// IsProductNotFoundError checks if an error is a ProductNotFoundError
func IsProductNotFoundError(err error) bool {
	var pnf *ProductNotFoundError
	return errors.As(err, &pnf)
}

// DuplicateIdentifierError reports an (identifier, organization) collision
type DuplicateIdentifierError struct {
	Organization string
	Identifier   string
}

// Error implements the error interface for DuplicateIdentifierError
func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate product: identificatie=%s already exists for bronOrganisatie=%s", e.Identifier, e.Organization)
}

// Unwrap makes errors.Is(err, ErrDuplicateIdentifier) hold
func (e *DuplicateIdentifierError) Unwrap() error {
	return ErrDuplicateIdentifier
}

// NewDuplicateIdentifierError creates a new DuplicateIdentifierError
func NewDuplicateIdentifierError(organization, identifier string) error {
	return &DuplicateIdentifierError{Organization: organization, Identifier: identifier}
}

// FieldError describes one violated field rule
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError collects every field violation of a product
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface for ValidationError
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid product: " + strings.Join(parts, "; ")
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
