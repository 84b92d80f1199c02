package models

import "time"

// Event types
const (
	EventTypeProductCreated         = "PRODUCT_CREATED"
	EventTypeProductUpdated         = "PRODUCT_UPDATED"
	EventTypeProductDeleted         = "PRODUCT_DELETED"
	EventTypeProductRelationChanged = "PRODUCT_RELATION_CHANGED"
	EventTypeProductReverted        = "PRODUCT_REVERTED"
)

// Relation kinds carried by relation events
const (
	RelationExtra     = "extra"
	RelationSetMember = "set_member"
	RelationVariation = "variation"
	RelationParent    = "parent"
	RelationGroup     = "group"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductEvent is published whenever a product or one of its relations changes
type ProductEvent struct {
	BaseEvent
	ProductID    int64   `json:"product_id"`
	Organization string  `json:"organization"`
	Version      int     `json:"version,omitempty"`
	Relation     string  `json:"relation,omitempty"`
	RelatedIDs   []int64 `json:"related_ids,omitempty"`
}

// AffectedIDs returns the product and every related product touched by the event
func (e *ProductEvent) AffectedIDs() []int64 {
	ids := NewIDSet(e.RelatedIDs...)
	ids.insert(e.ProductID)
	return ids
}
