package models

import (
	"encoding/json"
	"time"
)

// ListingStatus is a closed enumeration of the publication lifecycle.
type ListingStatus string

const (
	ListingDraft       ListingStatus = "draft"
	ListingPublished   ListingStatus = "published"
	ListingUnpublished ListingStatus = "unpublished"
	ListingRemoved     ListingStatus = "removed"
)

func (s ListingStatus) CanTransition(next ListingStatus) bool {
	switch s {
	case ListingDraft:
		return next == ListingPublished || next == ListingRemoved
	case ListingPublished:
		return next == ListingUnpublished || next == ListingRemoved
	case ListingUnpublished:
		return next == ListingPublished || next == ListingRemoved
	default:
		return false
	}
}

// Listing is the external-facing publication record, at most one active per
// product. ExternalID is immutable once assigned and is kept after removal
// for audit; it is never reassigned to another listing.
type Listing struct {
	ID          int64         `json:"id"`
	ShopID      int64         `json:"shop_id"`
	ProductID   int64         `json:"product_id"`
	ExternalID  string        `json:"external_id"`
	Status      ListingStatus `json:"status"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	// Metadata snapshots the last-known remote state, used for diffing on
	// update passes.
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
