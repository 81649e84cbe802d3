package models

import "encoding/json"

// OlxCategory is one locally cached node of the marketplace category tree.
// ParentExternalID comes straight from the API; ParentID is resolved locally
// during the second reconciliation pass. An orphan whose parent was never
// fetched stays a root (nil ParentID), never a dangling reference.
type OlxCategory struct {
	ID               int64           `json:"id"`
	ExternalID       int64           `json:"external_id"`
	Name             string          `json:"name"`
	Slug             string          `json:"slug"`
	ParentExternalID int64           `json:"parent_external_id,omitempty"`
	ParentID         *int64          `json:"parent_id,omitempty"`
	SupportsShipping bool            `json:"supports_shipping"`
	SupportsBrand    bool            `json:"supports_brand"`
	Metadata         json.RawMessage `json:"metadata,omitempty"`
}

// OlxCategoryAttribute is one schema field of a category; cascade-deleted
// with it.
type OlxCategoryAttribute struct {
	ID                 int64    `json:"id"`
	CategoryExternalID int64    `json:"category_external_id"`
	Name               string   `json:"name"`
	Type               string   `json:"type"`
	InputKind          string   `json:"input_kind"`
	Required           bool     `json:"required"`
	Options            []string `json:"options,omitempty"`
}

// OlxLocation is pure reference data, refreshed wholesale from the
// marketplace.
type OlxLocation struct {
	ID          int64    `json:"id"`
	ExternalID  int64    `json:"external_id"`
	Name        string   `json:"name"`
	CountryID   *int64   `json:"country_id,omitempty"`
	RegionID    *int64   `json:"region_id,omitempty"`
	SubregionID *int64   `json:"subregion_id,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	PostalCode  string   `json:"postal_code,omitempty"`
}
