package models

// AttributeRuleKind tells the sync engine where an attribute value comes from.
type AttributeRuleKind string

const (
	RuleColumn AttributeRuleKind = "column"
	RuleSpec   AttributeRuleKind = "spec"
	RuleStatic AttributeRuleKind = "static"
)

// AttributeRule maps one external attribute to a product column, a specs-blob
// key or a static default.
type AttributeRule struct {
	Attribute string            `json:"attribute"`
	Kind      AttributeRuleKind `json:"kind"`
	// Source is the column name for RuleColumn, the specs key for RuleSpec
	// and the literal value for RuleStatic.
	Source string `json:"source"`
}

// CategoryTemplate binds a shop's products to one marketplace category and
// carries the listing defaults. Location-by-id and location-by-coordinates
// are mutually exclusive modes; the marketplace geocoding moved from city ids
// to lat/lon and both generations must be supported.
type CategoryTemplate struct {
	ID                 int64           `json:"id"`
	ShopID             int64           `json:"shop_id"`
	Name               string          `json:"name"`
	CategoryExternalID int64           `json:"category_external_id"`
	LocationExternalID *int64          `json:"location_external_id,omitempty"`
	Lat                *float64        `json:"lat,omitempty"`
	Lon                *float64        `json:"lon,omitempty"`
	ListingType        string          `json:"listing_type"`
	Condition          string          `json:"condition"`
	Rules              []AttributeRule `json:"rules"`
}

// UsesCoordinates reports whether the template is in the lat/lon geocoding
// mode instead of location-by-id.
func (t *CategoryTemplate) UsesCoordinates() bool {
	return t.Lat != nil && t.Lon != nil
}
