package request

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// AttributeValue is one resolved taxonomy attribute on a listing payload.
type AttributeValue struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// CreateListingRequest is the create/update payload. LocationID and the
// coordinate pair are mutually exclusive; the marketplace rejects payloads
// carrying both geocoding modes.
type CreateListingRequest struct {
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	Price       float64          `json:"price" validate:"gt=0"`
	Currency    string           `json:"currency" validate:"required,len=3"`
	CategoryID  int64            `json:"category_id" validate:"required"`
	LocationID  *int64           `json:"location_id,omitempty"`
	Lat         *float64         `json:"lat,omitempty"`
	Lon         *float64         `json:"lon,omitempty"`
	ListingType string           `json:"listing_type" validate:"required"`
	Condition   string           `json:"condition"`
	Brand       string           `json:"brand,omitempty"`
	SKU         string           `json:"sku,omitempty"`
	Attributes  []AttributeValue `json:"attributes"`
	Images      []string         `json:"images,omitempty"`
}

var validate = validator.New()

func (req *CreateListingRequest) Validate() error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	hasLocation := req.LocationID != nil
	hasCoords := req.Lat != nil && req.Lon != nil
	if hasLocation && hasCoords {
		return errors.New("location_id and coordinates are mutually exclusive")
	}
	if !hasLocation && !hasCoords {
		return errors.New("either location_id or coordinates are required")
	}
	return nil
}
