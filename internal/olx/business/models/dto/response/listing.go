package response

import "encoding/json"

// Listing is one remote publication as returned by list/search calls.
type Listing struct {
	ID         string            `json:"id"`
	Title      string            `json:"title"`
	Price      float64           `json:"price"`
	Currency   string            `json:"currency"`
	Status     string            `json:"status"`
	CategoryID int64             `json:"category_id"`
	LocationID int64             `json:"location_id"`
	Brand      string            `json:"brand"`
	SKU        string            `json:"sku"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Images     []string          `json:"images,omitempty"`
	Raw        json.RawMessage   `json:"-"`
}

type ListingPage struct {
	Data     []Listing `json:"data"`
	NextPage *int      `json:"next_page"`
}

// CreateListingResponse carries the external id assigned on create.
type CreateListingResponse struct {
	ID string `json:"id"`
}
