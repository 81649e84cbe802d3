package request

import (
	"fmt"
	"net/url"
)

// ListingFilter narrows a remote listing search.
type ListingFilter struct {
	Status     string
	CategoryID int64
}

func (f ListingFilter) Query(page int) string {
	params := url.Values{}
	if f.Status != "" {
		params.Add("status", f.Status)
	}
	if f.CategoryID > 0 {
		params.Add("category_id", fmt.Sprintf("%d", f.CategoryID))
	}
	if page > 1 {
		params.Add("page", fmt.Sprintf("%d", page))
	}
	return params.Encode()
}
