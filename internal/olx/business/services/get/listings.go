package get

import (
	"context"
	"fmt"
	"net/http"

	"olxmarket_api/internal/olx/business/models/dto/request"
	"olxmarket_api/internal/olx/business/models/dto/response"
	"olxmarket_api/internal/olx/pkg/clients"
)

// ListingService wraps the remote listing CRUD surface.
type ListingService struct {
	client *clients.OlxClient
}

func NewListingService(client *clients.OlxClient) *ListingService {
	return &ListingService{client: client}
}

// Search walks the filtered listing pages until exhaustion.
func (s *ListingService) Search(ctx context.Context, shopID int64, filter request.ListingFilter) ([]response.Listing, error) {
	var listings []response.Listing
	page := 1
	for {
		endpoint := "/listings"
		if query := filter.Query(page); query != "" {
			endpoint = "/listings?" + query
		}
		var pageResp response.ListingPage
		if err := s.client.Do(ctx, shopID, http.MethodGet, endpoint, nil, &pageResp); err != nil {
			return nil, fmt.Errorf("searching listings page %d: %w", page, err)
		}
		listings = append(listings, pageResp.Data...)
		if pageResp.NextPage == nil {
			return listings, nil
		}
		page = *pageResp.NextPage
	}
}

func (s *ListingService) Create(ctx context.Context, shopID int64, payload *request.CreateListingRequest) (string, error) {
	var created response.CreateListingResponse
	if err := s.client.Do(ctx, shopID, http.MethodPost, "/listings", payload, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("marketplace returned no listing id")
	}
	return created.ID, nil
}

func (s *ListingService) Update(ctx context.Context, shopID int64, externalID string, payload *request.CreateListingRequest) error {
	return s.client.Do(ctx, shopID, http.MethodPut, "/listings/"+externalID, payload, nil)
}

// Unpublish deactivates the remote listing without deleting it.
func (s *ListingService) Unpublish(ctx context.Context, shopID int64, externalID string) error {
	return s.client.Do(ctx, shopID, http.MethodPost, "/listings/"+externalID+"/deactivate", nil, nil)
}

func (s *ListingService) Delete(ctx context.Context, shopID int64, externalID string) error {
	return s.client.Do(ctx, shopID, http.MethodDelete, "/listings/"+externalID, nil, nil)
}
